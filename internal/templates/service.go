// Package templates manages the handover templates documents are generated from.
// A template arrives with its heading structure already extracted.
package templates

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
)

const maxHeadingLevel = 6

// Store is the persistence the service needs
type Store interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]models.Template, int64, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

// SectionInput is one heading of a new template. Orders are assigned by position.
type SectionInput struct {
	Title string `json:"title"`
	Level int    `json:"level"`
}

// CreateRequest registers a template from its extracted structure
type CreateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	FileType    string         `json:"file_type"`
	Sections    []SectionInput `json:"sections"`
}

// List is a page of templates
type List struct {
	Templates []models.Template `json:"templates"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// Preview is the outline a template would generate
type Preview struct {
	ID              uuid.UUID                `json:"id"`
	Name            string                   `json:"name"`
	Status          string                   `json:"status"`
	PreviewSections []models.TemplateSection `json:"preview_sections"`
}

// Service handles template requests
type Service struct {
	store Store
}

// NewService creates a service
func NewService(st Store) *Service {
	return &Service{store: st}
}

// Create validates req and stores a ready template
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Template, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if len(req.Sections) == 0 {
		return nil, apperr.Validation("sections must not be empty")
	}

	sections := make([]models.TemplateSection, 0, len(req.Sections))
	for i, in := range req.Sections {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return nil, apperr.Validation("section %d has no title", i+1)
		}
		level := in.Level
		if level == 0 {
			level = 1
		}
		if level < 1 || level > maxHeadingLevel {
			return nil, apperr.Validation("section %d has level %d, want 1-%d", i+1, in.Level, maxHeadingLevel)
		}
		sections = append(sections, models.TemplateSection{Order: i + 1, Title: title, Level: level})
	}

	t := &models.Template{
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
		FileType:        req.FileType,
		Status:          models.TemplateStatusReady,
		ParsedStructure: models.ParsedStructure{Sections: sections},
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns a page of templates, newest first
func (s *Service) List(ctx context.Context, limit, offset int) (*List, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.store.ListTemplates(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &List{Templates: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns one template
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// Delete removes a template
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteTemplate(ctx, id)
}

// Preview returns the sections a template would generate, in order
func (s *Service) Preview(ctx context.Context, id uuid.UUID) (*Preview, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	sections := t.ParsedStructure.Sections
	if sections == nil {
		sections = []models.TemplateSection{}
	}
	return &Preview{ID: t.ID, Name: t.Name, Status: t.Status, PreviewSections: sections}, nil
}
