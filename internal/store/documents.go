package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"gorm.io/gorm"
)

// DocumentFilter narrows ListDocuments
type DocumentFilter struct {
	CreatedBy uuid.UUID
	Status    string
	Query     string // case-insensitive title substring
	Limit     int
	Offset    int
}

// CreateDocument inserts doc, assigning its ID
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := s.db.WithContext(ctx).Omit("Sections", "Jobs", "Proposals").Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument loads a document without its sections
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "document", id)
	}
	return &doc, nil
}

// GetDocumentWithSections loads a document and its sections in section order
func (s *Store) GetDocumentWithSections(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("section_order ASC")
		}).
		First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "document", id)
	}
	return &doc, nil
}

// ListDocuments returns a page of documents, newest first, plus the total count.
func (s *Store) ListDocuments(ctx context.Context, f DocumentFilter) ([]models.Document, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Document{}).Where("created_by = ?", f.CreatedBy)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Query != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '\\'", "%"+likeEscaper.Replace(strings.ToLower(f.Query))+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	docs := []models.Document{}
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&docs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// DocumentUpdate carries the editable document fields; nil fields are left unchanged.
type DocumentUpdate struct {
	Title           *string `json:"title"`
	TargetUserEmail *string `json:"target_user_email"`
}

// UpdateDocument applies u and returns the updated document
func (s *Store) UpdateDocument(ctx context.Context, id uuid.UUID, u DocumentUpdate) (*models.Document, error) {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		updates["title"] = *u.Title
	}
	if u.TargetUserEmail != nil {
		updates["target_user_email"] = *u.TargetUserEmail
	}

	res := s.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update document: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("document %s not found", id)
	}
	return s.GetDocument(ctx, id)
}

// EnableSharing turns on the document's public link. An already shared
// document keeps its token; otherwise token is stored. The active token is returned.
func (s *Store) EnableSharing(ctx context.Context, id uuid.UUID, token string) (string, error) {
	active := token
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Select("id", "share_token", "share_enabled").First(&doc, "id = ?", id).Error; err != nil {
			return notFound(err, "document", id)
		}
		if doc.ShareEnabled && doc.ShareToken != nil {
			active = *doc.ShareToken
			return nil
		}
		return tx.Model(&models.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
			"share_token":   token,
			"share_enabled": true,
			"updated_at":    time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return "", err
	}
	return active, nil
}

// DisableSharing revokes the public link. The token is cleared so a later
// EnableSharing issues a new one.
func (s *Store) DisableSharing(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"share_token":   nil,
		"share_enabled": false,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to disable sharing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("document %s not found", id)
	}
	return nil
}

// GetSharedDocument loads a document and its sections by share token.
// Unknown tokens and documents with sharing turned off are NotFound.
func (s *Store) GetSharedDocument(ctx context.Context, token string) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("section_order ASC")
		}).
		Where("share_token = ? AND share_enabled = ?", token, true).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("shared document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shared document: %w", err)
	}
	return &doc, nil
}

// SetDocumentStatus moves a document to status. Backward moves and moves out
// of a terminal status are rejected with a Conflict error.
func (s *Store) SetDocumentStatus(ctx context.Context, id uuid.UUID, status string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setDocumentStatus(tx, id, status)
	})
}

func setDocumentStatus(tx *gorm.DB, id uuid.UUID, status string) error {
	var doc models.Document
	if err := tx.Select("id", "status").First(&doc, "id = ?", id).Error; err != nil {
		return notFound(err, "document", id)
	}
	if doc.Status == status {
		return nil
	}
	if !models.CanTransition(doc.Status, status) {
		return apperr.Conflict("document %s cannot move from %s to %s", id, doc.Status, status)
	}
	return tx.Model(&models.Document{}).Where("id = ?", id).Update("status", status).Error
}

// DeleteDocument removes a document with its sections, jobs and proposals.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&models.DocumentSection{}, &models.GenerationJob{}, &models.Proposal{}} {
			if err := tx.Where("document_id = ?", id).Delete(child).Error; err != nil {
				return fmt.Errorf("failed to delete document children: %w", err)
			}
		}
		res := tx.Delete(&models.Document{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete document: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("document %s not found", id)
		}
		return nil
	})
}
