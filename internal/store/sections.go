package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/models"
)

// SectionUpdate holds the editable fields of a section; nil fields are kept.
type SectionUpdate struct {
	Title   *string
	Content *string
}

// CreateSection inserts a section
func (s *Store) CreateSection(ctx context.Context, section *models.DocumentSection) error {
	if err := s.db.WithContext(ctx).Create(section).Error; err != nil {
		return fmt.Errorf("failed to create section %d: %w", section.SectionOrder, err)
	}
	return nil
}

// ListSections returns a document's sections in section order
func (s *Store) ListSections(ctx context.Context, documentID uuid.UUID) ([]models.DocumentSection, error) {
	sections := []models.DocumentSection{}
	err := s.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("section_order ASC").
		Find(&sections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	return sections, nil
}

// UpdateSection applies a manual edit. Edited sections are no longer marked
// as AI generated.
func (s *Store) UpdateSection(ctx context.Context, documentID, sectionID uuid.UUID, u SectionUpdate) (*models.DocumentSection, error) {
	var section models.DocumentSection
	if err := s.db.WithContext(ctx).First(&section, "id = ? AND document_id = ?", sectionID, documentID).Error; err != nil {
		return nil, notFound(err, "section", sectionID)
	}

	updates := map[string]interface{}{"is_ai_generated": false}
	if u.Title != nil {
		updates["title"] = *u.Title
	}
	if u.Content != nil {
		updates["content"] = *u.Content
	}
	if err := s.db.WithContext(ctx).Model(&section).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update section: %w", err)
	}

	if err := s.db.WithContext(ctx).First(&section, "id = ?", sectionID).Error; err != nil {
		return nil, notFound(err, "section", sectionID)
	}
	return &section, nil
}
