package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"gorm.io/gorm"
)

// CreateTemplate inserts a template
func (s *Store) CreateTemplate(ctx context.Context, t *models.Template) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetTemplate loads a template
func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	var t models.Template
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "template", id)
	}
	return &t, nil
}

// ListTemplates returns a page of templates, newest first, plus the total count.
func (s *Store) ListTemplates(ctx context.Context, limit, offset int) ([]models.Template, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Template{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	templates := []models.Template{}
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&templates).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, total, nil
}

// DeleteTemplate removes a template. Documents generated from it keep their
// sections and lose the reference.
func (s *Store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Document{}).Where("template_id = ?", id).Update("template_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach template: %w", err)
		}
		res := tx.Delete(&models.Template{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete template: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("template %s not found", id)
		}
		return nil
	})
}
