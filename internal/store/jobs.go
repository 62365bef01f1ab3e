package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/models"
	"gorm.io/gorm"
)

// CreateJob inserts a job
func (s *Store) CreateJob(ctx context.Context, job *models.GenerationJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob loads a job
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "job", id)
	}
	return &job, nil
}

// ClaimJob moves a pending job to processing in a single conditional update.
// Only one caller can win; the others get ErrJobAlreadyClaimed.
func (s *Store) ClaimJob(ctx context.Context, id uuid.UUID, step string) (*models.GenerationJob, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&models.GenerationJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusPending).
		Updates(map[string]interface{}{
			"status":       models.JobStatusProcessing,
			"progress":     0,
			"current_step": step,
			"started_at":   now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("job %s: %w", id, ErrJobAlreadyClaimed)
	}
	return s.GetJob(ctx, id)
}

// UpdateJobProgress records progress for a processing job
func (s *Store) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int, step string) error {
	err := s.db.WithContext(ctx).
		Model(&models.GenerationJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusProcessing).
		Updates(map[string]interface{}{
			"progress":     progress,
			"current_step": step,
			"updated_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// CompleteGeneration moves the document to completed and its job to
// completed at 100% in one transaction. Either both change or neither does.
func (s *Store) CompleteGeneration(ctx context.Context, documentID, jobID uuid.UUID, step string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setDocumentStatus(tx, documentID, models.DocumentStatusCompleted); err != nil {
			return err
		}
		return completeJob(tx, jobID, step)
	})
}

func completeJob(db *gorm.DB, id uuid.UUID, step string) error {
	now := time.Now().UTC()
	err := db.
		Model(&models.GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.JobStatusCompleted,
			"progress":      100,
			"current_step":  step,
			"completed_at":  now,
			"error_message": "",
			"updated_at":    now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob marks a job failed. Progress is left as it was.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, message string) error {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Model(&models.GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": message,
			"completed_at":  now,
			"updated_at":    now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// ListJobs returns jobs in status last updated before cutoff, oldest first.
func (s *Store) ListJobs(ctx context.Context, status string, cutoff time.Time) ([]models.GenerationJob, error) {
	jobs := []models.GenerationJob{}
	err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, cutoff.UTC()).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs: %w", status, err)
	}
	return jobs, nil
}
