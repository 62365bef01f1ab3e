package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationJob status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// GenerationJob tracks one generation run against one document.
// Progress is a percentage in [0,100] and never decreases within a run.
type GenerationJob struct {
	Base
	DocumentID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"document_id"`
	Status       string     `gorm:"not null;default:'pending';index" json:"status"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	CurrentStep  string     `json:"current_step,omitempty"`
	StartedAt    *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ErrorMessage string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
}

// IsTerminal reports whether the job reached completed or failed.
func (j *GenerationJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
