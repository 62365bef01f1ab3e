package streams

import (
	"time"

	"github.com/google/uuid"
)

// DefaultProgressStream is the stream job snapshots are appended to
const DefaultProgressStream = "generation:progress"

// Schema version constant
const (
	SchemaVersionV1 = "v1"
)

// JobProgress is one snapshot of a generation job
type JobProgress struct {
	JobID        uuid.UUID  `json:"job_id"`
	DocumentID   uuid.UUID  `json:"document_id"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	CurrentStep  string     `json:"current_step"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
