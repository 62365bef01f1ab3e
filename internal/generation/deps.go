// Package generation drives document generation: collecting source data,
// running the per-section job state machine and the synchronous proposal flow.
package generation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/aggregator"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/store"
)

// Step labels written to GenerationJob.CurrentStep
const (
	StepStarting       = "starting"
	StepFetching       = "fetching source data"
	StepSectionPrefix  = "generating section: "
	StepDone           = "done"
	defaultFailMessage = "generation failed"
)

// JobStore is the persistence the orchestrator needs
type JobStore interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	SetDocumentStatus(ctx context.Context, id uuid.UUID, status string) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.Template, error)
	LatestApprovedProposal(ctx context.Context, documentID uuid.UUID) (*models.Proposal, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	ClaimJob(ctx context.Context, id uuid.UUID, step string) (*models.GenerationJob, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int, step string) error
	CompleteGeneration(ctx context.Context, documentID, jobID uuid.UUID, step string) error
	FailJob(ctx context.Context, id uuid.UUID, message string) error
	CreateSection(ctx context.Context, section *models.DocumentSection) error
}

// Store is the persistence the service needs on top of JobStore
type Store interface {
	JobStore
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentWithSections(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, f store.DocumentFilter) ([]models.Document, int64, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, u store.DocumentUpdate) (*models.Document, error)
	EnableSharing(ctx context.Context, id uuid.UUID, token string) (string, error)
	DisableSharing(ctx context.Context, id uuid.UUID) error
	GetSharedDocument(ctx context.Context, token string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	UpdateSection(ctx context.Context, documentID, sectionID uuid.UUID, u store.SectionUpdate) (*models.DocumentSection, error)
	CreateJob(ctx context.Context, job *models.GenerationJob) error
	CreateProposal(ctx context.Context, p *models.Proposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	ApproveProposal(ctx context.Context, id uuid.UUID, structure []models.ProposedSection, feedback string) (*models.Proposal, error)
}

// TokenStore loads stored OAuth tokens
type TokenStore interface {
	GetToken(ctx context.Context, userID uuid.UUID, provider models.Provider) (*models.OAuthToken, error)
}

// Decrypter reverses the at-rest token encryption
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// SourceCollector fetches and aggregates everything a document draws from
type SourceCollector interface {
	Collect(ctx context.Context, doc *models.Document) (aggregator.Result, error)
}

// Launcher schedules a run for a pending job and returns without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, documentID, jobID uuid.UUID) error
}

// Notifier receives a job snapshot after every job write. Failures are logged
// and never affect the run.
type Notifier interface {
	PublishJob(ctx context.Context, job *models.GenerationJob) error
}

// JobStatus is the read-only view a polling client gets
type JobStatus struct {
	ID           uuid.UUID  `json:"id"`
	DocumentID   uuid.UUID  `json:"document_id"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	CurrentStep  string     `json:"current_step"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func statusOf(job *models.GenerationJob) *JobStatus {
	return &JobStatus{
		ID:           job.ID,
		DocumentID:   job.DocumentID,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ErrorMessage: job.ErrorMessage,
	}
}
