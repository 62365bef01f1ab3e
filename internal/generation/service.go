package generation

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/aggregator"
	"github.com/hikitugu/handover/internal/ai"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/store"
)

const dateLayout = "2006-01-02"

// DocumentRequest is the part shared by generation and proposal requests
type DocumentRequest struct {
	Title           string          `json:"title"`
	TargetUserEmail string          `json:"target_user_email"`
	DateRangeStart  string          `json:"date_range_start"`
	DateRangeEnd    string          `json:"date_range_end"`
	DataSources     []models.Source `json:"data_sources"`
	SlackChannelIDs []string        `json:"slack_channel_ids"`
	SpreadsheetIDs  []string        `json:"spreadsheet_ids"`
}

// GenerateRequest starts template-based generation
type GenerateRequest struct {
	DocumentRequest
	TemplateID uuid.UUID `json:"template_id"`
}

// ProposeRequest asks for an AI-proposed outline
type ProposeRequest struct {
	DocumentRequest
}

// ApproveRequest approves a proposal, optionally with an edited structure
type ApproveRequest struct {
	ProposalID        uuid.UUID                `json:"proposal_id"`
	ApprovedStructure []models.ProposedSection `json:"approved_structure"`
	UserFeedback      string                   `json:"user_feedback"`
}

// GenerationStarted is returned once a job has been launched
type GenerationStarted struct {
	DocumentID uuid.UUID `json:"document_id"`
	JobID      uuid.UUID `json:"job_id"`
	Status     string    `json:"status"`
}

// ProposalResult is returned by ProposeStructure
type ProposalResult struct {
	DocumentID        uuid.UUID                `json:"document_id"`
	ProposalID        uuid.UUID                `json:"proposal_id"`
	ProposedStructure []models.ProposedSection `json:"proposed_structure"`
}

// PreviewRequest selects the source data to fetch without creating a document
type PreviewRequest struct {
	TargetUserEmail string          `json:"target_user_email"`
	DateRangeStart  string          `json:"date_range_start"`
	DateRangeEnd    string          `json:"date_range_end"`
	DataSources     []models.Source `json:"data_sources"`
	SlackChannelIDs []string        `json:"slack_channel_ids"`
	SpreadsheetIDs  []string        `json:"spreadsheet_ids"`
}

// ListQuery narrows ListDocuments
type ListQuery struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// DocumentList is a page of documents
type DocumentList struct {
	Documents []models.Document `json:"documents"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// Service is the entry point for HTTP handlers
type Service struct {
	store     Store
	launcher  Launcher
	collector SourceCollector
	synth     ai.Synthesizer
	logger    *slog.Logger
}

// NewService creates a service
func NewService(st Store, launcher Launcher, collector SourceCollector, synth ai.Synthesizer, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		launcher:  launcher,
		collector: collector,
		synth:     synth,
		logger:    logger.With("component", "generation_service"),
	}
}

// CreateAndStart validates the request, creates the document and a pending
// job, and launches the job.
func (s *Service) CreateAndStart(ctx context.Context, userID uuid.UUID, req GenerateRequest) (*GenerationStarted, error) {
	if req.TemplateID == uuid.Nil {
		return nil, apperr.Validation("template_id is required")
	}
	doc, err := req.document(userID)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.store.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl.Status != models.TemplateStatusReady {
		return nil, apperr.Validation("template %s is %s, not ready", tmpl.ID, tmpl.Status)
	}

	doc.GenerationMode = models.GenerationModeTemplate
	doc.TemplateID = &tmpl.ID
	doc.Status = models.DocumentStatusGenerating
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	return s.createAndLaunch(ctx, doc.ID)
}

// Launch hands a pending job to the launcher. When the launcher refuses it
// the job is failed and the document marked error so neither stays pending.
func (s *Service) Launch(ctx context.Context, documentID, jobID uuid.UUID) error {
	if err := s.launcher.Launch(ctx, documentID, jobID); err != nil {
		s.logger.Error("Failed to launch generation", "job_id", jobID, "document_id", documentID, "error", err)

		ctx = context.WithoutCancel(ctx)
		if ferr := s.store.FailJob(ctx, jobID, "failed to enqueue generation: "+err.Error()); ferr != nil {
			s.logger.Error("Failed to mark job failed", "job_id", jobID, "error", ferr)
		}
		if ferr := s.store.SetDocumentStatus(ctx, documentID, models.DocumentStatusError); ferr != nil {
			s.logger.Error("Failed to mark document error", "document_id", documentID, "error", ferr)
		}
		return fmt.Errorf("failed to enqueue generation: %w", err)
	}
	return nil
}

// GetJobStatus returns a snapshot of a job of one of the user's documents
func (s *Service) GetJobStatus(ctx context.Context, userID, jobID uuid.UUID) (*JobStatus, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedDocument(ctx, userID, job.DocumentID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		return nil, err
	}
	return statusOf(job), nil
}

// ProposeStructure creates a draft document, summarizes its source data and
// stores the model's outline as a pending proposal. It runs inline.
func (s *Service) ProposeStructure(ctx context.Context, userID uuid.UUID, req ProposeRequest) (*ProposalResult, error) {
	doc, err := req.document(userID)
	if err != nil {
		return nil, err
	}
	doc.GenerationMode = models.GenerationModeAIProposal
	doc.Status = models.DocumentStatusDraft
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	structure, err := s.propose(ctx, doc)
	if err != nil {
		if serr := s.store.SetDocumentStatus(context.WithoutCancel(ctx), doc.ID, models.DocumentStatusError); serr != nil {
			s.logger.Error("Failed to mark document error", "document_id", doc.ID, "error", serr)
		}
		return nil, err
	}

	proposal := &models.Proposal{
		DocumentID:        doc.ID,
		ProposedStructure: structure,
		Status:            models.ProposalStatusPending,
	}
	if err := s.store.CreateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	return &ProposalResult{
		DocumentID:        doc.ID,
		ProposalID:        proposal.ID,
		ProposedStructure: structure,
	}, nil
}

func (s *Service) propose(ctx context.Context, doc *models.Document) ([]models.ProposedSection, error) {
	data, err := s.collector.Collect(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.synth.ProposeStructure(ctx, ai.DataSummary{
		Counts:         data.Summary,
		DataSources:    doc.DataSources,
		DateRangeStart: doc.DateRangeStart,
		DateRangeEnd:   doc.DateRangeEnd,
		TargetUser:     doc.TargetUserEmail,
	})
}

// ApproveProposal approves a pending proposal of the document and launches generation.
func (s *Service) ApproveProposal(ctx context.Context, userID, documentID uuid.UUID, req ApproveRequest) (*GenerationStarted, error) {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.GenerationMode != models.GenerationModeAIProposal {
		return nil, apperr.Validation("document %s was not created from a proposal", doc.ID)
	}

	proposal, err := s.store.GetProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal.DocumentID != doc.ID {
		return nil, apperr.NotFound("proposal %s not found for document %s", req.ProposalID, doc.ID)
	}
	if req.ApprovedStructure != nil {
		if err := validateStructure(req.ApprovedStructure); err != nil {
			return nil, err
		}
	}

	if _, err := s.store.ApproveProposal(ctx, proposal.ID, req.ApprovedStructure, req.UserFeedback); err != nil {
		return nil, err
	}
	if err := s.store.SetDocumentStatus(ctx, doc.ID, models.DocumentStatusGenerating); err != nil {
		return nil, err
	}

	return s.createAndLaunch(ctx, doc.ID)
}

func (s *Service) createAndLaunch(ctx context.Context, documentID uuid.UUID) (*GenerationStarted, error) {
	job := &models.GenerationJob{DocumentID: documentID, Status: models.JobStatusPending}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := s.Launch(ctx, documentID, job.ID); err != nil {
		return nil, err
	}
	return &GenerationStarted{DocumentID: documentID, JobID: job.ID, Status: job.Status}, nil
}

// GetDocument returns a document owned by userID with its sections
func (s *Service) GetDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Document, error) {
	doc, err := s.store.GetDocumentWithSections(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.CreatedBy != userID {
		return nil, apperr.NotFound("document %s not found", documentID)
	}
	return doc, nil
}

// ListDocuments returns a page of the user's documents
func (s *Service) ListDocuments(ctx context.Context, userID uuid.UUID, q ListQuery) (*DocumentList, error) {
	limit, offset := q.Limit, q.Offset
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	docs, total, err := s.store.ListDocuments(ctx, store.DocumentFilter{
		CreatedBy: userID,
		Status:    q.Status,
		Query:     strings.TrimSpace(q.Search),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}
	return &DocumentList{Documents: docs, Total: total, Limit: limit, Offset: offset}, nil
}

// UpdateDocument edits the title or target user of a document owned by userID
func (s *Service) UpdateDocument(ctx context.Context, userID, documentID uuid.UUID, u store.DocumentUpdate) (*models.Document, error) {
	if u.Title == nil && u.TargetUserEmail == nil {
		return nil, apperr.Validation("nothing to update")
	}
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return nil, apperr.Validation("title must not be blank")
		}
		u.Title = &title
	}
	if u.TargetUserEmail != nil && *u.TargetUserEmail != "" {
		if _, err := mail.ParseAddress(*u.TargetUserEmail); err != nil {
			return nil, apperr.Validation("target_user_email is not a valid address")
		}
	}
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return s.store.UpdateDocument(ctx, documentID, u)
}

// ShareDocument turns on the public link of a document owned by userID and
// returns its token. Sharing an already shared document returns the same token.
func (s *Service) ShareDocument(ctx context.Context, userID, documentID uuid.UUID) (string, error) {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return "", err
	}
	token, err := newShareToken()
	if err != nil {
		return "", err
	}
	return s.store.EnableSharing(ctx, documentID, token)
}

// UnshareDocument revokes the public link
func (s *Service) UnshareDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return err
	}
	return s.store.DisableSharing(ctx, documentID)
}

// GetSharedDocument returns the public view of a shared document
func (s *Service) GetSharedDocument(ctx context.Context, token string) (*SharedDocument, error) {
	if token == "" {
		return nil, apperr.NotFound("shared document not found")
	}
	doc, err := s.store.GetSharedDocument(ctx, token)
	if err != nil {
		return nil, err
	}
	return sharedView(doc), nil
}

// PreviewSources fetches and aggregates the selected source data without
// creating anything.
func (s *Service) PreviewSources(ctx context.Context, userID uuid.UUID, req PreviewRequest) (aggregator.Result, error) {
	doc, err := DocumentRequest{
		Title:           "preview",
		TargetUserEmail: req.TargetUserEmail,
		DateRangeStart:  req.DateRangeStart,
		DateRangeEnd:    req.DateRangeEnd,
		DataSources:     req.DataSources,
		SlackChannelIDs: req.SlackChannelIDs,
		SpreadsheetIDs:  req.SpreadsheetIDs,
	}.document(userID)
	if err != nil {
		return aggregator.Result{}, err
	}
	if len(doc.DataSources) == 0 {
		return aggregator.Result{}, apperr.Validation("data_sources must not be empty")
	}
	return s.collector.Collect(ctx, doc)
}

// DeleteDocument removes a document owned by userID
func (s *Service) DeleteDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return err
	}
	return s.store.DeleteDocument(ctx, documentID)
}

// UpdateSection applies a manual edit to a section
func (s *Service) UpdateSection(ctx context.Context, userID, documentID, sectionID uuid.UUID, u store.SectionUpdate) (*models.DocumentSection, error) {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, apperr.Validation("title must not be blank")
	}
	return s.store.UpdateSection(ctx, documentID, sectionID, u)
}

func (s *Service) ownedDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.CreatedBy != userID {
		return nil, apperr.NotFound("document %s not found", documentID)
	}
	return doc, nil
}

// document validates the shared request fields and builds an unsaved document.
func (r DocumentRequest) document(userID uuid.UUID) (*models.Document, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	start, err := time.Parse(dateLayout, r.DateRangeStart)
	if err != nil {
		return nil, apperr.Validation("date_range_start must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, r.DateRangeEnd)
	if err != nil {
		return nil, apperr.Validation("date_range_end must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, apperr.Validation("date_range_end is before date_range_start")
	}

	if r.TargetUserEmail != "" {
		if _, err := mail.ParseAddress(r.TargetUserEmail); err != nil {
			return nil, apperr.Validation("target_user_email is not a valid address")
		}
	}

	sources := models.SourceSet(r.DataSources).Dedup()
	for _, src := range sources {
		if !src.Valid() {
			return nil, apperr.Validation("unsupported data source %q", src)
		}
	}
	if sources.Contains(models.SourceSlack) && len(r.SlackChannelIDs) == 0 {
		return nil, apperr.Validation("slack requires at least one channel")
	}
	if sources.Contains(models.SourceSpreadsheet) && len(r.SpreadsheetIDs) == 0 {
		return nil, apperr.Validation("spreadsheet requires at least one spreadsheet id")
	}

	return &models.Document{
		CreatedBy:       userID,
		Title:           title,
		TargetUserEmail: r.TargetUserEmail,
		DateRangeStart:  start,
		DateRangeEnd:    end,
		DataSources:     sources,
		Metadata: models.DocumentMetadata{
			SlackChannelIDs: nonNil(r.SlackChannelIDs),
			SpreadsheetIDs:  nonNil(r.SpreadsheetIDs),
		},
	}, nil
}

func validateStructure(sections []models.ProposedSection) error {
	if len(sections) == 0 {
		return apperr.Validation("approved_structure must not be empty")
	}
	for i := range sections {
		sections[i].Title = strings.TrimSpace(sections[i].Title)
		if sections[i].Title == "" {
			return apperr.Validation("approved_structure section %d has no title", i+1)
		}
		for _, src := range sections[i].EstimatedSources {
			if !src.Valid() {
				return apperr.Validation("approved_structure section %d has unknown source %q", i+1, src)
			}
		}
		sections[i].EstimatedSources = sections[i].EstimatedSources.Dedup()
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
