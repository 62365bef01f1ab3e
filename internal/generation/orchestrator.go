package generation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/aggregator"
	"github.com/hikitugu/handover/internal/ai"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/planner"
)

// Deps are the orchestrator's collaborators
type Deps struct {
	Store       JobStore
	Planner     *planner.Planner
	Collector   SourceCollector
	Synthesizer ai.Synthesizer
	// Notifier is optional.
	Notifier Notifier
	Logger   *slog.Logger
}

// Orchestrator runs generation jobs to a terminal state
type Orchestrator struct {
	store     JobStore
	planner   *planner.Planner
	collector SourceCollector
	synth     ai.Synthesizer
	notifier  Notifier
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     d.Store,
		planner:   d.Planner,
		collector: d.Collector,
		synth:     d.Synthesizer,
		notifier:  d.Notifier,
		logger:    logger.With("component", "orchestrator"),
	}
}

// progressTracker keeps written progress non-decreasing within a run.
type progressTracker struct {
	last int
}

func (p *progressTracker) next(v int) int {
	if v < p.last {
		v = p.last
	}
	if v > 100 {
		v = 100
	}
	p.last = v
	return v
}

func percent(step, total int) int {
	return int(math.Round(100 * float64(step) / float64(total)))
}

// Run claims a pending job and drives it to completed or failed. If the
// claim fails nothing is written and the claim error is returned; every
// later error (or panic) marks the job failed and the document error, and is
// returned after those writes.
func (o *Orchestrator) Run(ctx context.Context, documentID, jobID uuid.UUID) (err error) {
	logger := o.logger.With("job_id", jobID, "document_id", documentID)

	job, err := o.store.ClaimJob(ctx, jobID, StepStarting)
	if err != nil {
		logger.Warn("Job claim rejected", "error", err)
		return err
	}
	o.notify(ctx, jobID, logger)

	// The job row is authoritative for which document it generates.
	documentID = job.DocumentID

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during generation: %v", r)
			logger.Error("Generation panicked", "panic", r, "stack", string(debug.Stack()))
		}
		if err != nil {
			o.fail(ctx, documentID, jobID, err, logger)
		}
	}()

	logger.Info("Generation started")
	if err := o.execute(ctx, documentID, jobID, logger); err != nil {
		return err
	}
	logger.Info("Generation completed")
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, documentID, jobID uuid.UUID, logger *slog.Logger) error {
	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	var tmpl *models.Template
	if doc.GenerationMode == models.GenerationModeTemplate && doc.TemplateID != nil {
		tmpl, err = o.store.GetTemplate(ctx, *doc.TemplateID)
		if err != nil {
			return err
		}
	}

	approved, err := o.store.LatestApprovedProposal(ctx, doc.ID)
	if err != nil {
		return err
	}

	plan := o.planner.Resolve(doc, tmpl, approved)
	totalSteps := len(plan.Items) + 1
	logger.Info("Section plan resolved", "origin", plan.Origin, "sections", len(plan.Items))

	tracker := &progressTracker{}
	if err := o.progress(ctx, jobID, tracker.next(percent(1, totalSteps)), StepFetching, logger); err != nil {
		return err
	}

	data, err := o.collector.Collect(ctx, doc)
	if err != nil {
		return err
	}
	logger.Info("Source data collected",
		"calendar_events", data.Summary.CalendarEventsCount,
		"slack_messages", data.Summary.SlackMessagesCount,
		"spreadsheet_rows", data.Summary.SpreadsheetRowsCount,
	)

	for i, item := range plan.Items {
		if err := o.progress(ctx, jobID, tracker.next(percent(i+2, totalSteps)), StepSectionPrefix+item.Title, logger); err != nil {
			return err
		}

		content, err := o.synth.GenerateSectionContent(ctx, ai.SectionRequest{
			Title:       item.Title,
			Description: item.Description,
			Sources:     sectionSources(item, data),
		})
		if err != nil {
			return fmt.Errorf("section %d (%s): %w", item.Order, item.Title, err)
		}

		section := &models.DocumentSection{
			DocumentID:       doc.ID,
			SectionOrder:     item.Order,
			Title:            item.Title,
			Content:          content,
			SourceTags:       sectionTags(item, doc),
			SourceReferences: []models.SourceReference{},
			IsAIGenerated:    true,
		}
		if err := o.store.CreateSection(ctx, section); err != nil {
			return err
		}
	}

	if err := o.store.CompleteGeneration(ctx, doc.ID, jobID, StepDone); err != nil {
		return err
	}
	o.notify(ctx, jobID, logger)
	return nil
}

func (o *Orchestrator) progress(ctx context.Context, jobID uuid.UUID, value int, step string, logger *slog.Logger) error {
	if err := o.store.UpdateJobProgress(ctx, jobID, value, step); err != nil {
		return err
	}
	logger.Debug("Job progress", "progress", value, "step", step)
	o.notify(ctx, jobID, logger)
	return nil
}

// fail records the terminal failure. It runs on a context detached from
// cancellation so a timed-out run still reaches a terminal state.
func (o *Orchestrator) fail(ctx context.Context, documentID, jobID uuid.UUID, cause error, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)

	message := cause.Error()
	if message == "" {
		message = defaultFailMessage
	}
	logger.Error("Generation failed", "error", message)

	if err := o.store.FailJob(ctx, jobID, message); err != nil {
		logger.Error("Failed to mark job failed", "error", err)
	}
	if err := o.store.SetDocumentStatus(ctx, documentID, models.DocumentStatusError); err != nil {
		logger.Error("Failed to mark document error", "error", err)
	}
	o.notify(ctx, jobID, logger)
}

func (o *Orchestrator) notify(ctx context.Context, jobID uuid.UUID, logger *slog.Logger) {
	if o.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		logger.Warn("Failed to load job for progress event", "error", err)
		return
	}
	if err := o.notifier.PublishJob(ctx, job); err != nil {
		logger.Warn("Failed to publish progress event", "error", err)
	}
}

// sectionSources picks the aggregate buckets a section is written from: the
// ones it names, or all three when it names none.
func sectionSources(item planner.Item, data aggregator.Result) []ai.SourceBucket {
	wanted := item.EstimatedSources
	if len(wanted) == 0 {
		wanted = models.AllSources
	}

	buckets := make([]ai.SourceBucket, 0, len(wanted))
	for _, src := range wanted.Dedup() {
		switch src {
		case models.SourceCalendar:
			buckets = append(buckets, ai.SourceBucket{Source: src, Count: len(data.CalendarEvents), Records: data.CalendarEvents})
		case models.SourceSlack:
			buckets = append(buckets, ai.SourceBucket{Source: src, Count: len(data.SlackMessages), Records: data.SlackMessages})
		case models.SourceSpreadsheet:
			buckets = append(buckets, ai.SourceBucket{Source: src, Count: len(data.SpreadsheetData), Records: data.SpreadsheetData})
		}
	}
	return buckets
}

func sectionTags(item planner.Item, doc *models.Document) models.SourceSet {
	if len(item.EstimatedSources) > 0 {
		return item.EstimatedSources.Clone()
	}
	return doc.DataSources.Clone()
}
