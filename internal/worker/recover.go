package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/generation"
	"github.com/hikitugu/handover/internal/models"
)

// JobLister lists jobs in a status that have not been touched since cutoff
type JobLister interface {
	ListJobs(ctx context.Context, status string, cutoff time.Time) ([]models.GenerationJob, error)
}

// SweepReport summarizes one recovery sweep
type SweepReport struct {
	Relaunched int
	Failed     int
	Stale      []uuid.UUID
}

// Sweeper finds jobs that were created but never started, and jobs that
// have stopped making progress.
//
// Pending jobs older than the grace period are launched again; the claim
// step makes a second launch of a job that is in fact queued harmless.
// Processing jobs idle for longer than staleAfter are only reported: they
// cannot be told apart from a slow run.
type Sweeper struct {
	jobs       JobLister
	launcher   generation.Launcher
	grace      time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewSweeper creates a sweeper
func NewSweeper(jobs JobLister, launcher generation.Launcher, grace, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		jobs:       jobs,
		launcher:   launcher,
		grace:      grace,
		staleAfter: staleAfter,
		logger:     logger.With("component", "recovery"),
		now:        time.Now,
	}
}

// Sweep runs one pass. Launch failures are counted and logged; the job
// stays pending for the next pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.now()

	pending, err := s.jobs.ListJobs(ctx, models.JobStatusPending, now.Add(-s.grace))
	if err != nil {
		return report, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	for _, job := range pending {
		if err := s.launcher.Launch(ctx, job.DocumentID, job.ID); err != nil {
			report.Failed++
			s.logger.Error("Failed to relaunch pending job", "job_id", job.ID, "error", err)
			continue
		}
		report.Relaunched++
		s.logger.Info("Relaunched pending job", "job_id", job.ID, "document_id", job.DocumentID)
	}

	stale, err := s.jobs.ListJobs(ctx, models.JobStatusProcessing, now.Add(-s.staleAfter))
	if err != nil {
		return report, fmt.Errorf("failed to list processing jobs: %w", err)
	}
	for _, job := range stale {
		report.Stale = append(report.Stale, job.ID)
		s.logger.Warn(
			"Job has made no progress",
			"job_id", job.ID,
			"document_id", job.DocumentID,
			"current_step", job.CurrentStep,
			"updated_at", job.UpdatedAt,
		)
	}

	return report, nil
}
