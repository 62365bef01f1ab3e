package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hikitugu/handover/internal/config"
	"github.com/hikitugu/handover/internal/store"
)

// Runner executes one generation job to a terminal state
type Runner interface {
	Run(ctx context.Context, documentID, jobID uuid.UUID) error
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, runner Runner, sweeper *Sweeper, logger *slog.Logger) error {
	srv, mux, err := newServer(cfg, runner, sweeper, logger)
	if err != nil {
		return err
	}
	// Run blocks and handles its own signal interception
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, runner Runner, sweeper *Sweeper, logger *slog.Logger) (stop func(), err error) {
	srv, mux, err := newServer(cfg, runner, sweeper, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, runner Runner, sweeper *Sweeper, logger *slog.Logger) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger = logger.With("component", "worker")

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     cfg.WorkerConcurrency,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
			LogLevel:        asynqLevel(cfg.LogLevel),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskGenerationRun, handleGenerationRun(logger, runner))
	if sweeper != nil {
		mux.HandleFunc(TaskGenerationRecover, handleRecover(logger, sweeper))
	}

	logger.Info("Worker starting", "concurrency", cfg.WorkerConcurrency)
	return srv, mux, nil
}

// handleGenerationRun executes a generation:run task. The orchestrator owns
// the job's state, so a failed run is reported to asynq without a retry.
func handleGenerationRun(logger *slog.Logger, runner Runner) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload RunPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}
		if payload.JobID == uuid.Nil {
			return fmt.Errorf("payload has no job_id: %w", asynq.SkipRetry)
		}

		logger.Info(
			"Processing generation:run task",
			"job_id", payload.JobID,
			"document_id", payload.DocumentID,
		)

		err := runner.Run(ctx, payload.DocumentID, payload.JobID)
		if errors.Is(err, store.ErrJobAlreadyClaimed) {
			logger.Info("Job already claimed by another run", "job_id", payload.JobID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("generation job %s failed: %v: %w", payload.JobID, err, asynq.SkipRetry)
		}
		return nil
	}
}

func handleRecover(logger *slog.Logger, sweeper *Sweeper) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		report, err := sweeper.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("recovery sweep failed: %w", err)
		}
		logger.Debug("Recovery sweep finished", "relaunched", report.Relaunched, "stale", len(report.Stale))
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		// Final failure: the task is archived
		if retried >= maxRetry {
			logger.Error(
				"Task archived",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
