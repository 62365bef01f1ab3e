package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hikitugu/handover/internal/config"
)

// StartScheduler creates and starts an Asynq Scheduler that enqueues the
// recovery sweep on cfg.RecoverySchedule. Returns a stop function for
// graceful shutdown.
func StartScheduler(cfg *config.Config, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger = logger.With("component", "scheduler")

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynqLevel(cfg.LogLevel),
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	task := asynq.NewTask(
		TaskGenerationRecover,
		nil, // the sweep queries the jobs table itself
		asynq.MaxRetry(0),
		asynq.Timeout(time.Minute),
		asynq.Retention(time.Hour),
		asynq.Unique(time.Minute), // several server replicas share one schedule
	)

	entryID, err := scheduler.Register(cfg.RecoverySchedule, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register recovery schedule: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info(
		"Scheduler started",
		"schedule", cfg.RecoverySchedule,
		"entry_id", entryID,
	)

	return func() { scheduler.Shutdown() }, nil
}
