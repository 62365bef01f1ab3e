package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskGenerationRun     = "generation:run"
	TaskGenerationRecover = "generation:recover"
)

// queueName is the asynq queue generation runs are enqueued on
const queueName = "default"

// RunPayload identifies the job a generation:run task executes
type RunPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	JobID      uuid.UUID `json:"job_id"`
}

// NewRunTask builds the task for one generation job
func NewRunTask(documentID, jobID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(RunPayload{DocumentID: documentID, JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGenerationRun, payload), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type taskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
	Close() error
}

// Client enqueues generation jobs on Redis through asynq.
type Client struct {
	client    enqueuer
	inspector taskInspector
	timeout   time.Duration
}

// NewClient connects to Redis. timeout bounds each run on the worker side.
func NewClient(redisURL string, timeout time.Duration) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		timeout:   timeout,
	}, nil
}

// Launch enqueues the job. The job id doubles as the task id, so a job that
// is already queued or running is not queued twice; that case is not an
// error. A leftover task from a finished run (archived or completed) is
// deleted and the job is queued again.
// Runs are never retried, a failed run is final.
func (c *Client) Launch(ctx context.Context, documentID, jobID uuid.UUID) error {
	task, err := NewRunTask(documentID, jobID)
	if err != nil {
		return err
	}

	err = c.enqueue(ctx, task, jobID)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}

	taskID := jobID.String()
	info, err := c.inspector.GetTaskInfo(queueName, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return c.enqueue(ctx, task, jobID)
		}
		return fmt.Errorf("failed to inspect task %s: %w", taskID, err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
		if err := c.inspector.DeleteTask(queueName, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return fmt.Errorf("failed to delete finished task %s: %w", taskID, err)
		}
		return c.enqueue(ctx, task, jobID)
	default:
		return nil
	}
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, jobID uuid.UUID) error {
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(queueName),
		asynq.TaskID(jobID.String()),
		asynq.MaxRetry(0),
		asynq.Timeout(c.timeout),
		asynq.Retention(24*time.Hour),
	)
	return err
}

// Close closes the Asynq client connection gracefully.
func (c *Client) Close() error {
	if c.inspector != nil {
		c.inspector.Close()
	}
	return c.client.Close()
}
