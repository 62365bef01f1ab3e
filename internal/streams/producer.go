// Package streams appends generation job snapshots to a Redis Stream so
// other processes can follow progress without polling the database.
package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hikitugu/handover/internal/models"
	"github.com/redis/go-redis/v9"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher publishes job snapshots to Redis Streams
type Publisher struct {
	rdb    streamAdder
	close  func() error
	stream string
}

// NewPublisher creates a new Publisher instance
func NewPublisher(redisURL, stream string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if stream == "" {
		stream = DefaultProgressStream
	}

	client := redis.NewClient(opts)

	return &Publisher{rdb: client, close: client.Close, stream: stream}, nil
}

// PublishJob appends a snapshot of job to the stream
func (p *Publisher) PublishJob(ctx context.Context, job *models.GenerationJob) error {
	_, err := p.Publish(ctx, JobProgress{
		JobID:        job.ID,
		DocumentID:   job.DocumentID,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ErrorMessage: job.ErrorMessage,
	})
	return err
}

// Publish appends one snapshot and returns its stream entry id
func (p *Publisher) Publish(ctx context.Context, msg JobProgress) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal progress: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10000,
		Approx: true,
		ID:     "*", // auto-generate ID
		Values: map[string]interface{}{
			"job_id":         msg.JobID.String(),
			"payload":        string(payload),
			"published_at":   time.Now().Unix(),
			"schema_version": SchemaVersionV1,
		},
	})

	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", result.Err())
	}

	return result.Val(), nil
}

// Close closes the Redis client connection
func (p *Publisher) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}
