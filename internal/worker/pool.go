package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned when every queue slot is taken.
	ErrQueueFull = errors.New("generation queue is full")
	// ErrPoolClosed is returned after Shutdown has been called.
	ErrPoolClosed = errors.New("generation pool is shut down")
)

// Pool runs generation jobs on a fixed number of goroutines. It is the
// launcher used when no Redis is configured.
type Pool struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger

	queue  chan RunPayload
	wg     sync.WaitGroup
	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of queueSize jobs.
// A timeout of zero leaves runs unbounded.
func NewPool(runner Runner, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	base, cancel := context.WithCancel(context.Background())
	p := &Pool{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With("component", "worker_pool"),
		queue:   make(chan RunPayload, queueSize),
		base:    base,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.logger.Info("Worker pool started", "workers", workers, "queue_size", queueSize)
	return p
}

// Submit queues a job without blocking.
func (p *Pool) Submit(documentID, jobID uuid.UUID) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- RunPayload{DocumentID: documentID, JobID: jobID}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Launch implements generation.Launcher.
func (p *Pool) Launch(_ context.Context, documentID, jobID uuid.UUID) error {
	return p.Submit(documentID, jobID)
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. When ctx expires first, the runs still in flight are cancelled
// (they fail their jobs) and jobs not yet claimed stay pending for the
// recovery sweep. Shutdown waits for the goroutines either way.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for req := range p.queue {
		p.run(req)
	}
}

func (p *Pool) run(req RunPayload) {
	ctx := p.base
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.runner.Run(ctx, req.DocumentID, req.JobID); err != nil {
		p.logger.Warn("Generation run ended with error", "job_id", req.JobID, "error", err)
	}
}
