// Package worker runs statement imports in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueClosed = errors.New("import queue is shutting down")
	ErrQueueFull   = errors.New("import queue is full")
)

// Job asks for one import to be processed.
type Job struct {
	ImportID    uuid.UUID
	BusinessID  uuid.UUID
	SubmittedAt time.Time
}

// RunFunc processes a single import.
type RunFunc func(ctx context.Context, importID uuid.UUID) error

// FailFunc records that an import could not be finished.
type FailFunc func(ctx context.Context, importID uuid.UUID, reason string) error

type ImportQueue struct {
	run     RunFunc
	fail    FailFunc
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ImportQueue)

func WithWorkers(n int) Option {
	return func(q *ImportQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ImportQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithFailureHook sets the function called when a job panics.
func WithFailureHook(f FailFunc) Option {
	return func(q *ImportQueue) {
		q.fail = f
	}
}

func WithTimeout(d time.Duration) Option {
	return func(q *ImportQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewImportQueue(run RunFunc, logger *slog.Logger, opts ...Option) *ImportQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ImportQueue{
		run:     run,
		logger:  logger,
		workers: 4,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ImportQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("import worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Debug("import worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ImportQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("import worker panicked", "worker_id", workerID, "import_id", job.ImportID, "panic", r)
			if q.fail == nil {
				return
			}
			if err := q.fail(context.WithoutCancel(ctx), job.ImportID, fmt.Sprintf("worker panic: %v", r)); err != nil {
				q.logger.Error("could not mark import failed", "import_id", job.ImportID, "error", err)
			}
		}
	}()

	started := time.Now()
	if err := q.run(ctx, job.ImportID); err != nil {
		q.logger.Error("import processing failed", "worker_id", workerID, "import_id", job.ImportID, "error", err)
		return
	}
	q.logger.Info("import processed",
		"worker_id", workerID,
		"import_id", job.ImportID,
		"waited", started.Sub(job.SubmittedAt),
		"took", time.Since(started))
}

// Enqueue schedules a job without blocking. A full queue is reported to the
// caller so the upload can be retried.
func (q *ImportQueue) Enqueue(_ context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "import_id", job.ImportID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued import", "import_id", job.ImportID, "business_id", job.BusinessID)
		return nil
	default:
		q.logger.Warn("import queue full", "import_id", job.ImportID)
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to end.
func (q *ImportQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("import queue drained")
	}
}
