package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// WorkerPool feeds jobs from a bounded channel to a fixed set of workers.
// A failing or panicking run never stops its worker.
type WorkerPool struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*WorkerPool)

func WithWorkers(n int) Option {
	return func(q *WorkerPool) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *WorkerPool) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

// WithRunTimeout bounds each run. Zero keeps the default.
func WithRunTimeout(d time.Duration) Option {
	return func(q *WorkerPool) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewWorkerPool(runner Runner, logger *slog.Logger, opts ...Option) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerPool{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerPool) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkerPool) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	err := q.safeRun(ctx, job)
	attrs := []any{
		"worker_id", workerID,
		"statement_id", job.StatementID,
		"run_id", job.RunID,
		"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		q.logger.Error("run finished with error", append(attrs, "error", err)...)
		return
	}
	q.logger.Info("run finished", attrs...)
}

func (q *WorkerPool) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("worker recovered panic", "statement_id", job.StatementID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return q.runner.Run(ctx, job.StatementID, job.RunID)
}

// Enqueue hands a run to the pool. When the buffer is full it blocks until
// a slot frees up or ctx is done.
func (q *WorkerPool) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "statement_id", job.StatementID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queued run", "statement_id", job.StatementID, "run_id", job.RunID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "statement_id", job.StatementID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *WorkerPool) Shutdown(ctx context.Context) {
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
		q.logger.Info("queue drained, shutdown complete")
	}
}
