package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Handler executes one job. Returning an error triggers a retry.
type Handler func(ctx context.Context, job Job) error

// Worker consumes a queue and runs registered handlers. Failed jobs are
// retried in place with a fixed backoff; after the retry budget is spent
// the job is logged and dropped.
type Worker struct {
	queue      Queue
	handlers   map[string]Handler
	maxRetries int
	backoff    time.Duration
}

// NewWorker creates a worker over the queue.
func NewWorker(queue Queue) *Worker {
	return &Worker{
		queue:      queue,
		handlers:   make(map[string]Handler),
		maxRetries: 3,
		backoff:    2 * time.Second,
	}
}

// Handle registers the handler for a job name, replacing any previous one.
func (w *Worker) Handle(name string, handler Handler) {
	w.handlers[name] = handler
}

// Run consumes jobs until the context is cancelled or the queue closes.
// Register all handlers before calling Run.
func (w *Worker) Run(ctx context.Context) error {
	jobs, err := w.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("worker failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jobs:
			if !ok {
				return nil
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	handler, ok := w.handlers[job.Name]
	if !ok {
		slog.Warn("no handler registered for job", "job", job.Name, "job_id", job.ID)
		return
	}

	start := time.Now()
	for attempt := 0; ; attempt++ {
		err := w.run(ctx, job, handler)
		if err == nil {
			slog.Info("job completed",
				"job", job.Name, "job_id", job.ID, "attempt", attempt+1,
				"duration", time.Since(start))
			return
		}
		if attempt >= w.maxRetries || ctx.Err() != nil {
			slog.Error("job failed, giving up",
				"job", job.Name, "job_id", job.ID, "attempts", attempt+1, "error", err)
			return
		}
		slog.Warn("job failed, retrying",
			"job", job.Name, "job_id", job.ID, "attempt", attempt+1, "error", err)
		select {
		case <-time.After(w.backoff):
		case <-ctx.Done():
			return
		}
	}
}

// run executes a handler with panic recovery so one bad job cannot take
// down the worker loop.
func (w *Worker) run(ctx context.Context, job Job, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return handler(ctx, job)
}
