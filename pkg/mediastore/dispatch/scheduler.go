package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler enqueues named jobs on fixed intervals. It replaces external
// cron for the periodic full recompute and unused-media cleanup.
type Scheduler struct {
	dispatcher Dispatcher

	mu      sync.Mutex
	entries []scheduleEntry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type scheduleEntry struct {
	name     string
	args     map[string]string
	interval time.Duration
}

// NewScheduler creates a scheduler enqueuing through the dispatcher.
func NewScheduler(dispatcher Dispatcher) *Scheduler {
	return &Scheduler{dispatcher: dispatcher}
}

// Every registers a job to be enqueued at the given interval. Intervals
// of zero or less are ignored, which lets config disable a schedule.
func (s *Scheduler) Every(interval time.Duration, name string, args map[string]string) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, scheduleEntry{name: name, args: args, interval: interval})
}

// Start launches one ticker goroutine per registered entry. The first
// enqueue happens after one full interval, not immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	for _, entry := range s.entries {
		s.wg.Add(1)
		go s.tick(ctx, entry)
	}
}

// Stop cancels all tickers and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context, entry scheduleEntry) {
	defer s.wg.Done()

	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job := NewJob(entry.name, entry.args)
			if err := s.dispatcher.Enqueue(ctx, job); err != nil {
				slog.Error("scheduled enqueue failed", "job", entry.name, "error", err)
				continue
			}
			slog.Debug("scheduled job enqueued", "job", entry.name, "job_id", job.ID)
		}
	}
}
