// Package dispatch provides the asynchronous job machinery: a queue
// abstraction with in-process and Redis backends, a worker that executes
// named jobs, and a ticker-based scheduler for periodic work.
//
// Delivery is at-least-once with no ordering guarantee between jobs.
// Enqueue returns immediately; triggering writes never wait on job
// execution.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of asynchronous work. ID doubles as the job handle
// returned to admin callers.
type Job struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Args       map[string]string `json:"args,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// NewJob creates a job with a fresh handle.
func NewJob(name string, args map[string]string) Job {
	return Job{
		ID:         uuid.New(),
		Name:       name,
		Args:       args,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Arg returns a named argument or "".
func (j Job) Arg(key string) string {
	return j.Args[key]
}

// MediaIDArg parses the conventional "media_id" argument.
func (j Job) MediaIDArg() (uuid.UUID, error) {
	raw := j.Arg("media_id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("job %s: missing media_id argument", j.Name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("job %s: invalid media_id %q: %w", j.Name, raw, err)
	}
	return id, nil
}

func marshalJob(job Job) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job %s: %w", job.Name, err)
	}
	return payload, nil
}

func unmarshalJob(payload []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	return job, nil
}

// Dispatcher enqueues jobs for eventual execution by a worker.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// Queue is a Dispatcher that can also be consumed by a worker.
type Queue interface {
	Dispatcher

	// Consume returns a channel of jobs. The channel closes when the
	// context is cancelled or the queue shuts down.
	Consume(ctx context.Context) (<-chan Job, error)
}
