package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const jobsTopic = "mediastore.jobs"

// GoChannelQueue is an in-process queue built on watermill's gochannel
// pub/sub. Jobs do not survive a restart; single-process deployments and
// tests use this, multi-process deployments use the Redis queue.
type GoChannelQueue struct {
	pubsub *gochannel.GoChannel
}

// NewGoChannelQueue creates an in-process queue.
func NewGoChannelQueue(logger *slog.Logger) *GoChannelQueue {
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewSlogLogger(logger),
	)
	return &GoChannelQueue{pubsub: pubsub}
}

// Enqueue implements Dispatcher.
func (q *GoChannelQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := marshalJob(job)
	if err != nil {
		return err
	}
	msg := message.NewMessage(job.ID.String(), payload)
	msg.SetContext(ctx)
	if err := q.pubsub.Publish(jobsTopic, msg); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.Name, err)
	}
	return nil
}

// Consume implements Queue. Malformed payloads are acked and dropped so a
// bad message cannot wedge the queue.
func (q *GoChannelQueue) Consume(ctx context.Context) (<-chan Job, error) {
	messages, err := q.pubsub.Subscribe(ctx, jobsTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to job topic: %w", err)
	}

	jobs := make(chan Job)
	go func() {
		defer close(jobs)
		for msg := range messages {
			job, err := unmarshalJob(msg.Payload)
			msg.Ack()
			if err != nil {
				slog.Warn("dropping malformed job payload", "message_id", msg.UUID, "error", err)
				continue
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	return jobs, nil
}

// Close implements Dispatcher.
func (q *GoChannelQueue) Close() error {
	return q.pubsub.Close()
}
