package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "mediastore:jobs"

// popTimeout bounds each BRPOP so consumers notice context cancellation.
const popTimeout = 2 * time.Second

// RedisQueue is a durable job queue backed by a Redis list. Producers
// LPUSH, consumers BRPOP, so jobs survive process restarts and multiple
// workers share the load.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue on the given Redis list key. An empty key
// selects the default.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

// Enqueue implements Dispatcher.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := marshalJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.Name, err)
	}
	return nil
}

// Consume implements Queue.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Job, error) {
	jobs := make(chan Job)
	go func() {
		defer close(jobs)
		for {
			if ctx.Err() != nil {
				return
			}
			result, err := q.client.BRPop(ctx, popTimeout, q.key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("redis queue pop failed, retrying", "key", q.key, "error", err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			// BRPop returns [key, value].
			if len(result) != 2 {
				continue
			}
			job, err := unmarshalJob([]byte(result[1]))
			if err != nil {
				slog.Warn("dropping malformed job payload", "key", q.key, "error", err)
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
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
