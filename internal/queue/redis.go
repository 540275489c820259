package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a durable job queue on Redis lists.
//
// Layout (all keys share a configurable prefix):
//   <prefix>:ready      list, LPUSH to enqueue, BLMOVE RIGHT->LEFT to deliver
//   <prefix>:processing list of delivered-but-unacked payloads
//   <prefix>:delayed    zset scored by the unix-millis ready time
//
// Delivery semantics are at-least-once: a consumer crash leaves the payload
// in the processing list, where the recovery sweep's record-level requeue
// makes it harmless (claims are atomic at the store).
type RedisQueue struct {
	rdb    *redis.Client
	prefix string
	clock  func() time.Time

	// pollInterval bounds how long a Dequeue waits per blocking pop before
	// promoting due delayed jobs and re-checking ctx.
	pollInterval time.Duration
}

func NewRedisQueue(rdb *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "caip:jobs"
	}
	return &RedisQueue{
		rdb:          rdb,
		prefix:       prefix,
		clock:        time.Now,
		pollInterval: time.Second,
	}
}

func (q *RedisQueue) readyKey() string      { return q.prefix + ":ready" }
func (q *RedisQueue) processingKey() string { return q.prefix + ":processing" }
func (q *RedisQueue) delayedKey() string    { return q.prefix + ":delayed" }

// promoteScript moves all due entries from the delayed zset to the ready
// list atomically, so no job is ever visible in both places.
var promoteScript = redis.NewScript(`
-- KEYS[1] = delayed zset
-- KEYS[2] = ready list
-- ARGV[1] = now (unix millis)
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, payload in ipairs(due) do
  redis.call('LPUSH', KEYS[2], payload)
  redis.call('ZREM', KEYS[1], payload)
end
return #due
`)

func (q *RedisQueue) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	if job.CallID == "" {
		return ErrInvalidArgument
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.clock().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if delay > 0 {
		readyAt := q.clock().Add(delay)
		if err := q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{
			Score:  float64(readyAt.UnixMilli()),
			Member: string(payload),
		}).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}
	if err := q.rdb.LPush(ctx, q.readyKey(), payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}

		// Promote due delayed jobs before each blocking wait.
		if err := promoteScript.Run(ctx, q.rdb, []string{q.delayedKey(), q.readyKey()}, q.clock().UnixMilli()).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		payload, err := q.rdb.BLMove(ctx, q.readyKey(), q.processingKey(), "RIGHT", "LEFT", q.pollInterval).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		var job Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			// Malformed payloads cannot progress; drop them from processing.
			_ = q.rdb.LRem(ctx, q.processingKey(), 1, payload).Err()
			continue
		}
		job.receipt = payload
		return job, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	if job.receipt == "" {
		return ErrInvalidArgument
	}
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, job.receipt).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) Nack(ctx context.Context, job Job, requeueDelay time.Duration) error {
	if job.receipt == "" {
		return ErrInvalidArgument
	}
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, job.receipt).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	next := Job{
		ID:      job.ID,
		CallID:  job.CallID,
		Attempt: job.Attempt + 1,
	}
	return q.Enqueue(ctx, next, requeueDelay)
}

// Depth reports the current ready-list length, for metrics.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.readyKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}
