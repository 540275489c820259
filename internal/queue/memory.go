package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a channel-backed queue for tests and single-process use.
// It preserves the Queue contract: blocking dequeue, ack/nack, delayed
// redelivery.
type MemoryQueue struct {
	mu       sync.Mutex
	ready    chan Job
	inflight map[string]Job
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		ready:    make(chan Job, 1024),
		inflight: map[string]Job{},
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	if job.CallID == "" {
		return ErrInvalidArgument
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	if delay > 0 {
		// Blocking send: a full buffer delays delivery further, it never
		// loses the job.
		time.AfterFunc(delay, func() {
			q.ready <- job
		})
		return nil
	}
	select {
	case q.ready <- job:
		return nil
	default:
		return ErrUnavailable
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case job := <-q.ready:
		job.receipt = uuid.NewString()
		q.mu.Lock()
		q.inflight[job.receipt] = job
		q.mu.Unlock()
		return job, nil
	}
}

func (q *MemoryQueue) Ack(ctx context.Context, job Job) error {
	if job.receipt == "" {
		return ErrInvalidArgument
	}
	q.mu.Lock()
	delete(q.inflight, job.receipt)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Nack(ctx context.Context, job Job, requeueDelay time.Duration) error {
	if job.receipt == "" {
		return ErrInvalidArgument
	}
	q.mu.Lock()
	delete(q.inflight, job.receipt)
	q.mu.Unlock()
	next := Job{
		ID:      job.ID,
		CallID:  job.CallID,
		Attempt: job.Attempt + 1,
	}
	return q.Enqueue(ctx, next, requeueDelay)
}

// Depth reports the number of jobs waiting for delivery. Test helper.
func (q *MemoryQueue) Depth() int { return len(q.ready) }

// InflightCount reports delivered-but-unacked jobs. Test helper.
func (q *MemoryQueue) InflightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}
