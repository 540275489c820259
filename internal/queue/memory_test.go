package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue_RoundTrip(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, Job{ID: "j1", CallID: "c1", Attempt: 1}, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job.CallID != "c1" || job.Attempt != 1 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if q.InflightCount() != 1 {
		t.Fatalf("expected 1 inflight, got %d", q.InflightCount())
	}
	if err := q.Ack(ctx, job); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if q.InflightCount() != 0 || q.Depth() != 0 {
		t.Fatalf("queue not drained: inflight=%d depth=%d", q.InflightCount(), q.Depth())
	}
}

func TestMemoryQueue_NackAdvancesAttempt(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	_ = q.Enqueue(ctx, Job{ID: "j1", CallID: "c1", Attempt: 1}, 0)
	job, _ := q.Dequeue(ctx)
	if err := q.Nack(ctx, job, 0); err != nil {
		t.Fatalf("nack: %v", err)
	}
	redelivered, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue redelivery: %v", err)
	}
	if redelivered.Attempt != 2 {
		t.Fatalf("expected attempt 2, got %d", redelivered.Attempt)
	}
}

func TestMemoryQueue_DequeueRespectsContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatalf("expected ctx error on empty queue")
	}
}

func TestMemoryQueue_DelayedDelivery(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, Job{ID: "j1", CallID: "c1", Attempt: 1}, 30*time.Millisecond); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if q.Depth() != 0 {
		t.Fatalf("job delivered before delay")
	}
	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	job, err := q.Dequeue(dctx)
	if err != nil {
		t.Fatalf("dequeue after delay: %v", err)
	}
	if job.CallID != "c1" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestMemoryQueue_DelayedDeliverySurvivesFullBuffer(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, Job{ID: "j-delayed", CallID: "c-delayed", Attempt: 1}, 10*time.Millisecond); err != nil {
		t.Fatalf("enqueue delayed: %v", err)
	}
	// Fill the buffer so the delayed delivery finds no room when it fires.
	filled := 0
	for i := 0; ; i++ {
		if err := q.Enqueue(ctx, Job{ID: "filler", CallID: "c-filler", Attempt: 1}, 0); err != nil {
			break
		}
		filled++
	}
	time.Sleep(30 * time.Millisecond)

	// Draining the fillers must eventually surface the delayed job.
	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	for i := 0; i < filled; i++ {
		job, err := q.Dequeue(dctx)
		if err != nil {
			t.Fatalf("drain filler %d: %v", i, err)
		}
		_ = q.Ack(ctx, job)
	}
	job, err := q.Dequeue(dctx)
	if err != nil {
		t.Fatalf("dequeue delayed job: %v", err)
	}
	if job.CallID != "c-delayed" {
		t.Fatalf("delayed job was lost, got %+v", job)
	}
}

func TestMemoryQueue_RejectsJobWithoutCall(t *testing.T) {
	q := NewMemoryQueue()
	if err := q.Enqueue(context.Background(), Job{ID: "j1"}, 0); err == nil {
		t.Fatalf("expected validation error")
	}
}
