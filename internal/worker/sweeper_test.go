package worker

import (
	"context"
	"testing"
	"time"

	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/queue"
)

func TestSweepOnce_ReclaimsExpiredLeases(t *testing.T) {
	callStore := calls.NewMemoryStore()
	q := queue.NewMemoryQueue()
	now := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()

	expired := now.Add(-time.Minute)
	_ = callStore.Create(ctx, calls.CallRecord{
		ID: "c1", CompanyID: "co1", Caller: "a", Callee: "b",
		State: calls.StateProcessing, LeaseExpiry: &expired, RetryCount: 1,
	})

	s := NewSweeper(callStore, q, time.Second, 5*time.Minute, 3, nil, nil)
	s.SetClock(func() time.Time { return now })

	n, err := s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued, got %d", n)
	}
	rec, _ := callStore.GetByID(ctx, "co1", "c1")
	if rec.State != calls.StateReceived {
		t.Fatalf("expected reclaim to received, got %s", rec.State)
	}
	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job.CallID != "c1" || job.Attempt != 2 {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestSweepOnce_RequeuesStaleReceivedAndFailed(t *testing.T) {
	callStore := calls.NewMemoryStore()
	q := queue.NewMemoryQueue()
	now := time.Unix(1700000000, 0).UTC()
	old := now.Add(-time.Hour)
	callStore.SetClock(func() time.Time { return old })
	ctx := context.Background()

	// Created (and last touched) an hour ago.
	_ = callStore.Create(ctx, calls.CallRecord{ID: "lost", CompanyID: "co1", Caller: "a", Callee: "b", State: calls.StateReceived})
	_ = callStore.Create(ctx, calls.CallRecord{ID: "retryable", CompanyID: "co1", Caller: "a", Callee: "b", State: calls.StateFailed, RetryCount: 1})
	_ = callStore.Create(ctx, calls.CallRecord{ID: "dead", CompanyID: "co1", Caller: "a", Callee: "b", State: calls.StateFailed, RetryCount: 3})
	callStore.SetClock(func() time.Time { return now })

	s := NewSweeper(callStore, q, time.Second, 5*time.Minute, 3, nil, nil)
	s.SetClock(func() time.Time { return now })

	n, err := s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 requeued, got %d", n)
	}
	if q.Depth() != 2 {
		t.Fatalf("expected 2 jobs, got %d", q.Depth())
	}

	// The requeue bumps updated_at, so a second pass before any worker
	// claims the records must not enqueue duplicates.
	n, err = s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 || q.Depth() != 2 {
		t.Fatalf("second sweep duplicated jobs: requeued=%d depth=%d", n, q.Depth())
	}
}

func TestSweepOnce_FreshRecordsUntouched(t *testing.T) {
	callStore := calls.NewMemoryStore()
	q := queue.NewMemoryQueue()
	now := time.Unix(1700000000, 0).UTC()
	callStore.SetClock(func() time.Time { return now })
	ctx := context.Background()

	live := now.Add(time.Minute)
	_ = callStore.Create(ctx, calls.CallRecord{ID: "fresh", CompanyID: "co1", Caller: "a", Callee: "b", State: calls.StateReceived})
	_ = callStore.Create(ctx, calls.CallRecord{ID: "working", CompanyID: "co1", Caller: "a", Callee: "b", State: calls.StateProcessing, LeaseExpiry: &live})

	s := NewSweeper(callStore, q, time.Second, 5*time.Minute, 3, nil, nil)
	s.SetClock(func() time.Time { return now })

	n, err := s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 || q.Depth() != 0 {
		t.Fatalf("sweep touched healthy records: requeued=%d depth=%d", n, q.Depth())
	}
}
