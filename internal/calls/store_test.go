package calls

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	now := time.Unix(1700000000, 0).UTC()
	return func() time.Time { return now }
}

func seedRecord(t *testing.T, s *MemoryStore, id, companyID string, state State) CallRecord {
	t.Helper()
	rec := CallRecord{
		ID:              id,
		CompanyID:       companyID,
		Caller:          "+15550001",
		Callee:          "+15550002",
		DurationSeconds: 60,
		State:           state,
	}
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func TestCompareAndSetState_SingleWinner(t *testing.T) {
	s := NewMemoryStore()
	s.SetClock(fixedClock())
	seedRecord(t, s, "c1", "co1", StateReceived)

	const workers = 16
	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CompareAndSetState(context.Background(), "c1", StateReceived, StateProcessing, TransitionOpts{})
			if err == nil {
				atomic.AddInt64(&wins, 1)
			} else if !errors.Is(err, ErrAlreadyClaimed) {
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one claim winner, got %d", wins)
	}
}

func TestCompareAndSetState_IllegalTransition(t *testing.T) {
	s := NewMemoryStore()
	seedRecord(t, s, "c1", "co1", StateReceived)

	_, err := s.CompareAndSetState(context.Background(), "c1", StateReceived, StateInsightReady, TransitionOpts{})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestCompareAndSetState_ClearsErrorOnSuccess(t *testing.T) {
	s := NewMemoryStore()
	s.SetClock(fixedClock())
	seedRecord(t, s, "c1", "co1", StateReceived)
	ctx := context.Background()

	if _, err := s.CompareAndSetState(ctx, "c1", StateReceived, StateProcessing, TransitionOpts{}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.CompareAndSetState(ctx, "c1", StateProcessing, StateFailed, TransitionOpts{ErrorReason: "upstream flaked"}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	rec, err := s.GetByID(ctx, "co1", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.ErrorReason != "upstream flaked" {
		t.Fatalf("expected error reason, got %q", rec.ErrorReason)
	}

	// Retry succeeds: reason clears on insight_ready.
	if _, err := s.CompareAndSetState(ctx, "c1", StateFailed, StateProcessing, TransitionOpts{}); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if _, err := s.CompareAndSetState(ctx, "c1", StateProcessing, StateInsightReady, TransitionOpts{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	rec, _ = s.GetByID(ctx, "co1", "c1")
	if rec.ErrorReason != "" {
		t.Fatalf("expected cleared error reason, got %q", rec.ErrorReason)
	}
}

func TestCompareAndSetState_LeaseGuard(t *testing.T) {
	s := NewMemoryStore()
	s.SetClock(fixedClock())
	seedRecord(t, s, "c1", "co1", StateReceived)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	staleLease := now.Add(time.Minute)
	if _, err := s.CompareAndSetState(ctx, "c1", StateReceived, StateProcessing, TransitionOpts{LeaseExpiry: &staleLease}); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// Lease reclaim followed by a second worker's claim with a fresh lease.
	if _, err := s.CompareAndSetState(ctx, "c1", StateProcessing, StateReceived, TransitionOpts{}); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	freshLease := now.Add(time.Hour)
	if _, err := s.CompareAndSetState(ctx, "c1", StateReceived, StateProcessing, TransitionOpts{LeaseExpiry: &freshLease}); err != nil {
		t.Fatalf("second claim: %v", err)
	}

	// The first worker's terminal transition carries its old lease and must
	// lose instead of overriding the live claim.
	_, err := s.CompareAndSetState(ctx, "c1", StateProcessing, StateInsightReady, TransitionOpts{IfLeaseExpiry: &staleLease})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed for stale lease, got %v", err)
	}

	rec, err := s.CompareAndSetState(ctx, "c1", StateProcessing, StateInsightReady, TransitionOpts{IfLeaseExpiry: &freshLease})
	if err != nil {
		t.Fatalf("live holder's transition: %v", err)
	}
	if rec.State != StateInsightReady {
		t.Fatalf("expected insight_ready, got %s", rec.State)
	}
}

func TestTouch_BumpsUpdatedAt(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()
	s.SetClock(func() time.Time { return base })
	seedRecord(t, s, "c1", "co1", StateReceived)
	ctx := context.Background()

	later := base.Add(time.Minute)
	s.SetClock(func() time.Time { return later })
	if err := s.Touch(ctx, "c1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	rec, _ := s.GetByID(ctx, "co1", "c1")
	if !rec.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at not bumped: %v", rec.UpdatedAt)
	}
	if rec.State != StateReceived || !rec.CreatedAt.Equal(base) {
		t.Fatalf("touch disturbed the record: %+v", rec)
	}
	if err := s.Touch(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByID_CrossTenantIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	seedRecord(t, s, "c1", "co1", StateReceived)

	if _, err := s.GetByID(context.Background(), "co2", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for cross-tenant read, got %v", err)
	}
}

func TestListByCompanyAndWindow_BoundsAndFilters(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()

	mk := func(id string, createdAt time.Time, dur int) {
		if err := s.Create(ctx, CallRecord{
			ID: id, CompanyID: "co1", Caller: "a", Callee: "b",
			DurationSeconds: dur, State: StateReceived, CreatedAt: createdAt,
		}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	mk("before", base.Add(-time.Minute), 30)
	mk("lower", base, 30)  // inclusive lower bound
	mk("mid", base.Add(30*time.Minute), 90)
	mk("upper", base.Add(time.Hour), 30) // exclusive upper bound

	out, err := s.ListByCompanyAndWindow(ctx, "co1", base, base.Add(time.Hour), ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].ID != "lower" || out[1].ID != "mid" {
		t.Fatalf("unexpected window result: %+v", out)
	}

	out, err = s.ListByCompanyAndWindow(ctx, "co1", base, base.Add(time.Hour), ListFilter{DurationAtLeast: 60})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(out) != 1 || out[0].ID != "mid" {
		t.Fatalf("unexpected filter result: %+v", out)
	}
}

func TestListExpiredLeases(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()

	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)
	_ = s.Create(ctx, CallRecord{ID: "expired", CompanyID: "co1", Caller: "a", Callee: "b", State: StateProcessing, LeaseExpiry: &past})
	_ = s.Create(ctx, CallRecord{ID: "live", CompanyID: "co1", Caller: "a", Callee: "b", State: StateProcessing, LeaseExpiry: &future})
	_ = s.Create(ctx, CallRecord{ID: "idle", CompanyID: "co1", Caller: "a", Callee: "b", State: StateReceived})

	out, err := s.ListExpiredLeases(ctx, now, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "expired" {
		t.Fatalf("unexpected expired leases: %+v", out)
	}
}

func TestListStaleFailed_SkipsExhausted(t *testing.T) {
	s := NewMemoryStore()
	old := time.Unix(1700000000, 0).UTC()
	s.SetClock(func() time.Time { return old })
	ctx := context.Background()

	_ = s.Create(ctx, CallRecord{ID: "retryable", CompanyID: "co1", Caller: "a", Callee: "b", State: StateFailed, RetryCount: 1})
	_ = s.Create(ctx, CallRecord{ID: "exhausted", CompanyID: "co1", Caller: "a", Callee: "b", State: StateFailed, RetryCount: 3})

	out, err := s.ListStaleFailed(ctx, old.Add(time.Minute), 3, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 1 || out[0].ID != "retryable" {
		t.Fatalf("unexpected stale failed: %+v", out)
	}
}

func TestIncrementAndExhaustRetries(t *testing.T) {
	s := NewMemoryStore()
	seedRecord(t, s, "c1", "co1", StateReceived)
	ctx := context.Background()

	for want := 1; want <= 2; want++ {
		n, err := s.IncrementRetry(ctx, "c1")
		if err != nil || n != want {
			t.Fatalf("increment: n=%d err=%v", n, err)
		}
	}
	if err := s.ExhaustRetries(ctx, "c1", 5); err != nil {
		t.Fatalf("exhaust: %v", err)
	}
	rec, _ := s.GetByID(ctx, "co1", "c1")
	if rec.RetryCount != 5 {
		t.Fatalf("expected retry count pinned to max, got %d", rec.RetryCount)
	}
}
