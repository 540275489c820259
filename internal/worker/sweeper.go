package worker

import (
	"context"
	"log/slog"
	"time"

	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/queue"
	"call-insights-platform/pkg/metrics"

	"github.com/google/uuid"
)

// Sweeper is the recovery scan that keeps the pipeline live across crashes.
// It requeues three kinds of stuck records:
//
//   - `processing` with an expired lease (worker died mid-flight)
//   - `received` untouched past a threshold (enqueue lost before handoff)
//   - `failed` with retry budget left, untouched past the threshold
//     (retry requeue lost)
//
// The sweep is idempotent and safe to run concurrently with live workers:
// duplicate jobs lose the atomic claim and are dropped.
type Sweeper struct {
	Calls calls.Store
	Queue queue.Queue

	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int

	// MaxAttempts mirrors the pool's retry policy so permanently failed
	// records are never resurrected.
	MaxAttempts int

	Log     *slog.Logger
	Metrics *metrics.Pipeline

	clock func() time.Time
}

func NewSweeper(callStore calls.Store, q queue.Queue, interval, staleAfter time.Duration, maxAttempts int, log *slog.Logger, m *metrics.Pipeline) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		Calls:       callStore,
		Queue:       q,
		Interval:    interval,
		StaleAfter:  staleAfter,
		BatchSize:   100,
		MaxAttempts: maxAttempts,
		Log:         log,
		Metrics:     m,
		clock:       time.Now,
	}
}

// SetClock overrides the sweeper clock for deterministic tests.
func (s *Sweeper) SetClock(clock func() time.Time) { s.clock = clock }

// Run sweeps on a ticker until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.Log.Error("recovery sweep failed", "err", err)
			} else if n > 0 {
				s.Log.Info("recovery sweep requeued records", "count", n)
			}
		}
	}
}

// SweepOnce runs a single sweep pass and returns the number of records
// requeued.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock().UTC()
	requeued := 0

	expired, err := s.Calls.ListExpiredLeases(ctx, now, s.BatchSize)
	if err != nil {
		return requeued, err
	}
	for _, rec := range expired {
		// Reclaim: move the abandoned claim back to `received`, then hand it
		// to the queue. Losing the CAS means the worker finished after all.
		if _, err := s.Calls.CompareAndSetState(ctx, rec.ID, calls.StateProcessing, calls.StateReceived, calls.TransitionOpts{}); err != nil {
			continue
		}
		if err := s.enqueue(ctx, rec); err != nil {
			return requeued, err
		}
		requeued++
	}

	cutoff := now.Add(-s.StaleAfter)

	stale, err := s.Calls.ListStaleReceived(ctx, cutoff, s.BatchSize)
	if err != nil {
		return requeued, err
	}
	for _, rec := range stale {
		if err := s.requeueStale(ctx, rec); err != nil {
			return requeued, err
		}
		requeued++
	}

	failed, err := s.Calls.ListStaleFailed(ctx, cutoff, s.MaxAttempts, s.BatchSize)
	if err != nil {
		return requeued, err
	}
	for _, rec := range failed {
		if err := s.requeueStale(ctx, rec); err != nil {
			return requeued, err
		}
		requeued++
	}

	if s.Metrics != nil && requeued > 0 {
		s.Metrics.SweeperRequeued.Add(float64(requeued))
	}
	return requeued, nil
}

func (s *Sweeper) enqueue(ctx context.Context, rec calls.CallRecord) error {
	return s.Queue.Enqueue(ctx, queue.Job{
		ID:      uuid.NewString(),
		CallID:  rec.ID,
		Attempt: rec.RetryCount + 1,
	}, 0)
}

// requeueStale enqueues the record and bumps updated_at so it falls out of
// the stale window until a worker claims it. The enqueue path for expired
// leases does not need this: its compare-and-set already touches the record.
func (s *Sweeper) requeueStale(ctx context.Context, rec calls.CallRecord) error {
	if err := s.enqueue(ctx, rec); err != nil {
		return err
	}
	if err := s.Calls.Touch(ctx, rec.ID); err != nil {
		// The job is already on the queue; the worst case is one duplicate
		// on the next pass, dropped at the claim.
		s.Log.Warn("touching requeued record failed", "call_id", rec.ID, "err", err)
	}
	return nil
}
