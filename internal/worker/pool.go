package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"call-insights-platform/internal/analysis"
	"call-insights-platform/internal/artifact"
	"call-insights-platform/internal/audit"
	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/insight"
	"call-insights-platform/internal/queue"
	"call-insights-platform/pkg/metrics"
)

// Deps wires a Pool. Audit and Metrics are optional.
type Deps struct {
	Queue     queue.Queue
	Calls     calls.Store
	Artifacts artifact.Store
	Analyzer  analysis.Capability
	Insights  insight.Store
	Audit     *audit.Service

	Retry           RetryPolicy
	Workers         int
	LeaseTTL        time.Duration
	AnalysisTimeout time.Duration

	Log     *slog.Logger
	Metrics *metrics.Pipeline
}

// Pool is a fixed-size pool of workers driving call records through the
// processing state machine.
//
// Failure containment: everything that goes wrong while processing one job is
// contained to that job's call record. A worker never returns an error from
// its loop; it logs, updates the record, and moves on.
type Pool struct {
	deps    Deps
	builder *insight.Builder
	clock   func() time.Time
}

func NewPool(deps Deps) *Pool {
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	if deps.LeaseTTL <= 0 {
		deps.LeaseTTL = 2 * time.Minute
	}
	if deps.AnalysisTimeout <= 0 {
		deps.AnalysisTimeout = 40 * time.Second
	}
	if deps.Retry.MaxAttempts <= 0 {
		deps.Retry = DefaultRetryPolicy()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Pool{deps: deps, builder: insight.NewBuilder(), clock: time.Now}
}

// SetClock overrides the pool clock for deterministic tests.
func (p *Pool) SetClock(clock func() time.Time) { p.clock = clock }

// Run blocks until ctx is canceled, then waits for in-flight jobs to settle.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.deps.Workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.workerLoop(ctx, n)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, n int) {
	log := p.deps.Log.With("worker", n)
	for {
		job, err := p.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", "err", err)
			continue
		}
		p.process(ctx, log.With("call_id", job.CallID, "attempt", job.Attempt), job)
	}
}

func (p *Pool) countOutcome(outcome string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.JobsProcessed.WithLabelValues(outcome).Inc()
	}
}

// settleTimeout bounds the detached writes that settle a claim once the
// worker's own context is canceled.
const settleTimeout = 5 * time.Second

// process drives one job through claim, analysis, and terminal transition.
func (p *Pool) process(ctx context.Context, log *slog.Logger, job queue.Job) {
	rec, ok := p.claim(ctx, log, job)
	if !ok {
		return
	}

	result, err := p.analyze(ctx, rec)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the attempt. Release the claim instead of
			// recording a failure: no retry is consumed and the record does
			// not sit in `processing` waiting out its full lease.
			p.release(ctx, log, job, rec)
			return
		}
		p.handleFailure(ctx, log, job, rec, err)
		return
	}

	// Analysis finished; if shutdown arrived meanwhile, settle the record on
	// a detached context so the completed attempt is not thrown away.
	wctx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
		defer cancel()
	}

	ins, err := p.builder.Build(rec.CompanyID, rec.ID, result)
	if err == nil {
		_, err = p.deps.Insights.Create(wctx, ins)
	}
	if err != nil {
		p.handleFailure(wctx, log, job, rec, analysis.Transient("persisting insight failed", err))
		return
	}

	if _, err := p.deps.Calls.CompareAndSetState(wctx, rec.ID, calls.StateProcessing, calls.StateInsightReady, calls.TransitionOpts{IfLeaseExpiry: rec.LeaseExpiry}); err != nil {
		// The sweeper reclaimed our lease mid-flight. The lease guard keeps
		// this transition from stomping whichever worker holds the record
		// now; that worker's own completion supersedes our insight row.
		log.Warn("lost claim before completion", "err", err)
		_ = p.deps.Queue.Ack(wctx, job)
		p.countOutcome(metrics.OutcomeDropped)
		return
	}

	_ = p.deps.Queue.Ack(wctx, job)
	p.countOutcome(metrics.OutcomeInsightReady)
	log.Info("call processed", "company_id", rec.CompanyID, "insight_version", ins.Version)
}

// release returns a claim to `received` without consuming a retry attempt and
// puts the job back on the queue. The writes run on a detached context: the
// canceled worker context would fail them immediately and strand the record
// in `processing` until the lease expires.
func (p *Pool) release(ctx context.Context, log *slog.Logger, job queue.Job, rec calls.CallRecord) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	if _, err := p.deps.Calls.CompareAndSetState(rctx, rec.ID, calls.StateProcessing, calls.StateReceived, calls.TransitionOpts{IfLeaseExpiry: rec.LeaseExpiry}); err != nil {
		log.Warn("releasing claim failed", "err", err)
	}
	if err := p.deps.Queue.Nack(rctx, job, 0); err != nil {
		log.Warn("requeueing released job failed", "err", err)
	}
	p.countOutcome(metrics.OutcomeReleased)
	log.Info("claim released at shutdown")
}

// claim atomically takes ownership of the job's call record. Jobs whose
// claim races are dropped, not requeued: the winner is already processing.
func (p *Pool) claim(ctx context.Context, log *slog.Logger, job queue.Job) (calls.CallRecord, bool) {
	lease := p.clock().UTC().Add(p.deps.LeaseTTL)
	opts := calls.TransitionOpts{LeaseExpiry: &lease}

	rec, err := p.deps.Calls.CompareAndSetState(ctx, job.CallID, calls.StateReceived, calls.StateProcessing, opts)
	if errors.Is(err, calls.ErrAlreadyClaimed) {
		// Retry re-entry claims from `failed`.
		rec, err = p.deps.Calls.CompareAndSetState(ctx, job.CallID, calls.StateFailed, calls.StateProcessing, opts)
	}
	if err != nil {
		log.Debug("claim not taken", "err", err)
		_ = p.deps.Queue.Ack(ctx, job)
		p.countOutcome(metrics.OutcomeDropped)
		return calls.CallRecord{}, false
	}

	// A stale job may resurrect a permanently failed record through the
	// retry re-entry path; the post-claim retry budget check is
	// authoritative because we hold the claim.
	if p.deps.Retry.Exhausted(rec.RetryCount) && rec.ErrorReason != "" {
		_, _ = p.deps.Calls.CompareAndSetState(ctx, rec.ID, calls.StateProcessing, calls.StateFailed, calls.TransitionOpts{ErrorReason: rec.ErrorReason, IfLeaseExpiry: rec.LeaseExpiry})
		_ = p.deps.Queue.Ack(ctx, job)
		p.countOutcome(metrics.OutcomeDropped)
		return calls.CallRecord{}, false
	}
	return rec, true
}

// analyze fetches the audio and runs the capability under the per-attempt
// timeout. The timeout is mandatory; analysis is the only blocking step the
// pipeline cannot bound otherwise.
func (p *Pool) analyze(ctx context.Context, rec calls.CallRecord) (analysis.Result, error) {
	audio, err := p.deps.Artifacts.Get(ctx, rec.ArtifactRef)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return analysis.Result{}, analysis.Permanent("call audio is missing", err)
		}
		return analysis.Result{}, analysis.Transient("loading call audio failed", err)
	}

	actx, cancel := context.WithTimeout(ctx, p.deps.AnalysisTimeout)
	defer cancel()

	start := p.clock()
	result, err := p.deps.Analyzer.Analyze(actx, audio, rec.MimeType)
	if p.deps.Metrics != nil {
		p.deps.Metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return analysis.Result{}, analysis.Transient("analysis timed out", err)
		}
		return analysis.Result{}, err
	}
	return result, nil
}

// handleFailure moves the record to `failed` and evaluates the retry policy.
func (p *Pool) handleFailure(ctx context.Context, log *slog.Logger, job queue.Job, rec calls.CallRecord, err error) {
	reason := analysis.Reason(err)
	if _, casErr := p.deps.Calls.CompareAndSetState(ctx, rec.ID, calls.StateProcessing, calls.StateFailed, calls.TransitionOpts{ErrorReason: reason, IfLeaseExpiry: rec.LeaseExpiry}); casErr != nil {
		log.Warn("lost claim before failure transition", "err", casErr)
		_ = p.deps.Queue.Ack(ctx, job)
		p.countOutcome(metrics.OutcomeDropped)
		return
	}

	if analysis.IsPermanent(err) {
		if exErr := p.deps.Calls.ExhaustRetries(ctx, rec.ID, p.deps.Retry.MaxAttempts); exErr != nil {
			log.Error("exhausting retries failed", "err", exErr)
		}
		_ = p.deps.Queue.Ack(ctx, job)
		p.countOutcome(metrics.OutcomeFailed)
		_ = p.deps.Audit.LogCallFailed(ctx, rec.CompanyID, rec.ID, reason)
		log.Warn("call failed permanently", "reason", reason)
		return
	}

	attempts, incErr := p.deps.Calls.IncrementRetry(ctx, rec.ID)
	if incErr != nil {
		log.Error("incrementing retry failed", "err", incErr)
		_ = p.deps.Queue.Ack(ctx, job)
		p.countOutcome(metrics.OutcomeFailed)
		return
	}

	if p.deps.Retry.Exhausted(attempts) {
		_ = p.deps.Queue.Ack(ctx, job)
		p.countOutcome(metrics.OutcomeFailed)
		_ = p.deps.Audit.LogCallFailed(ctx, rec.CompanyID, rec.ID, reason)
		log.Warn("call failed after max attempts", "attempts", attempts, "reason", reason)
		return
	}

	delay := p.deps.Retry.Delay(attempts)
	if nackErr := p.deps.Queue.Nack(ctx, job, delay); nackErr != nil {
		// The record stays `failed` with retry budget left; the recovery
		// sweep will requeue it.
		log.Error("requeue failed", "err", nackErr)
		p.countOutcome(metrics.OutcomeFailed)
		return
	}
	p.countOutcome(metrics.OutcomeRetried)
	log.Info("call retry scheduled", "attempts", attempts, "delay", delay, "reason", reason)
}
