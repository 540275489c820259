package calls

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("calls: record not found")

	// ErrAlreadyClaimed is returned when a compare-and-set loses the race
	// because the record is no longer in the expected state. Workers treat
	// it as "someone else owns this record" and drop the job.
	ErrAlreadyClaimed = errors.New("calls: record already claimed")

	ErrIllegalTransition = errors.New("calls: illegal state transition")
	ErrInvalidArgument   = errors.New("calls: invalid argument")
)

// TransitionOpts carries the optional fields written atomically alongside a
// state change.
type TransitionOpts struct {
	// LeaseExpiry is set when entering `processing` and cleared otherwise.
	LeaseExpiry *time.Time

	// ErrorReason is persisted on transitions into `failed`.
	ErrorReason string

	// IfLeaseExpiry, when set, additionally requires the record's current
	// lease to equal this value. Workers pass the lease they took at claim
	// time so a transition attempted after the sweeper reclaimed the record
	// (and another worker re-claimed it) loses with ErrAlreadyClaimed
	// instead of stomping the new owner's claim.
	IfLeaseExpiry *time.Time
}

// ListFilter narrows ListByCompanyAndWindow results.
type ListFilter struct {
	State           State
	DurationAtLeast int
	DurationAtMost  int
	Limit           int
	Offset          int
}

// Store is the persistence contract for call records.
//
// CompareAndSetState MUST be atomic with respect to concurrent callers: at
// most one caller observing the same expected state may win. This is what
// converts the queue's at-least-once delivery into effectively-once
// processing.
//
// All reads scoped to a company MUST enforce company filtering.
type Store interface {
	Create(ctx context.Context, rec CallRecord) error
	GetByID(ctx context.Context, companyID, id string) (CallRecord, error)

	// CompareAndSetState transitions id from expected to next, persisting
	// opts in the same write. Returns ErrAlreadyClaimed if the record is not
	// in expected, ErrIllegalTransition if the state machine forbids the
	// move, ErrNotFound if the record does not exist.
	CompareAndSetState(ctx context.Context, id string, expected, next State, opts TransitionOpts) (CallRecord, error)

	// IncrementRetry bumps the retry counter and returns the new value.
	IncrementRetry(ctx context.Context, id string) (int, error)

	// ExhaustRetries forces the retry counter to max so no further attempts
	// are scheduled. Used for permanent analysis errors.
	ExhaustRetries(ctx context.Context, id string, max int) error

	// Touch bumps updated_at without changing state. The recovery sweep
	// calls it after requeueing a stale record so the same record is not
	// re-enqueued again on the next pass.
	Touch(ctx context.Context, id string) error

	// ListByCompanyAndWindow returns records created in [from, to).
	ListByCompanyAndWindow(ctx context.Context, companyID string, from, to time.Time, filter ListFilter) ([]CallRecord, error)

	// ListExpiredLeases returns records stuck in `processing` whose lease
	// expired before now. Used by the recovery sweep.
	ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]CallRecord, error)

	// ListStaleReceived returns records still in `received` that were created
	// before cutoff, i.e. whose enqueue was likely lost to a crash.
	ListStaleReceived(ctx context.Context, cutoff time.Time, limit int) ([]CallRecord, error)

	// ListStaleFailed returns `failed` records with retry budget left
	// (retry_count < maxAttempts) untouched since cutoff, i.e. whose
	// retry requeue was lost to a crash.
	ListStaleFailed(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]CallRecord, error)
}
