package calls

import "time"

// CallRecord represents a tenant-scoped call recording moving through the
// processing pipeline.
//
// Multi-tenant invariant: CompanyID is required on every row and is immutable
// after creation.
//
// State invariant: State only changes through Store.CompareAndSetState, which
// is the single point of mutual exclusion for the pipeline. Every other field
// written after creation is written only by the worker holding the processing
// claim.
type CallRecord struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id" db:"company_id"`

	// ExternalID is the caller-supplied call identifier, unique per company.
	ExternalID string `json:"call_id,omitempty" db:"external_id"`

	Caller string `json:"caller,omitempty" db:"caller"`
	Callee string `json:"callee,omitempty" db:"callee"`

	StartTime       *time.Time `json:"start_time,omitempty" db:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty" db:"end_time"`
	DurationSeconds int        `json:"duration,omitempty" db:"duration"`

	// ArtifactRef points at the stored audio in the artifact store.
	ArtifactRef string `json:"artifact_ref,omitempty" db:"artifact_ref"`
	MimeType    string `json:"mime_type,omitempty" db:"mime_type"`

	State State `json:"state" db:"state"`

	// RetryCount is the number of attempts that ended in failure.
	RetryCount int `json:"retry_count" db:"retry_count"`

	// ErrorReason is a stable, user-visible reason populated on failure.
	ErrorReason string `json:"error_reason,omitempty" db:"error_reason"`

	// LeaseExpiry bounds the validity of a processing claim. A record in
	// `processing` whose lease has expired is reclaimable by the recovery
	// sweep.
	LeaseExpiry *time.Time `json:"-" db:"lease_expiry"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type State string

const (
	StateReceived     State = "received"
	StateProcessing   State = "processing"
	StateInsightReady State = "insight_ready"
	StateFailed       State = "failed"
)

// Terminal reports whether the state ends the normal flow. `failed` is only
// terminal once retries are exhausted; retry re-entry claims it back into
// `processing`.
func (s State) Terminal() bool {
	return s == StateInsightReady
}

// legalTransitions encodes the record state machine. `processing` back to
// `received` is the lease-reclaim path used by the recovery sweep; `failed`
// to `processing` is retry re-entry. Everything else moves forward only.
var legalTransitions = map[State][]State{
	StateReceived:   {StateProcessing},
	StateProcessing: {StateInsightReady, StateFailed, StateReceived},
	StateFailed:     {StateProcessing},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known state value.
func (s State) Valid() bool {
	switch s {
	case StateReceived, StateProcessing, StateInsightReady, StateFailed:
		return true
	default:
		return false
	}
}
