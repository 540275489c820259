package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Result is the structured output of analyzing one call recording.
type Result struct {
	Transcript string `json:"transcript"`

	// Sentiment is one of Positive, Negative, Neutral.
	Sentiment string `json:"sentiment"`

	// Keywords groups extracted terms by topic, e.g. {"topics": [...]}.
	Keywords map[string][]string `json:"keywords"`

	Summary string `json:"summary"`

	// Signals maps signal names to numeric values (e.g. sentiment_score).
	Signals map[string]float64 `json:"signals"`

	// Confidence is the analyzer's overall confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

const (
	SentimentPositive = "Positive"
	SentimentNegative = "Negative"
	SentimentNeutral  = "Neutral"
)

// ErrorKind splits analysis failures by retryability.
type ErrorKind string

const (
	// KindTransient covers failures worth retrying (resource exhaustion,
	// upstream flakiness).
	KindTransient ErrorKind = "transient"

	// KindPermanent covers failures no retry can fix (corrupt or
	// unsupported audio). The pipeline short-circuits retries for these.
	KindPermanent ErrorKind = "permanent"
)

// Error is the only error type the pipeline inspects; everything else coming
// out of a capability is treated as transient.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis: %s (%s): %v", e.Reason, e.Kind, e.Err)
	}
	return fmt.Sprintf("analysis: %s (%s)", e.Reason, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient builds a retryable analysis error.
func Transient(reason string, err error) *Error {
	return &Error{Kind: KindTransient, Reason: reason, Err: err}
}

// Permanent builds a non-retryable analysis error.
func Permanent(reason string, err error) *Error {
	return &Error{Kind: KindPermanent, Reason: reason, Err: err}
}

// IsPermanent reports whether err is a permanent analysis error.
func IsPermanent(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == KindPermanent
}

// Reason extracts the stable user-visible reason from err, falling back to
// the error text.
func Reason(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Reason != "" {
		return ae.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Capability turns call audio into a Result. Implementations (real, mocked,
// simulated) are interchangeable; the pipeline depends only on this contract
// and the error taxonomy above.
//
// Analyze must honor ctx cancellation: the worker bounds every attempt with
// a timeout.
type Capability interface {
	Analyze(ctx context.Context, audio []byte, mimeType string) (Result, error)
}
