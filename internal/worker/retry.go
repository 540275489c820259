package worker

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the explicit, inspectable retry policy evaluated after each
// failed attempt. Retry is never exception-driven control flow: the worker
// asks the policy and acts on the answer.
type RetryPolicy struct {
	// MaxAttempts bounds total attempts (first try included).
	MaxAttempts int

	// InitialDelay seeds the exponential backoff.
	InitialDelay time.Duration

	// MaxDelay caps individual backoff intervals.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the pipeline config defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     2 * time.Minute,
	}
}

// Exhausted reports whether no retry budget remains after the given number
// of failed attempts.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

// Delay returns the requeue delay after the attempt-th failure (1-based).
// Delays grow exponentially with jitter and are capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.MaxInterval = p.MaxDelay
	bo.MaxElapsedTime = 0

	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = bo.NextBackOff()
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
