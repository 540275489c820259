package worker

import (
	"testing"
	"time"
)

func TestRetryPolicy_Exhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}
	if p.Exhausted(2) {
		t.Fatalf("budget left at 2 attempts")
	}
	if !p.Exhausted(3) || !p.Exhausted(4) {
		t.Fatalf("expected exhaustion at max attempts")
	}
}

func TestRetryPolicy_DelayGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, InitialDelay: time.Second, MaxDelay: 8 * time.Second}

	first := p.Delay(1)
	if first <= 0 || first > p.MaxDelay {
		t.Fatalf("first delay out of range: %v", first)
	}
	// Far beyond the doubling horizon every delay must hit the cap.
	for attempt := 10; attempt <= 12; attempt++ {
		if d := p.Delay(attempt); d > p.MaxDelay {
			t.Fatalf("attempt %d exceeds cap: %v", attempt, d)
		}
	}
}

func TestRetryPolicy_DelayHandlesBogusAttempt(t *testing.T) {
	p := DefaultRetryPolicy()
	if d := p.Delay(0); d <= 0 {
		t.Fatalf("expected positive delay for clamped attempt, got %v", d)
	}
}
