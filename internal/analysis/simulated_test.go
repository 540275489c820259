package analysis

import (
	"context"
	"testing"
)

func TestSimulated_Deterministic(t *testing.T) {
	s := &Simulated{}
	audio := []byte("the same audio bytes")

	a, err := s.Analyze(context.Background(), audio, "audio/wav")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	b, err := s.Analyze(context.Background(), audio, "audio/wav")
	if err != nil {
		t.Fatalf("analyze again: %v", err)
	}
	if a.Sentiment != b.Sentiment || a.Confidence != b.Confidence || a.Transcript != b.Transcript {
		t.Fatalf("results differ for identical input:\n%+v\n%+v", a, b)
	}
	if a.Sentiment != SentimentPositive && a.Sentiment != SentimentNegative && a.Sentiment != SentimentNeutral {
		t.Fatalf("unknown sentiment %q", a.Sentiment)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", a.Confidence)
	}
}

func TestSimulated_EmptyAudioIsPermanent(t *testing.T) {
	s := &Simulated{}
	_, err := s.Analyze(context.Background(), nil, "audio/wav")
	if err == nil {
		t.Fatalf("expected error for empty audio")
	}
	if !IsPermanent(err) {
		t.Fatalf("empty audio must be a permanent failure, got %v", err)
	}
}

func TestSimulated_CanceledContext(t *testing.T) {
	s := &Simulated{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Analyze(ctx, []byte("x"), "audio/wav")
	if err == nil {
		t.Fatalf("expected error for canceled context")
	}
	if IsPermanent(err) {
		t.Fatalf("cancellation must stay retryable")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	if IsPermanent(Transient("flaky", nil)) {
		t.Fatalf("transient classified permanent")
	}
	if !IsPermanent(Permanent("corrupt", nil)) {
		t.Fatalf("permanent not recognized")
	}
	if got := Reason(Permanent("corrupt audio", nil)); got != "corrupt audio" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := Reason(nil); got != "" {
		t.Fatalf("expected empty reason for nil error, got %q", got)
	}
}
