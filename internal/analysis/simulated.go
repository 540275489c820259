package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"
)

// Simulated is a deterministic stand-in for a real transcription/NLP
// provider. The same audio bytes always produce the same Result, which keeps
// pipeline tests reproducible.
type Simulated struct {
	// Latency is slept per call (subject to ctx) to mimic a slow provider.
	Latency time.Duration
}

var sentiments = []string{SentimentPositive, SentimentNegative, SentimentNeutral}

func (s *Simulated) Analyze(ctx context.Context, audio []byte, mimeType string) (Result, error) {
	if len(audio) == 0 {
		return Result{}, Permanent("empty audio payload", nil)
	}

	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return Result{}, Transient("analysis canceled", ctx.Err())
		case <-time.After(s.Latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, Transient("analysis canceled", err)
	}

	h := fnv.New64a()
	_, _ = h.Write(audio)
	sum := h.Sum64()

	sentiment := sentiments[sum%uint64(len(sentiments))]
	score := float64(sum%1000) / 1000
	confidence := 0.7 + float64(sum%300)/1000

	return Result{
		Transcript: fmt.Sprintf("Simulated transcription of %d bytes of %s audio.", len(audio), mimeType),
		Sentiment:  sentiment,
		Keywords:   map[string][]string{"topics": {"support", "billing", "upgrade"}},
		Summary:    "Simulated summary of the call.",
		Signals:    map[string]float64{"sentiment_score": score},
		Confidence: confidence,
	}, nil
}
