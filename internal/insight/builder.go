package insight

import (
	"context"
	"errors"
	"time"

	"call-insights-platform/internal/analysis"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("insight: not found")
	ErrInvalidArgument = errors.New("insight: invalid argument")
)

// Store is the persistence contract for insights.
type Store interface {
	// Create persists ins as the current version for its call, superseding
	// any prior current row in the same write. The stored version number is
	// assigned by the store.
	Create(ctx context.Context, ins Insight) (Insight, error)

	// GetCurrentByCall returns the current insight for a call.
	GetCurrentByCall(ctx context.Context, companyID, callID string) (Insight, error)

	// ListCurrentByCompanyAndWindow returns current insights created in
	// [from, to) for a company.
	ListCurrentByCompanyAndWindow(ctx context.Context, companyID string, from, to time.Time) ([]Insight, error)
}

// Builder converts raw analysis output into an Insight entity.
type Builder struct {
	clock func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{clock: time.Now}
}

// SetClock overrides the builder clock for deterministic tests.
func (b *Builder) SetClock(clock func() time.Time) { b.clock = clock }

func (b *Builder) Build(companyID, callID string, res analysis.Result) (Insight, error) {
	if companyID == "" || callID == "" {
		return Insight{}, ErrInvalidArgument
	}
	return Insight{
		ID:         uuid.NewString(),
		CallID:     callID,
		CompanyID:  companyID,
		Current:    true,
		Transcript: res.Transcript,
		Sentiment:  res.Sentiment,
		Keywords:   res.Keywords,
		Summary:    res.Summary,
		Signals:    res.Signals,
		Confidence: res.Confidence,
		CreatedAt:  b.clock().UTC(),
	}, nil
}
