package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"call-insights-platform/internal/artifact"
	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/queue"
	"call-insights-platform/pkg/metrics"

	"github.com/google/uuid"
)

// ErrValidation marks rejected submissions. Handlers map it to a 400.
var ErrValidation = errors.New("ingest: validation failed")

// Submission is the caller-supplied metadata for an uploaded call recording.
type Submission struct {
	ExternalID      string     `json:"external_id"`
	Caller          string     `json:"caller"`
	Callee          string     `json:"callee"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
}

// Gate accepts call submissions. A successful Submit stores the audio
// artifact, creates the call record in `received`, and hands a job to the
// queue. A rejected submission leaves no trace: validation runs before any
// side effect.
type Gate struct {
	Calls     calls.Store
	Artifacts artifact.Store
	Queue     queue.Queue

	MaxUploadBytes int64
	AllowedMIME    []string

	Log     *slog.Logger
	Metrics *metrics.Pipeline

	clock func() time.Time
}

func NewGate(callStore calls.Store, artifacts artifact.Store, q queue.Queue, maxUploadBytes int64, allowedMIME []string, log *slog.Logger, m *metrics.Pipeline) *Gate {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	if len(allowedMIME) == 0 {
		allowedMIME = []string{"audio/wav", "audio/x-wav", "audio/mpeg"}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		Calls:          callStore,
		Artifacts:      artifacts,
		Queue:          q,
		MaxUploadBytes: maxUploadBytes,
		AllowedMIME:    allowedMIME,
		Log:            log,
		Metrics:        m,
		clock:          time.Now,
	}
}

// SetClock overrides the clock for deterministic tests.
func (g *Gate) SetClock(clock func() time.Time) { g.clock = clock }

// Submit validates and accepts one call recording for the company. The
// returned record is in state `received` with a processing job enqueued.
//
// If the enqueue fails after the record is persisted, the error propagates
// and the record is left in `received`; the recovery sweep picks it up.
func (g *Gate) Submit(ctx context.Context, companyID string, sub Submission, audio []byte, mimeType string) (calls.CallRecord, error) {
	if err := g.validate(companyID, sub, audio, mimeType); err != nil {
		return calls.CallRecord{}, err
	}

	ref, err := g.Artifacts.Put(ctx, companyID, audio, mimeType)
	if err != nil {
		return calls.CallRecord{}, fmt.Errorf("store audio artifact: %w", err)
	}

	now := g.clock().UTC()
	rec := calls.CallRecord{
		ID:              uuid.NewString(),
		CompanyID:       companyID,
		ExternalID:      sub.ExternalID,
		Caller:          sub.Caller,
		Callee:          sub.Callee,
		StartTime:       sub.StartTime,
		EndTime:         sub.EndTime,
		DurationSeconds: sub.DurationSeconds,
		ArtifactRef:     ref,
		MimeType:        mimeType,
		State:           calls.StateReceived,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := g.Calls.Create(ctx, rec); err != nil {
		return calls.CallRecord{}, fmt.Errorf("create call record: %w", err)
	}

	if err := g.Queue.Enqueue(ctx, queue.Job{ID: uuid.NewString(), CallID: rec.ID, Attempt: 1}, 0); err != nil {
		// The record is durable; surface the broken handoff instead of
		// pretending the pipeline accepted the call cleanly.
		g.Log.Error("enqueue after accept failed", "call_id", rec.ID, "err", err)
		return rec, fmt.Errorf("enqueue processing job: %w", err)
	}

	if g.Metrics != nil {
		g.Metrics.CallsSubmitted.Inc()
	}
	g.Log.Info("call accepted", "call_id", rec.ID, "company_id", companyID, "bytes", len(audio))
	return rec, nil
}

func (g *Gate) validate(companyID string, sub Submission, audio []byte, mimeType string) error {
	switch {
	case companyID == "":
		return fmt.Errorf("%w: company id is required", ErrValidation)
	case strings.TrimSpace(sub.Caller) == "":
		return fmt.Errorf("%w: caller is required", ErrValidation)
	case strings.TrimSpace(sub.Callee) == "":
		return fmt.Errorf("%w: callee is required", ErrValidation)
	case sub.DurationSeconds < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrValidation)
	case len(audio) == 0:
		return fmt.Errorf("%w: audio payload is empty", ErrValidation)
	case int64(len(audio)) > g.MaxUploadBytes:
		return fmt.Errorf("%w: audio exceeds %d bytes", ErrValidation, g.MaxUploadBytes)
	}
	if sub.StartTime != nil && sub.EndTime != nil && sub.EndTime.Before(*sub.StartTime) {
		return fmt.Errorf("%w: end time precedes start time", ErrValidation)
	}
	if !g.mimeAllowed(mimeType) {
		return fmt.Errorf("%w: unsupported content type %q", ErrValidation, mimeType)
	}
	return nil
}

func (g *Gate) mimeAllowed(mimeType string) bool {
	for _, m := range g.AllowedMIME {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	return false
}
