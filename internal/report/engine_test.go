package report

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/company"
	"call-insights-platform/internal/insight"
)

type engineFixture struct {
	engine    *Engine
	calls     *calls.MemoryStore
	insights  *insight.MemoryStore
	companies *company.Service
	companyID string
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		calls:     calls.NewMemoryStore(),
		insights:  insight.NewMemoryStore(),
		companies: company.NewService(company.NewMemoryStore()),
	}
	co, err := f.companies.Provision(context.Background(), "acme")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	f.companyID = co.ID
	f.engine = NewEngine(NewMemoryStore(), f.calls, f.insights, f.companies, nil, nil, nil)
	f.engine.SetClock(func() time.Time { return time.Unix(1700003600, 0).UTC() })
	return f
}

func (f *engineFixture) seedAnalyzedCall(t *testing.T, id, sentiment string, duration int, confidence float64, keywords []string, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	if err := f.calls.Create(ctx, calls.CallRecord{
		ID: id, CompanyID: f.companyID, Caller: "a", Callee: "b",
		DurationSeconds: duration, State: calls.StateInsightReady, CreatedAt: createdAt,
	}); err != nil {
		t.Fatalf("create call: %v", err)
	}
	if _, err := f.insights.Create(ctx, insight.Insight{
		ID: "ins-" + id, CallID: id, CompanyID: f.companyID,
		Sentiment:  sentiment,
		Keywords:   map[string][]string{"topics": keywords},
		Confidence: confidence,
		CreatedAt:  createdAt,
	}); err != nil {
		t.Fatalf("create insight: %v", err)
	}
}

func TestGenerate_Aggregates(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()

	f.seedAnalyzedCall(t, "c1", "Positive", 60, 0.9, []string{"billing", "upgrade"}, base)
	f.seedAnalyzedCall(t, "c2", "Positive", 30, 0.7, []string{"billing"}, base.Add(time.Minute))
	f.seedAnalyzedCall(t, "c3", "Negative", 90, 0.8, []string{"support"}, base.Add(2*time.Minute))

	rep, err := f.engine.Generate(context.Background(), f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := rep.Metrics["call_count"].(int); got != 3 {
		t.Fatalf("call_count = %d", got)
	}
	if got := rep.Metrics["avg_duration_seconds"].(float64); got != 60 {
		t.Fatalf("avg_duration_seconds = %v", got)
	}
	dist := rep.Metrics["sentiment_distribution"].(map[string]int)
	if dist["Positive"] != 2 || dist["Negative"] != 1 {
		t.Fatalf("unexpected distribution: %+v", dist)
	}
	top := rep.Metrics["top_keywords"].([]keywordCount)
	if len(top) != 3 || top[0].Keyword != "billing" || top[0].Count != 2 {
		t.Fatalf("unexpected top keywords: %+v", top)
	}
	if len(rep.InsightIDs) != 3 {
		t.Fatalf("expected 3 pinned insights, got %d", len(rep.InsightIDs))
	}
}

func TestGenerate_WindowIsHalfOpen(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()

	f.seedAnalyzedCall(t, "inside", "Neutral", 30, 0.8, nil, base)
	f.seedAnalyzedCall(t, "atUpper", "Neutral", 30, 0.8, nil, base.Add(time.Hour))

	rep, err := f.engine.Generate(context.Background(), f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := rep.Metrics["call_count"].(int); got != 1 {
		t.Fatalf("upper bound must be exclusive, call_count = %d", got)
	}
}

func TestGenerate_InvalidWindow(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()
	if _, err := f.engine.Generate(context.Background(), f.companyID, base, base); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestGenerate_EmptyWindow(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()

	rep, err := f.engine.Generate(context.Background(), f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := rep.Metrics["call_count"].(int); got != 0 {
		t.Fatalf("call_count = %d", got)
	}
	if got := rep.Metrics["avg_duration_seconds"].(float64); got != 0 {
		t.Fatalf("avg over empty window must be 0, got %v", got)
	}
}

func TestGenerate_SameWindowSameDataIsDeterministic(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()
	f.seedAnalyzedCall(t, "c1", "Positive", 45, 0.9, []string{"billing"}, base)
	f.seedAnalyzedCall(t, "c2", "Negative", 75, 0.7, []string{"outage"}, base.Add(time.Minute))

	first, err := f.engine.Generate(ctx, f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := f.engine.Generate(ctx, f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if !reflect.DeepEqual(first.Metrics, second.Metrics) {
		t.Fatalf("metrics diverged: %v vs %v", first.Metrics, second.Metrics)
	}
	if !reflect.DeepEqual(first.InsightIDs, second.InsightIDs) {
		t.Fatalf("insight ids diverged: %v vs %v", first.InsightIDs, second.InsightIDs)
	}
}

func TestGenerate_RegenDisabledReturnsExisting(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()
	f.seedAnalyzedCall(t, "c1", "Neutral", 30, 0.8, nil, base)

	first, err := f.engine.Generate(ctx, f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Data changes, but the tenant may not regenerate.
	f.seedAnalyzedCall(t, "c2", "Neutral", 30, 0.8, nil, base.Add(time.Minute))
	f.companies.SetRegenReports(ctx, f.companyID, false)

	second, err := f.engine.Generate(ctx, f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the existing report back, got a new one")
	}
}

func TestGenerate_RegenAllowedCreatesNewReport(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()
	f.seedAnalyzedCall(t, "c1", "Neutral", 30, 0.8, nil, base)

	first, err := f.engine.Generate(ctx, f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	f.seedAnalyzedCall(t, "c2", "Neutral", 30, 0.8, nil, base.Add(time.Minute))

	second, err := f.engine.Generate(ctx, f.companyID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a fresh immutable report")
	}
	if got := second.Metrics["call_count"].(int); got != 2 {
		t.Fatalf("regenerated call_count = %d", got)
	}

	// Both reports remain listed, newest first.
	reports, err := f.engine.List(ctx, f.companyID, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
}

func TestGenerate_TenantIsolation(t *testing.T) {
	f := newEngineFixture(t)
	base := time.Unix(1700000000, 0).UTC()
	ctx := context.Background()
	f.seedAnalyzedCall(t, "c1", "Positive", 30, 0.8, nil, base)

	other, err := f.companies.Provision(ctx, "rival")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	rep, err := f.engine.Generate(ctx, other.ID, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := rep.Metrics["call_count"].(int); got != 0 {
		t.Fatalf("report leaked cross-tenant data: %d", got)
	}

	// And the first tenant's report is invisible to the second.
	first, _ := f.engine.Generate(ctx, f.companyID, base, base.Add(time.Hour))
	if _, err := f.engine.Get(ctx, other.ID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for cross-tenant report read, got %v", err)
	}
}
