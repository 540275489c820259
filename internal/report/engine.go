package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"call-insights-platform/internal/audit"
	"call-insights-platform/internal/calls"
	"call-insights-platform/internal/company"
	"call-insights-platform/internal/insight"
	"call-insights-platform/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("report: not found")
	ErrInvalidWindow = errors.New("report: invalid window")
)

// Store is the persistence contract for reports.
type Store interface {
	Create(ctx context.Context, r Report) error
	GetByID(ctx context.Context, companyID, id string) (Report, error)

	// GetByWindow returns the most recent report generated for the exact
	// window, or ErrNotFound.
	GetByWindow(ctx context.Context, companyID string, from, to time.Time) (Report, error)

	// ListByCompany returns reports newest first.
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Report, error)
}

// Engine computes reports over analyzed calls.
type Engine struct {
	Reports   Store
	Calls     calls.Store
	Insights  insight.Store
	Companies *company.Service
	Audit     *audit.Service

	Log     *slog.Logger
	Metrics *metrics.Pipeline

	clock func() time.Time
}

func NewEngine(reports Store, callStore calls.Store, insights insight.Store, companies *company.Service, auditSvc *audit.Service, log *slog.Logger, m *metrics.Pipeline) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		Reports:   reports,
		Calls:     callStore,
		Insights:  insights,
		Companies: companies,
		Audit:     auditSvc,
		Log:       log,
		Metrics:   m,
		clock:     time.Now,
	}
}

// SetClock overrides the clock for deterministic tests.
func (e *Engine) SetClock(clock func() time.Time) { e.clock = clock }

// Generate computes and persists a report over [from, to) for the company.
//
// Generation is idempotent per window: if a report for the exact window
// already exists, it is returned as-is unless the company may regenerate
// reports, in which case a fresh immutable report is produced alongside it.
// Nothing is persisted when computation fails partway.
func (e *Engine) Generate(ctx context.Context, companyID string, from, to time.Time) (Report, error) {
	if !from.Before(to) {
		return Report{}, fmt.Errorf("%w: from must precede to", ErrInvalidWindow)
	}

	co, err := e.Companies.Get(ctx, companyID)
	if err != nil {
		return Report{}, err
	}

	if existing, err := e.Reports.GetByWindow(ctx, companyID, from, to); err == nil {
		if !co.CanRegenReports {
			return existing, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return Report{}, err
	}

	rep, err := e.compute(ctx, companyID, from, to)
	if err != nil {
		return Report{}, err
	}
	if err := e.Reports.Create(ctx, rep); err != nil {
		return Report{}, fmt.Errorf("persist report: %w", err)
	}

	if e.Metrics != nil {
		e.Metrics.ReportsGenerated.Inc()
	}
	if e.Audit != nil {
		if err := e.Audit.LogReportGenerated(ctx, companyID, rep.ID); err != nil {
			e.Log.Warn("audit append failed", "report_id", rep.ID, "err", err)
		}
	}
	e.Log.Info("report generated", "report_id", rep.ID, "company_id", companyID,
		"window_from", from, "window_to", to)
	return rep, nil
}

// Get returns one report scoped to the company.
func (e *Engine) Get(ctx context.Context, companyID, id string) (Report, error) {
	return e.Reports.GetByID(ctx, companyID, id)
}

// List returns a company's reports, newest first.
func (e *Engine) List(ctx context.Context, companyID string, limit, offset int) ([]Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return e.Reports.ListByCompany(ctx, companyID, limit, offset)
}

func (e *Engine) compute(ctx context.Context, companyID string, from, to time.Time) (Report, error) {
	recs, err := e.Calls.ListByCompanyAndWindow(ctx, companyID, from, to, calls.ListFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("list calls: %w", err)
	}
	ins, err := e.Insights.ListCurrentByCompanyAndWindow(ctx, companyID, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("list insights: %w", err)
	}

	computed := make(map[string]any, len(registry))
	for name, fn := range registry {
		computed[name] = fn(recs, ins)
	}

	ids := make([]string, 0, len(ins))
	for _, i := range ins {
		ids = append(ids, i.ID)
	}
	sort.Strings(ids)

	return Report{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		WindowFrom:  from.UTC(),
		WindowTo:    to.UTC(),
		Metrics:     computed,
		InsightIDs:  ids,
		GeneratedAt: e.clock().UTC(),
	}, nil
}
