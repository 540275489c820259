package report

import "time"

// Report is an immutable aggregation over a company's analyzed calls in a
// time window. Regenerating the same window produces a new report rather
// than mutating an old one.
type Report struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id" db:"company_id"`

	// Window bounds, half-open: [WindowFrom, WindowTo).
	WindowFrom time.Time `json:"window_from" db:"window_from"`
	WindowTo   time.Time `json:"window_to" db:"window_to"`

	// Metrics holds the computed aggregates keyed by metric name.
	Metrics map[string]any `json:"metrics" db:"metrics"`

	// InsightIDs pins the exact insight versions the report was computed
	// from, sorted for stable comparison.
	InsightIDs []string `json:"insight_ids" db:"insight_ids"`

	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}
