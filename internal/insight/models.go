package insight

import "time"

// Insight is the structured analysis output for one call record.
//
// Insights are immutable once created. Re-running analysis creates a new
// version and supersedes the prior one; superseded rows are kept for audit
// but not exposed by default.
type Insight struct {
	ID        string `json:"id" db:"id"`
	CallID    string `json:"call_id" db:"call_id"`
	CompanyID string `json:"company_id" db:"company_id"`

	// Version starts at 1 and increments on each re-analysis.
	Version int `json:"version" db:"version"`

	// Current marks the latest version for the call. Exactly one row per
	// call carries it.
	Current bool `json:"-" db:"current"`

	Transcript string              `json:"transcript" db:"transcript"`
	Sentiment  string              `json:"sentiment" db:"sentiment"`
	Keywords   map[string][]string `json:"keywords" db:"keywords"`
	Summary    string              `json:"summary" db:"summary"`
	Signals    map[string]float64  `json:"signals" db:"signals"`
	Confidence float64             `json:"confidence" db:"confidence"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
