package company

import "time"

// Company is a tenant account. Every call record, insight, and report in the
// system belongs to exactly one company.
//
// Companies are created by an administrative action and are never deleted in
// normal operation; offboarding sets Disabled instead.
type Company struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// APIKey authenticates tenant requests. Secret; never log it.
	APIKey string `json:"-" db:"api_key"`

	// CanRegenReports gates on-demand report regeneration.
	CanRegenReports bool `json:"can_regen_reports" db:"can_regen_reports"`

	Disabled bool `json:"disabled" db:"disabled"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
