package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - company_id is required for tenancy isolation.
// - Audit logging is best-effort; never block pipeline flows on it.
type Event struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id" db:"company_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// Target identifiers (optional, depending on the event type).
	CallID   string `json:"call_id,omitempty" db:"call_id"`
	ReportID string `json:"report_id,omitempty" db:"report_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCompanyProvisioned EventType = "company_provisioned"
	EventTypeCompanyDisabled    EventType = "company_disabled"
	EventTypeCallFailed         EventType = "call_failed_permanent"
	EventTypeReportGenerated    EventType = "report_generated"
)
