package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the audit_events table. Rows are never
// updated or deleted.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (id, company_id, type, call_id, report_id, message, metadata, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), $8)
`,
		e.ID,
		e.CompanyID,
		e.Type,
		e.CallID,
		e.ReportID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
