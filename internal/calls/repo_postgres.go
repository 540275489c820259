package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PostgresStore persists call records in the call_records table.
//
// The compare-and-set is a single UPDATE guarded by the expected state in the
// WHERE clause, so the claim is race-safe across processes without explicit
// row locks.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const callColumns = `id, company_id, external_id, caller, callee, start_time, end_time, duration_seconds, artifact_ref, mime_type, state, retry_count, error_reason, lease_expiry, created_at, updated_at`

func scanCall(row interface{ Scan(...any) error }) (CallRecord, error) {
	var rec CallRecord
	var errReason sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.CompanyID,
		&rec.ExternalID,
		&rec.Caller,
		&rec.Callee,
		&rec.StartTime,
		&rec.EndTime,
		&rec.DurationSeconds,
		&rec.ArtifactRef,
		&rec.MimeType,
		&rec.State,
		&rec.RetryCount,
		&errReason,
		&rec.LeaseExpiry,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return CallRecord{}, err
	}
	rec.ErrorReason = errReason.String
	return rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec CallRecord) error {
	if rec.ID == "" || rec.CompanyID == "" || !rec.State.Valid() {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	const q = `
INSERT INTO call_records (` + callColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15, $16)
`
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.CompanyID,
		rec.ExternalID,
		rec.Caller,
		rec.Callee,
		rec.StartTime,
		rec.EndTime,
		rec.DurationSeconds,
		rec.ArtifactRef,
		rec.MimeType,
		rec.State,
		rec.RetryCount,
		rec.ErrorReason,
		rec.LeaseExpiry,
		rec.CreatedAt,
		now,
	)
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, companyID, id string) (CallRecord, error) {
	if companyID == "" || id == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	const q = `
SELECT ` + callColumns + `
FROM call_records
WHERE company_id = $1 AND id = $2
`
	rec, err := scanCall(s.db.QueryRowContext(ctx, q, companyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) CompareAndSetState(ctx context.Context, id string, expected, next State, opts TransitionOpts) (CallRecord, error) {
	if id == "" || !expected.Valid() || !next.Valid() {
		return CallRecord{}, ErrInvalidArgument
	}
	if !expected.CanTransition(next) {
		return CallRecord{}, ErrIllegalTransition
	}
	const q = `
UPDATE call_records
SET state = $1,
    lease_expiry = $2,
    error_reason = CASE
        WHEN $3 <> '' THEN $3
        WHEN $1 = 'insight_ready' THEN NULL
        ELSE error_reason
    END,
    updated_at = $4
WHERE id = $5 AND state = $6
  AND ($7::timestamptz IS NULL OR lease_expiry = $7)
RETURNING ` + callColumns + `
`
	rec, err := scanCall(s.db.QueryRowContext(ctx, q, next, opts.LeaseExpiry, opts.ErrorReason, s.clock().UTC(), id, expected, opts.IfLeaseExpiry))
	if errors.Is(err, sql.ErrNoRows) {
		// Either the record is gone or someone else changed its state first.
		var exists bool
		if chkErr := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM call_records WHERE id = $1)`, id).Scan(&exists); chkErr != nil {
			return CallRecord{}, chkErr
		}
		if !exists {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, ErrAlreadyClaimed
	}
	return rec, err
}

func (s *PostgresStore) IncrementRetry(ctx context.Context, id string) (int, error) {
	const q = `
UPDATE call_records
SET retry_count = retry_count + 1, updated_at = $1
WHERE id = $2
RETURNING retry_count
`
	var n int
	err := s.db.QueryRowContext(ctx, q, s.clock().UTC(), id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

func (s *PostgresStore) ExhaustRetries(ctx context.Context, id string, max int) error {
	const q = `
UPDATE call_records
SET retry_count = GREATEST(retry_count, $1), updated_at = $2
WHERE id = $3
`
	res, err := s.db.ExecContext(ctx, q, max, s.clock().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Touch(ctx context.Context, id string) error {
	const q = `UPDATE call_records SET updated_at = $1 WHERE id = $2`
	res, err := s.db.ExecContext(ctx, q, s.clock().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCompanyAndWindow(ctx context.Context, companyID string, from, to time.Time, filter ListFilter) ([]CallRecord, error) {
	if companyID == "" {
		return nil, ErrInvalidArgument
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + callColumns + ` FROM call_records WHERE company_id = $1 AND created_at >= $2 AND created_at < $3`)
	args := []any{companyID, from, to}
	if filter.State != "" {
		args = append(args, filter.State)
		fmt.Fprintf(&b, " AND state = $%d", len(args))
	}
	if filter.DurationAtLeast > 0 {
		args = append(args, filter.DurationAtLeast)
		fmt.Fprintf(&b, " AND duration_seconds >= $%d", len(args))
	}
	if filter.DurationAtMost > 0 {
		args = append(args, filter.DurationAtMost)
		fmt.Fprintf(&b, " AND duration_seconds <= $%d", len(args))
	}
	b.WriteString(" ORDER BY created_at, id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (s *PostgresStore) ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_records
WHERE state = 'processing' AND lease_expiry IS NOT NULL AND lease_expiry <= $1
ORDER BY lease_expiry
LIMIT $2
`
	rows, err := s.db.QueryContext(ctx, q, now, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (s *PostgresStore) ListStaleReceived(ctx context.Context, cutoff time.Time, limit int) ([]CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_records
WHERE state = 'received' AND updated_at < $1
ORDER BY updated_at
LIMIT $2
`
	rows, err := s.db.QueryContext(ctx, q, cutoff, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (s *PostgresStore) ListStaleFailed(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]CallRecord, error) {
	const q = `
SELECT ` + callColumns + `
FROM call_records
WHERE state = 'failed' AND retry_count < $1 AND updated_at < $2
ORDER BY updated_at
LIMIT $3
`
	rows, err := s.db.QueryContext(ctx, q, maxAttempts, cutoff, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCalls(rows)
}

func collectCalls(rows *sql.Rows) ([]CallRecord, error) {
	out := make([]CallRecord, 0)
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
