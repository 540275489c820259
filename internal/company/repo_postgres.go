package company

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore persists companies in the companies table.
// api_key carries a UNIQUE index; lookups by key are the tenant auth hot path.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const companyColumns = `id, name, api_key, can_regen_reports, disabled, created_at, updated_at`

func scanCompany(row interface{ Scan(...any) error }) (Company, error) {
	var c Company
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.APIKey,
		&c.CanRegenReports,
		&c.Disabled,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (s *PostgresStore) Create(ctx context.Context, c Company) error {
	if c.ID == "" || c.APIKey == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO companies (` + companyColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	now := s.clock().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, q, c.ID, c.Name, c.APIKey, c.CanRegenReports, c.Disabled, c.CreatedAt, now)
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Company, error) {
	const q = `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	c, err := scanCompany(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) GetByAPIKey(ctx context.Context, apiKey string) (Company, error) {
	const q = `SELECT ` + companyColumns + ` FROM companies WHERE api_key = $1`
	c, err := scanCompany(s.db.QueryRowContext(ctx, q, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) SetDisabled(ctx context.Context, id string, disabled bool) error {
	const q = `UPDATE companies SET disabled = $1, updated_at = $2 WHERE id = $3`
	res, err := s.db.ExecContext(ctx, q, disabled, s.clock().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetRegenReports(ctx context.Context, id string, allowed bool) error {
	const q = `UPDATE companies SET can_regen_reports = $1, updated_at = $2 WHERE id = $3`
	res, err := s.db.ExecContext(ctx, q, allowed, s.clock().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
