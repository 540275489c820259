package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresStore persists reports in the reports table. Metrics and insight
// IDs are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reportColumns = `id, company_id, window_from, window_to, metrics, insight_ids, generated_at`

func scanReport(row interface{ Scan(...any) error }) (Report, error) {
	var r Report
	var metricsJSON, idsJSON []byte
	err := row.Scan(
		&r.ID,
		&r.CompanyID,
		&r.WindowFrom,
		&r.WindowTo,
		&metricsJSON,
		&idsJSON,
		&r.GeneratedAt,
	)
	if err != nil {
		return Report{}, err
	}
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &r.Metrics); err != nil {
			return Report{}, err
		}
	}
	if len(idsJSON) > 0 {
		if err := json.Unmarshal(idsJSON, &r.InsightIDs); err != nil {
			return Report{}, err
		}
	}
	return r, nil
}

func (s *PostgresStore) Create(ctx context.Context, r Report) error {
	if r.ID == "" || r.CompanyID == "" {
		return errors.New("report: missing id or company id")
	}
	metricsJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return err
	}
	idsJSON, err := json.Marshal(r.InsightIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO reports (`+reportColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
		r.ID,
		r.CompanyID,
		r.WindowFrom,
		r.WindowTo,
		metricsJSON,
		idsJSON,
		r.GeneratedAt,
	)
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, companyID, id string) (Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
WHERE company_id = $1 AND id = $2
`
	r, err := scanReport(s.db.QueryRowContext(ctx, q, companyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) GetByWindow(ctx context.Context, companyID string, from, to time.Time) (Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
WHERE company_id = $1 AND window_from = $2 AND window_to = $3
ORDER BY generated_at DESC
LIMIT 1
`
	r, err := scanReport(s.db.QueryRowContext(ctx, q, companyID, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Report, error) {
	const q = `
SELECT ` + reportColumns + `
FROM reports
WHERE company_id = $1
ORDER BY generated_at DESC, id
LIMIT $2 OFFSET $3
`
	rows, err := s.db.QueryContext(ctx, q, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
