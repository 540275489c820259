package insight

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"call-insights-platform/pkg/store"
)

// PostgresStore persists insights in the insights table. Keywords and signals
// are stored as JSONB.
//
// Supersession invariant: the current flag flips off the prior version and on
// for the new one inside a single transaction, so readers never observe zero
// or two current rows for a call.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const insightColumns = `id, call_id, company_id, version, current, transcript, sentiment, keywords, summary, signals, confidence, created_at`

func scanInsight(row interface{ Scan(...any) error }) (Insight, error) {
	var ins Insight
	var keywords, signals []byte
	err := row.Scan(
		&ins.ID,
		&ins.CallID,
		&ins.CompanyID,
		&ins.Version,
		&ins.Current,
		&ins.Transcript,
		&ins.Sentiment,
		&keywords,
		&ins.Summary,
		&signals,
		&ins.Confidence,
		&ins.CreatedAt,
	)
	if err != nil {
		return Insight{}, err
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &ins.Keywords); err != nil {
			return Insight{}, err
		}
	}
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &ins.Signals); err != nil {
			return Insight{}, err
		}
	}
	return ins, nil
}

func (s *PostgresStore) Create(ctx context.Context, ins Insight) (Insight, error) {
	if ins.ID == "" || ins.CallID == "" || ins.CompanyID == "" {
		return Insight{}, ErrInvalidArgument
	}
	keywords, err := json.Marshal(ins.Keywords)
	if err != nil {
		return Insight{}, err
	}
	signals, err := json.Marshal(ins.Signals)
	if err != nil {
		return Insight{}, err
	}
	if ins.CreatedAt.IsZero() {
		ins.CreatedAt = s.clock().UTC()
	}

	err = store.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM insights WHERE call_id = $1`,
			ins.CallID,
		).Scan(&ins.Version); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE insights SET current = FALSE WHERE call_id = $1 AND current`,
			ins.CallID,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO insights (`+insightColumns+`)
VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7, $8, $9, $10, $11)
`,
			ins.ID,
			ins.CallID,
			ins.CompanyID,
			ins.Version,
			ins.Transcript,
			ins.Sentiment,
			keywords,
			ins.Summary,
			signals,
			ins.Confidence,
			ins.CreatedAt,
		)
		return err
	})
	if err != nil {
		return Insight{}, err
	}
	ins.Current = true
	return ins, nil
}

func (s *PostgresStore) GetCurrentByCall(ctx context.Context, companyID, callID string) (Insight, error) {
	if companyID == "" || callID == "" {
		return Insight{}, ErrInvalidArgument
	}
	const q = `
SELECT ` + insightColumns + `
FROM insights
WHERE company_id = $1 AND call_id = $2 AND current
`
	ins, err := scanInsight(s.db.QueryRowContext(ctx, q, companyID, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return Insight{}, ErrNotFound
	}
	return ins, err
}

func (s *PostgresStore) ListCurrentByCompanyAndWindow(ctx context.Context, companyID string, from, to time.Time) ([]Insight, error) {
	if companyID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT ` + insightColumns + `
FROM insights
WHERE company_id = $1 AND current AND created_at >= $2 AND created_at < $3
ORDER BY created_at, id
`
	rows, err := s.db.QueryContext(ctx, q, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Insight, 0)
	for rows.Next() {
		ins, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}
