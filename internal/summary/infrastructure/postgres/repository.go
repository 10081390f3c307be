package postgres

import (
	"context"
	"database/sql"
	"errors"

	summary "cashdesk/internal/summary/domain"
)

// SummaryRepository stores monthly rollups in Postgres.
type SummaryRepository struct {
	db *sql.DB
}

// NewSummaryRepository constructs a repository.
func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// FindByMonthAndCurrency loads one rollup, nil when absent.
func (r *SummaryRepository) FindByMonthAndCurrency(ctx context.Context, month summary.MonthKey, currency string) (*summary.CurrencySummary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT month, currency, carryover, inflow, outflow, rate, locked
FROM currency_summaries
WHERE month = $1 AND currency = $2`, month.String(), currency)

	var (
		m, cur                           string
		carryover, inflow, outflow, rate float64
		locked                           bool
	)
	if err := row.Scan(&m, &cur, &carryover, &inflow, &outflow, &rate, &locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return summary.Restore(summary.MonthKey(m), cur, carryover, inflow, outflow, rate, locked)
}

// ListByMonth returns every currency's rollup for the month.
func (r *SummaryRepository) ListByMonth(ctx context.Context, month summary.MonthKey) ([]*summary.CurrencySummary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT month, currency, carryover, inflow, outflow, rate, locked
FROM currency_summaries
WHERE month = $1
ORDER BY currency ASC`, month.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*summary.CurrencySummary
	for rows.Next() {
		var (
			m, cur                           string
			carryover, inflow, outflow, rate float64
			locked                           bool
		)
		if err := rows.Scan(&m, &cur, &carryover, &inflow, &outflow, &rate, &locked); err != nil {
			return nil, err
		}
		s, err := summary.Restore(summary.MonthKey(m), cur, carryover, inflow, outflow, rate, locked)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a rollup.
func (r *SummaryRepository) Save(ctx context.Context, s *summary.CurrencySummary) error {
	if s == nil {
		return summary.ErrNilSummary
	}
	snap := s.Snapshot()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO currency_summaries (month, currency, carryover, inflow, outflow, rate, locked)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (month, currency) DO UPDATE SET
	carryover = EXCLUDED.carryover,
	inflow = EXCLUDED.inflow,
	outflow = EXCLUDED.outflow,
	rate = EXCLUDED.rate,
	locked = EXCLUDED.locked`,
		snap.Month, snap.Currency, snap.Carryover, snap.Inflow, snap.Outflow, snap.Rate, snap.Locked)
	return err
}
