package postgres

import (
	"context"
	"database/sql"
	"time"

	ledger "cashdesk/internal/ledger/domain"
)

// Repository reads the dashboard's expense and transaction tables. The
// engine only ever reads them; CRUD belongs to the surrounding application.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListExpensesByDay loads expenses whose payment date falls on the day.
func (r *Repository) ListExpensesByDay(ctx context.Context, day time.Time) ([]ledger.ExpenseRecord, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 1)

	rows, err := r.db.QueryContext(ctx, `
SELECT id, payment_date, status, category, amount_usd
FROM expenses
WHERE payment_date >= $1 AND payment_date < $2
ORDER BY payment_date ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.ExpenseRecord
	for rows.Next() {
		var rec ledger.ExpenseRecord
		if err := rows.Scan(&rec.ID, &rec.PaymentDate, &rec.Status, &rec.Category, &rec.AmountUSD); err != nil {
			return nil, err
		}
		rec.PaymentDate = rec.PaymentDate.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListTransactionsByDay loads imported transactions dated on the day.
func (r *Repository) ListTransactionsByDay(ctx context.Context, day time.Time) ([]ledger.Transaction, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 1)

	rows, err := r.db.QueryContext(ctx, `
SELECT id, txn_date, amount, currency, commission, category
FROM ledger_transactions
WHERE txn_date >= $1 AND txn_date < $2
ORDER BY txn_date ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Transaction
	for rows.Next() {
		var txn ledger.Transaction
		if err := rows.Scan(&txn.ID, &txn.Date, &txn.Amount, &txn.Currency, &txn.Commission, &txn.Category); err != nil {
			return nil, err
		}
		txn.Date = txn.Date.UTC()
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceTransactions swaps the imported snapshot inside one transaction.
func (r *Repository) ReplaceTransactions(ctx context.Context, txns []ledger.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_transactions`); err != nil {
		return err
	}
	for _, txn := range txns {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ledger_transactions (id, txn_date, amount, currency, commission, category)
VALUES ($1, $2, $3, $4, $5, $6)`,
			txn.ID, txn.Date.UTC(), txn.Amount, txn.Currency, txn.Commission, txn.Category); err != nil {
			return err
		}
	}
	return tx.Commit()
}
