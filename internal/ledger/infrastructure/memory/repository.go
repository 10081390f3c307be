package memory

import (
	"context"
	"sync"
	"time"

	ledger "cashdesk/internal/ledger/domain"
)

// Repository is an in-memory ledger snapshot, used in tests and as the
// target of XLSX imports when no database is configured.
type Repository struct {
	mu       sync.RWMutex
	expenses []ledger.ExpenseRecord
	txns     []ledger.Transaction
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}

// SeedExpenses replaces the expense snapshot.
func (r *Repository) SeedExpenses(records []ledger.ExpenseRecord) {
	r.mu.Lock()
	r.expenses = append([]ledger.ExpenseRecord(nil), records...)
	r.mu.Unlock()
}

// ListExpensesByDay returns expenses dated on the given day.
func (r *Repository) ListExpensesByDay(ctx context.Context, day time.Time) ([]ledger.ExpenseRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ledger.ExpenseRecord
	for _, rec := range r.expenses {
		if sameDay(rec.PaymentDate, day) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListTransactionsByDay returns imported transactions dated on the given day.
func (r *Repository) ListTransactionsByDay(ctx context.Context, day time.Time) ([]ledger.Transaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ledger.Transaction
	for _, txn := range r.txns {
		if sameDay(txn.Date, day) {
			out = append(out, txn)
		}
	}
	return out, nil
}

// ReplaceTransactions swaps in a freshly imported snapshot.
func (r *Repository) ReplaceTransactions(ctx context.Context, txns []ledger.Transaction) error {
	_ = ctx
	r.mu.Lock()
	r.txns = append([]ledger.Transaction(nil), txns...)
	r.mu.Unlock()
	return nil
}

func sameDay(a, b time.Time) bool {
	au, bu := a.UTC(), b.UTC()
	return au.Year() == bu.Year() && au.Month() == bu.Month() && au.Day() == bu.Day()
}
