// Package ledger holds the read models for the two externally maintained
// money sources: the manually entered expense ledger and the imported
// transaction ledger. Both are read-only to the reconciliation engine.
package ledger

import (
	"context"
	"time"
)

// ExpenseRecord is one manually entered expense. Owned by the expense
// ledger collaborator.
type ExpenseRecord struct {
	ID          string
	PaymentDate time.Time
	Status      string
	Category    string
	AmountUSD   float64
}

// Transaction is one imported ledger transaction.
type Transaction struct {
	ID         string
	Date       time.Time
	Amount     float64
	Currency   string
	Commission float64
	Category   string
}

// ExpenseReader lists expenses for one day.
type ExpenseReader interface {
	ListExpensesByDay(ctx context.Context, day time.Time) ([]ExpenseRecord, error)
}

// TransactionReader lists imported transactions for one day.
type TransactionReader interface {
	ListTransactionsByDay(ctx context.Context, day time.Time) ([]Transaction, error)
}

// TransactionWriter accepts an imported snapshot. Only the importer uses it;
// the engine itself never writes the ledger.
type TransactionWriter interface {
	ReplaceTransactions(ctx context.Context, txns []Transaction) error
}
