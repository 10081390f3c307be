// Package ledgerfeed adapts the ledger read models to the aggregator's
// line shapes.
package ledgerfeed

import (
	"context"
	"errors"

	ledger "cashdesk/internal/ledger/domain"
	reconcile "cashdesk/internal/reconcile/domain"
)

// Adapter exposes the ledger context as fetch sources.
type Adapter struct {
	expenses ledger.ExpenseReader
	txns     ledger.TransactionReader
}

// NewAdapter constructs the adapter.
func NewAdapter(expenses ledger.ExpenseReader, txns ledger.TransactionReader) (*Adapter, error) {
	if expenses == nil {
		return nil, errors.New("ledgerfeed: nil expense reader")
	}
	if txns == nil {
		return nil, errors.New("ledgerfeed: nil transaction reader")
	}
	return &Adapter{expenses: expenses, txns: txns}, nil
}

// ListExpenses converts the day's expense records to aggregator lines.
func (a *Adapter) ListExpenses(ctx context.Context, day reconcile.DayKey) ([]reconcile.ExpenseLine, error) {
	records, err := a.expenses.ListExpensesByDay(ctx, day.Time())
	if err != nil {
		return nil, err
	}
	lines := make([]reconcile.ExpenseLine, 0, len(records))
	for _, rec := range records {
		paymentDay, err := reconcile.NewDayKey(rec.PaymentDate)
		if err != nil {
			continue
		}
		lines = append(lines, reconcile.ExpenseLine{
			PaymentDay: paymentDay,
			Status:     reconcile.ExpenseStatus(rec.Status),
			Category:   reconcile.ExpenseCategory(rec.Category),
			AmountUSD:  rec.AmountUSD,
		})
	}
	return lines, nil
}

// ListTransactions converts the day's imported transactions to aggregator
// lines.
func (a *Adapter) ListTransactions(ctx context.Context, day reconcile.DayKey) ([]reconcile.LedgerLine, error) {
	txns, err := a.txns.ListTransactionsByDay(ctx, day.Time())
	if err != nil {
		return nil, err
	}
	lines := make([]reconcile.LedgerLine, 0, len(txns))
	for _, txn := range txns {
		txnDay, err := reconcile.NewDayKey(txn.Date)
		if err != nil {
			continue
		}
		lines = append(lines, reconcile.LedgerLine{
			Day:        txnDay,
			Amount:     txn.Amount,
			Currency:   reconcile.NormalizeCurrency(txn.Currency),
			Commission: txn.Commission,
			Category:   reconcile.TxnCategory(txn.Category),
		})
	}
	return lines, nil
}
