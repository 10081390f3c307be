package reconcile

import "math"

// ExpenseStatus is the lifecycle state of a manually entered expense.
type ExpenseStatus string

const (
	ExpensePaid      ExpenseStatus = "paid"
	ExpensePending   ExpenseStatus = "pending"
	ExpenseCancelled ExpenseStatus = "cancelled"
)

// ExpenseCategory is the direction of an expense.
type ExpenseCategory string

const (
	ExpenseInflow  ExpenseCategory = "inflow"
	ExpenseOutflow ExpenseCategory = "outflow"
)

// ExpenseLine is the aggregator's view of one expense-ledger record.
type ExpenseLine struct {
	PaymentDay DayKey
	Status     ExpenseStatus
	Category   ExpenseCategory
	AmountUSD  float64
}

// LedgerLine is the aggregator's view of one imported ledger transaction.
type LedgerLine struct {
	Day        DayKey
	Amount     float64
	Currency   Currency
	Commission float64
	Category   TxnCategory
}

// TxnCategory is the direction of a ledger transaction.
type TxnCategory string

const (
	TxnDeposit  TxnCategory = "DEP"
	TxnWithdraw TxnCategory = "WD"
)

// DailyTotal is the result of one aggregation pass.
type DailyTotal struct {
	// TotalUSD is the aggregated figure in USD.
	TotalUSD float64
	// Skipped counts records dropped for bad amounts (NaN, negative).
	Skipped int
	// Invalid counts ledger lines dropped for an unknown currency. Surfaced
	// to the operator as an informational notice, never an error.
	Invalid int
}

// AggregateExpenses sums amount_usd over paid expenses on the given day.
// Records with NaN or negative amounts are skipped and counted, not failed.
// An empty result is a valid zero.
func AggregateExpenses(day DayKey, lines []ExpenseLine) DailyTotal {
	var out DailyTotal
	for _, line := range lines {
		if line.PaymentDay != day || line.Status != ExpensePaid {
			continue
		}
		if math.IsNaN(line.AmountUSD) || line.AmountUSD < 0 {
			out.Skipped++
			continue
		}
		out.TotalUSD += line.AmountUSD
	}
	return out
}

// AggregateNetCash sums the unsigned USD magnitude of every ledger line on
// the day. "Net cash" here is gross daily transacted volume in USD, not net
// of direction; the reconciliation net result is a different figure computed
// upstream.
func AggregateNetCash(day DayKey, lines []LedgerLine, rate float64) (DailyTotal, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return DailyTotal{}, ErrInvalidRate
	}
	var out DailyTotal
	for _, line := range lines {
		if line.Day != day {
			continue
		}
		if math.IsNaN(line.Amount) {
			out.Skipped++
			continue
		}
		usd, err := ToUSD(line.Amount, line.Currency, rate)
		if err != nil {
			out.Invalid++
			continue
		}
		out.TotalUSD += math.Abs(usd)
	}
	return out, nil
}

// AggregateCommission sums |commission| in USD over ledger lines on the day
// that carry a non-zero commission, using the same per-currency rules as
// AggregateNetCash.
func AggregateCommission(day DayKey, lines []LedgerLine, rate float64) (DailyTotal, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return DailyTotal{}, ErrInvalidRate
	}
	var out DailyTotal
	for _, line := range lines {
		if line.Day != day || line.Commission == 0 {
			continue
		}
		if math.IsNaN(line.Commission) {
			out.Skipped++
			continue
		}
		usd, err := ToUSD(math.Abs(line.Commission), line.Currency, rate)
		if err != nil {
			out.Invalid++
			continue
		}
		out.TotalUSD += usd
	}
	return out, nil
}
