// Package summary holds the per-month, per-currency rollup shown next to
// the daily reconciliation: carryover in, money in, money out, net, and the
// USD equivalent at the month's rate.
package summary

import (
	"errors"
	"math"
	"time"
)

// Sentinel errors.
var (
	ErrInvalidMonth    = errors.New("summary: invalid month")
	ErrUnknownCurrency = errors.New("summary: unknown currency")
	ErrInvalidRate     = errors.New("summary: rate must be positive")
	ErrMonthLocked     = errors.New("summary: month is locked")
	ErrNegativeAmount  = errors.New("summary: amount must not be negative")
	ErrNilSummary      = errors.New("summary: nil summary")
)

const monthLayout = "2006-01"

// MonthKey is the persisted representation of a calendar month.
type MonthKey string

// NewMonthKey builds a MonthKey for the given instant.
func NewMonthKey(t time.Time) (MonthKey, error) {
	if t.IsZero() {
		return "", ErrInvalidMonth
	}
	return MonthKey(t.UTC().Format(monthLayout)), nil
}

// ParseMonthKey validates a raw month string.
func ParseMonthKey(raw string) (MonthKey, error) {
	if _, err := time.Parse(monthLayout, raw); err != nil {
		return "", ErrInvalidMonth
	}
	return MonthKey(raw), nil
}

// String returns the raw string for storage.
func (k MonthKey) String() string { return string(k) }

// Snapshot is the detached, transport-friendly view of one summary row.
type Snapshot struct {
	Month         string  `json:"month"`
	Currency      string  `json:"currency"`
	Carryover     float64 `json:"carryover"`
	Inflow        float64 `json:"inflow"`
	Outflow       float64 `json:"outflow"`
	Net           float64 `json:"net"`
	Rate          float64 `json:"rate"`
	USDEquivalent float64 `json:"usd_equivalent"`
	Locked        bool    `json:"locked"`
}

// CurrencySummary is one month's rollup for one currency. Net is always
// carryover + inflow - outflow; it is derived, never stored independently.
// Once a month is finalized it locks: carryover and rate edits are
// rejected, flows are frozen with them.
type CurrencySummary struct {
	month     MonthKey
	currency  string
	carryover float64
	inflow    float64
	outflow   float64
	rate      float64
	locked    bool
}

// NewCurrencySummary creates an empty rollup for the month and currency.
func NewCurrencySummary(month MonthKey, currency string, rate float64) (*CurrencySummary, error) {
	if month == "" {
		return nil, ErrInvalidMonth
	}
	if currency == "" {
		return nil, ErrUnknownCurrency
	}
	if rate <= 0 || math.IsNaN(rate) {
		return nil, ErrInvalidRate
	}
	return &CurrencySummary{month: month, currency: currency, rate: rate}, nil
}

// Restore rebuilds a summary from stored fields.
func Restore(month MonthKey, currency string, carryover, inflow, outflow, rate float64, locked bool) (*CurrencySummary, error) {
	s, err := NewCurrencySummary(month, currency, rate)
	if err != nil {
		return nil, err
	}
	s.carryover = carryover
	s.inflow = inflow
	s.outflow = outflow
	s.locked = locked
	return s, nil
}

// Month returns the summary's month.
func (s *CurrencySummary) Month() MonthKey { return s.month }

// Currency returns the summary's currency code.
func (s *CurrencySummary) Currency() string { return s.currency }

// Locked reports whether the month is finalized.
func (s *CurrencySummary) Locked() bool { return s.locked }

// Net returns carryover + inflow - outflow.
func (s *CurrencySummary) Net() float64 {
	return s.carryover + s.inflow - s.outflow
}

// USDEquivalent converts the net at the month's rate. USD rows pass
// through unchanged.
func (s *CurrencySummary) USDEquivalent() float64 {
	if s.currency == "USD" || s.currency == "USDT" {
		return s.Net()
	}
	return s.Net() / s.rate
}

// SetCarryover replaces the opening balance. Locked months refuse.
func (s *CurrencySummary) SetCarryover(amount float64) error {
	if s.locked {
		return ErrMonthLocked
	}
	if math.IsNaN(amount) {
		return ErrNegativeAmount
	}
	s.carryover = amount
	return nil
}

// SetRate replaces the month's conversion rate. Locked months refuse.
func (s *CurrencySummary) SetRate(rate float64) error {
	if s.locked {
		return ErrMonthLocked
	}
	if rate <= 0 || math.IsNaN(rate) {
		return ErrInvalidRate
	}
	s.rate = rate
	return nil
}

// AddInflow accumulates money in.
func (s *CurrencySummary) AddInflow(amount float64) error {
	if s.locked {
		return ErrMonthLocked
	}
	if math.IsNaN(amount) || amount < 0 {
		return ErrNegativeAmount
	}
	s.inflow += amount
	return nil
}

// AddOutflow accumulates money out.
func (s *CurrencySummary) AddOutflow(amount float64) error {
	if s.locked {
		return ErrMonthLocked
	}
	if math.IsNaN(amount) || amount < 0 {
		return ErrNegativeAmount
	}
	s.outflow += amount
	return nil
}

// Lock finalizes the month.
func (s *CurrencySummary) Lock() { s.locked = true }

// Clone returns an independent copy.
func (s *CurrencySummary) Clone() *CurrencySummary {
	cp := *s
	return &cp
}

// Snapshot returns the detached view.
func (s *CurrencySummary) Snapshot() Snapshot {
	return Snapshot{
		Month:         s.month.String(),
		Currency:      s.currency,
		Carryover:     s.carryover,
		Inflow:        s.inflow,
		Outflow:       s.outflow,
		Net:           s.Net(),
		Rate:          s.rate,
		USDEquivalent: s.USDEquivalent(),
		Locked:        s.locked,
	}
}
