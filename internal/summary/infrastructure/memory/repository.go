package memory

import (
	"context"
	"sync"

	summary "cashdesk/internal/summary/domain"
)

type key struct {
	month    summary.MonthKey
	currency string
}

// SummaryRepository is an in-memory repository for monthly rollups.
type SummaryRepository struct {
	mu   sync.RWMutex
	data map[key]*summary.CurrencySummary
}

// NewSummaryRepository constructs a repository.
func NewSummaryRepository() *SummaryRepository {
	return &SummaryRepository{data: make(map[key]*summary.CurrencySummary)}
}

// FindByMonthAndCurrency loads one rollup, nil when absent.
func (r *SummaryRepository) FindByMonthAndCurrency(ctx context.Context, month summary.MonthKey, currency string) (*summary.CurrencySummary, error) {
	_ = ctx
	r.mu.RLock()
	s := r.data[key{month: month, currency: currency}]
	r.mu.RUnlock()
	if s == nil {
		return nil, nil
	}
	return s.Clone(), nil
}

// ListByMonth returns every currency's rollup for the month.
func (r *SummaryRepository) ListByMonth(ctx context.Context, month summary.MonthKey) ([]*summary.CurrencySummary, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*summary.CurrencySummary
	for k, s := range r.data {
		if k.month == month {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

// Save persists a rollup (overwrites existing).
func (r *SummaryRepository) Save(ctx context.Context, s *summary.CurrencySummary) error {
	_ = ctx
	if s == nil {
		return summary.ErrNilSummary
	}
	copy := s.Clone()
	r.mu.Lock()
	r.data[key{month: s.Month(), currency: s.Currency()}] = copy
	r.mu.Unlock()
	return nil
}
