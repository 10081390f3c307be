package application

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	ledger "cashdesk/internal/ledger/domain"
	summary "cashdesk/internal/summary/domain"
)

// Repository stores monthly rollups.
type Repository interface {
	FindByMonthAndCurrency(ctx context.Context, month summary.MonthKey, currency string) (*summary.CurrencySummary, error)
	ListByMonth(ctx context.Context, month summary.MonthKey) ([]*summary.CurrencySummary, error)
	Save(ctx context.Context, s *summary.CurrencySummary) error
}

// Service maintains the per-month, per-currency rollups from the imported
// ledger. A locked month is never rebuilt.
type Service struct {
	repo   Repository
	txns   ledger.TransactionReader
	logger *log.Logger
}

// NewService constructs the summary service.
func NewService(repo Repository, txns ledger.TransactionReader, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("summary service: nil repository")
	}
	if txns == nil {
		return nil, errors.New("summary service: nil transaction reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, txns: txns, logger: logger}, nil
}

// Rebuild recomputes the month's flows from the ledger, one rollup per
// currency seen. Existing carryovers survive; locked rollups are left
// untouched.
func (s *Service) Rebuild(ctx context.Context, month summary.MonthKey, rate float64) ([]summary.Snapshot, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return nil, summary.ErrInvalidRate
	}
	monthStart, err := time.Parse("2006-01", month.String())
	if err != nil {
		return nil, summary.ErrInvalidMonth
	}

	type flows struct{ in, out float64 }
	byCurrency := make(map[string]*flows)

	for day := monthStart; day.Month() == monthStart.Month(); day = day.AddDate(0, 0, 1) {
		txns, err := s.txns.ListTransactionsByDay(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, txn := range txns {
			if math.IsNaN(txn.Amount) {
				continue
			}
			f := byCurrency[txn.Currency]
			if f == nil {
				f = &flows{}
				byCurrency[txn.Currency] = f
			}
			if txn.Category == ledgerWithdraw {
				f.out += math.Abs(txn.Amount)
			} else {
				f.in += math.Abs(txn.Amount)
			}
		}
	}

	var snaps []summary.Snapshot
	for currency, f := range byCurrency {
		existing, err := s.repo.FindByMonthAndCurrency(ctx, month, currency)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Locked() {
			s.logger.Printf("summary: month=%s currency=%s locked, skipping rebuild", month, currency)
			snaps = append(snaps, existing.Snapshot())
			continue
		}

		carryover := 0.0
		if existing != nil {
			carryover = existing.Snapshot().Carryover
		}
		rollup, err := summary.NewCurrencySummary(month, currency, rate)
		if err != nil {
			return nil, err
		}
		if err := rollup.SetCarryover(carryover); err != nil {
			return nil, err
		}
		if err := rollup.AddInflow(f.in); err != nil {
			return nil, err
		}
		if err := rollup.AddOutflow(f.out); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, rollup); err != nil {
			return nil, err
		}
		snaps = append(snaps, rollup.Snapshot())
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Currency < snaps[j].Currency })
	return snaps, nil
}

// SetCarryover edits a rollup's opening balance. Locked months refuse.
func (s *Service) SetCarryover(ctx context.Context, month summary.MonthKey, currency string, amount float64) (summary.Snapshot, error) {
	rollup, err := s.repo.FindByMonthAndCurrency(ctx, month, currency)
	if err != nil {
		return summary.Snapshot{}, err
	}
	if rollup == nil {
		return summary.Snapshot{}, summary.ErrUnknownCurrency
	}
	if err := rollup.SetCarryover(amount); err != nil {
		return summary.Snapshot{}, err
	}
	if err := s.repo.Save(ctx, rollup); err != nil {
		return summary.Snapshot{}, err
	}
	return rollup.Snapshot(), nil
}

// LockMonth finalizes every rollup of the month.
func (s *Service) LockMonth(ctx context.Context, month summary.MonthKey) error {
	rollups, err := s.repo.ListByMonth(ctx, month)
	if err != nil {
		return err
	}
	for _, rollup := range rollups {
		rollup.Lock()
		if err := s.repo.Save(ctx, rollup); err != nil {
			return err
		}
	}
	return nil
}

// ListMonth returns the month's rollups sorted by currency.
func (s *Service) ListMonth(ctx context.Context, month summary.MonthKey) ([]summary.Snapshot, error) {
	rollups, err := s.repo.ListByMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	snaps := make([]summary.Snapshot, 0, len(rollups))
	for _, rollup := range rollups {
		snaps = append(snaps, rollup.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Currency < snaps[j].Currency })
	return snaps, nil
}

// ledgerWithdraw mirrors the imported ledger's withdrawal category code.
const ledgerWithdraw = "WD"
