// Package history is a pure transformation pipeline over saved
// reconciliation records: filter, search, sort, page, compare. It holds no
// state and performs no I/O.
package history

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	reconcile "cashdesk/internal/reconcile/domain"
)

// Column is one of the sortable history columns.
type Column string

const (
	ColDate              Column = "date"
	ColNetResult         Column = "net_result"
	ColDiscrepancy       Column = "discrepancy"
	ColDiscrepancyBottom Column = "discrepancy_bottom"
	ColExpenses          Column = "expenses"
	ColNetCash           Column = "net_cash"
	ColCurrentCash       Column = "current_cash"
)

// ErrUnknownColumn is returned for a sort column outside the seven known.
var ErrUnknownColumn = errors.New("history: unknown sort column")

// DefaultPageSize is used when a query does not set one.
const DefaultPageSize = 20

// Query describes one pass over the saved records. Zero values mean "no
// constraint": an empty From/To drops the date bound, an empty Search skips
// matching, an empty SortBy keeps date order.
type Query struct {
	From         reconcile.DayKey
	To           reconcile.DayKey
	BalancedOnly bool
	Search       string
	SortBy       Column
	Desc         bool
	Page         int
	PageSize     int
}

// PageResult is one window of the filtered records.
type PageResult struct {
	Records   []reconcile.Record
	Total     int
	Page      int
	PageCount int
}

// Browse filters, searches, sorts and pages the records. The input slice is
// not mutated; sorting is stable so equal keys keep their relative order.
func Browse(records []reconcile.Record, q Query) (PageResult, error) {
	filtered := make([]reconcile.Record, 0, len(records))
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, rec := range records {
		if q.From != "" && rec.Day < q.From.String() {
			continue
		}
		if q.To != "" && rec.Day > q.To.String() {
			continue
		}
		if q.BalancedOnly && rec.Outputs.DiscrepancyBottomUSD != 0 {
			continue
		}
		if needle != "" && !matches(rec, needle) {
			continue
		}
		filtered = append(filtered, rec)
	}

	if err := sortRecords(filtered, q.SortBy, q.Desc); err != nil {
		return PageResult{}, err
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	pageCount := (len(filtered) + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}
	if page > pageCount {
		page = pageCount
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return PageResult{
		Records:   filtered[start:end],
		Total:     len(filtered),
		Page:      page,
		PageCount: pageCount,
	}, nil
}

// matches reports whether the needle appears in the record's date or in any
// amount's string form.
func matches(rec reconcile.Record, needle string) bool {
	if strings.Contains(rec.Day, needle) {
		return true
	}
	for _, v := range amountsOf(rec) {
		if strings.Contains(formatAmount(v), needle) {
			return true
		}
	}
	return false
}

func sortRecords(records []reconcile.Record, col Column, desc bool) error {
	if col == "" {
		col = ColDate
	}

	var key func(reconcile.Record) float64
	switch col {
	case ColDate:
		sort.SliceStable(records, func(i, j int) bool {
			if desc {
				return records[i].Day > records[j].Day
			}
			return records[i].Day < records[j].Day
		})
		return nil
	case ColNetResult:
		key = func(r reconcile.Record) float64 { return r.Outputs.NetResultUSD }
	case ColDiscrepancy:
		key = func(r reconcile.Record) float64 { return r.Outputs.DiscrepancyUSD }
	case ColDiscrepancyBottom:
		key = func(r reconcile.Record) float64 { return r.Outputs.DiscrepancyBottomUSD }
	case ColExpenses:
		key = func(r reconcile.Record) float64 { return r.Inputs.ExpensesUSD }
	case ColNetCash:
		key = func(r reconcile.Record) float64 { return r.Inputs.NetCashUSD }
	case ColCurrentCash:
		key = func(r reconcile.Record) float64 { return r.Inputs.CurrentCashUSD }
	default:
		return ErrUnknownColumn
	}

	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return key(records[i]) > key(records[j])
		}
		return key(records[i]) < key(records[j])
	})
	return nil
}

func amountsOf(rec reconcile.Record) []float64 {
	return []float64{
		rec.Inputs.ExpensesUSD,
		rec.Inputs.RolloverUSD,
		rec.Inputs.NetCashUSD,
		rec.Inputs.CommissionsUSD,
		rec.Inputs.PreviousClosingUSD,
		rec.Inputs.CompanyCashUSD,
		rec.Inputs.CryptoBalanceUSD,
		rec.Inputs.PendingCollectionUSD,
		rec.Inputs.CurrentCashUSD,
		rec.Outputs.NetResultUSD,
		rec.Outputs.DiscrepancyUSD,
		rec.Outputs.DiscrepancyBottomUSD,
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
