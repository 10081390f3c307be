package history

import (
	"testing"

	reconcile "cashdesk/internal/reconcile/domain"
)

func sampleRecords() []reconcile.Record {
	return []reconcile.Record{
		{
			Day:     "2024-03-01",
			Inputs:  reconcile.Inputs{ExpensesUSD: 120, NetCashUSD: 900, CurrentCashUSD: 1750},
			Outputs: reconcile.Outputs{NetResultUSD: 250, DiscrepancyBottomUSD: 0},
		},
		{
			Day:     "2024-03-02",
			Inputs:  reconcile.Inputs{ExpensesUSD: 80, NetCashUSD: 1100, CurrentCashUSD: 1600},
			Outputs: reconcile.Outputs{NetResultUSD: -30, DiscrepancyBottomUSD: 12.5},
		},
		{
			Day:     "2024-03-03",
			Inputs:  reconcile.Inputs{ExpensesUSD: 80, NetCashUSD: 500, CurrentCashUSD: 2000},
			Outputs: reconcile.Outputs{NetResultUSD: 400, DiscrepancyBottomUSD: 0},
		},
		{
			Day:     "2024-04-10",
			Inputs:  reconcile.Inputs{ExpensesUSD: 0, NetCashUSD: 0, CurrentCashUSD: 0},
			Outputs: reconcile.Outputs{NetResultUSD: 0, DiscrepancyBottomUSD: -4},
		},
	}
}

func days(records []reconcile.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Day
	}
	return out
}

func equalDays(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBrowseDateRangeFilter(t *testing.T) {
	res, err := Browse(sampleRecords(), Query{
		From: "2024-03-02",
		To:   "2024-03-31",
	})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if got := days(res.Records); !equalDays(got, "2024-03-02", "2024-03-03") {
		t.Errorf("days = %v, want [2024-03-02 2024-03-03]", got)
	}
}

func TestBrowseBalancedOnly(t *testing.T) {
	res, err := Browse(sampleRecords(), Query{BalancedOnly: true})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if got := days(res.Records); !equalDays(got, "2024-03-01", "2024-03-03") {
		t.Errorf("days = %v, want the two zero-bottom-discrepancy days", got)
	}
}

func TestBrowseSearchMatchesDateAndAmounts(t *testing.T) {
	res, err := Browse(sampleRecords(), Query{Search: "04-10"})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if got := days(res.Records); !equalDays(got, "2024-04-10") {
		t.Errorf("date search days = %v, want [2024-04-10]", got)
	}

	res, err = Browse(sampleRecords(), Query{Search: "1750"})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if got := days(res.Records); !equalDays(got, "2024-03-01") {
		t.Errorf("amount search days = %v, want [2024-03-01]", got)
	}
}

func TestBrowseSortStableAndToggleable(t *testing.T) {
	res, err := Browse(sampleRecords(), Query{SortBy: ColExpenses})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	// The two 80s keep their original relative order.
	if got := days(res.Records); !equalDays(got, "2024-04-10", "2024-03-02", "2024-03-03", "2024-03-01") {
		t.Errorf("ascending days = %v", got)
	}

	res, err = Browse(sampleRecords(), Query{SortBy: ColNetResult, Desc: true})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if got := days(res.Records); !equalDays(got, "2024-03-03", "2024-03-01", "2024-04-10", "2024-03-02") {
		t.Errorf("descending days = %v", got)
	}
}

func TestBrowseUnknownColumn(t *testing.T) {
	if _, err := Browse(sampleRecords(), Query{SortBy: "color"}); err != ErrUnknownColumn {
		t.Errorf("Browse() error = %v, want ErrUnknownColumn", err)
	}
}

func TestBrowsePaging(t *testing.T) {
	res, err := Browse(sampleRecords(), Query{PageSize: 3, Page: 2})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if res.Total != 4 || res.PageCount != 2 || res.Page != 2 {
		t.Errorf("paging meta = %+v", res)
	}
	if got := days(res.Records); !equalDays(got, "2024-04-10") {
		t.Errorf("page 2 days = %v, want [2024-04-10]", got)
	}

	// A page past the end clamps to the last page.
	res, err = Browse(sampleRecords(), Query{PageSize: 3, Page: 99})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if res.Page != 2 {
		t.Errorf("clamped page = %d, want 2", res.Page)
	}
}

func TestBrowseEmptyInput(t *testing.T) {
	res, err := Browse(nil, Query{})
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if res.Total != 0 || len(res.Records) != 0 || res.PageCount != 1 {
		t.Errorf("empty browse = %+v", res)
	}
}
