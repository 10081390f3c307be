package history

import reconcile "cashdesk/internal/reconcile/domain"

// FieldDelta is one field's movement between two compared records.
type FieldDelta struct {
	Field    string  `json:"field"`
	Baseline float64 `json:"baseline"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
	PctDelta float64 `json:"pct_delta"`
}

// Comparison is a pairwise diff between a baseline day and a current day.
type Comparison struct {
	BaselineDay string       `json:"baseline_day"`
	CurrentDay  string       `json:"current_day"`
	Fields      []FieldDelta `json:"fields"`
}

// Compare computes per-field deltas from baseline to current. A percentage
// delta against a zero baseline is 0, not infinite.
func Compare(baseline, current reconcile.Record) Comparison {
	cmp := Comparison{
		BaselineDay: baseline.Day,
		CurrentDay:  current.Day,
	}

	pairs := []struct {
		field string
		a, b  float64
	}{
		{"expenses_usd", baseline.Inputs.ExpensesUSD, current.Inputs.ExpensesUSD},
		{"rollover_usd", baseline.Inputs.RolloverUSD, current.Inputs.RolloverUSD},
		{"net_cash_usd", baseline.Inputs.NetCashUSD, current.Inputs.NetCashUSD},
		{"commissions_usd", baseline.Inputs.CommissionsUSD, current.Inputs.CommissionsUSD},
		{"previous_closing_usd", baseline.Inputs.PreviousClosingUSD, current.Inputs.PreviousClosingUSD},
		{"company_cash_usd", baseline.Inputs.CompanyCashUSD, current.Inputs.CompanyCashUSD},
		{"crypto_balance_usd", baseline.Inputs.CryptoBalanceUSD, current.Inputs.CryptoBalanceUSD},
		{"pending_collection_usd", baseline.Inputs.PendingCollectionUSD, current.Inputs.PendingCollectionUSD},
		{"current_cash_usd", baseline.Inputs.CurrentCashUSD, current.Inputs.CurrentCashUSD},
		{"net_result_usd", baseline.Outputs.NetResultUSD, current.Outputs.NetResultUSD},
		{"discrepancy_usd", baseline.Outputs.DiscrepancyUSD, current.Outputs.DiscrepancyUSD},
		{"discrepancy_bottom_usd", baseline.Outputs.DiscrepancyBottomUSD, current.Outputs.DiscrepancyBottomUSD},
	}

	for _, p := range pairs {
		cmp.Fields = append(cmp.Fields, FieldDelta{
			Field:    p.field,
			Baseline: p.a,
			Current:  p.b,
			Delta:    p.b - p.a,
			PctDelta: pctDelta(p.a, p.b),
		})
	}
	return cmp
}

func pctDelta(baseline, current float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (current - baseline) / baseline * 100
}
