package reconcile

import "math"

// GrossBalance is the fallback per-date gross balance derived from the raw
// ledger when no authoritative figure exists upstream.
type GrossBalance struct {
	TRYNet   float64
	USDNet   float64
	USDGross float64
	TRYGross float64
	// Invalid counts lines in neither the TRY nor the USD partition.
	Invalid int
}

// ComputeGrossBalance nets the day's ledger lines per currency and derives
// the two gross figures. The USD figure is always computed first and the TRY
// figure derived from it; the two must stay consistent by construction.
// Re-summing TRY independently would let rounding drift desynchronize the
// reported balances for the same date.
func ComputeGrossBalance(day DayKey, lines []LedgerLine, rate float64) (GrossBalance, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return GrossBalance{}, ErrInvalidRate
	}

	var out GrossBalance
	for _, line := range lines {
		if line.Day != day {
			continue
		}
		if math.IsNaN(line.Amount) {
			out.Invalid++
			continue
		}
		signed := math.Abs(line.Amount)
		if line.Category == TxnWithdraw {
			signed = -signed
		}
		switch line.Currency {
		case CurrencyTRY:
			out.TRYNet += signed
		case CurrencyUSD, CurrencyStablecoin:
			out.USDNet += signed
		default:
			out.Invalid++
		}
	}

	// USD first, TRY derived. The order is the contract.
	out.USDGross = out.TRYNet/rate + out.USDNet
	out.TRYGross = out.USDGross * rate
	return out, nil
}
