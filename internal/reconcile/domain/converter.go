package reconcile

import "math"

// Conversion holds one amount expressed in the three dashboard units.
// Stablecoin is always numerically equal to USD (hard peg).
type Conversion struct {
	TRY        float64 `json:"try"`
	USD        float64 `json:"usd"`
	Stablecoin float64 `json:"stablecoin"`
}

// Convert maps an amount in the source currency to all three units using the
// per-date USD/TRY rate. When enabled is false the converter is switched off
// by the operator: only the source slot is populated and the other two stay
// zero. Pure; no side effects.
func Convert(amount float64, source Currency, rate float64, enabled bool) (Conversion, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return Conversion{}, ErrInvalidRate
	}

	if !enabled {
		var c Conversion
		switch source {
		case CurrencyTRY:
			c.TRY = amount
		case CurrencyUSD:
			c.USD = amount
		case CurrencyStablecoin:
			c.Stablecoin = amount
		default:
			return Conversion{}, ErrUnknownCurrency
		}
		return c, nil
	}

	switch source {
	case CurrencyUSD, CurrencyStablecoin:
		return Conversion{TRY: amount * rate, USD: amount, Stablecoin: amount}, nil
	case CurrencyTRY:
		usd := amount / rate
		return Conversion{TRY: amount, USD: usd, Stablecoin: usd}, nil
	}
	return Conversion{}, ErrUnknownCurrency
}
