package reconcile

import (
	"math"
	"strings"
)

// Currency identifies a ledger currency.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyTRY Currency = "TRY"
	CurrencyEUR Currency = "EUR"

	// CurrencyStablecoin is pegged 1:1 to USD.
	CurrencyStablecoin Currency = "USDT"
)

// EUR has no per-date rate source upstream; it is approximated with a fixed
// USD factor.
const eurUSDFactor = 1.08

// NormalizeCurrency maps ledger spellings onto canonical codes. The imported
// ledger writes the local currency as either "TRY" or "TL".
func NormalizeCurrency(raw string) Currency {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "USD":
		return CurrencyUSD
	case "TRY", "TL":
		return CurrencyTRY
	case "EUR":
		return CurrencyEUR
	case "USDT", "STABLE":
		return CurrencyStablecoin
	}
	return Currency(strings.ToUpper(strings.TrimSpace(raw)))
}

// ToUSD converts a signed amount into USD using the per-date USD/TRY rate.
func ToUSD(amount float64, currency Currency, rate float64) (float64, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return 0, ErrInvalidRate
	}
	switch currency {
	case CurrencyUSD, CurrencyStablecoin:
		return amount, nil
	case CurrencyTRY:
		return amount / rate, nil
	case CurrencyEUR:
		return amount * eurUSDFactor, nil
	}
	return 0, ErrUnknownCurrency
}
