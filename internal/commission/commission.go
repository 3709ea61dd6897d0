// Package commission derives referrer and host payouts from a payment amount.
package commission

import "github.com/shopspring/decimal"

// Commission rates, as fractions of the payment amount.
var (
	ReferralRate = decimal.RequireFromString("0.20")
	HostingRate  = decimal.RequireFromString("0.10")
)

// CurrencyPlaces is the number of fractional digits kept for every amount.
const CurrencyPlaces = 2

// Split is the result of a commission computation for one payment.
type Split struct {
	Amount   decimal.Decimal
	Referrer decimal.Decimal
	Host     decimal.Decimal
}

// Calculate computes the split for a payment amount. The referrer share is
// zero when the payment was not referred. All three values are rounded
// half away from zero to CurrencyPlaces.
func Calculate(amount decimal.Decimal, referred bool) Split {
	amount = Round(amount)

	s := Split{
		Amount:   amount,
		Referrer: decimal.Zero,
		Host:     Round(amount.Mul(HostingRate)),
	}
	if referred {
		s.Referrer = Round(amount.Mul(ReferralRate))
	}
	return s
}

// Round applies the currency rounding used throughout the pipeline.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// Format renders an amount with exactly CurrencyPlaces digits, e.g. "25.00".
func Format(d decimal.Decimal) string {
	return d.StringFixed(CurrencyPlaces)
}
