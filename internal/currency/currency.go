// Package currency provides fixed-point monetary conversion for the
// reconciliation engine. Rates are a static table pegged to USD; the engine
// compares cross-currency amounts by pivoting both sides through USD rather
// than calling out to a rate service mid-run.
package currency

import (
	"github.com/shopspring/decimal"
)

// usdRates maps a currency code to the USD value of one unit.
var usdRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"MXN": decimal.NewFromFloat(0.058),
	"COP": decimal.NewFromFloat(0.00025),
	"BRL": decimal.NewFromFloat(0.20),
}

var hundred = decimal.NewFromInt(100)

// IsSupported reports whether the engine carries a pinned rate for the code.
func IsSupported(code string) bool {
	_, ok := usdRates[code]
	return ok
}

// RateToUSD returns the USD value of one unit of the given currency.
// Unknown currencies fall back to parity so a bad code degrades to a
// same-currency comparison instead of poisoning the whole run.
func RateToUSD(code string) decimal.Decimal {
	if rate, ok := usdRates[code]; ok {
		return rate
	}
	return decimal.NewFromInt(1)
}

// ToUSD converts an amount in the given currency to its USD value.
func ToUSD(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Mul(RateToUSD(code))
}

// Convert moves an amount from one currency to another through the USD
// pivot. A zero target rate returns the USD value unchanged rather than
// dividing by zero.
func Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	usd := ToUSD(amount, from)
	target := RateToUSD(to)
	if target.IsZero() {
		return usd
	}
	return usd.Div(target)
}

// PercentDiff returns the relative difference of counterpart against base,
// as a percentage of base. The boolean is false when the comparison is
// meaningless: a zero base against a non-zero counterpart has no finite
// relative difference and callers must treat the pair as not comparable.
// Two zero amounts are an exact match.
func PercentDiff(base, counterpart decimal.Decimal) (decimal.Decimal, bool) {
	if base.IsZero() {
		if counterpart.IsZero() {
			return decimal.Zero, true
		}
		return decimal.Zero, false
	}
	return counterpart.Sub(base).Abs().Div(base.Abs()).Mul(hundred), true
}

// PercentDiffUSD compares two amounts in different currencies by first
// normalizing both to USD.
func PercentDiffUSD(baseAmount decimal.Decimal, baseCode string, counterpartAmount decimal.Decimal, counterpartCode string) (decimal.Decimal, bool) {
	return PercentDiff(ToUSD(baseAmount, baseCode), ToUSD(counterpartAmount, counterpartCode))
}
