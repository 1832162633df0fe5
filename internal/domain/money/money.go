// Package money holds the rounding policy shared by every monetary
// computation in the pricing engine.
package money

import "github.com/shopspring/decimal"

// Places is the number of fractional digits kept for every amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds d half up to two fractional digits. Amounts handled by the
// engine are non-negative, where shopspring's half-away-from-zero rounding
// is identical to half up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Line returns the rounded total of a unit price times a quantity.
func Line(price decimal.Decimal, qty int) decimal.Decimal {
	return Round(price.Mul(decimal.NewFromInt(int64(qty))))
}

// Percent returns the rounded value of pct percent of base.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

// Add returns the rounded sum of a and b.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Add(b))
}

// Sub returns the rounded difference a - b.
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Sub(b))
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
