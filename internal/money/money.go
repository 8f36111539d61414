// Package money provides the numeric helpers shared by the receipt ingestion
// and the settlement calculator: finite-number coercion, cent rounding and
// currency formatting.
//
// Calculations stay in float64 (shares are never pre-rounded); decimal
// arithmetic is only used where a value is compared or displayed at the cent
// level.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference still considered "the same amount".
const Tolerance = 0.01

// Finite returns v, or 0 if v is NaN or ±Inf.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// RoundCents rounds v half away from zero to two decimal places.
func RoundCents(v float64) float64 {
	return decimal.NewFromFloat(Finite(v)).Round(2).InexactFloat64()
}

// Cents converts v to a whole number of cents.
func Cents(v float64) int64 {
	return decimal.NewFromFloat(Finite(v)).Shift(2).Round(0).IntPart()
}

// SameCents reports whether a and b round to the same number of cents.
func SameCents(a, b float64) bool {
	return Cents(a) == Cents(b)
}

// Sum adds values exactly at decimal precision, skipping non-finite ones.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(Finite(v)))
	}
	return total.InexactFloat64()
}

// Format renders v with the currency symbol, e.g. "$12.34" or "-€0.50".
func Format(v float64, symbol string) string {
	d := decimal.NewFromFloat(Finite(v)).Round(2)
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(2)
	}
	return symbol + d.StringFixed(2)
}
