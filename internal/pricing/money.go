package pricing

import "math"

// Money represents a monetary value in rupiah. Stored amounts carry at most
// two decimal places; Round2 is applied before any clamp comparison.
type Money = float64

// Round2 rounds to two decimal places, away from zero on ties.
func Round2(v Money) Money {
	return math.Round(v*100) / 100
}

// ClampDiscount bounds a discount to [0, max].
func ClampDiscount(discount, max Money) Money {
	if discount < 0 {
		return 0
	}
	if max < 0 {
		max = 0
	}
	if discount > max {
		return max
	}
	return discount
}
