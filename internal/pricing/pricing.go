// Package pricing computes what a seat costs for a show.  All amounts
// are integer cents; the premium of a seat type is applied on top of
// the show's base price and rounded half-up to the cent so charged
// totals are deterministic.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPricingInput is returned for negative prices or premiums.
var ErrInvalidPricingInput = errors.New("invalid pricing input")

// SeatPrice returns baseCents * (1 + premiumPercent/100) rounded
// half-up to the cent.  For example a base of 9999 cents with a 10%
// premium is 10998.9 cents, charged as 10999.
func SeatPrice(baseCents int64, premiumPercent int) (int64, error) {
	if baseCents < 0 || premiumPercent < 0 {
		return 0, fmt.Errorf("%w: base=%d premium=%d", ErrInvalidPricingInput, baseCents, premiumPercent)
	}
	factor := int64(100 + premiumPercent)
	if baseCents > 0 && factor > (math.MaxInt64-50)/baseCents {
		return 0, fmt.Errorf("%w: amount overflows", ErrInvalidPricingInput)
	}
	return (baseCents*factor + 50) / 100, nil
}

// Total sums seat prices.
func Total(prices []int64) int64 {
	var sum int64
	for _, p := range prices {
		sum += p
	}
	return sum
}

// FormatCents renders cents as a decimal string with two places,
// e.g. 1500 -> "15.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
