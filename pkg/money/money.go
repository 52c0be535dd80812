// Package money converts between decimal text amounts and int64 minor units.
//
// Every balance in the service is stored as an integer count of minor units
// (two decimal places), so 30.00 is held as 3000. Decimal strings only appear
// at the edges: configuration files and JSON payloads.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by an amount.
const Scale = 2

var (
	ErrTooPrecise = errors.New("amount has more than two decimal places")
	ErrOverflow   = errors.New("amount out of range")

	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Parse converts a decimal string such as "30", "30.5" or "30.50" into minor units.
func Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts d into minor units, rejecting sub-cent precision.
func FromDecimal(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Round(Scale)) {
		return 0, ErrTooPrecise
	}
	shifted := d.Shift(Scale)
	if shifted.GreaterThan(maxMinor) || shifted.LessThan(minMinor) {
		return 0, ErrOverflow
	}
	return shifted.IntPart(), nil
}

// Format renders minor units with exactly two decimal places.
func Format(minor int64) string {
	return ToDecimal(minor).StringFixed(Scale)
}

// ToDecimal converts minor units back into a decimal value.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}
