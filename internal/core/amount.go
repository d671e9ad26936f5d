package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotANumber is returned when an amount string is not a finite decimal.
var ErrNotANumber = errors.New("amount is not a number")

// Amounts are bounded by the float64 range: magnitudes of 1e309 and above
// are not finite, those below 1e-400 round to zero.
const (
	maxAmountExponent = 308
	minAmountExponent = -400
)

// ParseAmount parses a finite decimal such as "75.50", "5000" or "-3".
//
// Sign is not checked here; callers decide whether zero or negative values
// are acceptable. Values like "NaN", "Inf", "1e400" or "1,5" are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotANumber
	}
	if d.IsZero() || magnitude(d) < minAmountExponent {
		return decimal.Zero, nil
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmount rejects decimals outside the finite float64 range, including
// ones so small that they would round to zero.
func CheckAmount(d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	if m := magnitude(d); m > maxAmountExponent || m < minAmountExponent {
		return ErrNotANumber
	}
	return nil
}

// magnitude is the base-10 exponent of the leading digit of a non-zero d.
func magnitude(d decimal.Decimal) int64 {
	return int64(d.Exponent()) + int64(d.NumDigits()) - 1
}

// ParsePositiveAmount is ParseAmount plus the editor's amount > 0 rule.
func ParsePositiveAmount(s string) (decimal.Decimal, error) {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
