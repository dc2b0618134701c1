// Package moneypkg converts between decimal amounts and integer minor units.
//
// Every supported currency has two fractional digits, so one minor unit is 0.01.
// Arithmetic on balances and shares is done on int64 minor units; decimals are
// only used at the boundaries (requests, responses, rate multiplication).
package moneypkg

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits of a minor unit.
const Scale = 2

var (
	// ErrTooPrecise indicates an amount with more fractional digits than Scale.
	ErrTooPrecise = errors.New("amount has more than 2 decimal places")
	// ErrOverflow indicates an amount that does not fit into int64 minor units.
	ErrOverflow = errors.New("amount out of range")
)

var maxMinor = decimal.NewFromInt(1<<62 - 1)

// ToMinor returns d expressed in minor units. d must not carry sub-minor precision.
func ToMinor(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(Scale)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrTooPrecise
	}

	if shifted.Abs().GreaterThan(maxMinor) {
		return 0, ErrOverflow
	}

	return shifted.IntPart(), nil
}

// FromMinor returns the decimal amount for m minor units.
func FromMinor(m int64) decimal.Decimal {
	return decimal.New(m, -Scale)
}

// Round rounds d to Scale places using round-half-to-even.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Scale)
}

// Parse parses a decimal amount string with at most Scale decimals. The sign is left to callers.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}

	if _, err := ToMinor(d); err != nil {
		return decimal.Zero, err
	}

	return d, nil
}
