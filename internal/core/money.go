// Package core provides money parsing and handling utilities.
//
// Monetary amounts are arbitrary-precision decimals. Carry-in chains can run
// across hundreds of months, so binary floats would make re-derivations of
// the same history disagree with each other; every money value in the engine
// goes through this type.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the additive identity for money values.
var Zero = decimal.Zero

// ParseAmount converts a user-entered amount into a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rejects empty, signed, non-numeric and non-positive inputs.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// MustAmount parses a decimal literal and panics on failure. Fixtures only.
func MustAmount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
