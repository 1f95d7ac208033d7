// Package core provides the domain records and money handling shared by
// the ledger, storage, import and HTTP layers.
//
// Amounts are decimal currency units (euros) throughout the domain.
// Minor-unit (cent) representations only exist at the storage and CSV
// import boundaries; the helpers below convert between the two.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns ErrInvalidAmount for empty input, signed input, zero, or
// anything that is not a plain decimal number.
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
	if d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// AmountFromCents converts a minor-unit value from storage or CSV import
// into a decimal currency amount (1234 -> 12.34).
func AmountFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// CentsFromAmount converts a decimal amount back to minor units for
// storage, with half-up rounding on sub-cent fractions.
func CentsFromAmount(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// Remaining returns the open amount on a partially paid record,
// floored at zero. amountPaid above amount never produces negative
// debt, it is clamped instead of propagated.
func Remaining(amount, amountPaid decimal.Decimal) decimal.Decimal {
	r := amount.Sub(amountPaid)
	if r.Sign() < 0 {
		return decimal.Zero
	}
	return r
}

// FormatEuros renders an amount for logs and API responses ("-€12,34").
func FormatEuros(d decimal.Decimal) string {
	cents := CentsFromAmount(d)
	neg := cents < 0
	if neg {
		cents = -cents
	}
	euros := cents / 100
	rem := cents % 100
	s := fmt.Sprintf("%d,%02d", euros, rem)
	if neg {
		return "-€" + s
	}
	return "€" + s
}
