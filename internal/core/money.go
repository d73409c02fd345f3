// Package core provides the domain model for expense materialization:
// recurring templates, due occurrences, expense headers and line items,
// and the error taxonomy shared across the service layer.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum absolute difference accepted when reconciling a
// receipt's arithmetic identity, in currency units.
var Tolerance = decimal.New(2, -2) // 0.02

// ParseAmount converts a decimal string to a non-negative amount rounded to
// two decimal places. Accepts both dot and comma separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// AmountFromFloat rounds a JSON number to two decimal places.
func AmountFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// WithinTolerance reports whether two amounts agree within Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}
