// Package money validates currency amounts: two decimal places, stored as numeric(12,2).
package money

import (
	"fmt"

	"cashadvance/pkg/apperr"

	"github.com/shopspring/decimal"
)

// Max is the largest value a numeric(12,2) column holds.
var Max = decimal.RequireFromString("9999999999.99")

// Positive checks a required amount that must be greater than zero.
func Positive(field string, v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, apperr.Validation(field + " is required")
	}
	if !v.IsPositive() {
		return decimal.Zero, apperr.Validation(field + " must be greater than 0")
	}
	return checkScale(field, *v)
}

// NonNegative checks an optional amount; nil means zero.
func NonNegative(field string, v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	if v.IsNegative() {
		return decimal.Zero, apperr.Validation(field + " must not be negative")
	}
	return checkScale(field, *v)
}

func checkScale(field string, v decimal.Decimal) (decimal.Decimal, error) {
	if !v.Equal(v.Round(2)) {
		return decimal.Zero, apperr.Validation(field + " must have at most 2 decimal places")
	}
	if v.GreaterThan(Max) {
		return decimal.Zero, apperr.Validation(fmt.Sprintf("%s must not exceed %s", field, Max.StringFixed(2)))
	}
	return v.Round(2), nil
}
