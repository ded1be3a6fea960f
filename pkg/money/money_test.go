package money

import (
	"testing"

	"cashadvance/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPositive(t *testing.T) {
	v, err := Positive("amount", dec("500"))
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.NewFromInt(500)))

	v, err = Positive("amount", dec("12.50"))
	require.NoError(t, err)
	assert.Equal(t, "12.5", v.String())

	for _, bad := range []string{"0", "-1", "0.001", "10000000000"} {
		_, err := Positive("amount", dec(bad))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), bad)
	}

	_, err = Positive("amount", nil)
	assert.EqualError(t, err, "amount is required")
}

func TestNonNegative(t *testing.T) {
	v, err := NonNegative("tip", nil)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = NonNegative("tip", dec("0"))
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = NonNegative("tip", dec("-0.01"))
	assert.EqualError(t, err, "tip must not be negative")

	_, err = NonNegative("tip", dec("1.005"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
