package generic

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAmount_ExactUntilDisplayed(t *testing.T) {
	// GIVEN a rate times a fractional quantity
	pay := Money(decimal.RequireFromString("17.33").Mul(decimal.RequireFromString("2.5")))

	// WHEN it is added to another amount
	total := pay.Add(Money(decimal.RequireFromString("0.001")))

	// THEN the value stays exact and only Display rounds
	assert.Equal(t, "43.325 PLN", pay.String())
	assert.Equal(t, "43.33 PLN", pay.Display())
	assert.Equal(t, "43.326 PLN", total.String())
	assert.Equal(t, Currency, total.Unit)
	assert.False(t, pay.Equal(Amount{Value: pay.Value, Unit: "EUR"}), "units must match")
}
