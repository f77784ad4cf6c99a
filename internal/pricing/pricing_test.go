package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculate_UnderThreshold(t *testing.T) {
	b := Calculate([]Line{
		{UnitPrice: 30, Qty: 2},
		{UnitPrice: 25, Qty: 1},
	})

	assert.Equal(t, 85.00, b.ItemsPrice)
	assert.Equal(t, 9.99, b.ShippingPrice)
	assert.Equal(t, 8.50, b.TaxPrice)
	assert.Equal(t, 103.49, b.TotalPrice)
}

func TestCalculate_ThresholdIsStrict(t *testing.T) {
	atThreshold := Calculate([]Line{{UnitPrice: 100, Qty: 1}})
	assert.Equal(t, 100.00, atThreshold.ItemsPrice)
	assert.Equal(t, 9.99, atThreshold.ShippingPrice)
	assert.Equal(t, 10.00, atThreshold.TaxPrice)
	assert.Equal(t, 119.99, atThreshold.TotalPrice)

	overThreshold := Calculate([]Line{{UnitPrice: 100.01, Qty: 1}})
	assert.Equal(t, 100.01, overThreshold.ItemsPrice)
	assert.Equal(t, 0.0, overThreshold.ShippingPrice)
	assert.Equal(t, 10.00, overThreshold.TaxPrice)
	assert.Equal(t, 110.01, overThreshold.TotalPrice)
}

func TestCalculate_Empty(t *testing.T) {
	b := Calculate(nil)

	assert.Equal(t, 0.0, b.ItemsPrice)
	assert.Equal(t, 9.99, b.ShippingPrice)
	assert.Equal(t, 0.0, b.TaxPrice)
	assert.Equal(t, 9.99, b.TotalPrice)
}

func TestCalculate_TaxRoundsHalfUp(t *testing.T) {
	// 0.25 * 0.10 = 0.025 -> 0.03
	b := Calculate([]Line{{UnitPrice: 0.25, Qty: 1}})
	assert.Equal(t, 0.03, b.TaxPrice)
	assert.Equal(t, 10.27, b.TotalPrice)
}

func TestCalculate_FloatPricesDoNotDrift(t *testing.T) {
	b := Calculate([]Line{{UnitPrice: 0.1, Qty: 3}, {UnitPrice: 0.2, Qty: 1}})
	assert.Equal(t, 0.5, b.ItemsPrice)
}

func TestCalculate_TotalEqualsSumOfParts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		n := rng.Intn(6)
		lines := make([]Line, n)
		for j := range lines {
			cents := rng.Intn(50000)
			lines[j] = Line{UnitPrice: float64(cents) / 100, Qty: rng.Intn(10)}
		}

		b := Calculate(lines)

		sum := decimal.NewFromFloat(b.ItemsPrice).
			Add(decimal.NewFromFloat(b.ShippingPrice)).
			Add(decimal.NewFromFloat(b.TaxPrice))
		assert.True(t, sum.Equal(decimal.NewFromFloat(b.TotalPrice)),
			"lines %v: %v + %v + %v != %v", lines, b.ItemsPrice, b.ShippingPrice, b.TaxPrice, b.TotalPrice)
	}
}

func TestRules_Custom(t *testing.T) {
	rules := Rules{
		FreeShippingOver: decimal.NewFromInt(50),
		FlatShipping:     decimal.NewFromInt(5),
		TaxRate:          decimal.RequireFromString("0.2"),
	}

	b := rules.Calculate([]Line{{UnitPrice: 60, Qty: 1}})

	assert.Equal(t, 60.0, b.ItemsPrice)
	assert.Equal(t, 0.0, b.ShippingPrice)
	assert.Equal(t, 12.0, b.TaxPrice)
	assert.Equal(t, 72.0, b.TotalPrice)
}
