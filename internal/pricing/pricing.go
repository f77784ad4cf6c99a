package pricing

import "github.com/shopspring/decimal"

// Line is one priced line of a cart or order.
type Line struct {
	UnitPrice float64
	Qty       int
}

// Breakdown holds the four derived money values. They are always produced together so that
// TotalPrice == ItemsPrice + ShippingPrice + TaxPrice holds to the cent.
type Breakdown struct {
	ItemsPrice    float64 `json:"items_price" bson:"items_price"`
	ShippingPrice float64 `json:"shipping_price" bson:"shipping_price"`
	TaxPrice      float64 `json:"tax_price" bson:"tax_price"`
	TotalPrice    float64 `json:"total_price" bson:"total_price"`
}

// Rules configures the shipping threshold, flat shipping fee and tax rate.
type Rules struct {
	FreeShippingOver decimal.Decimal // strict: itemsPrice must exceed it
	FlatShipping     decimal.Decimal
	TaxRate          decimal.Decimal
}

var DefaultRules = Rules{
	FreeShippingOver: decimal.NewFromInt(100),
	FlatShipping:     decimal.RequireFromString("9.99"),
	TaxRate:          decimal.RequireFromString("0.10"),
}

// Calculate prices lines with DefaultRules.
func Calculate(lines []Line) Breakdown {
	return DefaultRules.Calculate(lines)
}

func (r Rules) Calculate(lines []Line) Breakdown {
	items := decimal.Zero
	for _, l := range lines {
		items = items.Add(decimal.NewFromFloat(l.UnitPrice).Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	items = Round2(items)

	shipping := r.FlatShipping
	if items.GreaterThan(r.FreeShippingOver) {
		shipping = decimal.Zero
	}
	shipping = Round2(shipping)

	tax := Round2(items.Mul(r.TaxRate))
	total := Round2(items.Add(shipping).Add(tax))

	return Breakdown{
		ItemsPrice:    items.InexactFloat64(),
		ShippingPrice: shipping.InexactFloat64(),
		TaxPrice:      tax.InexactFloat64(),
		TotalPrice:    total.InexactFloat64(),
	}
}

// Round2 rounds half away from zero on the cent boundary, which is half-up for money.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
