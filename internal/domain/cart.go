package domain

import (
	"time"

	"github.com/fjod/go_storefront/internal/pricing"
)

const DefaultPaymentMethod = "PayPal"

type CartItem struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	UnitPrice    float64 `json:"unit_price"`
	Qty          int     `json:"qty"`
	StockCeiling int     `json:"stock_ceiling"`
}

// Cart is the pre-order basket of one session. The money fields are derived and always
// recomputed together.
type Cart struct {
	UserID          string          `json:"user_id"`
	Items           []CartItem      `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	pricing.Breakdown
	UpdatedAt time.Time `json:"updated_at"`
}

func NewCart(userID string) *Cart {
	c := &Cart{UserID: userID, Items: []CartItem{}, PaymentMethod: DefaultPaymentMethod}
	c.Reprice()
	return c
}

// Reprice recomputes the four money fields from the current lines.
func (c *Cart) Reprice() {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, pricing.Line{UnitPrice: item.UnitPrice, Qty: item.Qty})
	}
	c.Breakdown = pricing.Calculate(lines)
}

// Add merges qty of p into the cart, capping the line at the product's current stock.
func (c *Cart) Add(p *Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if p.CountInStock < 1 {
		return ErrInsufficientStock
	}

	for i := range c.Items {
		if c.Items[i].ProductID == p.ID {
			c.Items[i].Qty = min(c.Items[i].Qty+qty, p.CountInStock)
			c.Items[i].UnitPrice = p.Price
			c.Items[i].StockCeiling = p.CountInStock
			c.Reprice()
			return nil
		}
	}

	c.Items = append(c.Items, CartItem{
		ProductID:    p.ID,
		Name:         p.Name,
		Image:        p.Image,
		UnitPrice:    p.Price,
		Qty:          min(qty, p.CountInStock),
		StockCeiling: p.CountInStock,
	})
	c.Reprice()
	return nil
}

// SetQuantity requires 1 <= qty <= the line's stock ceiling.
func (c *Cart) SetQuantity(productID string, qty int) error {
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		if qty < 1 || qty > c.Items[i].StockCeiling {
			return ErrInvalidQuantity
		}
		c.Items[i].Qty = qty
		c.Reprice()
		return nil
	}
	return ErrCartItemNotFound
}

func (c *Cart) Remove(productID string) {
	items := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			items = append(items, item)
		}
	}
	c.Items = items
	c.Reprice()
}
