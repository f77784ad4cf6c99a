package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// ParseOrderStatus accepts exactly one of the five workflow labels.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Qty       int     `json:"qty"`
}

type ShippingAddress struct {
	Address    string `json:"address" bson:"address"`
	City       string `json:"city" bson:"city"`
	PostalCode string `json:"postal_code" bson:"postal_code"`
	Country    string `json:"country" bson:"country"`
}

// Complete reports whether every address field is filled in.
func (a ShippingAddress) Complete() bool {
	for _, f := range []string{a.Address, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// PaymentResult is the gateway payload recorded on payment confirmation. Its content is
// not interpreted.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	ItemsPrice      float64         `json:"items_price"`
	TaxPrice        float64         `json:"tax_price"`
	ShippingPrice   float64         `json:"shipping_price"`
	TotalPrice      float64         `json:"total_price"`
	IsPaid          bool            `json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	PaymentResult   *PaymentResult  `json:"payment_result,omitempty"`
	IsDelivered     bool            `json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	Status          OrderStatus     `json:"status"`
	StockWarnings   []string        `json:"stock_warnings,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so stored orders are never aliased by callers.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.StockWarnings = append([]string(nil), o.StockWarnings...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		c.PaymentResult = &pr
	}
	return &c
}

// ProductIDs lists the products referenced by the order lines.
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

const DefaultOrderPageSize = 20

type OrderPage struct {
	Orders []*Order `json:"orders"`
	Page   int      `json:"page"`
	Pages  int      `json:"pages"`
	Total  int      `json:"total"`
}

const (
	EventOrderPlaced         = "order.placed"
	EventOrderPaid           = "order.paid"
	EventOrderDelivered      = "order.delivered"
	EventOrderStatusChanged  = "order.status_changed"
	EventOrderStockShortfall = "order.stock_shortfall"
)

// OrderEvent is the payload stored in the outbox for every order write.
type OrderEvent struct {
	OrderID       string      `json:"order_id"`
	UserID        string      `json:"user_id"`
	Status        OrderStatus `json:"status"`
	IsPaid        bool        `json:"is_paid"`
	IsDelivered   bool        `json:"is_delivered"`
	TotalPrice    float64     `json:"total_price"`
	Items         []OrderItem `json:"items"`
	StockWarnings []string    `json:"stock_warnings,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

func NewOrderEvent(o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       o.ID.String(),
		UserID:        o.UserID,
		Status:        o.Status,
		IsPaid:        o.IsPaid,
		IsDelivered:   o.IsDelivered,
		TotalPrice:    o.TotalPrice,
		Items:         o.Items,
		StockWarnings: o.StockWarnings,
		OccurredAt:    at,
	}
}

type MonthlyRevenue struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type OrderStats struct {
	TotalOrders     int              `json:"total_orders"`
	TotalRevenue    float64          `json:"total_revenue"`
	PendingOrders   int              `json:"pending_orders"`
	DeliveredOrders int              `json:"delivered_orders"`
	RevenueByMonth  []MonthlyRevenue `json:"revenue_by_month"`
}

// RevenueMonths caps the monthly rollup.
const RevenueMonths = 6
