package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// ProductRepository is the catalog store. AppendReview persists a review that the caller
// has already validated and must reject a second review by the same user.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error)
	FeaturedProducts(ctx context.Context, limit int) ([]*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch, at time.Time) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	AppendReview(ctx context.Context, productID string, review domain.Review) (*domain.Product, error)
}

// StockLedger tracks the available quantity per product. Decrement is a conditional
// decrement-if-sufficient and never drives a count below zero.
type StockLedger interface {
	CheckAvailability(ctx context.Context, productID string, qty int) error
	Decrement(ctx context.Context, productID string, qty int) error
	Restock(ctx context.Context, productID string, qty int) error
}

// OrderRepository persists orders. Every write also records an outbox event in the same
// atomic unit.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, page, limit int) ([]*domain.Order, int, error)
	// UpdateOrder loads the order exclusively, applies mutate and stores the result
	// with an eventType outbox event. Nothing is written when mutate fails.
	UpdateOrder(ctx context.Context, id uuid.UUID, eventType string, mutate func(*domain.Order) error) (*domain.Order, error)
	OrderStats(ctx context.Context) (domain.OrderStats, error)
}

type OutboxEvent struct {
	ID          int
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
}

// NewOutboxEvent serializes the order state at the time of the write.
func NewOutboxEvent(order *domain.Order, eventType string, at time.Time) (*OutboxEvent, error) {
	payload, err := json.Marshal(domain.NewOrderEvent(order, at))
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		AggregateID: order.ID.String(),
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at,
	}, nil
}
