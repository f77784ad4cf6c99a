package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/repository"
)

// PlacementMode selects how stock is committed during placement.
type PlacementMode string

const (
	// CheckThenDecrement validates availability, persists the order, then decrements.
	// A decrement lost to a concurrent buyer becomes a stock warning on the order.
	CheckThenDecrement PlacementMode = "check-then-decrement"
	// ReserveFirst decrements every line before the order exists and compensates on failure.
	ReserveFirst PlacementMode = "reserve-first"
)

// ShortfallPolicy decides what happens to an order whose post-creation decrement failed.
type ShortfallPolicy string

const (
	ShortfallFlag   ShortfallPolicy = "flag"
	ShortfallCancel ShortfallPolicy = "cancel"
)

func ParsePlacementMode(s string) (PlacementMode, error) {
	switch m := PlacementMode(s); m {
	case "":
		return CheckThenDecrement, nil
	case CheckThenDecrement, ReserveFirst:
		return m, nil
	}
	return "", fmt.Errorf("unknown order placement mode %q", s)
}

func ParseShortfallPolicy(s string) (ShortfallPolicy, error) {
	switch p := ShortfallPolicy(s); p {
	case "":
		return ShortfallFlag, nil
	case ShortfallFlag, ShortfallCancel:
		return p, nil
	}
	return "", fmt.Errorf("unknown order shortfall policy %q", s)
}

type OrderOptions struct {
	Mode      PlacementMode
	Shortfall ShortfallPolicy
	Lifecycle domain.Lifecycle
	Now       func() time.Time
}

// ProductInvalidator evicts products whose stock changed from any read cache.
type ProductInvalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

type OrderService struct {
	orders      repository.OrderRepository
	products    ProductReader
	stock       repository.StockLedger
	invalidator ProductInvalidator
	opts        OrderOptions
}

func NewOrderService(
	orders repository.OrderRepository,
	products ProductReader,
	stock repository.StockLedger,
	invalidator ProductInvalidator,
	opts OrderOptions,
) *OrderService {
	if opts.Mode == "" {
		opts.Mode = CheckThenDecrement
	}
	if opts.Shortfall == "" {
		opts.Shortfall = ShortfallFlag
	}
	if opts.Lifecycle == nil {
		opts.Lifecycle = domain.LooseLifecycle{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &OrderService{
		orders:      orders,
		products:    products,
		stock:       stock,
		invalidator: invalidator,
		opts:        opts,
	}
}

type OrderLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type PlaceOrderRequest struct {
	UserID          string
	Items           []OrderLine
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

func (r PlaceOrderRequest) validate() error {
	if len(r.Items) == 0 {
		return domain.ErrEmptyCart
	}
	for _, item := range r.Items {
		if item.Qty < 1 {
			return fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, item.ProductID)
		}
	}
	if strings.TrimSpace(r.UserID) == "" {
		return domain.ErrMissingBuyer
	}
	if !r.ShippingAddress.Complete() {
		return domain.ErrMissingAddress
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return domain.ErrMissingPayment
	}
	return nil
}

// mergeLines sums quantities of repeated products, keeping first-seen order.
func mergeLines(lines []OrderLine) []OrderLine {
	merged := make([]OrderLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			merged[i].Qty += l.Qty
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

type resolvedLine struct {
	product *domain.Product
	qty     int
}

// PlaceOrder turns a cart into a Pending order priced from authoritative unit prices.
// Client-declared totals never reach this method.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	lines, err := s.resolve(ctx, mergeLines(req.Items))
	if err != nil {
		return nil, err
	}

	if s.opts.Mode == ReserveFirst {
		return s.placeReserveFirst(ctx, req, lines)
	}
	return s.placeCheckThenDecrement(ctx, req, lines)
}

func (s *OrderService) resolve(ctx context.Context, lines []OrderLine) ([]resolvedLine, error) {
	resolved := make([]resolvedLine, 0, len(lines))
	for _, l := range lines {
		p, err := s.products.GetProduct(ctx, l.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, l.ProductID)
		}
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, resolvedLine{product: p, qty: l.Qty})
	}
	return resolved, nil
}

func insufficient(p *domain.Product) error {
	return fmt.Errorf("%w for %s", domain.ErrInsufficientStock, p.Name)
}

func (s *OrderService) placeCheckThenDecrement(ctx context.Context, req PlaceOrderRequest, lines []resolvedLine) (*domain.Order, error) {
	for _, l := range lines {
		err := s.stock.CheckAvailability(ctx, l.product.ID, l.qty)
		if errors.Is(err, domain.ErrInsufficientStock) {
			return nil, insufficient(l.product)
		}
		if err != nil {
			return nil, err
		}
	}

	order := s.buildOrder(req, lines)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	var warnings []string
	decremented := make([]string, 0, len(lines))
	for _, l := range lines {
		if err := s.stock.Decrement(ctx, l.product.ID, l.qty); err != nil {
			slog.WarnContext(ctx, "stock decrement failed after order creation",
				"order_id", order.ID, "product_id", l.product.ID, "qty", l.qty, "error", err)
			warnings = append(warnings, fmt.Sprintf("could not reserve %d x %s: %v", l.qty, l.product.Name, err))
			continue
		}
		decremented = append(decremented, l.product.ID)
	}
	s.invalidator.Invalidate(ctx, decremented...)

	if len(warnings) == 0 {
		return order, nil
	}
	return s.recordShortfall(ctx, order, warnings), nil
}

// recordShortfall never fails the placement: the order exists and the buyer gets it back.
func (s *OrderService) recordShortfall(ctx context.Context, order *domain.Order, warnings []string) *domain.Order {
	apply := func(o *domain.Order) error {
		o.StockWarnings = append(o.StockWarnings, warnings...)
		if s.opts.Shortfall == ShortfallCancel {
			o.Status = domain.OrderStatusCancelled
		}
		o.UpdatedAt = s.opts.Now()
		return nil
	}

	updated, err := s.orders.UpdateOrder(ctx, order.ID, domain.EventOrderStockShortfall, apply)
	if err != nil {
		slog.ErrorContext(ctx, "failed to record stock shortfall", "order_id", order.ID, "error", err)
		_ = apply(order)
		return order
	}
	return updated
}

func (s *OrderService) placeReserveFirst(ctx context.Context, req PlaceOrderRequest, lines []resolvedLine) (*domain.Order, error) {
	reserved := make([]resolvedLine, 0, len(lines))
	for _, l := range lines {
		err := s.stock.Decrement(ctx, l.product.ID, l.qty)
		if err == nil {
			reserved = append(reserved, l)
			continue
		}
		s.restock(ctx, reserved)
		if errors.Is(err, domain.ErrInsufficientStock) {
			return nil, insufficient(l.product)
		}
		return nil, err
	}

	order := s.buildOrder(req, lines)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		s.restock(ctx, reserved)
		return nil, err
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.product.ID)
	}
	s.invalidator.Invalidate(ctx, ids...)
	return order, nil
}

func (s *OrderService) restock(ctx context.Context, lines []resolvedLine) {
	for _, l := range lines {
		if err := s.stock.Restock(ctx, l.product.ID, l.qty); err != nil {
			slog.ErrorContext(ctx, "failed to restock after aborted placement",
				"product_id", l.product.ID, "qty", l.qty, "error", err)
		}
	}
}

func (s *OrderService) buildOrder(req PlaceOrderRequest, lines []resolvedLine) *domain.Order {
	items := make([]domain.OrderItem, 0, len(lines))
	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID: l.product.ID,
			Name:      l.product.Name,
			Image:     l.product.Image,
			Price:     l.product.Price,
			Qty:       l.qty,
		})
		priced = append(priced, pricing.Line{UnitPrice: l.product.Price, Qty: l.qty})
	}
	breakdown := pricing.Calculate(priced)

	now := s.opts.Now()
	return &domain.Order{
		ID:              uuid.New(),
		UserID:          req.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		ItemsPrice:      breakdown.ItemsPrice,
		TaxPrice:        breakdown.TaxPrice,
		ShippingPrice:   breakdown.ShippingPrice,
		TotalPrice:      breakdown.TotalPrice,
		Status:          domain.OrderStatusPending,
		StockWarnings:   []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *OrderService) ConfirmPayment(ctx context.Context, id uuid.UUID, result domain.PaymentResult) (*domain.Order, error) {
	return s.orders.UpdateOrder(ctx, id, domain.EventOrderPaid, func(o *domain.Order) error {
		return s.opts.Lifecycle.ConfirmPayment(o, result, s.opts.Now())
	})
}

func (s *OrderService) ConfirmDelivery(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orders.UpdateOrder(ctx, id, domain.EventOrderDelivered, func(o *domain.Order) error {
		return s.opts.Lifecycle.ConfirmDelivery(o, s.opts.Now())
	})
}

func (s *OrderService) SetOrderStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	st, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.orders.UpdateOrder(ctx, id, domain.EventOrderStatusChanged, func(o *domain.Order) error {
		return s.opts.Lifecycle.SetStatus(o, st, s.opts.Now())
	})
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orders.GetOrderByID(ctx, id)
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.orders.ListOrdersByUserID(ctx, userID)
}

func (s *OrderService) ListOrders(ctx context.Context, page, limit int) (*domain.OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = domain.DefaultOrderPageSize
	}
	orders, total, err := s.orders.ListOrders(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	return &domain.OrderPage{
		Orders: orders,
		Page:   page,
		Pages:  domain.PageCount(total, limit),
		Total:  total,
	}, nil
}

func (s *OrderService) GetOrderStats(ctx context.Context) (domain.OrderStats, error) {
	return s.orders.OrderStats(ctx)
}
