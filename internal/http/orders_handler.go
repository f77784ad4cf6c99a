package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/service"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, result domain.PaymentResult) (*domain.Order, error)
	ConfirmDelivery(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, page, limit int) (*domain.OrderPage, error)
	GetOrderStats(ctx context.Context) (domain.OrderStats, error)
}

type OrdersHandler struct {
	orders  OrderService
	carts   CartService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, carts CartService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		carts:   carts,
		timeout: timeout,
	}
}

// PlaceOrderRequestDTO overrides the session cart field by field. Prices are never accepted
// from the client.
type PlaceOrderRequestDTO struct {
	Items           []service.OrderLine     `json:"items"`
	ShippingAddress *domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                  `json:"payment_method"`
}

type StatusRequestDTO struct {
	Status string `json:"status"`
}

// POST /api/v1/orders
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var body PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	userID := identityFromContext(r.Context()).UserID
	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	req := service.PlaceOrderRequest{
		UserID:          userID,
		Items:           body.Items,
		ShippingAddress: cart.ShippingAddress,
		PaymentMethod:   cart.PaymentMethod,
	}
	if len(req.Items) == 0 {
		for _, item := range cart.Items {
			req.Items = append(req.Items, service.OrderLine{ProductID: item.ProductID, Qty: item.Qty})
		}
	}
	if body.ShippingAddress != nil {
		req.ShippingAddress = *body.ShippingAddress
	}
	if body.PaymentMethod != "" {
		req.PaymentMethod = body.PaymentMethod
	}

	order, err := h.orders.PlaceOrder(ctx, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.carts.ClearCart(ctx, userID); err != nil {
		slog.WarnContext(ctx, "failed to clear cart after order placement", "user_id", userID, "order_id", order.ID, "error", err)
	}
	respondJSON(w, http.StatusCreated, order)
}

// GET /api/v1/orders/mine
func (h *OrdersHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListMyOrders(ctx, identityFromContext(r.Context()).UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	caller := identityFromContext(r.Context())
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		respondError(w, http.StatusForbidden, "forbidden", "not authorized to view this order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PUT /api/v1/orders/{id}/pay
func (h *OrdersHandler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var result domain.PaymentResult
	if !decodeJSON(w, r, &result) {
		return
	}

	order, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if order.UserID != identityFromContext(r.Context()).UserID {
		respondError(w, http.StatusForbidden, "forbidden", "not authorized to pay for this order")
		return
	}

	order, err = h.orders.ConfirmPayment(ctx, id, result)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.orders.ListOrders(ctx, intParam(r, "page"), intParam(r, "limit"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GET /api/v1/orders/stats
func (h *OrdersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.orders.GetOrderStats(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// PUT /api/v1/orders/{id}/deliver
func (h *OrdersHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.ConfirmDelivery(ctx, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PUT /api/v1/orders/{id}/status
func (h *OrdersHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req StatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.SetOrderStatus(ctx, id, req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
