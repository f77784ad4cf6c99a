package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// CartService owns the session cart. Every mutation reprices the cart before it is saved.
type CartService struct {
	carts    cache.CartStore
	products ProductReader
	now      func() time.Time
}

func NewCartService(carts cache.CartStore, products ProductReader) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) mutate(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	cart.Reprice()
	cart.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem merges qty into the cart; the line is capped at the product's current stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	if qty < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		return c.Add(product, qty)
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, qty int) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		return c.SetQuantity(productID, qty)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *CartService) SaveShippingAddress(ctx context.Context, userID string, addr domain.ShippingAddress) (*domain.Cart, error) {
	if !addr.Complete() {
		return nil, domain.ErrMissingAddress
	}
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		c.ShippingAddress = addr
		return nil
	})
}

func (s *CartService) SavePaymentMethod(ctx context.Context, userID, method string) (*domain.Cart, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, domain.ErrMissingPayment
	}
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		c.PaymentMethod = method
		return nil
	})
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	return s.carts.Delete(ctx, userID)
}
