package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
)

// SpyInvalidator records evicted product ids
type SpyInvalidator struct {
	mu  sync.Mutex
	IDs []string
}

func (s *SpyInvalidator) Invalidate(_ context.Context, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IDs = append(s.IDs, ids...)
}

// RacingLedger passes availability checks but loses the decrement for the listed products,
// as if another buyer took the stock in between.
type RacingLedger struct {
	repository.StockLedger
	LoseDecrement map[string]bool
	Decrements    int
	Restocks      map[string]int
}

func (r *RacingLedger) Decrement(ctx context.Context, productID string, qty int) error {
	r.Decrements++
	if r.LoseDecrement[productID] {
		return domain.ErrInsufficientStock
	}
	return r.StockLedger.Decrement(ctx, productID, qty)
}

func (r *RacingLedger) Restock(ctx context.Context, productID string, qty int) error {
	if r.Restocks == nil {
		r.Restocks = make(map[string]int)
	}
	r.Restocks[productID] += qty
	return r.StockLedger.Restock(ctx, productID, qty)
}

// FailingOrders wraps an OrderRepository and injects errors
type FailingOrders struct {
	repository.OrderRepository
	CreateErr error
	UpdateErr error
	Created   int
}

func (f *FailingOrders) CreateOrder(ctx context.Context, order *domain.Order) error {
	f.Created++
	if f.CreateErr != nil {
		return f.CreateErr
	}
	return f.OrderRepository.CreateOrder(ctx, order)
}

func (f *FailingOrders) UpdateOrder(ctx context.Context, id uuid.UUID, eventType string, mutate func(*domain.Order) error) (*domain.Order, error) {
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	return f.OrderRepository.UpdateOrder(ctx, id, eventType, mutate)
}

// RacingReviews loses the compare-and-swap a fixed number of times before delegating
type RacingReviews struct {
	repository.ProductRepository
	Losses   int
	Attempts int
}

func (r *RacingReviews) AppendReview(ctx context.Context, productID string, review domain.Review) (*domain.Product, error) {
	r.Attempts++
	if r.Attempts <= r.Losses {
		return nil, domain.ErrConcurrentUpdate
	}
	return r.ProductRepository.AppendReview(ctx, productID, review)
}

// SellingDuringEdit sells stock between the admin's read and the product write
type SellingDuringEdit struct {
	repository.ProductRepository
	Ledger repository.StockLedger
	Sold   int
}

func (r *SellingDuringEdit) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch, at time.Time) (*domain.Product, error) {
	if err := r.Ledger.Decrement(ctx, id, r.Sold); err != nil {
		return nil, err
	}
	return r.ProductRepository.UpdateProduct(ctx, id, patch, at)
}

// ContextBoundProducts fails reads once the caller's context is done, like a network store
type ContextBoundProducts struct {
	repository.ProductRepository
}

func (r *ContextBoundProducts) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.ProductRepository.GetProduct(ctx, id)
}

// CountingCache is an in-process product cache that counts hits and writes
type CountingCache struct {
	mu       sync.Mutex
	products map[string]domain.Product
	Hits     int
	Sets     chan string
	Deletes  []string
	GetErr   error
}

func NewCountingCache() *CountingCache {
	return &CountingCache{products: make(map[string]domain.Product), Sets: make(chan string, 16)}
}

func (c *CountingCache) Get(_ context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	p, ok := c.products[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	c.Hits++
	return &p, nil
}

func (c *CountingCache) Set(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	c.products[p.ID] = *p
	c.mu.Unlock()
	c.Sets <- p.ID
	return nil
}

func (c *CountingCache) Delete(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
	}
	c.Deletes = append(c.Deletes, ids...)
	return nil
}
