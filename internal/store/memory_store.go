// Package store holds the in-memory backend. One MemoryStore serves as catalog, stock
// ledger, order repository and outbox, all guarded by a single RWMutex.
package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/reporting"
	"github.com/fjod/go_storefront/internal/repository"
)

type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	orders   map[uuid.UUID]*domain.Order
	outbox   []*repository.OutboxEvent
	nextID   int
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*domain.Product),
		orders:   make(map[uuid.UUID]*domain.Order),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Reviews = append([]domain.Review{}, p.Reviews...)
	return &c
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func matchesQuery(p *domain.Product, q domain.ProductQuery, keyword *regexp.Regexp) bool {
	if keyword != nil && !keyword.MatchString(p.Name) && !keyword.MatchString(p.Description) && !keyword.MatchString(p.Brand) {
		return false
	}
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.InStock && p.CountInStock <= 0 {
		return false
	}
	return true
}

func sortProducts(products []*domain.Product, by string) {
	less := func(a, b *domain.Product) bool { return a.CreatedAt.After(b.CreatedAt) }
	switch by {
	case domain.SortPriceAsc:
		less = func(a, b *domain.Product) bool { return a.Price < b.Price }
	case domain.SortPriceDesc:
		less = func(a, b *domain.Product) bool { return a.Price > b.Price }
	case domain.SortRating:
		less = func(a, b *domain.Product) bool { return a.Rating > b.Rating }
	}
	sort.SliceStable(products, func(i, j int) bool {
		if less(products[i], products[j]) {
			return true
		}
		if less(products[j], products[i]) {
			return false
		}
		return products[i].ID < products[j].ID
	})
}

func (s *MemoryStore) ListProducts(_ context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	q = q.Normalize()

	var keyword *regexp.Regexp
	if q.Keyword != "" {
		keyword = regexp.MustCompile("(?i)" + regexp.QuoteMeta(q.Keyword))
	}

	s.mu.RLock()
	matched := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if matchesQuery(p, q, keyword) {
			matched = append(matched, cloneProduct(p))
		}
	}
	s.mu.RUnlock()

	sortProducts(matched, q.Sort)

	total := len(matched)
	start := min((q.Page-1)*q.Limit, total)
	end := min(start+q.Limit, total)

	return &domain.ProductPage{
		Products: matched[start:end],
		Page:     q.Page,
		Pages:    domain.PageCount(total, q.Limit),
		Total:    total,
	}, nil
}

func (s *MemoryStore) FeaturedProducts(_ context.Context, limit int) ([]*domain.Product, error) {
	s.mu.RLock()
	featured := []*domain.Product{}
	for _, p := range s.products {
		if p.IsFeatured {
			featured = append(featured, cloneProduct(p))
		}
	}
	s.mu.RUnlock()

	sortProducts(featured, domain.SortNewest)
	if len(featured) > limit {
		featured = featured[:limit]
	}
	return featured, nil
}

func (s *MemoryStore) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	categories := []string{}
	for _, p := range s.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, id string, patch domain.ProductPatch, at time.Time) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}

	patch.Apply(current)
	current.UpdatedAt = at
	return cloneProduct(current), nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) AppendReview(_ context.Context, productID string, review domain.Review) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if err := p.AddReview(review); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()
	return cloneProduct(p), nil
}

func (s *MemoryStore) CheckAvailability(_ context.Context, productID string, qty int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.CountInStock < qty {
		return domain.ErrInsufficientStock
	}
	return nil
}

func (s *MemoryStore) Decrement(_ context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.CountInStock < qty {
		return domain.ErrInsufficientStock
	}
	p.CountInStock -= qty
	p.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Restock(_ context.Context, productID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.CountInStock += qty
	p.UpdatedAt = s.now()
	return nil
}

// appendEvent must be called with the write lock held.
func (s *MemoryStore) appendEvent(order *domain.Order, eventType string) error {
	event, err := repository.NewOutboxEvent(order, eventType, s.now())
	if err != nil {
		return err
	}
	s.nextID++
	event.ID = s.nextID
	s.outbox = append(s.outbox, event)
	return nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := order.Clone()
	if err := s.appendEvent(stored, domain.EventOrderPlaced); err != nil {
		return err
	}
	s.orders[order.ID] = stored
	return nil
}

func (s *MemoryStore) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// sortedOrders returns clones newest first. Caller holds at least the read lock.
func (s *MemoryStore) sortedOrders(keep func(*domain.Order) bool) []*domain.Order {
	orders := []*domain.Order{}
	for _, o := range s.orders {
		if keep(o) {
			orders = append(orders, o.Clone())
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return strings.Compare(orders[i].ID.String(), orders[j].ID.String()) < 0
	})
	return orders
}

func (s *MemoryStore) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedOrders(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (s *MemoryStore) ListOrders(_ context.Context, page, limit int) ([]*domain.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedOrders(func(*domain.Order) bool { return true })
	total := len(all)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return all[start:end], total, nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, id uuid.UUID, eventType string, mutate func(*domain.Order) error) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	if err := s.appendEvent(working, eventType); err != nil {
		return nil, err
	}
	s.orders[id] = working
	return working.Clone(), nil
}

func (s *MemoryStore) OrderStats(_ context.Context) (domain.OrderStats, error) {
	s.mu.RLock()
	snapshot := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		snapshot = append(snapshot, o.Clone())
	}
	s.mu.RUnlock()

	return reporting.Summarize(snapshot), nil
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(limit, len(s.outbox))
	events := make([]*repository.OutboxEvent, n)
	for i := 0; i < n; i++ {
		e := *s.outbox[i]
		events[i] = &e
	}
	return events, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.outbox {
		if e.ID == id {
			s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}
