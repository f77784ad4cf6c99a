package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
)

// MemoryCartStore keeps carts in process for runs without Redis. Carts are stored
// serialized so callers never share state with the store.
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string][]byte)}
}

func (m *MemoryCartStore) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	data, ok := m.carts[userID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrCacheMiss
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (m *MemoryCartStore) Save(_ context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	m.mu.Lock()
	m.carts[cart.UserID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryCartStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.carts, userID)
	m.mu.Unlock()
	return nil
}

// NoopProductCache always misses.
type NoopProductCache struct{}

func (NoopProductCache) Get(context.Context, string) (*domain.Product, error) {
	return nil, ErrCacheMiss
}

func (NoopProductCache) Set(context.Context, *domain.Product) error { return nil }

func (NoopProductCache) Delete(context.Context, ...string) error { return nil }
