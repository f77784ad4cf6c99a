package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fjod/go_storefront/internal/domain"
)

// GuardedCache trips a circuit breaker after repeated backend failures. While open, reads
// report a miss and writes are skipped, so callers fall through to the repository.
type GuardedCache struct {
	inner ProductCache
	cb    *gobreaker.CircuitBreaker[*domain.Product]
}

func NewGuardedCache(inner ProductCache) *GuardedCache {
	settings := gobreaker.Settings{
		Name:        "product-cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &GuardedCache{inner: inner, cb: gobreaker.NewCircuitBreaker[*domain.Product](settings)}
}

func (g *GuardedCache) Get(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := g.cb.Execute(func() (*domain.Product, error) {
		return g.inner.Get(ctx, productID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCacheMiss
	}
	return p, err
}

func (g *GuardedCache) Set(ctx context.Context, product *domain.Product) error {
	_, err := g.cb.Execute(func() (*domain.Product, error) {
		return nil, g.inner.Set(ctx, product)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil
	}
	return err
}

// Delete bypasses the breaker. Evictions must always be attempted.
func (g *GuardedCache) Delete(ctx context.Context, productIDs ...string) error {
	return g.inner.Delete(ctx, productIDs...)
}

func (g *GuardedCache) State() gobreaker.State {
	return g.cb.State()
}
