package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/domain"
)

type flakyCache struct {
	err     error
	gets    int
	deletes int
}

func (f *flakyCache) Get(context.Context, string) (*domain.Product, error) {
	f.gets++
	return nil, f.err
}

func (f *flakyCache) Set(context.Context, *domain.Product) error {
	return f.err
}

func (f *flakyCache) Delete(context.Context, ...string) error {
	f.deletes++
	return f.err
}

func TestGuardedCache_MissesDoNotTrip(t *testing.T) {
	inner := &flakyCache{err: ErrCacheMiss}
	g := NewGuardedCache(inner)

	for i := 0; i < 10; i++ {
		_, err := g.Get(context.Background(), "p1")
		assert.ErrorIs(t, err, ErrCacheMiss)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.Equal(t, 10, inner.gets)
}

func TestGuardedCache_OpensAfterFailures(t *testing.T) {
	inner := &flakyCache{err: errors.New("connection refused")}
	g := NewGuardedCache(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := g.Get(ctx, "p1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 5, inner.gets, "open breaker must not reach the backend")

	assert.NoError(t, g.Set(ctx, &domain.Product{ID: "p1"}))

	_ = g.Delete(ctx, "p1")
	assert.Equal(t, 1, inner.deletes)
}
