package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/domain"
)

func setupStore(t *testing.T) *MemoryStore {
	s := NewMemoryStore()
	require.NoError(t, Seed(context.Background(), s))
	return s
}

func productByName(t *testing.T, s *MemoryStore, name string) *domain.Product {
	page, err := s.ListProducts(context.Background(), domain.ProductQuery{Keyword: name})
	require.NoError(t, err)
	require.NotEmpty(t, page.Products, "product %q not seeded", name)
	return page.Products[0]
}

func TestMemoryStore_SeedIsIdempotent(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, Seed(context.Background(), s))

	page, err := s.ListProducts(context.Background(), domain.ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, len(sampleProducts), page.Total)
}

func TestMemoryStore_ListProducts(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	page, err := s.ListProducts(ctx, domain.ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, 8, page.Total)
	assert.Equal(t, 1, page.Pages)
	assert.Equal(t, "LEGO Technic Bugatti Chiron", page.Products[0].Name, "newest first")

	page, err = s.ListProducts(ctx, domain.ProductQuery{Keyword: "APPLE"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	maxPrice := 200.0
	page, err = s.ListProducts(ctx, domain.ProductQuery{MaxPrice: &maxPrice, Sort: domain.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, 49.99, page.Products[0].Price)
	assert.Equal(t, 149.99, page.Products[1].Price)

	page, err = s.ListProducts(ctx, domain.ProductQuery{Category: "Electronics", Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Products, 1)

	page, err = s.ListProducts(ctx, domain.ProductQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Products)
}

func TestMemoryStore_FeaturedAndCategories(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	featured, err := s.FeaturedProducts(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, featured, 3)
	for _, p := range featured {
		assert.True(t, p.IsFeatured)
	}

	categories, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Books", "Clothing", "Electronics", "Home & Garden", "Sports", "Toys"}, categories)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := setupStore(t)
	p := productByName(t, s, "Garmin")

	p.CountInStock = 0
	again, err := s.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, again.CountInStock)
}

func TestMemoryStore_UpdateKeepsReviews(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := productByName(t, s, "Dyson")

	_, err := s.AppendReview(ctx, p.ID, domain.Review{ID: "r1", UserID: "u1", Rating: 4, Comment: "strong"})
	require.NoError(t, err)

	price := 699.99
	updated, err := s.UpdateProduct(ctx, p.ID, domain.ProductPatch{Price: &price}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 699.99, updated.Price)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 699.99, got.Price)
	assert.Equal(t, 1, got.NumReviews)
	assert.Equal(t, 4.0, got.Rating)

	require.NoError(t, s.DeleteProduct(ctx, p.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), domain.ErrProductNotFound)
	_, err = s.UpdateProduct(ctx, p.ID, domain.ProductPatch{Price: &price}, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestMemoryStore_PriceUpdateKeepsLedgerCount(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := productByName(t, s, "Dyson")

	// the admin read the product before a sale went through
	stale, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, s.Decrement(ctx, p.ID, 2))

	price := stale.Price + 10
	_, err = s.UpdateProduct(ctx, p.ID, domain.ProductPatch{Price: &price}, time.Now().UTC())
	require.NoError(t, err)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, stale.CountInStock-2, got.CountInStock)
	assert.Equal(t, price, got.Price)
}

func TestMemoryStore_Decrement(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	p := productByName(t, s, "MacBook")

	require.NoError(t, s.CheckAvailability(ctx, p.ID, 15))
	assert.ErrorIs(t, s.CheckAvailability(ctx, p.ID, 16), domain.ErrInsufficientStock)

	require.NoError(t, s.Decrement(ctx, p.ID, 10))
	assert.ErrorIs(t, s.Decrement(ctx, p.ID, 6), domain.ErrInsufficientStock)
	assert.ErrorIs(t, s.Decrement(ctx, "missing", 1), domain.ErrProductNotFound)

	got, _ := s.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, got.CountInStock)

	require.NoError(t, s.Restock(ctx, p.ID, 2))
	got, _ = s.GetProduct(ctx, p.ID)
	assert.Equal(t, 7, got.CountInStock)
}

func TestMemoryStore_ConcurrentDecrements(t *testing.T) {
	s := setupStore(t)
	p := productByName(t, s, "Pragmatic")

	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	// 100 in stock, 10 goroutines asking for 20 each: only 5 can succeed
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Decrement(context.Background(), p.ID, 20)
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 5, successCount)

	got, _ := s.GetProduct(context.Background(), p.ID)
	assert.Equal(t, 0, got.CountInStock)
}

func TestMemoryStore_ConcurrentReviewsSameUser(t *testing.T) {
	s := setupStore(t)
	p := productByName(t, s, "LEGO")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.AppendReview(context.Background(), p.ID, domain.Review{UserID: "u1", Rating: 5, Comment: "fun"})
		}()
	}
	wg.Wait()

	got, _ := s.GetProduct(context.Background(), p.ID)
	assert.Equal(t, 1, got.NumReviews)
}

func newOrder(userID string, created time.Time) *domain.Order {
	return &domain.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Items:      []domain.OrderItem{{ProductID: "p1", Price: 10, Qty: 1}},
		TotalPrice: 20.99,
		Status:     domain.OrderStatusPending,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestMemoryStore_Orders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	first := newOrder("u1", base)
	second := newOrder("u1", base.Add(time.Hour))
	other := newOrder("u2", base.Add(2*time.Hour))
	for _, o := range []*domain.Order{first, second, other} {
		require.NoError(t, s.CreateOrder(ctx, o))
	}

	mine, err := s.ListOrdersByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	page, total, err := s.ListOrders(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	_, err = s.GetOrderByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryStore_UpdateOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	o := newOrder("u1", time.Now().UTC())
	require.NoError(t, s.CreateOrder(ctx, o))

	_, err := s.UpdateOrder(ctx, o.ID, domain.EventOrderStatusChanged, func(o *domain.Order) error {
		o.Status = domain.OrderStatusShipped
		return errors.New("rejected")
	})
	require.Error(t, err)
	got, _ := s.GetOrderByID(ctx, o.ID)
	assert.Equal(t, domain.OrderStatusPending, got.Status, "failed mutation must not leak")

	updated, err := s.UpdateOrder(ctx, o.ID, domain.EventOrderPaid, func(o *domain.Order) error {
		return domain.LooseLifecycle{}.ConfirmPayment(o, domain.PaymentResult{ID: "x"}, time.Now().UTC())
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Status)

	stats, err := s.OrderStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 20.99, stats.TotalRevenue)
	assert.Equal(t, 0, stats.PendingOrders)
}

func TestMemoryStore_Outbox(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	o := newOrder("u1", time.Now().UTC())
	require.NoError(t, s.CreateOrder(ctx, o))
	_, err := s.UpdateOrder(ctx, o.ID, domain.EventOrderDelivered, func(o *domain.Order) error {
		return domain.LooseLifecycle{}.ConfirmDelivery(o, time.Now().UTC())
	})
	require.NoError(t, err)

	events, err := s.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderPlaced, events[0].EventType)
	assert.Equal(t, domain.EventOrderDelivered, events[1].EventType)
	assert.Equal(t, o.ID.String(), events[1].AggregateID)

	require.NoError(t, s.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = s.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderDelivered, events[0].EventType)
}
