package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
)

const (
	reviewAttempts     = 3
	productLoadTimeout = 5 * time.Second
)

type CatalogService struct {
	repo  repository.ProductRepository
	cache cache.ProductCache
	sfg   singleflight.Group // Prevents cache stampede
	now   func() time.Time
}

func NewCatalogService(repo repository.ProductRepository, productCache cache.ProductCache) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: productCache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		// the load is shared by every waiter, so it outlives the caller that started it
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), productLoadTimeout)
		defer cancel()

		product, err := s.cache.Get(ctx, id)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.WarnContext(ctx, "product cache get failed", "product_id", id, "error", err)
		}

		product, err = s.repo.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}

		go func(p *domain.Product) {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(setCtx, p); err != nil {
				slog.Warn("product cache set failed", "product_id", p.ID, "error", err)
			}
		}(product)

		return product, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight shares one value between callers
	p := *v.(*domain.Product)
	p.Reviews = append([]domain.Review{}, p.Reviews...)
	return &p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	return s.repo.ListProducts(ctx, q.Normalize())
}

func (s *CatalogService) FeaturedProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.repo.FeaturedProducts(ctx, domain.FeaturedLimit)
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

func (s *CatalogService) CreateProduct(ctx context.Context, p *domain.Product, createdBy string) (*domain.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	product := *p
	product.ID = uuid.NewString()
	product.Rating = 0
	product.NumReviews = 0
	product.Reviews = []domain.Review{}
	product.CreatedBy = createdBy
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.repo.CreateProduct(ctx, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct applies only the provided fields. The merged product is validated, but
// only the patched fields are written.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(product)
	if err := product.Validate(); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateProduct(ctx, id, patch, s.now())
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)
	return updated, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	return nil
}

type Reviewer struct {
	UserID string
	Name   string
}

// SubmitReview validates before touching the product, then appends with a bounded retry
// on lost compare-and-swap races.
func (s *CatalogService) SubmitReview(ctx context.Context, productID string, reviewer Reviewer, rating int, comment string) (*domain.Product, error) {
	if err := domain.ValidateReview(rating, comment); err != nil {
		return nil, err
	}
	if reviewer.UserID == "" {
		return nil, domain.ErrMissingBuyer
	}

	review := domain.Review{
		ID:        uuid.NewString(),
		UserID:    reviewer.UserID,
		Name:      reviewer.Name,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: s.now(),
	}

	var (
		product *domain.Product
		err     error
	)
	for attempt := 0; attempt < reviewAttempts; attempt++ {
		product, err = s.repo.AppendReview(ctx, productID, review)
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			break
		}
		slog.InfoContext(ctx, "review append raced, retrying", "product_id", productID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, productID)
	return product, nil
}

// Invalidate evicts cached products. Failures are logged, the TTL bounds staleness.
func (s *CatalogService) Invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, ids...); err != nil {
		slog.WarnContext(ctx, "product cache invalidate failed", "product_ids", ids, "error", err)
	}
}
