package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
)

type seedProduct struct {
	name, image, description, brand, category string
	price                                     float64
	stock                                     int
	featured                                  bool
}

var sampleProducts = []seedProduct{
	{"Apple AirPods Pro (2nd Gen)", "https://images.unsplash.com/photo-1606220588913-b3aacb4d2f46?w=500",
		"Active Noise Cancellation, Adaptive Transparency, Personalized Spatial Audio with dynamic head tracking.",
		"Apple", "Electronics", 249.99, 50, true},
	{"Sony WH-1000XM5 Headphones", "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=500",
		"Industry-leading noise canceling with 8 microphones, exceptional call quality, and 30-hour battery life.",
		"Sony", "Electronics", 349.99, 30, true},
	{"MacBook Pro 14\" M3 Pro", "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?w=500",
		"Apple M3 Pro chip, 18GB unified memory, 1TB SSD, stunning Liquid Retina XDR display.",
		"Apple", "Electronics", 1999.99, 15, true},
	{"Nike Air Max 270", "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=500",
		"Lifestyle sneaker with the largest Max Air unit ever, delivering all-day comfort and bold style.",
		"Nike", "Clothing", 149.99, 75, true},
	{"The Pragmatic Programmer", "https://images.unsplash.com/photo-1544716278-ca5e3f4abd8c?w=500",
		"Your journey to mastery. 20th Anniversary Edition with new content on agile development, concurrency, and more.",
		"Addison-Wesley", "Books", 49.99, 100, false},
	{"Dyson V15 Detect Absolute", "https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=500",
		"Laser detects microscopic dust, automatically adapts suction, LCD screen shows what has been captured.",
		"Dyson", "Home & Garden", 749.99, 20, false},
	{"Garmin Forerunner 965", "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=500",
		"Premium GPS running and triathlon smartwatch with AMOLED display, heart rate monitoring, and training analytics.",
		"Garmin", "Sports", 599.99, 25, true},
	{"LEGO Technic Bugatti Chiron", "https://images.unsplash.com/photo-1587654780291-39c9404d746b?w=500",
		"3,599 pieces. Features a W16 engine with moving pistons, 8-speed gearbox, and all-wheel-drive.",
		"LEGO", "Toys", 349.99, 18, false},
}

// SampleProducts builds the demo catalog. Products start without reviews.
func SampleProducts(createdBy string, now time.Time) []*domain.Product {
	products := make([]*domain.Product, 0, len(sampleProducts))
	for i, sp := range sampleProducts {
		// spread creation times so "newest" ordering is stable
		created := now.Add(time.Duration(i) * time.Second)
		products = append(products, &domain.Product{
			ID:           uuid.NewString(),
			Name:         sp.name,
			Image:        sp.image,
			Description:  sp.description,
			Brand:        sp.brand,
			Category:     sp.category,
			Price:        sp.price,
			CountInStock: sp.stock,
			Reviews:      []domain.Review{},
			IsFeatured:   sp.featured,
			CreatedBy:    createdBy,
			CreatedAt:    created,
			UpdatedAt:    created,
		})
	}
	return products
}

// Seed inserts the demo catalog when repo holds no products.
func Seed(ctx context.Context, repo repository.ProductRepository) error {
	page, err := repo.ListProducts(ctx, domain.ProductQuery{Limit: 1})
	if err != nil {
		return fmt.Errorf("check catalog: %w", err)
	}
	if page.Total > 0 {
		return nil
	}

	for _, p := range SampleProducts("seed", time.Now().UTC()) {
		if err := repo.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	slog.InfoContext(ctx, "seeded catalog", "products", len(sampleProducts))
	return nil
}
