package domain

import (
	"fmt"
	"strings"
	"time"
)

var Categories = []string{
	"Electronics", "Clothing", "Books", "Home & Garden", "Sports", "Toys", "Beauty", "Automotive", "Other",
}

type Product struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Image        string    `bson:"image" json:"image"`
	Description  string    `bson:"description" json:"description"`
	Brand        string    `bson:"brand" json:"brand"`
	Category     string    `bson:"category" json:"category"`
	Price        float64   `bson:"price" json:"price"`
	CountInStock int       `bson:"count_in_stock" json:"count_in_stock"`
	Rating       float64   `bson:"rating" json:"rating"`
	NumReviews   int       `bson:"num_reviews" json:"num_reviews"`
	Reviews      []Review  `bson:"reviews" json:"reviews"`
	IsFeatured   bool      `bson:"is_featured" json:"is_featured"`
	CreatedBy    string    `bson:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

type Review struct {
	ID        string    `bson:"id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Name      string    `bson:"name" json:"name"`
	Rating    int       `bson:"rating" json:"rating"`
	Comment   string    `bson:"comment" json:"comment"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ValidateReview checks the rating range and comment before any lookup happens.
func ValidateReview(rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if strings.TrimSpace(comment) == "" {
		return ErrEmptyComment
	}
	return nil
}

// HasReviewBy reports whether userID already reviewed the product.
func (p *Product) HasReviewBy(userID string) bool {
	for _, r := range p.Reviews {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddReview appends r and recomputes NumReviews and Rating over the whole collection.
func (p *Product) AddReview(r Review) error {
	if err := ValidateReview(r.Rating, r.Comment); err != nil {
		return err
	}
	if p.HasReviewBy(r.UserID) {
		return ErrDuplicateReview
	}
	p.Reviews = append(p.Reviews, r)
	p.NumReviews, p.Rating = AggregateRatings(p.Reviews)
	return nil
}

// AggregateRatings returns the review count and mean rating, both zero for no reviews.
func AggregateRatings(reviews []Review) (int, float64) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return len(reviews), float64(sum) / float64(len(reviews))
}

// Validate checks the admin-editable fields.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if len(p.Name) > 100 {
		return fmt.Errorf("%w: name cannot exceed 100 characters", ErrInvalidProduct)
	}
	if len(p.Description) > 2000 {
		return fmt.Errorf("%w: description cannot exceed 2000 characters", ErrInvalidProduct)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	}
	if p.CountInStock < 0 {
		return fmt.Errorf("%w: stock count cannot be negative", ErrInvalidProduct)
	}
	if !IsCategory(p.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	}
	return nil
}

func IsCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// ProductPatch carries the optional fields of an admin product update.
type ProductPatch struct {
	Name         *string  `json:"name"`
	Image        *string  `json:"image"`
	Description  *string  `json:"description"`
	Brand        *string  `json:"brand"`
	Category     *string  `json:"category"`
	Price        *float64 `json:"price"`
	CountInStock *int     `json:"count_in_stock"`
	IsFeatured   *bool    `json:"is_featured"`
}

// Apply overwrites only the provided fields.
func (pp ProductPatch) Apply(p *Product) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Image != nil {
		p.Image = *pp.Image
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Brand != nil {
		p.Brand = *pp.Brand
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.CountInStock != nil {
		p.CountInStock = *pp.CountInStock
	}
	if pp.IsFeatured != nil {
		p.IsFeatured = *pp.IsFeatured
	}
}

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortRating    = "rating"

	DefaultProductPageSize = 12
	FeaturedLimit          = 8
)

type ProductQuery struct {
	Keyword  string
	Category string
	MinPrice *float64
	MaxPrice *float64
	InStock  bool
	Sort     string
	Page     int
	Limit    int
}

// Normalize fills defaults for paging and sorting.
func (q ProductQuery) Normalize() ProductQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultProductPageSize
	}
	if q.Category == "all" {
		q.Category = ""
	}
	switch q.Sort {
	case SortPriceAsc, SortPriceDesc, SortRating, SortNewest:
	default:
		q.Sort = SortNewest
	}
	return q
}

type ProductPage struct {
	Products []*Product `json:"products"`
	Page     int        `json:"page"`
	Pages    int        `json:"pages"`
	Total    int        `json:"total"`
}

// PageCount returns ceil(total/limit).
func PageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
