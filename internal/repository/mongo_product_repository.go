package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fjod/go_storefront/internal/domain"
)

type MongoProductRepository struct {
	collection *mongo.Collection
}

// NewMongoProductRepository returns a catalog store that also serves as the stock ledger.
func NewMongoProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{
		collection: db.Collection("products"),
	}
}

func (m *MongoProductRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "is_featured", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func (m *MongoProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func productFilter(q domain.ProductQuery) bson.M {
	filter := bson.M{}
	if q.Keyword != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Keyword), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
			bson.M{"brand": pattern},
		}
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	if q.InStock {
		filter["count_in_stock"] = bson.M{"$gt": 0}
	}
	return filter
}

func productSort(s string) bson.D {
	switch s {
	case domain.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case domain.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case domain.SortRating:
		return bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	}
}

func (m *MongoProductRepository) ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	q = q.Normalize()
	filter := productFilter(q)

	total, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSort(productSort(q.Sort)).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit)).
		SetProjection(bson.M{"reviews": 0})

	products, err := m.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	return &domain.ProductPage{
		Products: products,
		Page:     q.Page,
		Pages:    domain.PageCount(int(total), q.Limit),
		Total:    int(total),
	}, nil
}

func (m *MongoProductRepository) FeaturedProducts(ctx context.Context, limit int) ([]*domain.Product, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"reviews": 0})

	return m.find(ctx, bson.M{"is_featured": true}, opts)
}

func (m *MongoProductRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Product, error) {
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []*domain.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (m *MongoProductRepository) Categories(ctx context.Context) ([]string, error) {
	values, err := m.collection.Distinct(ctx, "category", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			categories = append(categories, s)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *MongoProductRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.Reviews == nil {
		p.Reviews = []domain.Review{}
	}
	_, err := m.collection.InsertOne(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// UpdateProduct sets only the fields present in the patch. count_in_stock is shared with
// the ledger's conditional decrement and is never rewritten from a stale read.
func (m *MongoProductRepository) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch, at time.Time) (*domain.Product, error) {
	update := bson.M{"$set": patchFields(patch, at)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var product domain.Product
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

func patchFields(patch domain.ProductPatch, at time.Time) bson.M {
	set := bson.M{"updated_at": at}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Brand != nil {
		set["brand"] = *patch.Brand
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.CountInStock != nil {
		set["count_in_stock"] = *patch.CountInStock
	}
	if patch.IsFeatured != nil {
		set["is_featured"] = *patch.IsFeatured
	}
	return set
}

func (m *MongoProductRepository) DeleteProduct(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// AppendReview pushes the review with a compare-and-swap on the review count, so two
// concurrent writers can never both recompute the aggregate from the same base.
func (m *MongoProductRepository) AppendReview(ctx context.Context, productID string, review domain.Review) (*domain.Product, error) {
	product, err := m.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	prevCount := product.NumReviews
	if err := product.AddReview(review); err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":             productID,
		"num_reviews":     prevCount,
		"reviews.user_id": bson.M{"$ne": review.UserID},
	}
	update := bson.M{
		"$push": bson.M{"reviews": review},
		"$set": bson.M{
			"num_reviews": product.NumReviews,
			"rating":      product.Rating,
			"updated_at":  time.Now().UTC(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to append review: %w", err)
	}
	if result.MatchedCount == 1 {
		return product, nil
	}

	current, err := m.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if current.HasReviewBy(review.UserID) {
		return nil, domain.ErrDuplicateReview
	}
	return nil, domain.ErrConcurrentUpdate
}

func (m *MongoProductRepository) CheckAvailability(ctx context.Context, productID string, qty int) error {
	var stock struct {
		CountInStock int `bson:"count_in_stock"`
	}

	opts := options.FindOne().SetProjection(bson.M{"count_in_stock": 1})
	err := m.collection.FindOne(ctx, bson.M{"_id": productID}, opts).Decode(&stock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to read stock: %w", err)
	}

	if stock.CountInStock < qty {
		return fmt.Errorf("%w: product %s has %d, requested %d", domain.ErrInsufficientStock, productID, stock.CountInStock, qty)
	}
	return nil
}

// Decrement is a single conditional update, atomic per product document.
func (m *MongoProductRepository) Decrement(ctx context.Context, productID string, qty int) error {
	filter := bson.M{
		"_id":            productID,
		"count_in_stock": bson.M{"$gte": qty},
	}
	update := bson.M{
		"$inc": bson.M{"count_in_stock": -qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": productID})
	if err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if n == 0 {
		return domain.ErrProductNotFound
	}
	return fmt.Errorf("%w: product %s cannot cover %d", domain.ErrInsufficientStock, productID, qty)
}

func (m *MongoProductRepository) Restock(ctx context.Context, productID string, qty int) error {
	update := bson.M{
		"$inc": bson.M{"count_in_stock": qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": productID}, update)
	if err != nil {
		return fmt.Errorf("failed to restock: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
