package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/service"
)

type CatalogService interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error)
	FeaturedProducts(ctx context.Context) ([]*domain.Product, error)
	Categories(ctx context.Context) ([]string, error)
	CreateProduct(ctx context.Context, p *domain.Product, createdBy string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SubmitReview(ctx context.Context, productID string, reviewer service.Reviewer, rating int, comment string) (*domain.Product, error)
}

type ProductHandler struct {
	catalog CatalogService
	timeout time.Duration
}

func NewProductHandler(catalog CatalogService, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductRequestDTO struct {
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	Description  string  `json:"description"`
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"count_in_stock"`
	IsFeatured   bool    `json:"is_featured"`
}

type ReviewRequestDTO struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func parseFloatParam(r *http.Request, name string) (*float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, false
	}
	return &v, true
}

func intParam(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	minPrice, ok := parseFloatParam(r, "min_price")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_min_price", "min_price must be a non-negative number")
		return
	}
	maxPrice, ok := parseFloatParam(r, "max_price")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_max_price", "max_price must be a non-negative number")
		return
	}

	q := r.URL.Query()
	page, err := h.catalog.ListProducts(ctx, domain.ProductQuery{
		Keyword:  q.Get("keyword"),
		Category: q.Get("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		InStock:  q.Get("in_stock") == "true",
		Sort:     q.Get("sort"),
		Page:     intParam(r, "page"),
		Limit:    intParam(r, "limit"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// GET /api/v1/products/featured
func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.FeaturedProducts(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/products/categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.CreateProduct(ctx, &domain.Product{
		Name:         req.Name,
		Image:        req.Image,
		Description:  req.Description,
		Brand:        req.Brand,
		Category:     req.Category,
		Price:        req.Price,
		CountInStock: req.CountInStock,
		IsFeatured:   req.IsFeatured,
	}, identityFromContext(r.Context()).UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// PUT /api/v1/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var patch domain.ProductPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// DELETE /api/v1/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product removed"})
}

// POST /api/v1/products/{id}/reviews
func (h *ProductHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ReviewRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	id := identityFromContext(r.Context())
	product, err := h.catalog.SubmitReview(ctx, chi.URLParam(r, "id"),
		service.Reviewer{UserID: id.UserID, Name: id.Name}, req.Rating, req.Comment)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}
