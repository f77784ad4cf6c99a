package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Products *ProductHandler
	Carts    *CartHandler
	Orders   *OrdersHandler
}

func NewRouter(h Handlers, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/featured", h.Products.Featured)
			r.Get("/categories", h.Products.Categories)
			r.Get("/{id}", h.Products.Get)
			r.With(RequireUser).Post("/{id}/reviews", h.Products.SubmitReview)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/", h.Products.Create)
				r.Put("/{id}", h.Products.Update)
				r.Delete("/{id}", h.Products.Delete)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", h.Carts.GetCart)
			r.Delete("/", h.Carts.ClearCart)
			r.Post("/items", h.Carts.AddItem)
			r.Put("/items/{product_id}", h.Carts.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Carts.RemoveItem)
			r.Put("/shipping", h.Carts.SaveShippingAddress)
			r.Put("/payment", h.Carts.SavePaymentMethod)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireUser)
			r.Post("/", h.Orders.PlaceOrder)
			r.Get("/mine", h.Orders.ListMyOrders)
			r.Get("/{id}", h.Orders.GetOrder)
			r.Put("/{id}/pay", h.Orders.Pay)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", h.Orders.ListOrders)
				r.Get("/stats", h.Orders.Stats)
				r.Put("/{id}/deliver", h.Orders.Deliver)
				r.Put("/{id}/status", h.Orders.SetStatus)
			})
		})
	})

	return r
}
