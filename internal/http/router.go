package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const jsonBodyLimit = 1 << 20

type RouterConfig struct {
	RequestTimeout time.Duration
	SecureCookies  bool

	Tokens   TokenParser
	Carts    *CartHandler
	Checkout *CheckoutHandler
	Products *ProductHandler
	Auth     *AuthHandler
	Admin    *AdminHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(jsonBodyLimit))
			r.Use(OptionalAuth(cfg.Tokens))

			r.Get("/categories", cfg.Products.ListCategories)
			r.Route("/products", func(r chi.Router) {
				r.Get("/", cfg.Products.ListProducts)
				r.Get("/featured", cfg.Products.FeaturedProducts)
				r.Get("/{id}", cfg.Products.GetProduct)
			})

			r.Group(func(r chi.Router) {
				r.Use(SessionMiddleware(cfg.SecureCookies))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cfg.Carts.GetCart)
					r.Delete("/", cfg.Carts.ClearCart)
					r.Post("/items", cfg.Carts.AddItem)
					r.Put("/items/{product_id}", cfg.Carts.UpdateQuantity)
					r.Delete("/items/{product_id}", cfg.Carts.RemoveItem)
				})
				r.Post("/checkout", cfg.Checkout.Checkout)
			})

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", cfg.Auth.Register)
				r.Post("/login", cfg.Auth.Login)
				r.With(RequireAuth(cfg.Tokens)).Get("/me", cfg.Auth.Me)
			})
		})

		// image uploads read their own, larger, limit
		r.Route("/admin/products", func(r chi.Router) {
			r.Use(RequireAuth(cfg.Tokens))
			r.Use(RequireAdmin)

			r.Post("/{id}/images", cfg.Admin.UploadImage)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequestSize(jsonBodyLimit))

				r.Get("/", cfg.Admin.ListProducts)
				r.Post("/", cfg.Admin.CreateProduct)
				r.Get("/stats", cfg.Admin.Stats)
				r.Post("/batch-delete", cfg.Admin.BatchDelete)
				r.Put("/{id}", cfg.Admin.UpdateProduct)
				r.Delete("/{id}", cfg.Admin.DeleteProduct)
				r.Patch("/{id}/stock", cfg.Admin.UpdateStock)
				r.Patch("/{id}/featured", cfg.Admin.SetFeatured)
				r.Delete("/{id}/images", cfg.Admin.DeleteImage)
			})
		})
	})

	return r
}
