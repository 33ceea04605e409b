package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/katharos/storefront/internal/catalog"
	"github.com/katharos/storefront/internal/domain"
	"github.com/katharos/storefront/internal/repository"
	"go.uber.org/zap"
)

// ProductReader is the read side of the catalog used by the storefront pages.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListByCategory(ctx context.Context, category string) ([]domain.Product, error)
	Search(ctx context.Context, query string) ([]domain.Product, error)
	Featured(ctx context.Context, limit int64) ([]domain.Product, error)
}

type ProductHandler struct {
	products ProductReader
	timeout  time.Duration
	log      *zap.Logger
}

func NewProductHandler(products ProductReader, timeout time.Duration, log *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
		log:      log,
	}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	category := q.Get("category")
	if category != "" {
		if _, ok := domain.CategoryByID(category); !ok {
			respondError(w, http.StatusBadRequest, "invalid_category", "unknown category "+category)
			return
		}
	}

	page, pageSize, ok := parsePaging(w, r)
	if !ok {
		return
	}

	var (
		products []domain.Product
		err      error
	)
	if search := strings.TrimSpace(q.Get("q")); search != "" {
		products, err = h.products.Search(ctx, search)
		products = catalog.FilterByCategory(products, category)
	} else {
		products, err = h.products.ListByCategory(ctx, category)
	}
	if err != nil {
		respondInternal(w, r, h.log, "failed to list products", err)
		return
	}

	respondJSON(w, http.StatusOK, catalog.Paginate(products, page, pageSize))
}

func (h *ProductHandler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	products, err := h.products.Featured(ctx, limit)
	if err != nil {
		respondInternal(w, r, h.log, "failed to list featured products", err)
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.products.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		respondInternal(w, r, h.log, "failed to get product", err)
		return
	}
	if !p.IsActive {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, domain.Categories)
}

func parsePaging(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	q := r.URL.Query()
	page, pageSize = 1, catalog.DefaultPageSize

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
			return 0, 0, false
		}
		page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_page_size", "page_size must be a positive integer")
			return 0, 0, false
		}
		pageSize = n
	}
	return page, pageSize, true
}
