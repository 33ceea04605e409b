package http

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/katharos/storefront/internal/catalog"
	"github.com/katharos/storefront/internal/domain"
	"github.com/katharos/storefront/internal/media"
	"github.com/katharos/storefront/internal/repository"
	"go.uber.org/zap"
)

const imageFormField = "image"

type AdminHandler struct {
	products    repository.ProductRepository
	images      media.ImageStore
	timeout     time.Duration
	maxBodySize int64
	log         *zap.Logger
}

// NewAdminHandler accepts a nil image store; image routes then answer 503.
func NewAdminHandler(products repository.ProductRepository, images media.ImageStore, timeout time.Duration, maxBodySize int64, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		products:    products,
		images:      images,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

type CreateProductRequestDTO struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Description   string   `json:"description" validate:"max=5000"`
	Category      string   `json:"category" validate:"required,category"`
	Price         float64  `json:"price" validate:"gt=0"`
	SalePrice     *float64 `json:"sale_price" validate:"omitempty,gt=0"`
	Images        []string `json:"images" validate:"omitempty,dive,url"`
	StockQuantity int      `json:"stock_quantity" validate:"gte=0"`
	Tags          []string `json:"tags" validate:"omitempty,dive,required"`
	Featured      bool     `json:"featured"`
}

type UpdateProductRequestDTO struct {
	Name          *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description   *string  `json:"description" validate:"omitempty,max=5000"`
	Category      *string  `json:"category" validate:"omitempty,category"`
	Price         *float64 `json:"price" validate:"omitempty,gt=0"`
	SalePrice     *float64 `json:"sale_price" validate:"omitempty,gt=0"`
	ClearSale     bool     `json:"clear_sale"`
	Images        []string `json:"images" validate:"omitempty,dive,url"`
	StockQuantity *int     `json:"stock_quantity" validate:"omitempty,gte=0"`
	Tags          []string `json:"tags" validate:"omitempty,dive,required"`
	Featured      *bool    `json:"featured"`
}

type BatchDeleteRequestDTO struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type UpdateStockRequestDTO struct {
	StockQuantity *int `json:"stock_quantity" validate:"required,gte=0"`
}

type SetFeaturedRequestDTO struct {
	Featured *bool `json:"featured" validate:"required"`
}

type DeleteImageRequestDTO struct {
	URL string `json:"url" validate:"required,url"`
}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, pageSize, ok := parsePaging(w, r)
	if !ok {
		return
	}

	products, err := h.products.ListAll(ctx)
	if err != nil {
		respondInternal(w, r, h.log, "failed to list products", err)
		return
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		products = catalog.Search(products, q)
	}
	products = catalog.FilterByCategory(products, r.URL.Query().Get("category"))

	respondJSON(w, http.StatusOK, catalog.Paginate(products, page, pageSize))
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.products.Stats(ctx)
	if err != nil {
		respondInternal(w, r, h.log, "failed to compute product stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateProductRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.SalePrice != nil && *req.SalePrice >= req.Price {
		respondSaleNotBelowPrice(w)
		return
	}

	createdBy := ""
	if claims := getClaims(r.Context()); claims != nil {
		createdBy = claims.UserID
	}

	p, err := h.products.Create(ctx, domain.Product{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		SalePrice:     req.SalePrice,
		Images:        req.Images,
		StockQuantity: req.StockQuantity,
		Tags:          req.Tags,
		Featured:      req.Featured,
	}, createdBy)
	if err != nil {
		respondInternal(w, r, h.log, "failed to create product", err)
		return
	}

	h.log.Info("product created", zap.String("product_id", p.ID), zap.String("created_by", createdBy))
	respondJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateProductRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if req.Price != nil || (req.SalePrice != nil && !req.ClearSale) {
		current, err := h.products.GetProduct(ctx, id)
		if err != nil {
			h.handleProductError(w, r, "failed to load product", err)
			return
		}
		price, sale := current.Price, current.SalePrice
		if req.Price != nil {
			price = *req.Price
		}
		if req.SalePrice != nil {
			sale = req.SalePrice
		}
		if !req.ClearSale && sale != nil && *sale >= price {
			respondSaleNotBelowPrice(w)
			return
		}
	}

	p, err := h.products.Update(ctx, id, domain.ProductChanges{
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		SalePrice:     req.SalePrice,
		ClearSale:     req.ClearSale,
		Images:        req.Images,
		StockQuantity: req.StockQuantity,
		Tags:          req.Tags,
		Featured:      req.Featured,
	})
	if err != nil {
		h.handleProductError(w, r, "failed to update product", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DeleteProduct deactivates a product. With ?hard=true the document and its
// images are removed for good.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if r.URL.Query().Get("hard") != "true" {
		if err := h.products.SoftDelete(ctx, id); err != nil {
			h.handleProductError(w, r, "failed to delete product", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	p, err := h.products.GetProduct(ctx, id)
	if err != nil {
		h.handleProductError(w, r, "failed to delete product", err)
		return
	}
	if err := h.products.Delete(ctx, id); err != nil {
		h.handleProductError(w, r, "failed to delete product", err)
		return
	}
	if h.images != nil {
		for _, url := range p.Images {
			if err := h.images.Delete(ctx, url); err != nil {
				h.log.Warn("failed to delete product image",
					zap.String("product_id", id),
					zap.String("url", url),
					zap.Error(err))
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req BatchDeleteRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.products.BatchSoftDelete(ctx, req.IDs); err != nil {
		h.handleProductError(w, r, "failed to delete products", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStockRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.products.UpdateStock(ctx, chi.URLParam(r, "id"), *req.StockQuantity)
	if err != nil {
		h.handleProductError(w, r, "failed to update stock", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetFeaturedRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.products.SetFeatured(ctx, chi.URLParam(r, "id"), *req.Featured); err != nil {
		h.handleProductError(w, r, "failed to update featured flag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage stores a multipart "image" file and appends its URL to the product.
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		respondError(w, http.StatusServiceUnavailable, "media_unavailable", "image storage is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if _, err := h.products.GetProduct(ctx, id); err != nil {
		h.handleProductError(w, r, "failed to load product", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := r.ParseMultipartForm(h.maxBodySize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "expected a multipart form with an image file")
		return
	}
	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing image file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !media.ValidImageType(contentType) {
		respondError(w, http.StatusUnsupportedMediaType, "invalid_image_type", "only JPEG, PNG, WEBP and GIF images are accepted")
		return
	}

	url, err := h.images.Upload(ctx, id, header.Filename, contentType, file)
	if err != nil {
		respondInternal(w, r, h.log, "failed to upload image", err)
		return
	}

	updated, err := h.products.AddImage(ctx, id, url)
	if err != nil {
		h.handleProductError(w, r, "failed to attach image", err)
		return
	}
	respondJSON(w, http.StatusCreated, updated)
}

func (h *AdminHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		respondError(w, http.StatusServiceUnavailable, "media_unavailable", "image storage is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req DeleteImageRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	p, err := h.products.GetProduct(ctx, id)
	if err != nil {
		h.handleProductError(w, r, "failed to load product", err)
		return
	}
	if !slices.Contains(p.Images, req.URL) {
		respondError(w, http.StatusNotFound, "image_not_found", "image does not belong to product")
		return
	}

	if err := h.images.Delete(ctx, req.URL); err != nil {
		if errors.Is(err, media.ErrInvalidImageURL) {
			respondError(w, http.StatusBadRequest, "invalid_image_url", err.Error())
			return
		}
		respondInternal(w, r, h.log, "failed to delete image", err)
		return
	}

	updated, err := h.products.RemoveImage(ctx, id, req.URL)
	if err != nil {
		h.handleProductError(w, r, "failed to detach image", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// A sale price is never allowed to charge more than the regular price.
func respondSaleNotBelowPrice(w http.ResponseWriter) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "request validation failed",
		Code:    "validation_failed",
		Details: "SalePrice must be lower than Price",
	})
}

func (h *AdminHandler) handleProductError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, repository.ErrNegativeStock), errors.Is(err, repository.ErrNoProductIDs):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	default:
		respondInternal(w, r, h.log, msg, err)
	}
}
