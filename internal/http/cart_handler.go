package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/katharos/storefront/internal/cart"
	"github.com/katharos/storefront/internal/domain"
	"github.com/katharos/storefront/internal/service"
	"go.uber.org/zap"
)

// CartProvider hands out the live cart engine of a session.
type CartProvider interface {
	Engine(ctx context.Context, sessionID string) (*cart.Engine, error)
	AddProduct(ctx context.Context, sessionID, productID string, quantity int) (*cart.Engine, error)
}

type CartHandler struct {
	carts   CartProvider
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartProvider, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

// Quantities above the product's stock are clamped by the cart, not rejected.
type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// Quantity may be any integer; the cart clamps it into [1, stock].
type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type CartResponse struct {
	SessionID      string            `json:"session_id"`
	Lines          []domain.CartLine `json:"lines"`
	Subtotal       float64           `json:"subtotal"`
	ItemCount      int               `json:"item_count"`
	LineCount      int               `json:"line_count"`
	LastModifiedAt time.Time         `json:"last_modified_at"`
}

func newCartResponse(sessionID string, c domain.Cart) CartResponse {
	resp := CartResponse{
		SessionID:      sessionID,
		Lines:          c.Lines,
		LineCount:      len(c.Lines),
		LastModifiedAt: c.LastModifiedAt,
	}
	if resp.Lines == nil {
		resp.Lines = []domain.CartLine{}
	}
	for _, l := range c.Lines {
		resp.Subtotal += l.Total()
		resp.ItemCount += l.Quantity
	}
	return resp
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(e.SessionID(), e.Snapshot()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	e, err := h.carts.AddProduct(ctx, getSessionID(r.Context()), req.ProductID, req.Quantity)
	if err != nil {
		handleCartError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(e.SessionID(), e.Snapshot()))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if !decodeAndValidate(w, r, &req) {
		return
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	e.SetQuantity(productID, *req.Quantity)

	respondJSON(w, http.StatusOK, newCartResponse(e.SessionID(), e.Snapshot()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	e.RemoveLine(productID)

	respondJSON(w, http.StatusOK, newCartResponse(e.SessionID(), e.Snapshot()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	e.Clear()

	respondJSON(w, http.StatusOK, newCartResponse(e.SessionID(), e.Snapshot()))
}

func (h *CartHandler) engine(w http.ResponseWriter, r *http.Request) (*cart.Engine, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	e, err := h.carts.Engine(ctx, getSessionID(r.Context()))
	if err != nil {
		handleCartError(w, r, h.log, err)
		return nil, false
	}
	return e, true
}

func handleCartError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrEmptySession):
		respondError(w, http.StatusBadRequest, "missing_session", "cart session is missing")
	case errors.Is(err, service.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, cart.ErrOutOfStock):
		respondError(w, http.StatusConflict, "out_of_stock", "product is out of stock")
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidProduct):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "cart store did not respond in time")
	default:
		respondInternal(w, r, log, "cart operation failed", err)
	}
}
