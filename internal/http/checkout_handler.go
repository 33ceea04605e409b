package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/katharos/storefront/internal/checkout"
	"go.uber.org/zap"
)

type Checkouter interface {
	Checkout(ctx context.Context, c checkout.Cart, userID string) (*checkout.Result, error)
}

type CheckoutHandler struct {
	carts    CartProvider
	checkout Checkouter
	timeout  time.Duration
	log      *zap.Logger
}

func NewCheckoutHandler(carts CartProvider, c Checkouter, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		carts:    carts,
		checkout: c,
		timeout:  timeout,
		log:      log,
	}
}

// Checkout hands the session's cart off to WhatsApp and clears it.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	e, err := h.carts.Engine(ctx, getSessionID(r.Context()))
	if err != nil {
		handleCartError(w, r, h.log, err)
		return
	}

	userID := ""
	if claims := getClaims(r.Context()); claims != nil {
		userID = claims.UserID
	}

	result, err := h.checkout.Checkout(ctx, e, userID)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusConflict, "empty_cart", "cart is empty")
			return
		}
		respondInternal(w, r, h.log, "checkout failed", err)
		return
	}

	h.log.Info("checkout handed off",
		zap.String("checkout_id", result.CheckoutID),
		zap.String("session_id", e.SessionID()),
		zap.Int("lines", len(result.Lines)),
		zap.Float64("subtotal", result.Subtotal))

	respondJSON(w, http.StatusOK, result)
}
