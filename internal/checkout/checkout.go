package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/katharos/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

const (
	greeting = "¡Hola! Me gustaría realizar el siguiente pedido:\n\n"
	closing  = "Por favor, necesitaría confirmar este pedido y coordinar el pago y la entrega. ¡Gracias!"
)

// Cart is what the handoff needs from a cart engine. Drain must read and
// empty the cart atomically.
type Cart interface {
	SessionID() string
	Drain() domain.Cart
}

type EventPublisher interface {
	PublishCheckout(ctx context.Context, evt domain.CheckoutEvent) error
}

type Result struct {
	CheckoutID string            `json:"checkout_id"`
	Link       string            `json:"link"`
	Message    string            `json:"message"`
	Subtotal   float64           `json:"subtotal"`
	Lines      []domain.CartLine `json:"lines"`
}

// Handoff turns a cart into a WhatsApp order message.
type Handoff struct {
	phone     string
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewHandoff(phone string, publisher EventPublisher, log *zap.Logger) *Handoff {
	return &Handoff{
		phone:     phone,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Checkout hands the cart off. userID is empty for guests.
func (h *Handoff) Checkout(ctx context.Context, c Cart, userID string) (*Result, error) {
	drained := c.Drain()
	if len(drained.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	lines := drained.Lines
	subtotal := drained.Subtotal()
	message := BuildMessage(lines, subtotal)
	link := h.Link(message)
	checkoutID := uuid.NewString()

	if h.publisher != nil {
		err := h.publisher.PublishCheckout(ctx, domain.CheckoutEvent{
			CheckoutID: checkoutID,
			SessionID:  c.SessionID(),
			UserID:     userID,
			Lines:      lines,
			Subtotal:   subtotal,
			Link:       link,
			CreatedAt:  h.now(),
		})
		if err != nil {
			h.log.Warn("failed to publish checkout handoff",
				zap.String("session_id", c.SessionID()),
				zap.Error(err))
		}
	}

	return &Result{
		CheckoutID: checkoutID,
		Link:       link,
		Message:    message,
		Subtotal:   subtotal,
		Lines:      lines,
	}, nil
}

// Link percent-encodes message with spaces as %20 rather than '+'.
func (h *Handoff) Link(message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", h.phone, text)
}

func BuildMessage(lines []domain.CartLine, subtotal float64) string {
	var b strings.Builder
	b.WriteString(greeting)
	for _, l := range lines {
		fmt.Fprintf(&b, "• %dx %s - S/ %s\n", l.Quantity, l.Name, FormatPrice(l.Total()))
	}
	fmt.Fprintf(&b, "\nTotal: S/ %s\n\n", FormatPrice(subtotal))
	b.WriteString(closing)
	return b.String()
}

// FormatPrice renders an amount with two decimals for display.
func FormatPrice(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
