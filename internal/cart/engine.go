package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/katharos/storefront/internal/domain"
	"github.com/katharos/storefront/internal/store"
	"go.uber.org/zap"
)

const persistTimeout = time.Second

// Engine owns the cart of one browsing session. Mutations are serialized by
// mu and each one is followed by a full write of the cart to the store.
// Store failures are logged, never returned.
type Engine struct {
	mu        sync.RWMutex
	sessionID string
	cart      domain.Cart
	store     store.CartStore
	log       *zap.Logger
	now       func() time.Time
	onChange  func(sessionID string, c domain.Cart)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithChangeHook registers fn to run after every mutation, outside the lock.
func WithChangeHook(fn func(sessionID string, c domain.Cart)) Option {
	return func(e *Engine) { e.onChange = fn }
}

func NewEngine(sessionID string, s store.CartStore, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		sessionID: sessionID,
		store:     s,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cart = domain.NewCart(e.now())
	return e
}

func (e *Engine) SessionID() string {
	return e.sessionID
}

// Load rehydrates the cart from the store. A missing blob leaves the cart
// empty; an unreadable one is logged and replaced by an empty cart.
func (e *Engine) Load(ctx context.Context) error {
	data, err := e.store.Load(ctx, e.sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	c, err := Unmarshal(data)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.log.Warn("resetting unreadable cart state",
			zap.String("session_id", e.sessionID),
			zap.Error(err))
		e.cart = domain.NewCart(e.now())
		e.persistLocked()
		return nil
	}
	e.cart = c
	return nil
}

// AddLine merges candidate into the cart. An existing line keeps its position,
// accumulates quantity up to the candidate's stock snapshot and takes the
// candidate's price and stock snapshots. New lines are appended.
func (e *Engine) AddLine(candidate domain.CartLine) error {
	switch {
	case candidate.ProductID == "":
		return ErrInvalidProduct
	case candidate.Quantity < 1:
		return ErrInvalidQuantity
	case candidate.StockSnapshot < 1:
		return ErrOutOfStock
	}

	e.mutate(func(c *domain.Cart) bool {
		if i := indexOf(c.Lines, candidate.ProductID); i >= 0 {
			existing := c.Lines[i]
			existing.Quantity = min(existing.Quantity+candidate.Quantity, candidate.StockSnapshot)
			existing.UnitPrice = candidate.UnitPrice
			existing.UnitSalePrice = copyPrice(candidate.UnitSalePrice)
			existing.StockSnapshot = candidate.StockSnapshot
			c.Lines[i] = existing
			return true
		}
		line := candidate
		line.UnitSalePrice = copyPrice(candidate.UnitSalePrice)
		line.Quantity = min(candidate.Quantity, candidate.StockSnapshot)
		c.Lines = append(c.Lines, line)
		return true
	})
	return nil
}

func (e *Engine) RemoveLine(productID string) {
	e.mutate(func(c *domain.Cart) bool {
		i := indexOf(c.Lines, productID)
		if i < 0 {
			return false
		}
		c.Lines = append(c.Lines[:i:i], c.Lines[i+1:]...)
		return true
	})
}

// SetQuantity clamps quantity into [1, stockSnapshot] of the line.
func (e *Engine) SetQuantity(productID string, quantity int) {
	e.mutate(func(c *domain.Cart) bool {
		i := indexOf(c.Lines, productID)
		if i < 0 {
			return false
		}
		c.Lines[i].Quantity = clamp(quantity, 1, c.Lines[i].StockSnapshot)
		return true
	})
}

func (e *Engine) Clear() {
	e.mutate(func(c *domain.Cart) bool {
		c.Lines = []domain.CartLine{}
		return true
	})
}

// Drain returns the cart as it was and empties it in the same critical
// section, so nothing added concurrently is cleared unseen. An empty cart is
// returned as is, without a write.
func (e *Engine) Drain() domain.Cart {
	var drained domain.Cart
	e.mutate(func(c *domain.Cart) bool {
		drained = c.Clone()
		if len(c.Lines) == 0 {
			return false
		}
		c.Lines = []domain.CartLine{}
		return true
	})
	return drained
}

// Subtotal is not rounded; formatting is left to presentation.
func (e *Engine) Subtotal() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cart.Subtotal()
}

// ItemCount sums quantities, not lines.
func (e *Engine) ItemCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, l := range e.cart.Lines {
		n += l.Quantity
	}
	return n
}

func (e *Engine) Lines() []domain.CartLine {
	return e.Snapshot().Lines
}

func (e *Engine) Snapshot() domain.Cart {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cart.Clone()
}

func (e *Engine) IsEmpty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cart.Lines) == 0
}

func (e *Engine) mutate(fn func(c *domain.Cart) bool) {
	e.mu.Lock()
	if !fn(&e.cart) {
		e.mu.Unlock()
		return
	}
	e.cart.LastModifiedAt = e.now()
	e.persistLocked()
	snapshot := e.cart.Clone()
	e.mu.Unlock()

	if e.onChange != nil {
		e.onChange(e.sessionID, snapshot)
	}
}

// persistLocked must be called with mu held so writes reach the store in
// mutation order.
func (e *Engine) persistLocked() {
	data, err := Marshal(e.cart)
	if err != nil {
		e.log.Error("failed to encode cart", zap.String("session_id", e.sessionID), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.store.Save(ctx, e.sessionID, data); err != nil {
		e.log.Error("failed to persist cart", zap.String("session_id", e.sessionID), zap.Error(err))
	}
}

func indexOf(lines []domain.CartLine, productID string) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
