package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/katharos/storefront/internal/cart"
	"github.com/katharos/storefront/internal/domain"
	"github.com/katharos/storefront/internal/repository"
	"github.com/katharos/storefront/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrEmptySession    = errors.New("session id is empty")
)

// ProductLookup is the slice of the catalog the cart needs.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// ChangeNotifier is told about every cart mutation on this instance.
type ChangeNotifier interface {
	CartChanged(sessionID string, c domain.Cart)
}

// CartService keeps one Engine per browsing session. Engines not touched
// within the idle timeout are dropped by Sweep; their carts stay in the store.
type CartService struct {
	store       store.CartStore
	catalog     ProductLookup
	log         *zap.Logger
	notifier    ChangeNotifier
	idleTimeout time.Duration
	now         func() time.Time
	sfg         singleflight.Group // collapses concurrent first loads of a session

	mu      sync.RWMutex
	engines map[string]*entry
}

type entry struct {
	engine   *cart.Engine
	lastUsed atomic.Int64 // unix nanos
}

type Option func(*CartService)

// WithIdleTimeout sets how long an engine may go unused before Sweep drops
// it. Zero keeps engines until they are evicted explicitly.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *CartService) { s.idleTimeout = d }
}

func NewCartService(s store.CartStore, catalog ProductLookup, log *zap.Logger, opts ...Option) *CartService {
	svc := &CartService{
		store:   s,
		catalog: catalog,
		log:     log,
		now:     time.Now,
		engines: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SetNotifier must be called before the service handles requests.
func (s *CartService) SetNotifier(n ChangeNotifier) {
	s.notifier = n
}

func (s *CartService) Engine(ctx context.Context, sessionID string) (*cart.Engine, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	if e := s.cached(sessionID); e != nil {
		return e, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if e := s.cached(sessionID); e != nil {
			return e, nil
		}

		e := cart.NewEngine(sessionID, s.store, s.log, cart.WithChangeHook(s.changed))
		if err := e.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}

		ent := &entry{engine: e}
		ent.lastUsed.Store(s.now().UnixNano())
		s.mu.Lock()
		s.engines[sessionID] = ent
		s.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cart.Engine), nil
}

// AddProduct snapshots the catalog entry for productID into the session's cart.
func (s *CartService) AddProduct(ctx context.Context, sessionID, productID string, quantity int) (*cart.Engine, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotFound
	}

	e, err := s.Engine(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := e.AddLine(domain.NewCartLine(*product, quantity)); err != nil {
		return nil, err
	}
	return e, nil
}

// Evict drops the in-memory engine; the next access reloads it from the store.
func (s *CartService) Evict(sessionID string) {
	s.mu.Lock()
	delete(s.engines, sessionID)
	s.mu.Unlock()
	s.sfg.Forget(sessionID)
}

// Sweep drops every engine idle for longer than the idle timeout and returns
// how many were dropped.
func (s *CartService) Sweep() int {
	if s.idleTimeout <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTimeout).UnixNano()

	s.mu.Lock()
	var idle []string
	for id, ent := range s.engines {
		if ent.lastUsed.Load() < cutoff {
			delete(s.engines, id)
			idle = append(idle, id)
		}
	}
	s.mu.Unlock()

	for _, id := range idle {
		s.sfg.Forget(id)
	}
	return len(idle)
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *CartService) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug("dropped idle carts", zap.Int("count", n), zap.Int("remaining", s.Sessions()))
			}
		}
	}
}

func (s *CartService) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.engines)
}

func (s *CartService) cached(sessionID string) *cart.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.engines[sessionID]
	if !ok {
		return nil
	}
	ent.lastUsed.Store(s.now().UnixNano())
	return ent.engine
}

func (s *CartService) changed(sessionID string, c domain.Cart) {
	if s.notifier != nil {
		s.notifier.CartChanged(sessionID, c)
	}
}
