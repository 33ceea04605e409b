package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/katharos/storefront/internal/auth"
	"github.com/katharos/storefront/internal/checkout"
	"github.com/katharos/storefront/internal/domain"
	"github.com/katharos/storefront/internal/media"
	"github.com/katharos/storefront/internal/repository"
	"github.com/katharos/storefront/internal/service"
	"github.com/katharos/storefront/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPhone      = "51999999999"
	testAdminEmail = "admin@katharos.pe"
)

type mockProductRepo struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	seq      int
	err      error
}

func newMockProductRepo(products ...domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) sorted(keep func(domain.Product) bool) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []domain.Product{}
	for _, p := range m.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockProductRepo) ListAll(_ context.Context) ([]domain.Product, error) {
	return m.sorted(func(domain.Product) bool { return true })
}

func (m *mockProductRepo) ListActive(_ context.Context) ([]domain.Product, error) {
	return m.sorted(func(p domain.Product) bool { return p.IsActive })
}

func (m *mockProductRepo) ListByCategory(_ context.Context, category string) ([]domain.Product, error) {
	return m.sorted(func(p domain.Product) bool {
		return p.IsActive && (category == "" || category == domain.CategoryAll || p.Category == category)
	})
}

func (m *mockProductRepo) Search(ctx context.Context, query string) ([]domain.Product, error) {
	active, err := m.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := []domain.Product{}
	for _, p := range active {
		if bytes.Contains(bytes.ToLower([]byte(p.Name)), bytes.ToLower([]byte(query))) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Featured(_ context.Context, limit int64) ([]domain.Product, error) {
	out, err := m.sorted(func(p domain.Product) bool { return p.IsActive && p.Featured })
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockProductRepo) Create(_ context.Context, p domain.Product, createdBy string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = fmt.Sprintf("new-%d", m.seq)
	p.CreatedBy = createdBy
	p.IsActive = true
	if p.Images == nil {
		p.Images = []string{}
	}
	m.products[p.ID] = p
	return &p, nil
}

func (m *mockProductRepo) Update(_ context.Context, id string, c domain.ProductChanges) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.SalePrice != nil {
		p.SalePrice = c.SalePrice
	}
	if c.ClearSale {
		p.SalePrice = nil
	}
	if c.Images != nil {
		p.Images = c.Images
	}
	if c.StockQuantity != nil {
		p.StockQuantity = *c.StockQuantity
	}
	if c.Featured != nil {
		p.Featured = *c.Featured
	}
	m.products[id] = p
	return &p, nil
}

func (m *mockProductRepo) UpdateStock(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity < 0 {
		return nil, repository.ErrNegativeStock
	}
	return m.Update(ctx, id, domain.ProductChanges{StockQuantity: &quantity})
}

func (m *mockProductRepo) AddImage(_ context.Context, id, url string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	p.Images = append(slices.Clone(p.Images), url)
	m.products[id] = p
	return &p, nil
}

func (m *mockProductRepo) RemoveImage(_ context.Context, id, url string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	p.Images = slices.DeleteFunc(slices.Clone(p.Images), func(u string) bool { return u == url })
	m.products[id] = p
	return &p, nil
}

func (m *mockProductRepo) SetFeatured(ctx context.Context, id string, featured bool) error {
	_, err := m.Update(ctx, id, domain.ProductChanges{Featured: &featured})
	return err
}

func (m *mockProductRepo) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.IsActive = false
	m.products[id] = p
	return nil
}

func (m *mockProductRepo) BatchSoftDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return repository.ErrNoProductIDs
	}
	for _, id := range ids {
		_ = m.SoftDelete(ctx, id)
	}
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) Stats(_ context.Context) (domain.ProductStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s domain.ProductStats
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		s.Total++
		if p.StockQuantity <= 0 {
			s.OutOfStock++
		}
		if p.Featured {
			s.Featured++
		}
	}
	return s, nil
}

func (m *mockProductRepo) get(id string) (domain.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok
}

type mockImageStore struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (m *mockImageStore) Upload(_ context.Context, productID, filename, _ string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "https://res.cloudinary.com/demo/image/upload/v1/product-images/" + productID + "/" + filename
	m.uploaded = append(m.uploaded, url)
	return url, nil
}

func (m *mockImageStore) Delete(_ context.Context, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, imageURL)
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.CheckoutEvent
}

func (m *mockPublisher) PublishCheckout(_ context.Context, evt domain.CheckoutEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

type mockUserRepo struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func (m *mockUserRepo) Create(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return auth.ErrEmailTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return &u, nil
}

func (m *mockUserRepo) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

type testEnv struct {
	router    http.Handler
	products  *mockProductRepo
	images    *mockImageStore
	publisher *mockPublisher
	auth      *auth.Service
	carts     *service.CartService
}

type envOption func(*envConfig)

type envConfig struct {
	noImages bool
}

func withoutImages() envOption {
	return func(c *envConfig) { c.noImages = true }
}

func newTestEnv(t *testing.T, products []domain.Product, opts ...envOption) *testEnv {
	t.Helper()

	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := zap.NewNop()
	env := &testEnv{
		products:  newMockProductRepo(products...),
		images:    &mockImageStore{},
		publisher: &mockPublisher{},
	}
	env.carts = service.NewCartService(store.NewRedisStore(client, 0), env.products, log)
	env.auth = auth.NewService(&mockUserRepo{users: make(map[string]domain.User)}, "test-secret", log,
		auth.WithAdminEmails(testAdminEmail))

	handoff := checkout.NewHandoff(testPhone, env.publisher, log)

	var images media.ImageStore
	if !cfg.noImages {
		images = env.images
	}
	admin := NewAdminHandler(env.products, images, 5*time.Second, 5<<20, log)

	env.router = NewRouter(RouterConfig{
		RequestTimeout: 5 * time.Second,
		Tokens:         env.auth,
		Carts:          NewCartHandler(env.carts, 5*time.Second, log),
		Checkout:       NewCheckoutHandler(env.carts, handoff, 5*time.Second, log),
		Products:       NewProductHandler(env.products, 5*time.Second, log),
		Auth:           NewAuthHandler(env.auth, 5*time.Second, log),
		Admin:          admin,
	})
	return env
}

type request struct {
	method  string
	path    string
	body    interface{}
	token   string
	cookies []*http.Cookie
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

// tokenFor registers email (when needed) and logs in.
func (e *testEnv) tokenFor(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()

	_, err := e.auth.Register(ctx, auth.RegisterRequest{Email: email, Password: "secret123"})
	if err != nil {
		require.ErrorIs(t, err, auth.ErrEmailTaken)
	}
	token, _, err := e.auth.Login(ctx, email, "secret123")
	require.NoError(t, err)
	return token
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("response carries no %s cookie", SessionCookieName)
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func testProducts() []domain.Product {
	return []domain.Product{
		{ID: "p1", Name: "Polo Orgánico", Category: "hombre", Price: 45, SalePrice: floatPtr(39.9),
			Images: []string{"https://img/p1.jpg"}, StockQuantity: 5, Featured: true, IsActive: true},
		{ID: "p2", Name: "Vestido Lino", Category: "mujer", Price: 120,
			Images: []string{"https://img/p2.jpg"}, StockQuantity: 2, IsActive: true},
		{ID: "p3", Name: "Bolsa Yute", Category: "accesorios", Price: 25, StockQuantity: 0, IsActive: true},
		{ID: "p4", Name: "Polo Retirado", Category: "hombre", Price: 30, StockQuantity: 3, IsActive: false},
	}
}
