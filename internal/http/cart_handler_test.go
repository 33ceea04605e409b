package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/katharos/storefront/internal/checkout"
	"github.com/katharos/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCart_NewSessionIsEmpty(t *testing.T) {
	env := newTestEnv(t, testProducts())

	w := env.do(t, request{method: http.MethodGet, path: "/api/v1/cart"})

	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)

	resp := decode[CartResponse](t, w)
	assert.Equal(t, cookie.Value, resp.SessionID)
	assert.Empty(t, resp.Lines)
	assert.NotNil(t, resp.Lines)
	assert.Zero(t, resp.Subtotal)
	assert.Zero(t, resp.ItemCount)
}

func TestAddItem_Success(t *testing.T) {
	env := newTestEnv(t, testProducts())
	cookie := sessionCookie(t, env.do(t, request{method: http.MethodGet, path: "/api/v1/cart"}))

	w := env.do(t, request{
		method:  http.MethodPost,
		path:    "/api/v1/cart/items",
		body:    AddItemRequestDTO{ProductID: "p1", Quantity: 2},
		cookies: []*http.Cookie{cookie},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[CartResponse](t, w)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "p1", resp.Lines[0].ProductID)
	assert.Equal(t, "Polo Orgánico", resp.Lines[0].Name)
	assert.Equal(t, 2, resp.Lines[0].Quantity)
	assert.InDelta(t, 79.8, resp.Subtotal, 1e-9)
	assert.Equal(t, 2, resp.ItemCount)
	assert.Equal(t, 1, resp.LineCount)
	assert.False(t, resp.LastModifiedAt.IsZero())

	// same cookie sees the same cart
	w = env.do(t, request{method: http.MethodGet, path: "/api/v1/cart", cookies: []*http.Cookie{cookie}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[CartResponse](t, w).Lines, 1)
}

func TestAddItem_MergesAndClampsToStock(t *testing.T) {
	env := newTestEnv(t, testProducts())
	cookie := sessionCookie(t, env.do(t, request{method: http.MethodGet, path: "/api/v1/cart"}))

	for range 2 {
		w := env.do(t, request{
			method:  http.MethodPost,
			path:    "/api/v1/cart/items",
			body:    AddItemRequestDTO{ProductID: "p2", Quantity: 2},
			cookies: []*http.Cookie{cookie},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, request{method: http.MethodGet, path: "/api/v1/cart", cookies: []*http.Cookie{cookie}})
	resp := decode[CartResponse](t, w)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 2, resp.Lines[0].Quantity)
}

func TestAddItem_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"invalid json", "not-an-object", http.StatusBadRequest, "invalid_request"},
		{"missing product", AddItemRequestDTO{Quantity: 1}, http.StatusBadRequest, "validation_failed"},
		{"zero quantity", AddItemRequestDTO{ProductID: "p1"}, http.StatusBadRequest, "validation_failed"},
		{"unknown product", AddItemRequestDTO{ProductID: "nope", Quantity: 1}, http.StatusNotFound, "product_not_found"},
		{"inactive product", AddItemRequestDTO{ProductID: "p4", Quantity: 1}, http.StatusNotFound, "product_not_found"},
		{"out of stock", AddItemRequestDTO{ProductID: "p3", Quantity: 1}, http.StatusConflict, "out_of_stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testProducts())

			w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: tt.body})

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, w).Code)
		})
	}
}

func TestUpdateQuantity_ClampsToStock(t *testing.T) {
	env := newTestEnv(t, testProducts())
	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p1", Quantity: 1}})
	cookie := sessionCookie(t, w)

	w = env.do(t, request{
		method:  http.MethodPut,
		path:    "/api/v1/cart/items/p1",
		body:    UpdateQuantityRequestDTO{Quantity: intPtr(50)},
		cookies: []*http.Cookie{cookie},
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CartResponse](t, w)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 5, resp.Lines[0].Quantity)
}

func TestCartQuantities_ClampedNotRejected(t *testing.T) {
	bulk := domain.Product{ID: "p5", Name: "Calcetines Bambú", Category: "accesorios", Price: 8,
		StockQuantity: 200, IsActive: true}
	env := newTestEnv(t, append(testProducts(), bulk))

	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p5", Quantity: 150}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, 150, decode[CartResponse](t, w).Lines[0].Quantity)
	cookie := sessionCookie(t, w)

	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero floors to one", 0, 1},
		{"negative floors to one", -3, 1},
		{"within stock", 150, 150},
		{"above stock", 500, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, request{
				method:  http.MethodPut,
				path:    "/api/v1/cart/items/p5",
				body:    UpdateQuantityRequestDTO{Quantity: intPtr(tt.requested)},
				cookies: []*http.Cookie{cookie},
			})

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			resp := decode[CartResponse](t, w)
			require.Len(t, resp.Lines, 1)
			assert.Equal(t, tt.want, resp.Lines[0].Quantity)
		})
	}
}

func TestUpdateQuantity_MissingQuantity(t *testing.T) {
	env := newTestEnv(t, testProducts())

	w := env.do(t, request{method: http.MethodPut, path: "/api/v1/cart/items/p1", body: map[string]any{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", decode[ErrorResponse](t, w).Code)
}

func TestUpdateQuantity_UnknownLineIsNoop(t *testing.T) {
	env := newTestEnv(t, testProducts())
	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p1", Quantity: 1}})
	cookie := sessionCookie(t, w)
	before := decode[CartResponse](t, w)

	w = env.do(t, request{
		method:  http.MethodPut,
		path:    "/api/v1/cart/items/p2",
		body:    UpdateQuantityRequestDTO{Quantity: intPtr(1)},
		cookies: []*http.Cookie{cookie},
	})

	require.Equal(t, http.StatusOK, w.Code)
	after := decode[CartResponse](t, w)
	assert.Equal(t, before.Lines, after.Lines)
	assert.True(t, before.LastModifiedAt.Equal(after.LastModifiedAt))
}

func TestRemoveItemAndClear(t *testing.T) {
	env := newTestEnv(t, testProducts())
	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p1", Quantity: 1}})
	cookie := sessionCookie(t, w)
	env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p2", Quantity: 1}, cookies: []*http.Cookie{cookie}})

	w = env.do(t, request{method: http.MethodDelete, path: "/api/v1/cart/items/p1", cookies: []*http.Cookie{cookie}})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[CartResponse](t, w)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "p2", resp.Lines[0].ProductID)

	w = env.do(t, request{method: http.MethodDelete, path: "/api/v1/cart", cookies: []*http.Cookie{cookie}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[CartResponse](t, w).Lines)
}

func TestCart_SessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, testProducts())
	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p1", Quantity: 1}})
	require.Equal(t, http.StatusCreated, w.Code)

	other := env.do(t, request{method: http.MethodGet, path: "/api/v1/cart"})

	assert.NotEqual(t, sessionCookie(t, w).Value, sessionCookie(t, other).Value)
	assert.Empty(t, decode[CartResponse](t, other).Lines)
}

func TestCart_SurvivesEviction(t *testing.T) {
	env := newTestEnv(t, testProducts())
	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p1", Quantity: 3}})
	cookie := sessionCookie(t, w)

	env.carts.Evict(cookie.Value)

	w = env.do(t, request{method: http.MethodGet, path: "/api/v1/cart", cookies: []*http.Cookie{cookie}})
	resp := decode[CartResponse](t, w)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 3, resp.Lines[0].Quantity)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t, testProducts())

	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/checkout"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "empty_cart", decode[ErrorResponse](t, w).Code)
	assert.Empty(t, env.publisher.events)
}

func TestCheckout_HandsOffAndClears(t *testing.T) {
	env := newTestEnv(t, testProducts())
	w := env.do(t, request{method: http.MethodPost, path: "/api/v1/cart/items", body: AddItemRequestDTO{ProductID: "p1", Quantity: 2}})
	cookie := sessionCookie(t, w)

	w = env.do(t, request{method: http.MethodPost, path: "/api/v1/checkout", cookies: []*http.Cookie{cookie}})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[checkout.Result](t, w)
	assert.True(t, strings.HasPrefix(result.Link, "https://wa.me/"+testPhone+"?text="))
	assert.Contains(t, result.Message, "• 2x Polo Orgánico - S/ 79.80")
	assert.InDelta(t, 79.8, result.Subtotal, 1e-9)

	require.Len(t, env.publisher.events, 1)
	assert.Equal(t, cookie.Value, env.publisher.events[0].SessionID)

	w = env.do(t, request{method: http.MethodGet, path: "/api/v1/cart", cookies: []*http.Cookie{cookie}})
	assert.Empty(t, decode[CartResponse](t, w).Lines)
}
