package cart

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/pantry-shop-backend/internal/delivery"
	"github.com/wichananm65/pantry-shop-backend/internal/discount"
	"github.com/wichananm65/pantry-shop-backend/internal/product"
	"github.com/wichananm65/pantry-shop-backend/internal/promo"
	"github.com/wichananm65/pantry-shop-backend/internal/subscriber"
)

type noOrders struct{}

func (noOrders) CountActiveByContact(context.Context, string, string) (int, error) { return 0, nil }

func makeAppWithCartHandler(t *testing.T) *fiber.App {
	t.Helper()
	products := product.NewService(product.NewInMemoryRepository([]product.Product{
		{ID: "jam", Name: "Wood-apple jam", Price: 1200, OpeningStock: 3},
		{ID: "tea", Name: "Dimbula tea", Price: 2500, OpeningStock: 20},
	}))
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	subs := subscriber.NewInMemoryRepository([]subscriber.Subscriber{{Email: "early@example.com", CreatedAt: cutoff.AddDate(0, -1, 0)}})
	promos := promo.NewService(promo.NewInMemoryRepository([]promo.Code{
		{Code: "SAVE10", Active: true, DiscountPercentage: 10, MinOrderAmount: 3000},
		{Code: "SHIPFREE", Active: true, FreeShipping: true},
	}))
	arb := discount.NewArbitrator(subs, noOrders{}, promos, discount.Options{SubscriberCutoff: cutoff, SubscriberPct: 15})

	app := fiber.New()
	NewHandler(NewStore(NewMemoryPersister()), products, arb, delivery.NewResolver(delivery.Fees{Colombo: 350, Suburbs: 450, Others: 650}), nil).
		RegisterPublicRoutes(app)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := app.Test(req, -1)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func newSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	code, body := call(t, app, "POST", "/api/cart", "")
	require.Equal(t, fiber.StatusCreated, code)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestCartRoutes_ItemLifecycle(t *testing.T) {
	app := makeAppWithCartHandler(t)
	id := newSession(t, app)
	base := "/api/cart/" + id

	code, body := call(t, app, "POST", base+"/items", `{"productId":"tea","quantity":2}`)
	require.Equal(t, fiber.StatusOK, code, body)
	assert.EqualValues(t, 5000, body["subtotal"])
	assert.EqualValues(t, 2, body["itemCount"])

	code, body = call(t, app, "POST", base+"/items/tea/increase", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 3, body["itemCount"])

	code, body = call(t, app, "POST", base+"/items/tea/decrease", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 2, body["itemCount"])

	code, _ = call(t, app, "POST", base+"/items/jam/increase", "")
	assert.Equal(t, fiber.StatusNotFound, code)

	code, body = call(t, app, "DELETE", base+"/items/tea", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 0, body["subtotal"])

	code, body = call(t, app, "GET", base, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, id, body["id"])
}

func TestCartRoutes_AddItemChecks(t *testing.T) {
	app := makeAppWithCartHandler(t)
	id := newSession(t, app)

	code, body := call(t, app, "POST", "/api/cart/"+id+"/items", `{"productId":"jam","quantity":5}`)
	assert.Equal(t, fiber.StatusConflict, code)
	assert.EqualValues(t, 3, body["available"])

	code, _ = call(t, app, "POST", "/api/cart/"+id+"/items", `{"productId":"ghost"}`)
	assert.Equal(t, fiber.StatusNotFound, code)

	code, _ = call(t, app, "POST", "/api/cart/"+id+"/items", `{"quantity":1}`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	code, body = call(t, app, "GET", "/api/cart/does-not-exist", "")
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "CART_NOT_FOUND", body["kind"])
}

func TestCartRoutes_PromoAndQuote(t *testing.T) {
	app := makeAppWithCartHandler(t)
	id := newSession(t, app)
	base := "/api/cart/" + id

	_, _ = call(t, app, "POST", base+"/items", `{"productId":"tea","quantity":2}`)
	code, _ := call(t, app, "PUT", base+"/customer", `{"email":"shopper@example.com","phone":"0771234567"}`)
	require.Equal(t, fiber.StatusOK, code)

	code, body := call(t, app, "POST", base+"/promo", `{"code":"save10"}`)
	require.Equal(t, fiber.StatusOK, code, body)
	p, ok := body["promo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SAVE10", p["code"])

	code, body = call(t, app, "GET", base+"/quote?district=Kandy&city=Peradeniya", "")
	require.Equal(t, fiber.StatusOK, code, body)
	assert.EqualValues(t, 5000, body["subtotal"])
	assert.EqualValues(t, 500, body["discountAmount"])
	assert.EqualValues(t, 650, body["shippingCost"])
	assert.EqualValues(t, 5150, body["total"])

	// dropping below the minimum revokes the promo
	code, body = call(t, app, "POST", base+"/items/tea/decrease", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Nil(t, body["promo"])
	assert.NotEmpty(t, body["notices"])

	code, body = call(t, app, "POST", base+"/promo", `{"code":"NOPE"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, discount.ReasonNotFound, body["reason"])
}

func TestCartRoutes_SubscriberQuote(t *testing.T) {
	app := makeAppWithCartHandler(t)
	id := newSession(t, app)
	base := "/api/cart/" + id

	_, _ = call(t, app, "POST", base+"/items", `{"productId":"tea","quantity":2}`)
	_, _ = call(t, app, "PUT", base+"/customer", `{"email":"Early@example.com","phone":"0771234567"}`)

	code, body := call(t, app, "POST", base+"/promo", `{"code":"SAVE10"}`)
	require.Equal(t, fiber.StatusOK, code, body)
	assert.Nil(t, body["promo"])
	assert.NotEmpty(t, body["notices"])

	code, body = call(t, app, "GET", base+"/quote?district=Colombo&city=Fort", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.EqualValues(t, 750, body["discountAmount"])
	assert.EqualValues(t, 350, body["shippingCost"])
	assert.EqualValues(t, 4600, body["total"])

	code, _ = call(t, app, "GET", base+"/quote", "")
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestCartRoutes_Reset(t *testing.T) {
	app := makeAppWithCartHandler(t)
	id := newSession(t, app)

	_, _ = call(t, app, "POST", "/api/cart/"+id+"/items", `{"productId":"jam"}`)
	code, body := call(t, app, "DELETE", "/api/cart/"+id, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Empty(t, body["items"])
	assert.EqualValues(t, 0, body["itemCount"])
}
