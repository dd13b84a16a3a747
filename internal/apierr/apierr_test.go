package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := New(KindInsufficientStock, "Honey is no longer available, only 2 left")
	wrapped := fmt.Errorf("checkout: %w", base)

	assert.True(t, Is(wrapped, KindInsufficientStock))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, fiber.StatusConflict, base.Status)
}

func TestRespond(t *testing.T) {
	app := fiber.New()
	app.Get("/stock", func(c *fiber.Ctx) error {
		return Respond(c, New(KindInsufficientStock, "only 2 left").With("available", 2))
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return Respond(c, errors.New("pq: connection refused"))
	})

	res, err := app.Test(httptest.NewRequest("GET", "/stock", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, res.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "only 2 left", body["error"])
	assert.Equal(t, "INSUFFICIENT_STOCK", body["kind"])
	assert.EqualValues(t, 2, body["available"])

	res, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, res.StatusCode)
	body = map[string]any{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotContains(t, body["error"], "pq:")
}
