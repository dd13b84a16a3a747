package promo

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSave_OnlyOneFeatured(t *testing.T) {
	repo := NewInMemoryRepository([]Code{{Code: "save10", Active: true, DiscountPercentage: 10, Featured: true}})
	svc := NewService(repo)

	_, err := svc.Save(t.Context(), Code{Code: " freeship ", Active: true, FreeShipping: true, Featured: true})
	require.NoError(t, err)

	old, err := repo.Get(t.Context(), "SAVE10")
	require.NoError(t, err)
	assert.False(t, old.Featured)

	featured, err := svc.Featured(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "FREESHIP", featured.Code)
}

func TestSave_Validation(t *testing.T) {
	svc := NewService(NewInMemoryRepository(nil))

	_, err := svc.Save(t.Context(), Code{Code: "BOTH", DiscountPercentage: 10, FreeShipping: true})
	require.Error(t, err)
	_, err = svc.Save(t.Context(), Code{Code: "NONE"})
	require.Error(t, err)
	_, err = svc.Save(t.Context(), Code{Code: "BIG", DiscountPercentage: 150})
	require.Error(t, err)
}

func TestFeaturedRoute(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	h := NewHandler(NewService(repo))
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	h.RegisterProtectedRoutes(app)

	res, err := app.Test(httptest.NewRequest("GET", "/api/promos/featured", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, res.StatusCode)

	req := httptest.NewRequest("POST", "/api/admin/promos", strings.NewReader(`{"code":"welcome","active":true,"discountPercentage":12,"minOrderAmount":2500,"featured":true}`))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	res, err = app.Test(httptest.NewRequest("GET", "/api/promos/featured", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	b, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(b), `"code":"WELCOME"`)
}

func TestPostgresUpsert_ClearsOtherFeatured(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE promo_codes SET featured = false").WithArgs("SAVE10").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO promo_codes").
		WithArgs("SAVE10", true, int64(10), false, int64(3000), false, true).
		WillReturnRows(sqlmock.NewRows([]string{"code", "active", "discount_percentage", "free_shipping", "min_order_amount", "first_order_only", "featured", "created_at", "updated_at"}).
			AddRow("SAVE10", true, 10, false, 3000, false, true, now, now))
	mock.ExpectCommit()

	saved, err := NewPostgresRepository(db).Upsert(t.Context(), Code{Code: "SAVE10", Active: true, DiscountPercentage: 10, MinOrderAmount: 3000, Featured: true})
	require.NoError(t, err)
	assert.True(t, saved.Featured)
	require.NoError(t, mock.ExpectationsWereMet())
}
