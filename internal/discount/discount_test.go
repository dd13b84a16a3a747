package discount

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/promo"
	"github.com/wichananm65/pantry-shop-backend/internal/subscriber"
)

var cutoff = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type orderCounts map[string]int

func (o orderCounts) CountActiveByContact(ctx context.Context, email, phone string) (int, error) {
	return o[email] + o[phone], nil
}

type failingHistory struct{}

func (failingHistory) CountActiveByContact(context.Context, string, string) (int, error) {
	return 0, errors.New("connection reset")
}

func newArbitrator(history OrderHistory) *Arbitrator {
	subs := subscriber.NewInMemoryRepository([]subscriber.Subscriber{
		{Email: "early@example.com", CreatedAt: cutoff.Add(-30 * 24 * time.Hour)},
		{Email: "late@example.com", CreatedAt: cutoff.Add(24 * time.Hour)},
	})
	promos := promo.NewService(promo.NewInMemoryRepository([]promo.Code{
		{Code: "SAVE10", Active: true, DiscountPercentage: 10, MinOrderAmount: 3000},
		{Code: "SHIPFREE", Active: true, FreeShipping: true},
		{Code: "OLD", Active: false, DiscountPercentage: 20},
		{Code: "WELCOME", Active: true, DiscountPercentage: 5, FirstOrderOnly: true},
	}))
	return NewArbitrator(subs, history, promos, Options{SubscriberCutoff: cutoff, SubscriberPct: 15})
}

func TestResolve_SubscriberSupersedesPromo(t *testing.T) {
	a := newArbitrator(orderCounts{})

	res, err := a.Resolve(t.Context(), Input{Email: "Early@Example.com", Phone: "0771234567", PromoCode: "save10", Subtotal: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(750), res.DiscountAmount)
	assert.True(t, res.PromoSuperseded)
	assert.Empty(t, res.PromoCode)
	assert.False(t, res.FreeShipping)
	assert.NotEmpty(t, res.Notice)
}

func TestResolve_PercentagePromo(t *testing.T) {
	a := newArbitrator(orderCounts{})

	res, err := a.Resolve(t.Context(), Input{Email: "shopper@example.com", Phone: "0771234567", PromoCode: "SAVE10", Subtotal: 4000})
	require.NoError(t, err)
	assert.Equal(t, int64(400), res.DiscountAmount)
	assert.Equal(t, "SAVE10", res.PromoCode)
	assert.False(t, res.FreeShipping)
}

func TestResolve_FreeShippingPromo(t *testing.T) {
	a := newArbitrator(orderCounts{})

	res, err := a.Resolve(t.Context(), Input{Email: "shopper@example.com", PromoCode: "shipfree", Subtotal: 1200})
	require.NoError(t, err)
	assert.Zero(t, res.DiscountAmount)
	assert.True(t, res.FreeShipping)
}

func TestResolve_SubscriberWithPriorOrder(t *testing.T) {
	a := newArbitrator(orderCounts{"0771234567": 1})

	res, err := a.Resolve(t.Context(), Input{Email: "early@example.com", Phone: "0771234567", Subtotal: 5000})
	require.NoError(t, err)
	assert.Zero(t, res.DiscountAmount)

	res, err = a.Resolve(t.Context(), Input{Email: "early@example.com", Phone: "0771234567", PromoCode: "SAVE10", Subtotal: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.DiscountAmount)
}

func TestResolve_PriorOrderMatchesFormattedPhone(t *testing.T) {
	a := newArbitrator(orderCounts{"0771234567": 1})

	res, err := a.Resolve(t.Context(), Input{Email: " Early@Example.com", Phone: "077 123 4567", Subtotal: 5000})
	require.NoError(t, err)
	assert.Zero(t, res.DiscountAmount)

	_, err = a.Resolve(t.Context(), Input{Email: "new@example.com", Phone: "077-123-4567", PromoCode: "WELCOME", Subtotal: 5000})
	assert.True(t, apierr.Is(err, apierr.KindPromoInvalid))
}

func TestResolve_PromoFailures(t *testing.T) {
	cases := []struct {
		name    string
		history orderCounts
		in      Input
		reason  string
	}{
		{"missing", orderCounts{}, Input{Email: "a@example.com", PromoCode: "NOPE", Subtotal: 5000}, ReasonNotFound},
		{"inactive", orderCounts{}, Input{Email: "a@example.com", PromoCode: "OLD", Subtotal: 5000}, ReasonInactive},
		{"minimum", orderCounts{}, Input{Email: "a@example.com", PromoCode: "SAVE10", Subtotal: 2999}, ReasonBelowMinimum},
		{"first order", orderCounts{"a@example.com": 2}, Input{Email: "a@example.com", PromoCode: "WELCOME", Subtotal: 5000}, ReasonFirstOrderOnly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newArbitrator(tc.history).Resolve(t.Context(), tc.in)
			e, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, apierr.KindPromoInvalid, e.Kind)
			assert.Equal(t, tc.reason, e.Details["reason"])
		})
	}
}

func TestResolve_LateSubscriberGetsNothing(t *testing.T) {
	res, err := newArbitrator(orderCounts{}).Resolve(t.Context(), Input{Email: "late@example.com", Subtotal: 5000})
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestResolve_HistoryFailure(t *testing.T) {
	_, err := newArbitrator(failingHistory{}).Resolve(t.Context(), Input{Email: "early@example.com", Subtotal: 5000})
	assert.True(t, apierr.Is(err, apierr.KindCommitFailure))
}

func TestPercentOf_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(750), PercentOf(5000, 15))
	assert.Equal(t, int64(2), PercentOf(15, 10))
	assert.Equal(t, int64(1), PercentOf(14, 10))
	assert.Zero(t, PercentOf(0, 15))
}

// An eligible subscriber holding a valid promo always gets exactly the
// subscriber discount and the promo is reported as superseded.
func TestResolve_DiscountsNeverStack(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	a := newArbitrator(orderCounts{})
	codes := []string{"SAVE10", "SHIPFREE", "WELCOME"}

	properties.Property("subscriber discount excludes promo codes", prop.ForAll(
		func(subtotal int64, idx int) bool {
			res, err := a.Resolve(context.Background(), Input{Email: "early@example.com", PromoCode: codes[idx], Subtotal: subtotal})
			if err != nil {
				return false
			}
			return res.DiscountAmount == PercentOf(subtotal, 15) &&
				res.PromoSuperseded &&
				res.PromoCode == "" &&
				!res.FreeShipping
		},
		gen.Int64Range(3000, 1_000_000),
		gen.IntRange(0, len(codes)-1),
	))

	properties.TestingRun(t)
}

func TestCheckRoute(t *testing.T) {
	app := fiber.New()
	NewHandler(newArbitrator(orderCounts{})).RegisterPublicRoutes(app)

	req := httptest.NewRequest("POST", "/api/discount/check", strings.NewReader(`{"email":"a@example.com","phone":"0771234567","promoCode":"SAVE10","subtotal":4000}`))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	b, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(b), `"discountAmount":400`)

	req = httptest.NewRequest("POST", "/api/discount/check", strings.NewReader(`{"email":"a@example.com","promoCode":"SAVE10","subtotal":100}`))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	b, _ = io.ReadAll(res.Body)
	assert.Contains(t, string(b), `"reason":"below_minimum"`)
}
