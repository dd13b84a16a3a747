package delivery

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fees = Fees{Colombo: 350, Suburbs: 450, Others: 650}

func TestResolver(t *testing.T) {
	r := NewResolver(fees)

	cases := []struct {
		district, city string
		tier           Tier
		fee            int64
	}{
		{"Colombo", "Kollupitiya", TierColombo, 350},
		{"  colombo ", "colombo   07", TierColombo, 350},
		{"Colombo", "Dehiwala", TierSuburbs, 450},
		{"Gampaha", "Wattala", TierSuburbs, 450},
		// core areas only count inside the capital district
		{"Gampaha", "Borella", TierOthers, 650},
		{"Kandy", "Peradeniya", TierOthers, 650},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.tier, r.Tier(tc.district, tc.city), "%s/%s", tc.district, tc.city)
		assert.Equal(t, tc.fee, r.Fee(tc.district, tc.city, false), "%s/%s", tc.district, tc.city)
		assert.Zero(t, r.Fee(tc.district, tc.city, true))
	}
}

func TestFeeRoute(t *testing.T) {
	app := fiber.New()
	NewHandler(NewResolver(fees)).RegisterPublicRoutes(app)

	res, err := app.Test(httptest.NewRequest("GET", "/api/delivery/fee?district=Colombo&city=Nugegoda", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	b, _ := io.ReadAll(res.Body)
	assert.JSONEq(t, `{"tier":"suburbs","fee":450}`, string(b))

	res, err = app.Test(httptest.NewRequest("GET", "/api/delivery/fee?district=Colombo", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
}
