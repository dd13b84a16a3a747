package delivery

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
)

type Handler struct {
	resolver *Resolver
}

func NewHandler(r *Resolver) *Handler {
	return &Handler{resolver: r}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/api/delivery/fee", h.getFee)
}

func (h *Handler) getFee(c *fiber.Ctx) error {
	district, city := c.Query("district"), c.Query("city")
	if strings.TrimSpace(district) == "" || strings.TrimSpace(city) == "" {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "district and city are required"))
	}
	return c.JSON(fiber.Map{
		"tier": h.resolver.Tier(district, city),
		"fee":  h.resolver.Fee(district, city, false),
	})
}
