package promo

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/api/promos/featured", h.getFeatured)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/admin/promos", h.savePromo)
}

// getFeatured is what the storefront banner shows; only the public parts of
// the rule are exposed.
func (h *Handler) getFeatured(c *fiber.Ctx) error {
	code, err := h.service.Featured(c.UserContext())
	if err != nil {
		if apierr.Is(err, apierr.KindPromoInvalid) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return apierr.Respond(c, err)
	}
	return c.JSON(fiber.Map{
		"code":               code.Code,
		"discountPercentage": code.DiscountPercentage,
		"isFreeShipping":     code.FreeShipping,
		"minOrderAmount":     code.MinOrderAmount,
		"firstOrderOnly":     code.FirstOrderOnly,
	})
}

func (h *Handler) savePromo(c *fiber.Ctx) error {
	payload := new(Code)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	saved, err := h.service.Save(c.UserContext(), *payload)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(saved)
}
