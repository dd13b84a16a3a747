package discount

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
)

type Handler struct {
	arbitrator *Arbitrator
}

func NewHandler(a *Arbitrator) *Handler {
	return &Handler{arbitrator: a}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/discount/check", h.check)
}

// check lets the storefront re-run eligibility when the shopper edits their
// contact details or cart. Checkout repeats the same decision server side.
func (h *Handler) check(c *fiber.Ctx) error {
	payload := new(Input)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	if payload.Email == "" && payload.Phone == "" {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "email or phone is required"))
	}
	if payload.Subtotal < 0 {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "subtotal must be >= 0"))
	}
	res, err := h.arbitrator.Resolve(c.UserContext(), *payload)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(res)
}
