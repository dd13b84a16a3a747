package checkout

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/logger"
)

const idempotencyHeader = "Idempotency-Key"

type Handler struct {
	service *Service
	log     *logger.Logger
}

func NewHandler(s *Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: s, log: log}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/checkout", h.checkout)
}

func (h *Handler) checkout(c *fiber.Ctx) error {
	req, err := ParseRequest(c.Body())
	if err != nil {
		return apierr.Respond(c, err)
	}
	key := strings.TrimSpace(c.Get(idempotencyHeader))
	if len(key) > 200 {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, idempotencyHeader+" is too long"))
	}

	receipt, err := h.service.Checkout(c.UserContext(), req, key)
	if err != nil {
		if e, ok := apierr.As(err); ok && e.Err != nil {
			h.log.Error("checkout failed", "kind", e.Kind, "error", e.Err)
		} else if !ok {
			h.log.Error("checkout failed", "error", err)
		}
		return apierr.Respond(c, err)
	}
	return c.JSON(receipt)
}
