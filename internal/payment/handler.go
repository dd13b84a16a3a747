package payment

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/logger"
	"github.com/wichananm65/pantry-shop-backend/internal/order"
)

// Confirmer marks an order paid; order.Service satisfies it.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, number string) (order.Order, bool, error)
}

type Handler struct {
	gateway *PayHere
	orders  Confirmer
	log     *logger.Logger
}

func NewHandler(gateway *PayHere, orders Confirmer, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{gateway: gateway, orders: orders, log: log}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/payment/notify", h.notify)
}

// notify receives the gateway's server-to-server callback. Only signed,
// successful notifications confirm the order.
func (h *Handler) notify(c *fiber.Ctx) error {
	n := new(Notification)
	if err := c.BodyParser(n); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	if !h.gateway.Verify(*n) {
		h.log.Warn("payment notification rejected", "order", n.OrderID, "status", n.StatusCode)
		return apierr.Respond(c, apierr.New(apierr.KindUnauthorized, "invalid payment signature"))
	}
	if n.StatusCode != StatusSuccess {
		h.log.Info("payment not captured", "order", n.OrderID, "status", n.StatusCode)
		return c.SendStatus(fiber.StatusOK)
	}
	if _, _, err := h.orders.ConfirmPayment(c.UserContext(), n.OrderID); err != nil {
		return apierr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
