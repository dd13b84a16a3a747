package order

import (
	"strings"

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
	app.Post("/api/payment-success", h.paymentSuccess)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/admin/orders", h.listOrders)
	app.Get("/api/admin/orders/:number", h.getOrder)
	app.Patch("/api/admin/orders/:number/status", h.updateStatus)
	app.Patch("/api/admin/orders/:number/payment", h.updatePayment)
}

type paymentSuccessRequest struct {
	OrderID string `json:"orderId"`
}

// paymentSuccess is called by the storefront once the card gateway reports
// completion. Repeated calls for the same order are no-ops.
func (h *Handler) paymentSuccess(c *fiber.Ctx) error {
	payload := new(paymentSuccessRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	number := strings.TrimSpace(payload.OrderID)
	if number == "" {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "orderId is required"))
	}
	o, changed, err := h.service.ConfirmPayment(c.UserContext(), number)
	if err != nil {
		return apierr.Respond(c, err)
	}
	msg := "payment confirmed"
	if !changed {
		msg = "payment already confirmed"
	}
	return c.JSON(fiber.Map{
		"message":       msg,
		"orderId":       o.Number,
		"status":        o.Status,
		"paymentStatus": o.PaymentStatus,
	})
}

func (h *Handler) listOrders(c *fiber.Ctx) error {
	orders, err := h.service.List(c.UserContext(), ListFilter{
		Status: Status(c.Query("status")),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	o, err := h.service.GetByNumber(c.UserContext(), c.Params("number"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(o)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	payload := new(statusRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	o, err := h.service.UpdateStatus(c.UserContext(), c.Params("number"), payload.Status)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(o)
}

type paymentStatusRequest struct {
	PaymentStatus PaymentStatus `json:"paymentStatus"`
}

func (h *Handler) updatePayment(c *fiber.Ctx) error {
	payload := new(paymentStatusRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	o, err := h.service.UpdatePaymentStatus(c.UserContext(), c.Params("number"), payload.PaymentStatus)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(o)
}
