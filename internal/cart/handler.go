package cart

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/delivery"
	"github.com/wichananm65/pantry-shop-backend/internal/discount"
	"github.com/wichananm65/pantry-shop-backend/internal/logger"
	"github.com/wichananm65/pantry-shop-backend/internal/product"
)

type Catalog interface {
	GetByID(ctx context.Context, id string) (product.Product, error)
}

type Discounts interface {
	Resolve(ctx context.Context, in discount.Input) (discount.Result, error)
}

// Handler exposes cart sessions to the storefront. Carts are anonymous and
// addressed by the id returned from POST /api/cart.
type Handler struct {
	store     *Store
	catalog   Catalog
	discounts Discounts
	delivery  *delivery.Resolver
	log       *logger.Logger
}

func NewHandler(s *Store, catalog Catalog, discounts Discounts, d *delivery.Resolver, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{store: s, catalog: catalog, discounts: discounts, delivery: d, log: log}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/api/cart", h.create)
	app.Get("/api/cart/:id", h.get)
	app.Delete("/api/cart/:id", h.reset)
	app.Post("/api/cart/:id/items", h.addItem)
	app.Post("/api/cart/:id/items/:productId/increase", h.increase)
	app.Post("/api/cart/:id/items/:productId/decrease", h.decrease)
	app.Delete("/api/cart/:id/items/:productId", h.removeItem)
	app.Put("/api/cart/:id/customer", h.setCustomer)
	app.Post("/api/cart/:id/promo", h.applyPromo)
	app.Get("/api/cart/:id/quote", h.quote)
}

type cartView struct {
	ID string `json:"id"`
	State
	Subtotal  int64 `json:"subtotal"`
	ItemCount int   `json:"itemCount"`
}

func (h *Handler) respond(c *fiber.Ctx, id string, st State, err error) error {
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(cartView{ID: id, State: st, Subtotal: st.Subtotal(), ItemCount: st.ItemCount()})
}

func (h *Handler) create(c *fiber.Ctx) error {
	id, st, err := h.store.Create(c.UserContext())
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cartView{ID: id, State: st})
}

func (h *Handler) get(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := h.store.Get(c.UserContext(), id)
	return h.respond(c, id, st, err)
}

func (h *Handler) reset(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := h.store.Reset(c.UserContext(), id)
	return h.respond(c, id, st, err)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	id := c.Params("id")
	payload := new(addItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	if strings.TrimSpace(payload.ProductID) == "" || payload.Quantity < 1 {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "productId and a positive quantity are required"))
	}

	p, err := h.catalog.GetByID(c.UserContext(), payload.ProductID)
	if err != nil {
		return apierr.Respond(c, err)
	}
	if available := p.Available(); payload.Quantity > available {
		return apierr.Respond(c, apierr.Newf(apierr.KindInsufficientStock, "%s is no longer available, only %d left", p.Name, available).
			With("productId", p.ID).
			With("available", available))
	}
	st, err := h.store.AddItem(c.UserContext(), id, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.Image,
		Price:     p.Price,
		Quantity:  payload.Quantity,
	})
	return h.respond(c, id, st, err)
}

func (h *Handler) increase(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := h.store.IncreaseQuantity(c.UserContext(), id, c.Params("productId"))
	return h.respond(c, id, st, err)
}

func (h *Handler) decrease(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := h.store.DecreaseQuantity(c.UserContext(), id, c.Params("productId"))
	return h.respond(c, id, st, err)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	id := c.Params("id")
	st, err := h.store.RemoveItem(c.UserContext(), id, c.Params("productId"))
	return h.respond(c, id, st, err)
}

type customerRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *Handler) setCustomer(c *fiber.Ctx) error {
	id := c.Params("id")
	payload := new(customerRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	st, err := h.store.SetCustomer(c.UserContext(), id, payload.Email, payload.Phone)
	return h.respond(c, id, st, err)
}

type promoRequest struct {
	Code string `json:"code"`
}

// applyPromo runs the eligibility check for the requested code against the
// cart's current contact details and subtotal. A check overtaken by a newer
// edit is discarded.
func (h *Handler) applyPromo(c *fiber.Ctx) error {
	id := c.Params("id")
	payload := new(promoRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}

	ctx := c.UserContext()
	gen, st, err := h.store.BeginEligibilityCheck(ctx, id)
	if err != nil {
		return apierr.Respond(c, err)
	}
	res, err := h.discounts.Resolve(ctx, discount.Input{
		Email:     st.Email,
		Phone:     st.Phone,
		PromoCode: payload.Code,
		Subtotal:  st.Subtotal(),
	})
	if err != nil {
		return apierr.Respond(c, err)
	}
	st, applied, err := h.store.ApplyEligibility(ctx, id, gen, res)
	if err == nil && !applied {
		h.log.Info("stale eligibility result dropped", "cart", id, "generation", gen)
	}
	return h.respond(c, id, st, err)
}

type quoteView struct {
	Subtotal       int64  `json:"subtotal"`
	DiscountAmount int64  `json:"discountAmount"`
	DiscountLabel  string `json:"discountLabel,omitempty"`
	FreeShipping   bool   `json:"freeShipping"`
	ShippingCost   int64  `json:"shippingCost"`
	Total          int64  `json:"total"`
	Notice         string `json:"notice,omitempty"`
}

// quote previews the totals checkout will compute from the cart's display
// prices. Checkout itself re-prices from the catalog.
func (h *Handler) quote(c *fiber.Ctx) error {
	id := c.Params("id")
	district, city := c.Query("district"), c.Query("city")
	if strings.TrimSpace(district) == "" || strings.TrimSpace(city) == "" {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "district and city are required"))
	}
	ctx := c.UserContext()
	st, err := h.store.Get(ctx, id)
	if err != nil {
		return apierr.Respond(c, err)
	}

	in := discount.Input{Email: st.Email, Phone: st.Phone, Subtotal: st.Subtotal()}
	if st.Promo != nil {
		in.PromoCode = st.Promo.Code
	}
	res, err := h.discounts.Resolve(ctx, in)
	notice := ""
	if apierr.Is(err, apierr.KindPromoInvalid) {
		notice = err.Error()
		in.PromoCode = ""
		res, err = h.discounts.Resolve(ctx, in)
	}
	if err != nil {
		return apierr.Respond(c, err)
	}
	if res.Notice != "" {
		notice = res.Notice
	}

	shipping := h.delivery.Fee(district, city, res.FreeShipping)
	total := in.Subtotal - res.DiscountAmount + shipping
	if total < 0 {
		total = 0
	}
	return c.JSON(quoteView{
		Subtotal:       in.Subtotal,
		DiscountAmount: res.DiscountAmount,
		DiscountLabel:  res.DiscountLabel,
		FreeShipping:   res.FreeShipping,
		ShippingCost:   shipping,
		Total:          total,
		Notice:         notice,
	})
}
