package product

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/imageurl"
)

type Handler struct {
	service *Service
	images  *imageurl.Builder
}

func NewHandler(service *Service, images *imageurl.Builder) *Handler {
	return &Handler{service: service, images: images}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/api/products", h.getProducts)
	app.Get("/api/products/:id", h.getProduct)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Post("/api/admin/products", h.createProduct)
	app.Put("/api/admin/products/:id/stock", h.restock)
}

// productView is the storefront shape: the stock counters stay internal,
// shoppers only see what is available.
type productView struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Available   int    `json:"available"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func (h *Handler) view(p Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		Available:   p.Available(),
		ImageURL:    h.images.URL(p.Image, imageurl.Options{Width: 800, Format: "webp", Quality: 80}),
	}
}

func (h *Handler) getProducts(c *fiber.Ctx) error {
	products, err := h.service.List(c.UserContext(), c.Query("category"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, h.view(p))
	}
	return c.JSON(out)
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	p, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(h.view(p))
}

func (h *Handler) createProduct(c *fiber.Ctx) error {
	p := new(Product)
	if err := c.BodyParser(p); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	created, err := h.service.Create(c.UserContext(), *p)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

type restockRequest struct {
	OpeningStock *int `json:"openingStock"`
}

func (h *Handler) restock(c *fiber.Ctx) error {
	payload := new(restockRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	if payload.OpeningStock == nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, "openingStock is required"))
	}
	p, err := h.service.Restock(c.UserContext(), c.Params("id"), *payload.OpeningStock)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(p)
}
