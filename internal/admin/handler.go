package admin

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wichananm65/pantry-shop-backend/internal/apierr"
	"github.com/wichananm65/pantry-shop-backend/internal/logger"
)

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
	app.Post("/api/admin/sign-in", h.signIn)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) signIn(c *fiber.Ctx) error {
	payload := new(signInRequest)
	if err := c.BodyParser(payload); err != nil {
		return apierr.Respond(c, apierr.New(apierr.KindValidation, err.Error()))
	}
	if err := h.service.Authenticate(payload.Email, payload.Password); err != nil {
		h.log.Warn("admin sign-in rejected", "email", payload.Email, "ip", c.IP())
		return apierr.Respond(c, apierr.New(apierr.KindUnauthorized, "Invalid email or password"))
	}
	token, exp, err := h.service.IssueToken()
	if err != nil {
		return apierr.Respond(c, apierr.Wrap(apierr.KindCommitFailure, "failed to generate token", err))
	}
	return c.JSON(fiber.Map{
		"message":   "Login successful",
		"token":     token,
		"expiresAt": exp.UTC(),
	})
}

// Guard verifies operator tokens for the routes mounted behind it. Without a
// usable secret every request is refused.
func Guard(s *Service) fiber.Handler {
	if !s.SecretUsable() {
		return func(c *fiber.Ctx) error {
			return apierr.Respond(c, apierr.New(apierr.KindUnauthorized, "admin access is not configured"))
		}
	}
	return jwtware.New(jwtware.Config{
		SigningKey:    s.secret,
		SigningMethod: "HS256",
		ErrorHandler:  UnauthorizedHandler,
	})
}

// RequireAdmin runs after the JWT middleware and rejects tokens that do not
// carry the admin role.
func RequireAdmin(c *fiber.Ctx) error {
	if RoleFromCtx(c) != RoleAdmin {
		return apierr.Respond(c, apierr.New(apierr.KindUnauthorized, "admin access required"))
	}
	return c.Next()
}

// RoleFromCtx reads the role claim from the token stored in
// c.Locals("user").
func RoleFromCtx(c *fiber.Ctx) string {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}

// UnauthorizedHandler is the JWT middleware error hook.
func UnauthorizedHandler(c *fiber.Ctx, err error) error {
	return apierr.Respond(c, apierr.New(apierr.KindUnauthorized, "missing or invalid token"))
}
