package apierr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

const genericFailure = "something went wrong while processing your request, please try again"

// Respond writes err as `{"error": ..., "kind": ..., <details>}`. Errors that
// are not *Error are reported as a retryable commit failure without leaking
// their text.
func Respond(c *fiber.Ctx, err error) error {
	if e, ok := As(err); ok {
		body := fiber.Map{"error": e.Error(), "kind": e.Kind}
		for k, v := range e.Details {
			body[k] = v
		}
		status := e.Status
		if status == 0 {
			status = StatusOf(e.Kind)
		}
		return c.Status(status).JSON(body)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": genericFailure,
		"kind":  KindCommitFailure,
	})
}

// ErrorHandler plugs Respond into fiber.Config.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return Respond(c, err)
}
