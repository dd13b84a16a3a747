package apierr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindProductNotFound     Kind = "PRODUCT_NOT_FOUND"
	KindInsufficientStock   Kind = "INSUFFICIENT_STOCK"
	KindStockConflict       Kind = "CONCURRENT_STOCK_CONFLICT"
	KindDuplicateSubmission Kind = "DUPLICATE_SUBMISSION"
	KindPromoInvalid        Kind = "PROMO_INVALID"
	KindPayment             Kind = "PAYMENT_PROCESSING_ERROR"
	KindCommitFailure       Kind = "TRANSACTION_COMMIT_FAILURE"
	KindReopenForbidden     Kind = "REOPEN_FORBIDDEN"
	KindInvalidTransition   Kind = "INVALID_STATUS_TRANSITION"
	KindOrderNotFound       Kind = "ORDER_NOT_FOUND"
	KindCartNotFound        Kind = "CART_NOT_FOUND"
	KindUnauthorized        Kind = "UNAUTHORIZED"
)

var statusByKind = map[Kind]int{
	KindValidation:          fiber.StatusBadRequest,
	KindProductNotFound:     fiber.StatusNotFound,
	KindInsufficientStock:   fiber.StatusConflict,
	KindStockConflict:       fiber.StatusConflict,
	KindDuplicateSubmission: fiber.StatusTooManyRequests,
	KindPromoInvalid:        fiber.StatusBadRequest,
	KindPayment:             fiber.StatusBadGateway,
	KindCommitFailure:       fiber.StatusInternalServerError,
	KindReopenForbidden:     fiber.StatusConflict,
	KindInvalidTransition:   fiber.StatusConflict,
	KindOrderNotFound:       fiber.StatusNotFound,
	KindCartNotFound:        fiber.StatusNotFound,
	KindUnauthorized:        fiber.StatusUnauthorized,
}

// Error is a business-rule or request failure with a user-facing message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// With attaches a detail field and returns the same error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Status: StatusOf(kind), Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap keeps cause for logging while exposing message to the client.
func Wrap(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	e.Err = cause
	return e
}

func StatusOf(kind Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
