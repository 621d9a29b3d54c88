package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, upstream_error, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFromDomain maps service errors onto the API error envelope.
func errFromDomain(c *fiber.Ctx, err error) error {
	var perr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrEmptyKeyword):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	case errors.As(err, &perr):
		LoggerFromCtx(c.UserContext()).Warn("provider request failed", "provider", perr.Provider, "error", err)
		return newError(c, fiber.StatusBadGateway, "upstream_error", perr.Provider+" "+perr.Op+" failed")
	default:
		return errInternal(c, err.Error())
	}
}
