package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/scan"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRecord),
		errors.Is(err, domain.ErrDecodeRejected),
		errors.Is(err, domain.ErrDecodeIncomplete):
		return fiber.StatusBadRequest
	case errors.Is(err, scan.ErrScanInProgress):
		return fiber.StatusConflict
	case errors.Is(err, scan.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
