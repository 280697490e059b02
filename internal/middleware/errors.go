package middleware

import (
	"errors"

	"github.com/bilgisen/wastewatch/internal/logger"
	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/gofiber/fiber/v2"
)

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var fe *fiber.Error
	var ve *ValidationError
	var pe *models.PublicationError
	var ge *models.GenerationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrRunInProgress):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrInvalidTransition):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &pe):
		switch pe.Kind {
		case models.PublicationAuth:
			return fiber.StatusBadGateway
		case models.PublicationTransport:
			return fiber.StatusServiceUnavailable
		default:
			return fiber.StatusUnprocessableEntity
		}
	case errors.As(err, &ge):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders every handler error as {success: false, error}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	body := fiber.Map{
		"success": false,
		"error":   err.Error(),
	}

	var ve *ValidationError
	var pe *models.PublicationError
	switch {
	case errors.As(err, &ve):
		body["error"] = "Validation failed"
		body["fields"] = ve.Fields
	case errors.As(err, &pe):
		body["kind"] = string(pe.Kind)
		body["retryable"] = pe.Retryable()
	case code == fiber.StatusInternalServerError:
		logger.Get().Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("Unhandled error")
		body["error"] = "Internal server error"
	}

	return c.Status(code).JSON(body)
}
