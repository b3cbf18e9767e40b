package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/keyfindings/backend/pkg/errs"
)

// StatusFor maps an engine error code to an HTTP status.
func StatusFor(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeInvalidScenario, errs.CodeInvalidFeedback:
		return fiber.StatusBadRequest
	case errs.CodeNotFound:
		return fiber.StatusNotFound
	case errs.CodePayloadUnavailable:
		return fiber.StatusFailedDependency
	case errs.CodeAllProvidersExhausted:
		return fiber.StatusBadGateway
	case errs.CodeCancelled:
		return fiber.StatusRequestTimeout
	case errs.CodeCacheUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func reasonOf(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "INTERNAL_ERROR"
}

func errorResponse(c *fiber.Ctx, message string, err error) error {
	return c.Status(StatusFor(err)).JSON(fiber.Map{
		"error":  message,
		"reason": reasonOf(err),
	})
}
