package controllers

import (
	"errors"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/billing"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// billingStatus maps a billing error kind to an HTTP status. notFound differs
// per call site: a missing user is the caller's problem on checkout but must
// make the provider retry on a webhook.
func billingStatus(err error, notFound int) int {
	switch {
	case errors.Is(err, billing.ErrValidation), errors.Is(err, billing.ErrSignature):
		return fiber.StatusBadRequest
	case errors.Is(err, billing.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, billing.ErrNotFound):
		return notFound
	case errors.Is(err, billing.ErrDuplicate):
		return fiber.StatusOK
	default:
		return fiber.StatusInternalServerError
	}
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case fiber.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal_server_error"
	}
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   errorCode(status),
		"message": message,
	})
}

// respondBillingError logs at the level the error kind deserves and writes
// the JSON error body. Server-side failures never leak their cause.
func respondBillingError(c *fiber.Ctx, log zerolog.Logger, err error, notFound int) error {
	status := billingStatus(err, notFound)
	message := err.Error()
	switch {
	case errors.Is(err, billing.ErrSignature):
		log.Warn().Err(err).Str("ip", c.IP()).Msg("webhook signature rejected")
	case status >= fiber.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.Path()).Msg("billing request failed")
		message = "internal error"
	default:
		log.Warn().Err(err).Str("path", c.Path()).Msg("billing request rejected")
	}
	return jsonError(c, status, message)
}
