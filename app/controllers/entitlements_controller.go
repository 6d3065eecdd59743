package controllers

import (
	"context"
	"errors"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/entitlements"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// EntitlementReader serves the caller's current limit and usage.
type EntitlementReader interface {
	Snapshot(ctx context.Context, userID string) (entitlements.Snapshot, error)
}

type EntitlementsController struct {
	reader EntitlementReader
	log    zerolog.Logger
}

func NewEntitlementsController(reader EntitlementReader, log zerolog.Logger) *EntitlementsController {
	return &EntitlementsController{reader: reader, log: log}
}

// HandleGetEntitlements returns the snippet quota of the authenticated user.
func (ec *EntitlementsController) HandleGetEntitlements(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "Missing or invalid authentication")
	}

	snap, err := ec.reader.Snapshot(c.UserContext(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, entitlements.ErrNoSubscription) {
			return jsonError(c, fiber.StatusNotFound, "No subscription found")
		}
		ec.log.Error().Err(err).Str("user_id", userCtx.UserID).Msg("entitlement lookup failed")
		return jsonError(c, fiber.StatusInternalServerError, "Failed to load entitlements")
	}
	return c.JSON(snap)
}
