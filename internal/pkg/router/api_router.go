package router

import (
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/constants"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIPrefix)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Get(constants.PlansRoute, h.deps.Billing.HandlePlans)
	api.Get(constants.EntitlementsRoute, h.deps.Auth, middleware.RequireAuth, h.deps.Entitlements.HandleGetEntitlements)

	admin := api.Group(constants.AdminPrefix, h.deps.Auth, middleware.RequireAdmin)
	admin.Get(constants.AdminInvoicesExport, h.deps.AdminInvoices.HandleExportInvoices)
	admin.Get(constants.AdminInvoicesRoute, h.deps.AdminInvoices.HandleListInvoices)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
