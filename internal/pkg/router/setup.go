package router

import (
	"time"

	"github.com/ManuelReschke/SnippetCanvas/app/controllers"
	"github.com/gofiber/fiber/v2"
)

// Router registers a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the wired controllers and middlewares the routers mount.
type Dependencies struct {
	Billing       *controllers.BillingController
	Entitlements  *controllers.EntitlementsController
	AdminInvoices *controllers.AdminInvoicesController
	Health        *controllers.HealthController

	// Auth authenticates the caller; it must fill the user context.
	Auth fiber.Handler

	// LimiterStorage backs the checkout rate limiter. nil keeps counters in memory.
	LimiterStorage fiber.Storage
	CheckoutLimit  int
	CheckoutWindow time.Duration
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// HttpRouter first: webhooks must not pass through the /api limiter.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
