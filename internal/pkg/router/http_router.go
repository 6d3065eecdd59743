package router

import (
	"time"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/constants"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/middleware"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.HealthRoute, h.deps.Health.HandleHealthz)

	app.Post(constants.CheckoutSessionRoute,
		h.deps.Auth,
		middleware.RequireAuth,
		h.checkoutLimiter(),
		h.deps.Billing.HandleCreateCheckoutSession,
	)

	// Webhooks authenticate by signature, not by bearer token.
	app.Post(constants.WebhookRoute, h.deps.Billing.HandleWebhook)
	app.Get(constants.WebhookRoute, h.deps.Billing.HandleWebhookInfo)
}

// checkoutLimiter throttles checkout creation per user so a client loop
// cannot mint unbounded provider sessions.
func (h HttpRouter) checkoutLimiter() fiber.Handler {
	max := h.deps.CheckoutLimit
	if max <= 0 {
		max = 10
	}
	window := h.deps.CheckoutWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    h.deps.LimiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := usercontext.GetUserID(c); id != "" {
				return "checkout:" + id
			}
			return "checkout-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "too_many_requests",
				"message": "Too many checkout attempts, try again later",
			})
		},
	})
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
