package controllers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/billing"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/metrics"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/usercontext"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// MaxWebhookBodyBytes caps webhook payloads. Stripe events are far smaller.
const MaxWebhookBodyBytes = 1 << 20

var validate = validator.New()

// CheckoutStarter creates hosted checkout sessions.
type CheckoutStarter interface {
	StartCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutResult, error)
}

// WebhookProcessor handles one verified-or-rejected provider delivery.
type WebhookProcessor interface {
	HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (billing.Ack, error)
}

type BillingController struct {
	checkout       CheckoutStarter
	webhooks       WebhookProcessor
	catalog        *billing.Catalog
	webhookTimeout time.Duration
	log            zerolog.Logger
}

func NewBillingController(checkout CheckoutStarter, webhooks WebhookProcessor, catalog *billing.Catalog, webhookTimeout time.Duration, log zerolog.Logger) *BillingController {
	if webhookTimeout <= 0 {
		webhookTimeout = 15 * time.Second
	}
	return &BillingController{
		checkout:       checkout,
		webhooks:       webhooks,
		catalog:        catalog,
		webhookTimeout: webhookTimeout,
		log:            log,
	}
}

type checkoutRequest struct {
	PlanType string `json:"planType" validate:"required"`
	UserID   string `json:"userId" validate:"required,max=36"`
	Mode     string `json:"mode" validate:"omitempty,oneof=payment subscription"`
}

// HandleCreateCheckoutSession starts a hosted checkout for the caller.
func (bc *BillingController) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "Missing or invalid authentication")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.PlanType = strings.TrimSpace(req.PlanType)
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "planType and userId are required")
	}
	if req.UserID != userCtx.UserID {
		err := fmt.Errorf("%w: userId does not match the authenticated user", billing.ErrUnauthorized)
		return respondBillingError(c, bc.log, err, fiber.StatusNotFound)
	}

	res, err := bc.checkout.StartCheckout(c.UserContext(), billing.CheckoutRequest{
		UserID: req.UserID,
		PlanID: req.PlanType,
		Mode:   req.Mode,
	})
	if err != nil {
		return respondBillingError(c, bc.log, err, fiber.StatusNotFound)
	}
	return c.JSON(fiber.Map{"url": res.URL})
}

// HandleWebhook receives provider deliveries. Processing runs on a context
// detached from the client connection so a dropped request cannot abort a
// half-applied ledger write.
func (bc *BillingController) HandleWebhook(c *fiber.Ctx) error {
	start := time.Now()
	if !strings.EqualFold(c.Params("provider"), "stripe") {
		return jsonError(c, fiber.StatusNotFound, "unknown billing provider")
	}

	body := c.Body()
	if len(body) > MaxWebhookBodyBytes {
		metrics.WebhookRequestsTotal.WithLabelValues("unknown", strconv.Itoa(fiber.StatusRequestEntityTooLarge)).Inc()
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "payload too large")
	}
	payload := append([]byte(nil), body...)
	signature := c.Get(billing.SignatureHeader)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), bc.webhookTimeout)
	defer cancel()

	ack, err := bc.webhooks.HandleStripeWebhook(ctx, payload, signature)
	eventType := ack.EventType
	if eventType == "" {
		eventType = "unknown"
	}
	metrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	if err != nil {
		status := billingStatus(err, fiber.StatusInternalServerError)
		metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		return respondBillingError(c, bc.log, err, fiber.StatusInternalServerError)
	}

	metrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(fiber.StatusOK)).Inc()
	bc.log.Info().
		Str("event_id", ack.EventID).
		Str("event_type", ack.EventType).
		Str("outcome", string(ack.Outcome)).
		Msg("webhook handled")
	return c.JSON(fiber.Map{"received": true, "status": ack.Outcome})
}

// HandleWebhookInfo answers GET requests on the webhook URL.
func (bc *BillingController) HandleWebhookInfo(c *fiber.Ctx) error {
	if !strings.EqualFold(c.Params("provider"), "stripe") {
		return jsonError(c, fiber.StatusNotFound, "unknown billing provider")
	}
	return c.JSON(fiber.Map{"message": "Stripe webhook endpoint"})
}

// HandlePlans lists the purchasable plans.
func (bc *BillingController) HandlePlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"currency": bc.catalog.Currency(),
		"plans":    bc.catalog.Plans(),
	})
}
