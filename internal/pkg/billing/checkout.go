package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/entitlements"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CheckoutInitiator creates hosted checkout sessions for plan purchases.
type CheckoutInitiator struct {
	repo                Repository
	gateway             Gateway
	catalog             *Catalog
	siteURL             string
	legacySubscriptions bool
	customers           singleflight.Group
	log                 zerolog.Logger
}

type CheckoutConfig struct {
	PublicSiteURL       string
	LegacySubscriptions bool
}

func NewCheckoutInitiator(repo Repository, gateway Gateway, catalog *Catalog, cfg CheckoutConfig, log zerolog.Logger) *CheckoutInitiator {
	return &CheckoutInitiator{
		repo:                repo,
		gateway:             gateway,
		catalog:             catalog,
		siteURL:             strings.TrimRight(cfg.PublicSiteURL, "/"),
		legacySubscriptions: cfg.LegacySubscriptions,
		log:                 log,
	}
}

func (c *CheckoutInitiator) StartCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	res, err := c.startCheckout(ctx, req)
	outcome := "created"
	if err != nil {
		outcome = "error"
	}
	label := "invalid"
	if p, ok := entitlements.ParsePlan(req.PlanID); ok {
		label = string(p)
	}
	metrics.CheckoutSessionsTotal.WithLabelValues(label, outcome).Inc()
	return res, err
}

func (c *CheckoutInitiator) startCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	plan, err := c.catalog.Lookup(req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() {
		return nil, fmt.Errorf("%w: the free plan cannot be purchased", ErrValidation)
	}

	mode, err := c.resolveMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if plan.ExternalPriceID == "" {
		return nil, fmt.Errorf("%w: no price id configured for plan %s", ErrConfiguration, plan.ID)
	}

	sub, found, err := c.repo.FindSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: subscription for user %s", ErrNotFound, userID)
	}

	customerID := sub.StripeCustomerID
	if customerID == "" {
		customerID, err = c.ensureCustomer(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	metadata := map[string]string{
		"userId":       userID,
		"planType":     string(plan.ID),
		"snippetLimit": strconv.FormatInt(plan.SnippetLimitDelta, 10),
		"mode":         mode,
	}
	session, err := c.gateway.CreateCheckoutSession(ctx, SessionParams{
		CustomerID: customerID,
		PriceID:    plan.ExternalPriceID,
		Mode:       mode,
		SuccessURL: c.siteURL + "/dashboard/settings?success=true",
		CancelURL:  c.siteURL + "/dashboard/settings?canceled=true",
		UserID:     userID,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("user_id", userID).
		Str("plan", string(plan.ID)).
		Str("mode", mode).
		Str("checkout_session_id", session.ID).
		Msg("checkout session created")
	return &CheckoutResult{URL: session.URL, SessionID: session.ID}, nil
}

func (c *CheckoutInitiator) resolveMode(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ModePayment:
		return ModePayment, nil
	case ModeSubscription:
		if !c.legacySubscriptions {
			return "", fmt.Errorf("%w: subscription checkout is disabled", ErrValidation)
		}
		return ModeSubscription, nil
	default:
		return "", fmt.Errorf("%w: unknown checkout mode %q", ErrValidation, raw)
	}
}

// customerIdempotencyKey binds the key to the request parameters. Stripe
// rejects a reused key whose parameters differ, so an email change gets a
// fresh key.
func customerIdempotencyKey(userID, email string) string {
	sum := sha256.Sum256([]byte(email))
	return "customer:" + userID + ":" + hex.EncodeToString(sum[:8])
}

// ensureCustomer creates the provider customer at most once per user. Local
// callers are collapsed by singleflight, other instances by the provider
// idempotency key, and the conditional link keeps the first stored id.
func (c *CheckoutInitiator) ensureCustomer(ctx context.Context, userID string) (string, error) {
	v, err, _ := c.customers.Do(userID, func() (interface{}, error) {
		email := ""
		profile, found, err := c.repo.FindProfile(ctx, userID)
		if err != nil {
			return "", err
		}
		if found {
			email = profile.Email
		}

		customerID, err := c.gateway.CreateCustomer(ctx, CustomerParams{
			UserID:         userID,
			Email:          email,
			IdempotencyKey: customerIdempotencyKey(userID, email),
		})
		if err != nil {
			return "", err
		}

		linked, err := c.repo.LinkStripeCustomer(ctx, userID, customerID)
		if err != nil {
			return "", err
		}
		if linked {
			return customerID, nil
		}

		sub, found, err := c.repo.FindSubscriptionByUserID(ctx, userID)
		if err != nil {
			return "", err
		}
		if !found || sub.StripeCustomerID == "" {
			return "", fmt.Errorf("%w: subscription for user %s", ErrNotFound, userID)
		}
		c.log.Info().
			Str("user_id", userID).
			Str("kept_customer_id", sub.StripeCustomerID).
			Str("discarded_customer_id", customerID).
			Msg("concurrent customer creation, keeping stored customer")
		return sub.StripeCustomerID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
