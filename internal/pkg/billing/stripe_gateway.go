package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeGateway talks to the Stripe API through an injected client rather
// than the package-level stripe.Key.
type StripeGateway struct {
	sc *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{sc: client.New(strings.TrimSpace(secretKey), nil)}
}

// NewStripeGatewayWithBackends is used by tests to point the client at a
// fake API server.
func NewStripeGatewayWithBackends(secretKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{sc: client.New(secretKey, backends)}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, p CustomerParams) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if email := strings.TrimSpace(p.Email); email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata("userId", p.UserID)
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	c, err := g.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %w", ErrUpstream, err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p SessionParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(p.Mode),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: p.Metadata,
	}
	// Copy metadata onto the payment or subscription object so later
	// payment_intent.* and customer.subscription.* events carry the user.
	if p.Mode == ModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: p.Metadata}
	} else {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: p.Metadata}
	}
	params.Context = ctx

	s, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %w", ErrUpstream, err)
	}
	if strings.TrimSpace(s.URL) == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no url", ErrUpstream, s.ID)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}
