package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const SignatureHeader = "Stripe-Signature"

// Verifier authenticates Stripe webhook deliveries against the endpoint
// secret. It must see the body exactly as received.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: strings.TrimSpace(secret)}
}

// Verify checks the signature header (HMAC-SHA256 over "timestamp.payload",
// five minute tolerance) and only then decodes the event envelope.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	if v.secret == "" {
		return stripe.Event{}, fmt.Errorf("%w: webhook secret not configured", ErrConfiguration)
	}
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing %s header", ErrSignature, SignatureHeader)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return event, nil
}
