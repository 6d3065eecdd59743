package billing

const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// CheckoutRequest is the validated input for starting a checkout.
type CheckoutRequest struct {
	UserID string
	PlanID string
	Mode   string
}

// CheckoutResult carries the hosted checkout page for the client redirect.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// Outcome reports what a webhook event did to the ledger.
type Outcome string

const (
	OutcomeApplied   Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Ack is returned for every event that should be acknowledged with 200.
type Ack struct {
	EventID   string
	EventType string
	Outcome   Outcome
}

// WebhookEventInput is the normalized input for webhook audit persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// SubscriptionChange is a replacement write to a subscription row.
type SubscriptionChange struct {
	PlanType             string
	Status               string
	SnippetLimit         int64
	StripeSubscriptionID string
	StripePriceID        string
	StripeCustomerID     string
}
