package billing

import "context"

// Gateway is the slice of the payment provider API that checkout needs.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
}

type CustomerParams struct {
	UserID string
	Email  string
	// IdempotencyKey makes concurrent creates for the same user collapse
	// into one customer on the provider side.
	IdempotencyKey string
}

type SessionParams struct {
	CustomerID string
	PriceID    string
	Mode       string
	SuccessURL string
	CancelURL  string
	UserID     string
	Metadata   map[string]string
}

type Session struct {
	ID  string
	URL string
}
