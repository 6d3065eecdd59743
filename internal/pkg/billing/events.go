package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
)

// EventKind is the provider-neutral name of a verified webhook event.
type EventKind string

const (
	KindCheckoutCompleted   EventKind = "checkout.completed"
	KindPaymentSucceeded    EventKind = "payment.succeeded"
	KindPaymentFailed       EventKind = "payment.failed"
	KindSubscriptionUpdated EventKind = "subscription.updated"
	KindSubscriptionDeleted EventKind = "subscription.deleted"
	KindUnknown             EventKind = "unknown"
)

// Event is one of the variants below. The set is closed: ParseEvent is the
// only constructor.
type Event interface {
	Kind() EventKind
	Meta() EventMeta
	isEvent()
}

// EventMeta identifies the provider event a variant was parsed from.
type EventMeta struct {
	ID           string
	ProviderType string
}

func (m EventMeta) Meta() EventMeta { return m }

func (EventMeta) isEvent() {}

type CheckoutCompleted struct {
	EventMeta
	SessionID       string
	Mode            string
	UserID          string
	PlanID          string
	CustomerID      string
	CustomerEmail   string
	SubscriptionID  string
	PaymentIntentID string
	PaymentMethod   string
	AmountTotal     int64
	Currency        string
}

type PaymentSucceeded struct {
	EventMeta
	ObjectID         string
	UserID           string
	AmountMinorUnits int64
	Currency         string
}

type PaymentFailed struct {
	EventMeta
	ObjectID       string
	UserID         string
	FailureMessage string
}

type SubscriptionUpdated struct {
	EventMeta
	SubscriptionID string
	CustomerID     string
	Status         string
	PriceID        string
}

type SubscriptionDeleted struct {
	EventMeta
	SubscriptionID string
	CustomerID     string
}

type UnknownEvent struct {
	EventMeta
}

func (CheckoutCompleted) Kind() EventKind { return KindCheckoutCompleted }

func (PaymentSucceeded) Kind() EventKind { return KindPaymentSucceeded }

func (PaymentFailed) Kind() EventKind { return KindPaymentFailed }

func (SubscriptionUpdated) Kind() EventKind { return KindSubscriptionUpdated }

func (SubscriptionDeleted) Kind() EventKind { return KindSubscriptionDeleted }

func (UnknownEvent) Kind() EventKind { return KindUnknown }

// Minimal views of the Stripe objects carried in event.data.object.
type checkoutSessionObject struct {
	ID                 string            `json:"id"`
	Mode               string            `json:"mode"`
	Customer           string            `json:"customer"`
	CustomerEmail      string            `json:"customer_email"`
	Subscription       string            `json:"subscription"`
	PaymentIntent      string            `json:"payment_intent"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	AmountTotal        int64             `json:"amount_total"`
	Currency           string            `json:"currency"`
	ClientReferenceID  string            `json:"client_reference_id"`
	Metadata           map[string]string `json:"metadata"`
	CustomerDetails    struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// paymentObject covers both payment_intent and invoice payloads.
type paymentObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	AmountPaid       int64             `json:"amount_paid"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type subscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s subscriptionObject) firstPriceID() string {
	for _, item := range s.Items.Data {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return id
		}
	}
	return ""
}

// ParseEvent turns a verified Stripe event into a variant. Known types with
// malformed data are a validation error; unknown types never are.
func ParseEvent(event stripe.Event) (Event, error) {
	meta := EventMeta{ID: event.ID, ProviderType: string(event.Type)}

	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var obj checkoutSessionObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		return checkoutCompletedFrom(meta, obj)

	case "payment_intent.succeeded", "invoice.payment_succeeded":
		var obj paymentObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		amount := obj.Amount
		if obj.AmountPaid > 0 {
			amount = obj.AmountPaid
		}
		return PaymentSucceeded{
			EventMeta:        meta,
			ObjectID:         obj.ID,
			UserID:           obj.Metadata["userId"],
			AmountMinorUnits: amount,
			Currency:         obj.Currency,
		}, nil

	case "payment_intent.payment_failed", "invoice.payment_failed":
		var obj paymentObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		ev := PaymentFailed{EventMeta: meta, ObjectID: obj.ID, UserID: obj.Metadata["userId"]}
		if obj.LastPaymentError != nil {
			ev.FailureMessage = obj.LastPaymentError.Message
		}
		return ev, nil

	case "customer.subscription.updated":
		var obj subscriptionObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		if strings.TrimSpace(obj.ID) == "" {
			return nil, fmt.Errorf("%w: subscription id missing", ErrValidation)
		}
		return SubscriptionUpdated{
			EventMeta:      meta,
			SubscriptionID: obj.ID,
			CustomerID:     obj.Customer,
			Status:         obj.Status,
			PriceID:        obj.firstPriceID(),
		}, nil

	case "customer.subscription.deleted":
		var obj subscriptionObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		if strings.TrimSpace(obj.ID) == "" {
			return nil, fmt.Errorf("%w: subscription id missing", ErrValidation)
		}
		return SubscriptionDeleted{EventMeta: meta, SubscriptionID: obj.ID, CustomerID: obj.Customer}, nil

	default:
		return UnknownEvent{EventMeta: meta}, nil
	}
}

func decodeObject(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: event data missing", ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode event data: %v", ErrValidation, err)
	}
	return nil
}

func checkoutCompletedFrom(meta EventMeta, obj checkoutSessionObject) (CheckoutCompleted, error) {
	userID := strings.TrimSpace(obj.Metadata["userId"])
	if userID == "" {
		userID = strings.TrimSpace(obj.ClientReferenceID)
	}
	planID := strings.ToLower(strings.TrimSpace(obj.Metadata["planType"]))
	if strings.TrimSpace(obj.ID) == "" {
		return CheckoutCompleted{}, fmt.Errorf("%w: checkout session id missing", ErrValidation)
	}
	if userID == "" || planID == "" {
		return CheckoutCompleted{}, fmt.Errorf("%w: checkout session %s is missing userId or planType metadata", ErrValidation, obj.ID)
	}

	mode := strings.ToLower(strings.TrimSpace(obj.Mode))
	if mode == "" {
		mode = ModePayment
	}
	email := strings.TrimSpace(obj.CustomerDetails.Email)
	if email == "" {
		email = strings.TrimSpace(obj.CustomerEmail)
	}
	method := ""
	if len(obj.PaymentMethodTypes) > 0 {
		method = obj.PaymentMethodTypes[0]
	}

	return CheckoutCompleted{
		EventMeta:       meta,
		SessionID:       obj.ID,
		Mode:            mode,
		UserID:          userID,
		PlanID:          planID,
		CustomerID:      obj.Customer,
		CustomerEmail:   email,
		SubscriptionID:  obj.Subscription,
		PaymentIntentID: obj.PaymentIntent,
		PaymentMethod:   method,
		AmountTotal:     obj.AmountTotal,
		Currency:        strings.ToLower(obj.Currency),
	}, nil
}
