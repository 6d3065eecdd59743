package billing

import (
	"context"

	"github.com/rs/zerolog"
)

// EntitlementLedger is implemented by *Ledger.
type EntitlementLedger interface {
	ApplyCheckoutCompleted(ctx context.Context, ev CheckoutCompleted) (Outcome, error)
	ApplySubscriptionUpdated(ctx context.Context, ev SubscriptionUpdated) (Outcome, error)
	ApplySubscriptionDeleted(ctx context.Context, ev SubscriptionDeleted) (Outcome, error)
}

// Dispatcher routes parsed events to their handler. Events that change
// nothing are logged and acknowledged so the provider stops retrying.
type Dispatcher struct {
	ledger EntitlementLedger
	log    zerolog.Logger
}

func NewDispatcher(ledger EntitlementLedger, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{ledger: ledger, log: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Ack, error) {
	meta := ev.Meta()
	ack := Ack{EventID: meta.ID, EventType: meta.ProviderType, Outcome: OutcomeIgnored}

	var (
		outcome Outcome
		err     error
	)
	switch e := ev.(type) {
	case CheckoutCompleted:
		outcome, err = d.ledger.ApplyCheckoutCompleted(ctx, e)

	case SubscriptionUpdated:
		outcome, err = d.ledger.ApplySubscriptionUpdated(ctx, e)

	case SubscriptionDeleted:
		outcome, err = d.ledger.ApplySubscriptionDeleted(ctx, e)

	case PaymentSucceeded:
		d.log.Info().
			Str("event_id", meta.ID).
			Str("type", meta.ProviderType).
			Str("object_id", e.ObjectID).
			Str("user_id", e.UserID).
			Int64("amount", e.AmountMinorUnits).
			Msg("payment succeeded")
		return ack, nil

	case PaymentFailed:
		d.log.Warn().
			Str("event_id", meta.ID).
			Str("type", meta.ProviderType).
			Str("object_id", e.ObjectID).
			Str("user_id", e.UserID).
			Str("reason", e.FailureMessage).
			Msg("payment failed")
		return ack, nil

	default:
		d.log.Info().
			Str("event_id", meta.ID).
			Str("type", meta.ProviderType).
			Msg("webhook ignored (unhandled type)")
		return ack, nil
	}

	if err != nil {
		return Ack{}, err
	}
	ack.Outcome = outcome
	return ack, nil
}
