package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/metrics"
	"github.com/rs/zerolog"
)

const defaultLedgerAttempts = 3

// Invalidator drops cached entitlement snapshots after a ledger write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Ledger is the only writer of Subscription.snippet_limit.
type Ledger struct {
	repo        Repository
	catalog     *Catalog
	invoices    *InvoiceRecorder
	invalidator Invalidator
	maxAttempts int
	log         zerolog.Logger
}

type LedgerOption func(*Ledger)

func WithInvalidator(inv Invalidator) LedgerOption {
	return func(l *Ledger) { l.invalidator = inv }
}

func WithMaxAttempts(n int) LedgerOption {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func NewLedger(repo Repository, catalog *Catalog, log zerolog.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		repo:        repo,
		catalog:     catalog,
		invoices:    NewInvoiceRecorder(catalog),
		maxAttempts: defaultLedgerAttempts,
		log:         log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ApplyCheckoutCompleted credits a completed checkout exactly once per
// checkout session. Payment-mode sessions add capacity and append an invoice
// in the same transaction; legacy subscription-mode sessions replace it.
func (l *Ledger) ApplyCheckoutCompleted(ctx context.Context, ev CheckoutCompleted) (Outcome, error) {
	plan, err := l.catalog.Lookup(ev.PlanID)
	if err != nil {
		return "", err
	}
	if plan.IsFree() || plan.SnippetLimitDelta <= 0 {
		return "", fmt.Errorf("%w: plan %q cannot be purchased", ErrValidation, plan.ID)
	}

	if ev.Mode == ModeSubscription {
		return l.applySubscriptionCheckout(ctx, ev, plan)
	}

	outcome := OutcomeApplied
	var change LimitChange
	err = l.withRetry(ctx, func() error {
		return l.repo.WithTx(ctx, func(tx Repository) error {
			sub, found, err := tx.LockSubscriptionByUserID(ctx, ev.UserID)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: subscription for user %s", ErrNotFound, ev.UserID)
			}

			exists, err := tx.InvoiceExists(ctx, ev.SessionID)
			if err != nil {
				return err
			}
			if exists {
				outcome = OutcomeDuplicate
				return nil
			}

			change = LimitChange{
				Previous: sub.SnippetLimit,
				New:      nextAdditiveLimit(sub.PlanType, sub.SnippetLimit, l.catalog.Free(), plan.SnippetLimitDelta),
			}

			profile, _, err := tx.FindProfile(ctx, ev.UserID)
			if err != nil {
				return err
			}
			inv := l.invoices.Build(ev, plan, profile, change)
			if err := l.invoices.Record(ctx, tx, inv); err != nil {
				return err
			}

			if err := tx.ApplyAdditiveLimit(ctx, ev.UserID, string(plan.ID), l.catalog.Free(), plan.SnippetLimitDelta); err != nil {
				return err
			}

			stored, found, err := tx.FindSubscriptionByUserID(ctx, ev.UserID)
			if err != nil {
				return err
			}
			if !found || stored.SnippetLimit != change.New {
				return fmt.Errorf("%w: user %s expected limit %d", ErrLedgerConflict, ev.UserID, change.New)
			}
			outcome = OutcomeApplied
			return nil
		})
	})
	if errors.Is(err, ErrDuplicate) {
		outcome, err = OutcomeDuplicate, nil
	}
	if err != nil {
		metrics.LedgerApplyTotal.WithLabelValues(string(KindCheckoutCompleted), "error").Inc()
		return "", err
	}

	metrics.LedgerApplyTotal.WithLabelValues(string(KindCheckoutCompleted), string(outcome)).Inc()
	if outcome == OutcomeApplied {
		l.log.Info().
			Str("user_id", ev.UserID).
			Str("plan", string(plan.ID)).
			Str("checkout_session_id", ev.SessionID).
			Int64("previous_limit", change.Previous).
			Int64("new_limit", change.New).
			Msg("snippet limit credited")
		l.invalidate(ctx, ev.UserID)
	} else {
		l.log.Info().Str("checkout_session_id", ev.SessionID).Msg("checkout session already credited")
	}
	return outcome, nil
}

// applySubscriptionCheckout links a legacy subscription and sets the limit to
// the plan's allowance. Replays write the same values again.
func (l *Ledger) applySubscriptionCheckout(ctx context.Context, ev CheckoutCompleted, plan Plan) (Outcome, error) {
	err := l.repo.WithTx(ctx, func(tx Repository) error {
		_, found, err := tx.LockSubscriptionByUserID(ctx, ev.UserID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: subscription for user %s", ErrNotFound, ev.UserID)
		}
		return tx.ReplaceSubscription(ctx, ev.UserID, SubscriptionChange{
			PlanType:             string(plan.ID),
			Status:               models.SubscriptionStatusActive,
			SnippetLimit:         plan.SnippetLimitDelta,
			StripeSubscriptionID: ev.SubscriptionID,
			StripePriceID:        plan.ExternalPriceID,
			StripeCustomerID:     ev.CustomerID,
		})
	})
	if err != nil {
		metrics.LedgerApplyTotal.WithLabelValues(string(KindCheckoutCompleted), "error").Inc()
		return "", err
	}

	metrics.LedgerApplyTotal.WithLabelValues(string(KindCheckoutCompleted), string(OutcomeApplied)).Inc()
	l.log.Info().
		Str("user_id", ev.UserID).
		Str("plan", string(plan.ID)).
		Str("subscription_id", ev.SubscriptionID).
		Msg("subscription linked")
	l.invalidate(ctx, ev.UserID)
	return OutcomeApplied, nil
}

// ApplySubscriptionUpdated moves a linked user to the tier of the
// subscription's current price.
func (l *Ledger) ApplySubscriptionUpdated(ctx context.Context, ev SubscriptionUpdated) (Outcome, error) {
	var userID string
	outcome := OutcomeApplied
	err := l.repo.WithTx(ctx, func(tx Repository) error {
		sub, found, err := tx.LockSubscriptionByStripeID(ctx, ev.SubscriptionID)
		if err != nil {
			return err
		}
		if !found {
			outcome = OutcomeIgnored
			return nil
		}

		plan, ok := l.catalog.LookupByPriceID(ev.PriceID)
		if !ok {
			return fmt.Errorf("%w: unknown price %q on subscription %s", ErrValidation, ev.PriceID, ev.SubscriptionID)
		}

		userID = sub.UserID
		return tx.ReplaceSubscription(ctx, sub.UserID, SubscriptionChange{
			PlanType:             string(plan.ID),
			Status:               models.NormalizeSubscriptionStatus(ev.Status),
			SnippetLimit:         plan.SnippetLimitDelta,
			StripeSubscriptionID: ev.SubscriptionID,
			StripePriceID:        plan.ExternalPriceID,
		})
	})
	return l.finishReplacement(ctx, KindSubscriptionUpdated, ev.SubscriptionID, userID, outcome, err)
}

// ApplySubscriptionDeleted returns the user to the free tier.
func (l *Ledger) ApplySubscriptionDeleted(ctx context.Context, ev SubscriptionDeleted) (Outcome, error) {
	var userID string
	outcome := OutcomeApplied
	free := l.catalog.Free()
	err := l.repo.WithTx(ctx, func(tx Repository) error {
		sub, found, err := tx.LockSubscriptionByStripeID(ctx, ev.SubscriptionID)
		if err != nil {
			return err
		}
		if !found {
			outcome = OutcomeIgnored
			return nil
		}

		userID = sub.UserID
		return tx.ReplaceSubscription(ctx, sub.UserID, SubscriptionChange{
			PlanType:     string(free.ID),
			Status:       models.SubscriptionStatusCanceled,
			SnippetLimit: free.SnippetLimitDelta,
		})
	})
	return l.finishReplacement(ctx, KindSubscriptionDeleted, ev.SubscriptionID, userID, outcome, err)
}

func (l *Ledger) finishReplacement(ctx context.Context, kind EventKind, subscriptionID, userID string, outcome Outcome, err error) (Outcome, error) {
	if err != nil {
		metrics.LedgerApplyTotal.WithLabelValues(string(kind), "error").Inc()
		return "", err
	}
	metrics.LedgerApplyTotal.WithLabelValues(string(kind), string(outcome)).Inc()

	if outcome == OutcomeIgnored {
		l.log.Warn().
			Str("kind", string(kind)).
			Str("subscription_id", subscriptionID).
			Msg("no user linked to subscription, event ignored")
		return outcome, nil
	}

	l.log.Info().
		Str("kind", string(kind)).
		Str("subscription_id", subscriptionID).
		Str("user_id", userID).
		Msg("subscription entitlement replaced")
	l.invalidate(ctx, userID)
	return outcome, nil
}

func (l *Ledger) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, ErrLedgerConflict) {
			return err
		}
		metrics.LedgerConflictRetries.Inc()
		l.log.Warn().Err(err).Int("attempt", attempt).Msg("ledger verification failed, retrying")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func (l *Ledger) invalidate(ctx context.Context, userID string) {
	if l.invalidator == nil || userID == "" {
		return
	}
	if err := l.invalidator.Invalidate(ctx, userID); err != nil {
		l.log.Warn().Err(err).Str("user_id", userID).Msg("entitlement cache invalidation failed")
	}
}
