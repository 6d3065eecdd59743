package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

// Service ties the webhook pipeline together: verify, audit, parse, dispatch.
type Service struct {
	repo       Repository
	verifier   *Verifier
	dispatcher *Dispatcher
	log        zerolog.Logger
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, verifier *Verifier, dispatcher *Dispatcher, log zerolog.Logger) *Service {
	return &Service{repo: repo, verifier: verifier, dispatcher: dispatcher, log: log}
}

// HandleStripeWebhook processes one delivery. The returned error wraps one of
// the package error kinds; callers map it to an HTTP status.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signatureHeader string) (Ack, error) {
	event, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		return Ack{}, err
	}

	stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(payload),
		SignatureValid:  true,
	})
	if err != nil {
		// The audit log never decides whether an event is applied.
		s.log.Warn().Err(err).Str("event_id", event.ID).Msg("webhook audit write failed")
	}

	ack, err := s.process(ctx, event)
	if stored != nil {
		if markErr := s.MarkWebhookProcessed(ctx, stored.ID, ack.Outcome, err); markErr != nil {
			s.log.Warn().Err(markErr).Str("event_id", event.ID).Msg("webhook audit update failed")
		}
	}
	return ack, err
}

func (s *Service) process(ctx context.Context, event stripe.Event) (Ack, error) {
	ev, err := ParseEvent(event)
	if err != nil {
		return Ack{EventID: event.ID, EventType: string(event.Type)}, err
	}
	return s.dispatcher.Dispatch(ctx, ev)
}

// RecordWebhookEvent stores an audit row for a verified delivery. Providers
// that omit an event id are keyed by a hash of the payload.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (*models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	return s.repo.RecordWebhookDelivery(ctx, &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
		DeliveryCount:   1,
	})
}

// MarkWebhookProcessed stores the outcome and an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, outcome Outcome, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, string(outcome), errMsg)
}
