package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// EntitlementSource adapts the subscription and snippet repositories to the
// entitlement read service.
type EntitlementSource struct {
	subscriptions SubscriptionRepository
	snippets      SnippetRepository
}

func NewEntitlementSource(subs SubscriptionRepository, snippets SnippetRepository) *EntitlementSource {
	return &EntitlementSource{subscriptions: subs, snippets: snippets}
}

func (s *EntitlementSource) FindEntitlement(ctx context.Context, userID string) (entitlements.Record, bool, error) {
	sub, err := s.subscriptions.GetByUserID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entitlements.Record{}, false, nil
	}
	if err != nil {
		return entitlements.Record{}, false, err
	}
	return entitlements.Record{
		PlanType:     sub.PlanType,
		Status:       sub.Status,
		SnippetLimit: sub.SnippetLimit,
	}, true, nil
}

func (s *EntitlementSource) CountSnippets(ctx context.Context, userID string) (int64, error) {
	return s.snippets.CountByUserID(ctx, userID)
}
