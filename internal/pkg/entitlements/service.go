package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/cache"
	"github.com/rs/zerolog"
)

// ErrNoSubscription is returned when the user has no entitlement record.
var ErrNoSubscription = errors.New("no subscription for user")

// Snapshot is the read model served to the editor and dashboard.
type Snapshot struct {
	UserID       string `json:"userId"`
	PlanType     string `json:"planType"`
	Status       string `json:"status"`
	SnippetLimit int64  `json:"snippetLimit"`
	SnippetsUsed int64  `json:"snippetsUsed"`
	Remaining    int64  `json:"remaining"`
	CanCreate    bool   `json:"canCreate"`
}

// Record is the subset of a subscription row the snapshot needs. It is the
// only part of a snapshot that is cached; usage is always counted live.
type Record struct {
	PlanType     string `json:"planType"`
	Status       string `json:"status"`
	SnippetLimit int64  `json:"snippetLimit"`
}

// Source loads entitlement data from the primary store.
type Source interface {
	FindEntitlement(ctx context.Context, userID string) (Record, bool, error)
	CountSnippets(ctx context.Context, userID string) (int64, error)
}

// Cache is the subset of the cache client used for snapshots.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	source Source
	cache  Cache
	ttl    time.Duration
	log    zerolog.Logger
}

// NewService creates the entitlement read service. cache may be nil.
func NewService(source Source, c Cache, ttl time.Duration, log zerolog.Logger) *Service {
	return &Service{source: source, cache: c, ttl: ttl, log: log}
}

func cacheKey(userID string) string {
	return "entitlements:" + userID
}

// Snapshot returns the user's current limit and usage. Only the subscription
// record is cached; snippet writes happen elsewhere, so usage is counted on
// every call. Cache failures are logged and bypassed.
func (s *Service) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	rec, err := s.record(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	used, err := s.source.CountSnippets(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		UserID:       userID,
		PlanType:     rec.PlanType,
		Status:       rec.Status,
		SnippetLimit: rec.SnippetLimit,
		SnippetsUsed: used,
		Remaining:    Remaining(rec.SnippetLimit, used),
		CanCreate:    CanCreateSnippet(rec.SnippetLimit, used),
	}, nil
}

func (s *Service) record(ctx context.Context, userID string) (Record, error) {
	if s.cache != nil {
		var rec Record
		err := s.cache.GetJSON(ctx, cacheKey(userID), &rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("entitlement cache read failed")
		}
	}

	rec, found, err := s.source.FindEntitlement(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{}, ErrNoSubscription
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey(userID), rec, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("entitlement cache write failed")
		}
	}
	return rec, nil
}

// Invalidate drops the cached subscription record after a ledger mutation.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey(userID))
}
