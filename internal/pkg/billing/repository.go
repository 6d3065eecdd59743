package billing

import (
	"context"
	"errors"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. Lookups
// return found=false instead of an error when no row exists.
type Repository interface {
	// WithTx runs fn in one transaction; fn must only use the repository it
	// is handed.
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	FindSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, bool, error)
	LockSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, bool, error)
	LockSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, bool, error)
	ApplyAdditiveLimit(ctx context.Context, userID, planType string, free Plan, delta int64) error
	ReplaceSubscription(ctx context.Context, userID string, change SubscriptionChange) error
	LinkStripeCustomer(ctx context.Context, userID, customerID string) (bool, error)

	InvoiceExists(ctx context.Context, checkoutSessionID string) (bool, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error

	FindProfile(ctx context.Context, userID string) (*models.Profile, bool, error)

	RecordWebhookDelivery(ctx context.Context, event *models.BillingWebhookEvent) (*models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func first[T any](q *gorm.DB) (*T, bool, error) {
	var row T
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &row, true, nil
}

func (r *gormRepository) FindSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, bool, error) {
	return first[models.Subscription](r.db.WithContext(ctx).Where("user_id = ?", userID))
}

// LockSubscriptionByUserID reads the row with SELECT ... FOR UPDATE so
// concurrent ledger writes for one user serialize. SQLite ignores the clause
// and serializes whole transactions instead.
func (r *gormRepository) LockSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, bool, error) {
	q := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID)
	return first[models.Subscription](q)
}

func (r *gormRepository) LockSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, bool, error) {
	if stripeSubscriptionID == "" {
		return nil, false, nil
	}
	q := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("stripe_subscription_id = ?", stripeSubscriptionID)
	return first[models.Subscription](q)
}

// additiveLimitSQL applies the purchase rule inside the database so the
// increment never depends on a value read earlier. snippet_limit is assigned
// first because MySQL evaluates SET assignments left to right.
const additiveLimitSQL = `UPDATE subscriptions SET ` +
	`snippet_limit = CASE WHEN plan_type = ? AND snippet_limit = ? THEN ? ELSE snippet_limit + ? END, ` +
	`plan_type = ?, status = ?, updated_at = ? ` +
	`WHERE user_id = ?`

func (r *gormRepository) ApplyAdditiveLimit(ctx context.Context, userID, planType string, free Plan, delta int64) error {
	res := r.db.WithContext(ctx).Exec(additiveLimitSQL,
		string(free.ID), free.SnippetLimitDelta, delta, delta,
		planType, models.SubscriptionStatusActive, time.Now().UTC(),
		userID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) ReplaceSubscription(ctx context.Context, userID string, change SubscriptionChange) error {
	updates := map[string]interface{}{
		"plan_type":              change.PlanType,
		"status":                 change.Status,
		"snippet_limit":          change.SnippetLimit,
		"stripe_subscription_id": change.StripeSubscriptionID,
		"stripe_price_id":        change.StripePriceID,
	}
	if change.StripeCustomerID != "" {
		updates["stripe_customer_id"] = change.StripeCustomerID
	}
	// RowsAffected is not checked: MySQL reports 0 for a no-op rewrite and
	// callers hold the row lock already.
	return r.db.WithContext(ctx).Model(&models.Subscription{}).Where("user_id = ?", userID).Updates(updates).Error
}

// LinkStripeCustomer stores the customer id only if none is linked yet.
// linked=false means another request won and the caller should re-read.
func (r *gormRepository) LinkStripeCustomer(ctx context.Context, userID, customerID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND (stripe_customer_id IS NULL OR stripe_customer_id = '')", userID).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) InvoiceExists(ctx context.Context, checkoutSessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("checkout_session_id = ?", checkoutSessionID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *gormRepository) FindProfile(ctx context.Context, userID string) (*models.Profile, bool, error) {
	return first[models.Profile](r.db.WithContext(ctx).Where("id = ?", userID))
}

// RecordWebhookDelivery inserts the audit row or bumps its delivery count
// when the provider redelivers the same event.
func (r *gormRepository) RecordWebhookDelivery(ctx context.Context, event *models.BillingWebhookEvent) (*models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"delivery_count": gorm.Expr("delivery_count + 1"),
			"updated_at":     time.Now().UTC(),
		}),
	}).Create(event).Error; err != nil {
		return nil, err
	}

	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"outcome":          outcome,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
