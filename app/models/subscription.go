package models

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusUnpaid     = "unpaid"
)

// Subscription is the per-user entitlement record. SnippetLimit is a ledger
// balance and must only be changed through the billing ledger.
type Subscription struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"user_id"`
	PlanType             string    `gorm:"type:varchar(20);not null;default:'free';index" json:"plan_type"`
	Status               string    `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	SnippetLimit         int64     `gorm:"not null;default:10" json:"snippet_limit"`
	StripeCustomerID     string    `gorm:"type:varchar(191);default:'';index" json:"stripe_customer_id"`
	StripeSubscriptionID string    `gorm:"type:varchar(191);default:'';index" json:"stripe_subscription_id"`
	StripePriceID        string    `gorm:"type:varchar(191);default:''" json:"stripe_price_id"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NormalizeSubscriptionStatus maps provider statuses onto the stored set.
// Unrecognized values are kept as incomplete so they never grant access.
func NormalizeSubscriptionStatus(status string) string {
	switch status {
	case SubscriptionStatusActive,
		SubscriptionStatusCanceled,
		SubscriptionStatusPastDue,
		SubscriptionStatusTrialing,
		SubscriptionStatusIncomplete,
		SubscriptionStatusUnpaid:
		return status
	case "incomplete_expired":
		return SubscriptionStatusCanceled
	default:
		return SubscriptionStatusIncomplete
	}
}
