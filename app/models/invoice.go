package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvoiceStatusCompleted = "completed"
	InvoiceStatusPending   = "pending"
	InvoiceStatusFailed    = "failed"
)

// InvoiceMetadata is stored as JSON next to each invoice for auditing.
type InvoiceMetadata struct {
	CheckoutSessionID   string `json:"checkoutSessionId"`
	ExternalCustomerRef string `json:"externalCustomerRef,omitempty"`
	PreviousLimit       int64  `json:"previousLimit"`
	NewLimit            int64  `json:"newLimit"`
}

// Invoice is an append-only record of a completed purchase. The unique
// checkout_session_id is what makes webhook redelivery idempotent.
type Invoice struct {
	ID                    string          `gorm:"type:char(36);primaryKey" json:"id"`
	UserID                string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Email                 string          `gorm:"type:varchar(200);default:''" json:"email"`
	FullName              string          `gorm:"type:varchar(150);default:''" json:"full_name"`
	PlanType              string          `gorm:"type:varchar(20);not null;index" json:"plan_type"`
	Amount                float64         `gorm:"type:decimal(10,2);not null" json:"amount"`
	AmountMinorUnits      int64           `gorm:"not null" json:"amount_minor_units"`
	Currency              string          `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	SnippetLimitAdded     int64           `gorm:"not null" json:"snippet_limit_added"`
	CheckoutSessionID     string          `gorm:"type:varchar(191);not null;uniqueIndex" json:"checkout_session_id"`
	StripePaymentIntentID string          `gorm:"type:varchar(191);default:''" json:"stripe_payment_intent_id"`
	PaymentMethod         string          `gorm:"type:varchar(50);default:''" json:"payment_method"`
	Status                string          `gorm:"type:varchar(20);not null;default:'completed'" json:"status"`
	Metadata              InvoiceMetadata `gorm:"serializer:json;type:text" json:"metadata"`
	CreatedAt             time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
