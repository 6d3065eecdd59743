package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"gorm.io/gorm"
)

// InvoiceWriter is the part of Repository the recorder needs.
type InvoiceWriter interface {
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
}

// InvoiceRecorder builds and appends invoices. It always runs inside the
// ledger transaction so an invoice never exists without its limit change.
type InvoiceRecorder struct {
	currency string
}

func NewInvoiceRecorder(catalog *Catalog) *InvoiceRecorder {
	return &InvoiceRecorder{currency: catalog.Currency()}
}

// LimitChange describes the ledger transition an invoice pays for.
type LimitChange struct {
	Previous int64
	New      int64
}

func (r *InvoiceRecorder) Build(ev CheckoutCompleted, plan Plan, profile *models.Profile, change LimitChange) *models.Invoice {
	currency := ev.Currency
	if currency == "" {
		currency = r.currency
	}
	// Invoices record what was charged, not the list price. A fully
	// discounted session is a 0 invoice.
	amount := ev.AmountTotal

	inv := &models.Invoice{
		UserID:                ev.UserID,
		Email:                 ev.CustomerEmail,
		PlanType:              string(plan.ID),
		Amount:                MajorUnits(amount),
		AmountMinorUnits:      amount,
		Currency:              currency,
		SnippetLimitAdded:     plan.SnippetLimitDelta,
		CheckoutSessionID:     ev.SessionID,
		StripePaymentIntentID: ev.PaymentIntentID,
		PaymentMethod:         ev.PaymentMethod,
		Status:                models.InvoiceStatusCompleted,
		Metadata: models.InvoiceMetadata{
			CheckoutSessionID:   ev.SessionID,
			ExternalCustomerRef: ev.CustomerID,
			PreviousLimit:       change.Previous,
			NewLimit:            change.New,
		},
	}
	if profile != nil {
		if profile.Email != "" {
			inv.Email = profile.Email
		}
		inv.FullName = profile.FullName
	}
	return inv
}

// Record appends the invoice. A second invoice for the same checkout session
// is reported as ErrDuplicate.
func (r *InvoiceRecorder) Record(ctx context.Context, w InvoiceWriter, inv *models.Invoice) error {
	if err := w.CreateInvoice(ctx, inv); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: invoice for checkout session %s", ErrDuplicate, inv.CheckoutSessionID)
		}
		return fmt.Errorf("record invoice: %w", err)
	}
	return nil
}
