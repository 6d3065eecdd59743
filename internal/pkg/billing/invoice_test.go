package billing

import (
	"context"
	"testing"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceBuildConvertsChargedAmount(t *testing.T) {
	catalog := newTestCatalog()
	basic, err := catalog.Lookup("basic")
	require.NoError(t, err)
	recorder := NewInvoiceRecorder(catalog)

	ev := checkoutEvent("cs_amount", "u1", "basic")
	ev.AmountTotal = 2000
	ev.CustomerEmail = "stripe@example.com"

	inv := recorder.Build(ev, basic, nil, LimitChange{Previous: 10, New: 100})
	assert.Equal(t, 20.00, inv.Amount)
	assert.EqualValues(t, 2000, inv.AmountMinorUnits)
	assert.Equal(t, "stripe@example.com", inv.Email)
	assert.EqualValues(t, 100, inv.SnippetLimitAdded)
	assert.Equal(t, models.InvoiceMetadata{
		CheckoutSessionID:   "cs_amount",
		ExternalCustomerRef: "cus_u1",
		PreviousLimit:       10,
		NewLimit:            100,
	}, inv.Metadata)

	ev.AmountTotal = 1550
	inv = recorder.Build(ev, basic, &models.Profile{Email: "profile@example.com", FullName: "Pat"}, LimitChange{})
	assert.Equal(t, 15.50, inv.Amount)
	assert.Equal(t, "profile@example.com", inv.Email)
	assert.Equal(t, "Pat", inv.FullName)

	ev.Currency = ""
	inv = recorder.Build(ev, basic, nil, LimitChange{})
	assert.Equal(t, "usd", inv.Currency)
}

func TestLedgerFullyDiscountedPurchaseRecordsZeroInvoice(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "u1", "free", 10)
	ledger := newTestLedger(db)

	ev := checkoutEvent("cs_free", "u1", "basic")
	ev.AmountTotal = 0
	outcome, err := ledger.ApplyCheckoutCompleted(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	var invoice models.Invoice
	require.NoError(t, db.Where("checkout_session_id = ?", "cs_free").First(&invoice).Error)
	assert.EqualValues(t, 0, invoice.AmountMinorUnits)
	assert.Equal(t, 0.0, invoice.Amount)
	assert.EqualValues(t, 100, loadSubscription(t, db, "u1").SnippetLimit)
}

func TestInvoiceRecordReportsDuplicate(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)
	recorder := NewInvoiceRecorder(newTestCatalog())
	basic, err := newTestCatalog().Lookup("basic")
	require.NoError(t, err)

	ev := checkoutEvent("cs_dup", "u1", "basic")
	require.NoError(t, recorder.Record(context.Background(), repo, recorder.Build(ev, basic, nil, LimitChange{})))
	err = recorder.Record(context.Background(), repo, recorder.Build(ev, basic, nil, LimitChange{}))
	assert.ErrorIs(t, err, ErrDuplicate)
}
