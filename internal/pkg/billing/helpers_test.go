package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testBasicPrice   = "price_basic_test"
	testPremiumPrice = "price_premium_test"
	testSecret       = "whsec_test_secret"
)

func newTestCatalog() *Catalog {
	return NewCatalog(testBasicPrice, testPremiumPrice, "usd")
}

// openTestDB returns an isolated in-memory SQLite database. A single
// connection makes concurrent transactions queue instead of failing with
// SQLITE_BUSY. That also serializes them, so ledger tests on this database
// cannot catch a lost update; the server-side increment is pinned by
// TestApplyAdditiveLimitIsServerSide and TestApplyAdditiveLimitBuildsOnStoredValue.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Subscription{},
		&models.Invoice{},
		&models.BillingWebhookEvent{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, userID, plan string, limit int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Profile{
		ID:       userID,
		Email:    userID + "@example.com",
		FullName: "User " + userID,
		Role:     models.ROLE_USER,
	}).Error)
	require.NoError(t, db.Create(&models.Subscription{
		UserID:       userID,
		PlanType:     plan,
		Status:       models.SubscriptionStatusActive,
		SnippetLimit: limit,
	}).Error)
}

func loadSubscription(t *testing.T, db *gorm.DB, userID string) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, db.Where("user_id = ?", userID).First(&sub).Error)
	return sub
}

func countInvoices(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Invoice{}).Where("user_id = ?", userID).Count(&n).Error)
	return n
}

func checkoutEvent(sessionID, userID, plan string) CheckoutCompleted {
	var amount int64
	if p, err := newTestCatalog().Lookup(plan); err == nil {
		amount = p.PriceMinorUnits
	}
	return CheckoutCompleted{
		EventMeta:       EventMeta{ID: "evt_" + sessionID, ProviderType: "checkout.session.completed"},
		SessionID:       sessionID,
		Mode:            ModePayment,
		UserID:          userID,
		PlanID:          plan,
		CustomerID:      "cus_" + userID,
		PaymentIntentID: "pi_" + sessionID,
		PaymentMethod:   "card",
		AmountTotal:     amount,
		Currency:        "usd",
	}
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return nil
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.users...)
}

func newTestLedger(db *gorm.DB, opts ...LedgerOption) *Ledger {
	return NewLedger(NewRepository(db), newTestCatalog(), zerolog.Nop(), opts...)
}
