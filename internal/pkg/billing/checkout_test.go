package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu          sync.Mutex
	customerSeq atomic.Int32
	customers   []CustomerParams
	sessions    []SessionParams
	customerErr error
	sessionErr  error
	delay       time.Duration
}

func (g *fakeGateway) CreateCustomer(_ context.Context, p CustomerParams) (string, error) {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.mu.Lock()
	g.customers = append(g.customers, p)
	g.mu.Unlock()
	if g.customerErr != nil {
		return "", g.customerErr
	}
	return fmt.Sprintf("cus_%d", g.customerSeq.Add(1)), nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p SessionParams) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, p)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	id := fmt.Sprintf("cs_test_%d", len(g.sessions))
	return &Session{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func newTestInitiator(t *testing.T, gw Gateway, catalog *Catalog, legacy bool) (*CheckoutInitiator, Repository) {
	t.Helper()
	db := openTestDB(t)
	seedUser(t, db, "u1", "free", 10)
	repo := NewRepository(db)
	return NewCheckoutInitiator(repo, gw, catalog, CheckoutConfig{
		PublicSiteURL:       "https://snippets.example.com/",
		LegacySubscriptions: legacy,
	}, zerolog.Nop()), repo
}

func TestStartCheckoutCreatesCustomerAndSession(t *testing.T) {
	gw := &fakeGateway{}
	ci, repo := newTestInitiator(t, gw, newTestCatalog(), true)

	res, err := ci.StartCheckout(context.Background(), CheckoutRequest{UserID: "u1", PlanID: "basic"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", res.URL)
	assert.Equal(t, "cs_test_1", res.SessionID)

	require.Len(t, gw.customers, 1)
	assert.Equal(t, "u1@example.com", gw.customers[0].Email)
	assert.Equal(t, customerIdempotencyKey("u1", "u1@example.com"), gw.customers[0].IdempotencyKey)

	require.Len(t, gw.sessions, 1)
	s := gw.sessions[0]
	assert.Equal(t, "cus_1", s.CustomerID)
	assert.Equal(t, testBasicPrice, s.PriceID)
	assert.Equal(t, ModePayment, s.Mode)
	assert.Equal(t, "https://snippets.example.com/dashboard/settings?success=true", s.SuccessURL)
	assert.Equal(t, "https://snippets.example.com/dashboard/settings?canceled=true", s.CancelURL)
	assert.Equal(t, map[string]string{
		"userId":       "u1",
		"planType":     "basic",
		"snippetLimit": "100",
		"mode":         ModePayment,
	}, s.Metadata)

	sub, _, err := repo.FindSubscriptionByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", sub.StripeCustomerID)
}

func TestStartCheckoutReusesLinkedCustomer(t *testing.T) {
	gw := &fakeGateway{}
	ci, _ := newTestInitiator(t, gw, newTestCatalog(), true)
	ctx := context.Background()

	_, err := ci.StartCheckout(ctx, CheckoutRequest{UserID: "u1", PlanID: "basic"})
	require.NoError(t, err)
	_, err = ci.StartCheckout(ctx, CheckoutRequest{UserID: "u1", PlanID: "premium"})
	require.NoError(t, err)

	assert.Len(t, gw.customers, 1)
	require.Len(t, gw.sessions, 2)
	assert.Equal(t, gw.sessions[0].CustomerID, gw.sessions[1].CustomerID)
}

func TestStartCheckoutConcurrentRequestsShareOneCustomer(t *testing.T) {
	gw := &fakeGateway{delay: 20 * time.Millisecond}
	ci, repo := newTestInitiator(t, gw, newTestCatalog(), true)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ci.StartCheckout(context.Background(), CheckoutRequest{UserID: "u1", PlanID: "basic"}); err != nil {
				t.Errorf("start checkout: %v", err)
			}
		}()
	}
	wg.Wait()

	sub, _, err := repo.FindSubscriptionByUserID(context.Background(), "u1")
	require.NoError(t, err)
	for _, s := range gw.sessions {
		assert.Equal(t, sub.StripeCustomerID, s.CustomerID)
	}
}

func TestStartCheckoutErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		catalog *Catalog
		gw      *fakeGateway
		legacy  bool
		req     CheckoutRequest
		want    error
	}{
		{name: "missing user", req: CheckoutRequest{PlanID: "basic"}, want: ErrValidation},
		{name: "unknown plan", req: CheckoutRequest{UserID: "u1", PlanID: "gold"}, want: ErrValidation},
		{name: "free plan", req: CheckoutRequest{UserID: "u1", PlanID: "free"}, want: ErrValidation},
		{name: "unknown mode", req: CheckoutRequest{UserID: "u1", PlanID: "basic", Mode: "setup"}, want: ErrValidation},
		{name: "subscription disabled", legacy: false, req: CheckoutRequest{UserID: "u1", PlanID: "basic", Mode: ModeSubscription}, want: ErrValidation},
		{name: "missing price id", catalog: NewCatalog("", testPremiumPrice, "usd"), req: CheckoutRequest{UserID: "u1", PlanID: "basic"}, want: ErrConfiguration},
		{name: "unknown user", req: CheckoutRequest{UserID: "ghost", PlanID: "basic"}, want: ErrNotFound},
		{name: "customer create fails", gw: &fakeGateway{customerErr: fmt.Errorf("%w: boom", ErrUpstream)}, req: CheckoutRequest{UserID: "u1", PlanID: "basic"}, want: ErrUpstream},
		{name: "session create fails", gw: &fakeGateway{sessionErr: fmt.Errorf("%w: boom", ErrUpstream)}, req: CheckoutRequest{UserID: "u1", PlanID: "premium"}, want: ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := tt.catalog
			if catalog == nil {
				catalog = newTestCatalog()
			}
			gw := tt.gw
			if gw == nil {
				gw = &fakeGateway{}
			}
			ci, _ := newTestInitiator(t, gw, catalog, tt.legacy)

			_, err := ci.StartCheckout(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestStartCheckoutSubscriptionMode(t *testing.T) {
	gw := &fakeGateway{}
	ci, _ := newTestInitiator(t, gw, newTestCatalog(), true)

	_, err := ci.StartCheckout(context.Background(), CheckoutRequest{UserID: "u1", PlanID: "premium", Mode: "Subscription"})
	require.NoError(t, err)
	require.Len(t, gw.sessions, 1)
	assert.Equal(t, ModeSubscription, gw.sessions[0].Mode)
	assert.Equal(t, testPremiumPrice, gw.sessions[0].PriceID)
}

func TestCustomerIdempotencyKeyFollowsEmail(t *testing.T) {
	key := customerIdempotencyKey("u1", "u1@example.com")
	assert.True(t, strings.HasPrefix(key, "customer:u1:"))
	assert.Equal(t, key, customerIdempotencyKey("u1", "u1@example.com"))
	assert.NotEqual(t, key, customerIdempotencyKey("u1", "U1@example.com"))
	assert.NotEqual(t, key, customerIdempotencyKey("u1", "new@example.com"))
	assert.NotEqual(t, key, customerIdempotencyKey("u2", "u1@example.com"))
}
