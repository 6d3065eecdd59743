package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/app/models"
	"github.com/ManuelReschke/SnippetCanvas/app/repository"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/billing"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/entitlements"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCheckout struct {
	got billing.CheckoutRequest
	res *billing.CheckoutResult
	err error
}

func (f *fakeCheckout) StartCheckout(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeWebhooks struct {
	ctxErr  error
	payload string
	sig     string
	ack     billing.Ack
	err     error
}

func (f *fakeWebhooks) HandleStripeWebhook(ctx context.Context, payload []byte, sig string) (billing.Ack, error) {
	f.ctxErr = ctx.Err()
	f.payload = string(payload)
	f.sig = sig
	return f.ack, f.err
}

type fakeReader struct {
	snap entitlements.Snapshot
	err  error
}

func (f fakeReader) Snapshot(context.Context, string) (entitlements.Snapshot, error) {
	return f.snap, f.err
}

// asUser stands in for JWTAuth in handler tests.
func asUser(userID string, admin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != "" {
			usercontext.Set(c, usercontext.UserContext{UserID: userID, IsLoggedIn: true, IsAdmin: admin})
		}
		return c.Next()
	}
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func newBillingApp(userID string, checkout CheckoutStarter, webhooks WebhookProcessor) *fiber.App {
	bc := NewBillingController(checkout, webhooks, billing.NewCatalog("price_b", "price_p", "usd"), time.Second, zerolog.Nop())
	app := fiber.New()
	app.Post("/create-checkout-session", asUser(userID, false), bc.HandleCreateCheckoutSession)
	app.Post("/webhooks/:provider", bc.HandleWebhook)
	app.Get("/webhooks/:provider", bc.HandleWebhookInfo)
	app.Get("/api/plans", bc.HandlePlans)
	return app
}

func TestCreateCheckoutSessionReturnsURL(t *testing.T) {
	checkout := &fakeCheckout{res: &billing.CheckoutResult{URL: "https://checkout.stripe.com/c/pay/cs_1", SessionID: "cs_1"}}
	app := newBillingApp("u1", checkout, &fakeWebhooks{})

	status, body := do(t, app, "POST", "/create-checkout-session", `{"planType":" basic ","userId":"u1"}`, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.com/c/pay/cs_1"}`, body)
	assert.Equal(t, billing.CheckoutRequest{UserID: "u1", PlanID: "basic"}, checkout.got)
}

func TestCreateCheckoutSessionErrors(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		body   string
		err    error
		status int
	}{
		{name: "anonymous", user: "", body: `{"planType":"basic","userId":"u1"}`, status: fiber.StatusUnauthorized},
		{name: "malformed body", user: "u1", body: `{`, status: fiber.StatusBadRequest},
		{name: "missing plan", user: "u1", body: `{"userId":"u1"}`, status: fiber.StatusBadRequest},
		{name: "bad mode", user: "u1", body: `{"planType":"basic","userId":"u1","mode":"weekly"}`, status: fiber.StatusBadRequest},
		{name: "other user", user: "u1", body: `{"planType":"basic","userId":"u2"}`, status: fiber.StatusUnauthorized},
		{name: "unknown plan", user: "u1", body: `{"planType":"gold","userId":"u1"}`, err: fmt.Errorf("%w: unknown plan", billing.ErrValidation), status: fiber.StatusBadRequest},
		{name: "unknown user", user: "u1", body: `{"planType":"basic","userId":"u1"}`, err: fmt.Errorf("%w: user", billing.ErrNotFound), status: fiber.StatusNotFound},
		{name: "config", user: "u1", body: `{"planType":"basic","userId":"u1"}`, err: fmt.Errorf("%w: no price", billing.ErrConfiguration), status: fiber.StatusInternalServerError},
		{name: "upstream", user: "u1", body: `{"planType":"basic","userId":"u1"}`, err: fmt.Errorf("%w: stripe down", billing.ErrUpstream), status: fiber.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newBillingApp(tc.user, &fakeCheckout{err: tc.err}, &fakeWebhooks{})
			status, body := do(t, app, "POST", "/create-checkout-session", tc.body, nil)
			assert.Equal(t, tc.status, status)
			assert.Contains(t, body, `"error"`)
			if tc.status == fiber.StatusInternalServerError {
				assert.NotContains(t, body, "stripe down")
			}
		})
	}
}

func TestCreateCheckoutSessionRejectsForeignUserID(t *testing.T) {
	checkout := &fakeCheckout{res: &billing.CheckoutResult{URL: "https://checkout.stripe.com/c/pay/cs_1"}}
	app := newBillingApp("u1", checkout, &fakeWebhooks{})

	status, body := do(t, app, "POST", "/create-checkout-session", `{"planType":"basic","userId":"u2"}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, `"error":"unauthorized"`)
	assert.Contains(t, body, "does not match the authenticated user")
	assert.Empty(t, checkout.got.UserID)
}

func TestBillingStatusMapsUnauthorized(t *testing.T) {
	err := fmt.Errorf("%w: token subject", billing.ErrUnauthorized)
	assert.Equal(t, fiber.StatusUnauthorized, billingStatus(err, fiber.StatusNotFound))
}

func TestWebhookAcknowledgesOutcome(t *testing.T) {
	webhooks := &fakeWebhooks{ack: billing.Ack{EventID: "evt_1", EventType: "checkout.session.completed", Outcome: billing.OutcomeDuplicate}}
	app := newBillingApp("", &fakeCheckout{}, webhooks)

	status, body := do(t, app, "POST", "/webhooks/stripe", `{"id":"evt_1"}`, map[string]string{billing.SignatureHeader: "t=1,v1=abc"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"received":true,"status":"duplicate"}`, body)
	assert.Equal(t, `{"id":"evt_1"}`, webhooks.payload)
	assert.Equal(t, "t=1,v1=abc", webhooks.sig)
	assert.NoError(t, webhooks.ctxErr)
}

func TestWebhookErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad signature", billing.ErrSignature), fiber.StatusBadRequest},
		{fmt.Errorf("%w: missing userId", billing.ErrValidation), fiber.StatusBadRequest},
		{fmt.Errorf("%w: subscription for user x", billing.ErrNotFound), fiber.StatusInternalServerError},
		{fmt.Errorf("%w: webhook secret not configured", billing.ErrConfiguration), fiber.StatusInternalServerError},
		{errors.New("db down"), fiber.StatusInternalServerError},
	}
	for _, tc := range tests {
		app := newBillingApp("", &fakeCheckout{}, &fakeWebhooks{err: tc.err})
		status, _ := do(t, app, "POST", "/webhooks/stripe", `{}`, nil)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestWebhookUnknownProviderAndInfo(t *testing.T) {
	app := newBillingApp("", &fakeCheckout{}, &fakeWebhooks{})

	status, _ := do(t, app, "POST", "/webhooks/paypal", `{}`, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := do(t, app, "GET", "/webhooks/stripe", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"message":"Stripe webhook endpoint"}`, body)
}

func TestPlansListing(t *testing.T) {
	app := newBillingApp("", &fakeCheckout{}, &fakeWebhooks{})

	status, body := do(t, app, "GET", "/api/plans", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"id":"premium"`)
	assert.Contains(t, body, `"snippetLimit":500`)
	assert.NotContains(t, body, "price_p")
}

func TestEntitlementsHandler(t *testing.T) {
	snap := entitlements.Snapshot{UserID: "u1", PlanType: "basic", SnippetLimit: 100, SnippetsUsed: 3, Remaining: 97, CanCreate: true}

	app := fiber.New()
	app.Get("/ok", asUser("u1", false), NewEntitlementsController(fakeReader{snap: snap}, zerolog.Nop()).HandleGetEntitlements)
	app.Get("/none", asUser("u1", false), NewEntitlementsController(fakeReader{err: entitlements.ErrNoSubscription}, zerolog.Nop()).HandleGetEntitlements)
	app.Get("/anon", asUser("", false), NewEntitlementsController(fakeReader{}, zerolog.Nop()).HandleGetEntitlements)

	status, body := do(t, app, "GET", "/ok", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"remaining":97`)

	status, _ = do(t, app, "GET", "/none", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, "GET", "/anon", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Invoice{}))
	return db
}

func TestAdminInvoices(t *testing.T) {
	db := openTestDB(t)
	for i, email := range []string{"ann@example.com", "bob@example.com"} {
		require.NoError(t, db.Create(&models.Invoice{
			UserID: fmt.Sprintf("u%d", i), Email: email, FullName: "Name, Quoted",
			PlanType: "basic", Amount: 20, AmountMinorUnits: 2000, Currency: "usd",
			SnippetLimitAdded: 100, CheckoutSessionID: fmt.Sprintf("cs_%d", i),
			Status: models.InvoiceStatusCompleted,
		}).Error)
	}

	ac := NewAdminInvoicesController(repository.NewInvoiceRepository(db), zerolog.Nop())
	app := fiber.New()
	app.Get("/invoices", ac.HandleListInvoices)
	app.Get("/invoices/export.csv", ac.HandleExportInvoices)

	status, body := do(t, app, "GET", "/invoices?page=abc&search=ANN", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, `"total":1`)
	assert.Contains(t, body, `"page":1`)
	assert.Contains(t, body, "ann@example.com")

	status, body = do(t, app, "GET", "/invoices/export.csv", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,created_at,user_id"))
	assert.Contains(t, body, `"Name, Quoted"`)
	assert.Contains(t, body, "20.00,USD,100")
}

func TestAdminInvoicesExportNeutralizesFormulas(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Create(&models.Invoice{
		UserID: "u1", Email: "@evil@example.com", FullName: "=HYPERLINK(\"http://x\")",
		PlanType: "basic", Amount: 20, AmountMinorUnits: 2000, Currency: "usd",
		SnippetLimitAdded: 100, CheckoutSessionID: "cs_formula",
		Status: models.InvoiceStatusCompleted,
	}).Error)

	ac := NewAdminInvoicesController(repository.NewInvoiceRepository(db), zerolog.Nop())
	app := fiber.New()
	app.Get("/invoices/export.csv", ac.HandleExportInvoices)

	status, body := do(t, app, "GET", "/invoices/export.csv", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, body, ",'@evil@example.com,")
	assert.Contains(t, body, `"'=HYPERLINK(""http://x"")"`)
	assert.NotContains(t, body, ",=HYPERLINK")

	assert.Equal(t, "'-5", csvText("-5"))
	assert.Equal(t, "'+1", csvText("+1"))
	assert.Equal(t, "ann@example.com", csvText("ann@example.com"))
	assert.Equal(t, "", csvText(""))
}

func TestHealthz(t *testing.T) {
	up := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("refused") })

	app := fiber.New()
	app.Get("/ok", NewHealthController(map[string]Pinger{"database": up, "cache": up}, zerolog.Nop()).HandleHealthz)
	app.Get("/bad", NewHealthController(map[string]Pinger{"database": up, "cache": down}, zerolog.Nop()).HandleHealthz)

	status, body := do(t, app, "GET", "/ok", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","database":"ok","cache":"ok"}`, body)

	status, body = do(t, app, "GET", "/bad", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.JSONEq(t, `{"status":"degraded","database":"ok","cache":"down"}`, body)
}
