package constants

// Route constants shared by the router, docs and tests
const (
	CheckoutSessionRoute = "/create-checkout-session"
	WebhookRoute         = "/webhooks/:provider"
	HealthRoute          = "/healthz"
	MetricsRoute         = "/metrics"
	DocsBasePath         = "/docs/api/"

	APIPrefix           = "/api"
	PlansRoute          = "/plans"
	EntitlementsRoute   = "/entitlements"
	AdminPrefix         = "/admin"
	AdminInvoicesRoute  = "/invoices"
	AdminInvoicesExport = "/invoices/export.csv"
)
