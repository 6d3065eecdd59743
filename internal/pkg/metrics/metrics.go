package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts payment webhook requests by event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snippetcanvas",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total payment webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "snippetcanvas",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Payment webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// LedgerApplyTotal counts ledger mutations by kind and outcome
	// (applied, duplicate, ignored, error).
	LedgerApplyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snippetcanvas",
		Subsystem: "billing",
		Name:      "ledger_apply_total",
		Help:      "Entitlement ledger mutations by kind and outcome.",
	}, []string{"kind", "outcome"})

	// LedgerConflictRetries counts verify-and-retry loops in the ledger.
	LedgerConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "snippetcanvas",
		Subsystem: "billing",
		Name:      "ledger_conflict_retries_total",
		Help:      "Ledger transactions retried after a limit verification mismatch.",
	})

	// CheckoutSessionsTotal counts checkout session attempts by plan and outcome.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snippetcanvas",
		Subsystem: "billing",
		Name:      "checkout_sessions_total",
		Help:      "Checkout session creation attempts by plan and outcome.",
	}, []string{"plan", "outcome"})
)
