package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanpass_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanpass_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanpass_orders_total",
			Help: "Checkout orders by outcome",
		},
		[]string{"outcome"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanpass_webhooks_total",
			Help: "Provider webhooks by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanpass_reconciliations_total",
			Help: "Reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	EffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanpass_post_commit_failures_total",
			Help: "Failed post-commit effects by effect",
		},
		[]string{"effect"},
	)

	CommissionCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanpass_commission_credited_total",
			Help: "Commission amount credited, by role",
		},
		[]string{"role"},
	)

	SweepCheckedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanpass_sweep_payments_total",
			Help: "Payments visited by the pending sweep, by result",
		},
		[]string{"result"},
	)
)

// Outcomes shared by orders and reconciliations
const (
	OutcomeCompleted        = "completed"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeNotFound         = "not_found"
	OutcomeError            = "error"
	OutcomeCreated          = "created"
	OutcomeIgnored          = "ignored"
	OutcomeRejected         = "rejected"
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordOrder(outcome string) {
	OrdersTotal.WithLabelValues(outcome).Inc()
}

func RecordWebhook(eventType, outcome string) {
	WebhooksTotal.WithLabelValues(eventType, outcome).Inc()
}

func RecordReconciliation(outcome string) {
	ReconciliationsTotal.WithLabelValues(outcome).Inc()
}

func RecordEffectFailure(effect string) {
	EffectFailuresTotal.WithLabelValues(effect).Inc()
}

func RecordCommission(role string, amount decimal.Decimal) {
	CommissionCreditedTotal.WithLabelValues(role).Add(amount.InexactFloat64())
}

func RecordSweep(result string) {
	SweepCheckedTotal.WithLabelValues(result).Inc()
}
