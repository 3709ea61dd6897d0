package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/api/orders", "200", 0.2)
	RecordHTTPRequest("POST", "/api/orders", "200", 0.3)
	RecordHTTPRequest("POST", "/api/orders", "400", 0.01)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/orders", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/orders", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordReconciliation(t *testing.T) {
	ReconciliationsTotal.Reset()

	RecordReconciliation(OutcomeCompleted)
	RecordReconciliation(OutcomeAlreadyProcessed)
	RecordReconciliation(OutcomeAlreadyProcessed)

	assert.Equal(t, float64(1), testutil.ToFloat64(ReconciliationsTotal.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, float64(2), testutil.ToFloat64(ReconciliationsTotal.WithLabelValues(OutcomeAlreadyProcessed)))
}

func TestRecordCommission(t *testing.T) {
	CommissionCreditedTotal.Reset()

	RecordCommission("referral", decimal.RequireFromString("5.00"))
	RecordCommission("referral", decimal.RequireFromString("2.50"))

	assert.InDelta(t, 7.5, testutil.ToFloat64(CommissionCreditedTotal.WithLabelValues("referral")), 1e-9)
}

func TestRecordWebhookAndEffects(t *testing.T) {
	WebhooksTotal.Reset()
	EffectFailuresTotal.Reset()

	RecordWebhook("SOMETHING.ELSE", OutcomeIgnored)
	RecordEffectFailure("attendance")

	assert.Equal(t, float64(1), testutil.ToFloat64(WebhooksTotal.WithLabelValues("SOMETHING.ELSE", OutcomeIgnored)))
	assert.Equal(t, float64(1), testutil.ToFloat64(EffectFailuresTotal.WithLabelValues("attendance")))
}
