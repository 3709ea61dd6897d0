package handlers

import (
	"io"
	"net/http"

	apperrors "fanpass/internal/errors"
	"fanpass/internal/external"
	"fanpass/internal/logger"
	"fanpass/internal/metrics"
	"fanpass/internal/models"
	"fanpass/internal/webhook"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// ReceivePaymentWebhook - POST /api/webhooks/paypal
// Принимать уведомления от платежного провайдера
func (h *Handlers) ReceivePaymentWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		metrics.RecordWebhook("unknown", metrics.OutcomeRejected)
		errorJSON(c, http.StatusBadRequest, "Failed to read body")
		return
	}

	if h.verifier != nil && h.verifier.WebhookVerificationEnabled() {
		ok, err := h.verifier.VerifyWebhookSignature(ctx, webhookHeaders(c), body)
		if err != nil || !ok {
			log.Warn("Webhook signature rejected", "error", err)
			metrics.RecordWebhook("unknown", metrics.OutcomeRejected)
			errorJSON(c, http.StatusUnauthorized, "Invalid webhook signature")
			return
		}
	}

	notification, err := webhook.Parse(body)
	if err != nil {
		log.Warn("Malformed webhook", "error", err)
		metrics.RecordWebhook("unknown", metrics.OutcomeRejected)
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	var orderID, captureID string
	switch n := notification.(type) {
	case webhook.CaptureCompleted:
		orderID, captureID = n.OrderID, n.CaptureID
	case webhook.OrderApproved:
		if !h.completeOnApproval {
			h.ignore(c, n.Type())
			return
		}
		orderID, captureID = n.OrderID, n.CaptureID
	default:
		h.ignore(c, n.Type())
		return
	}

	eventType := notification.Type()
	log = log.With("event_type", eventType, "order_id", orderID)

	outcome, err := h.reconciler.Reconcile(ctx, orderID, captureID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrPaymentNotFound) {
			log.Warn("Webhook for unknown order")
			metrics.RecordWebhook(eventType, metrics.OutcomeNotFound)
			errorJSON(c, http.StatusNotFound, "Payment not found")
			return
		}
		log.Error("Failed to reconcile payment", "error", err)
		metrics.RecordWebhook(eventType, metrics.OutcomeError)
		errorJSON(c, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	log.Info("Webhook processed", "outcome", outcome)
	metrics.RecordWebhook(eventType, string(outcome))
	c.JSON(http.StatusOK, models.WebhookAckResponse{Status: string(outcome), OrderID: orderID})
}

// WebhookPreflight - OPTIONS /api/webhooks/paypal
func (h *Handlers) WebhookPreflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Status(http.StatusOK)
}

func (h *Handlers) ignore(c *gin.Context, eventType string) {
	logger.WithContext(c.Request.Context()).Info("Webhook ignored", "event_type", eventType)
	metrics.RecordWebhook(webhookMetricType(eventType), metrics.OutcomeIgnored)
	c.JSON(http.StatusOK, models.WebhookAckResponse{Status: metrics.OutcomeIgnored})
}

// event_type приходит от клиента, неизвестные значения сворачиваем в одну метку
func webhookMetricType(eventType string) string {
	switch eventType {
	case webhook.EventCaptureCompleted, webhook.EventOrderApproved:
		return eventType
	default:
		return "other"
	}
}

func webhookHeaders(c *gin.Context) external.WebhookHeaders {
	return external.WebhookHeaders{
		AuthAlgo:         c.GetHeader("PAYPAL-AUTH-ALGO"),
		CertURL:          c.GetHeader("PAYPAL-CERT-URL"),
		TransmissionID:   c.GetHeader("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  c.GetHeader("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: c.GetHeader("PAYPAL-TRANSMISSION-TIME"),
	}
}
