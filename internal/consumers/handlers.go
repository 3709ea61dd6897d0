package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fanpass/internal/models"

	"github.com/nats-io/stan.go"
)

type PaymentIndexer interface {
	IndexPayment(ctx context.Context, doc *models.PaymentSearchResponseItem) error
}

type EventLookup interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

type EarningsInvalidator interface {
	InvalidateEarnings(ctx context.Context, userID string) error
}

// Handlers - indexer and invalidator may be nil when search or cache is disabled
type Handlers struct {
	events      EventLookup
	indexer     PaymentIndexer
	invalidator EarningsInvalidator
}

func NewHandlers(events EventLookup, indexer PaymentIndexer, invalidator EarningsInvalidator) *Handlers {
	return &Handlers{
		events:      events,
		indexer:     indexer,
		invalidator: invalidator,
	}
}

// errPoison marks a message that will never succeed on redelivery
var errPoison = errors.New("undecodable message")

// ack подтверждает сообщение только после успешной обработки, иначе
// NATS Streaming доставит его повторно после AckWait
func ack(m *stan.Msg, handle func(ctx context.Context, data []byte) error) {
	err := handle(context.Background(), m.Data)
	if err != nil && !errors.Is(err, errPoison) {
		slog.Error("Failed to handle message, awaiting redelivery",
			"error", err, "subject", m.Subject, "sequence", m.Sequence, "redelivered", m.Redelivered)
		return
	}

	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack message", "error", err, "subject", m.Subject, "sequence", m.Sequence)
	}
}

func (h *Handlers) HandlePaymentCompleted(m *stan.Msg) {
	ack(m, h.handlePaymentCompleted)
}

func (h *Handlers) HandleCommissionCredited(m *stan.Msg) {
	ack(m, h.handleCommissionCredited)
}

func (h *Handlers) HandleAttendanceAdmitted(m *stan.Msg) {
	ack(m, h.handleAttendanceAdmitted)
}

func (h *Handlers) handlePaymentCompleted(ctx context.Context, data []byte) error {
	var event models.PaymentCompletedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal payment completed event", "error", err)
		return errPoison
	}

	slog.Info("Processing payment completed event", "payment_id", event.PaymentID, "order_id", event.OrderID)

	if h.indexer == nil {
		return nil
	}

	doc := &models.PaymentSearchResponseItem{
		PaymentID:   event.PaymentID,
		OrderID:     event.OrderID,
		CaptureID:   event.CaptureID,
		UserID:      event.UserID,
		EventID:     event.EventID,
		Amount:      event.Amount,
		Status:      models.PaymentStatusCompleted,
		ReferredBy:  event.ReferredBy,
		GuestName:   event.GuestName,
	}
	if !event.Timestamp.IsZero() {
		doc.CompletedAt = event.Timestamp.UTC().Format(time.RFC3339)
	}

	eventRow, err := h.events.GetByID(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if eventRow != nil {
		doc.EventName = eventRow.Name
	}

	if err := h.indexer.IndexPayment(ctx, doc); err != nil {
		return fmt.Errorf("failed to index payment %s: %w", event.PaymentID, err)
	}
	return nil
}

func (h *Handlers) handleCommissionCredited(ctx context.Context, data []byte) error {
	var event models.CommissionCreditedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal commission credited event", "error", err)
		return errPoison
	}

	slog.Info("Processing commission credited event",
		"payment_id", event.PaymentID, "user_id", event.UserID, "role", event.Role, "amount", event.Amount)

	if h.invalidator == nil {
		return nil
	}

	if err := h.invalidator.InvalidateEarnings(ctx, event.UserID); err != nil {
		return fmt.Errorf("failed to invalidate earnings for user %s: %w", event.UserID, err)
	}
	return nil
}

func (h *Handlers) handleAttendanceAdmitted(_ context.Context, data []byte) error {
	var event models.AttendanceAdmittedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("Failed to unmarshal attendance admitted event", "error", err)
		return errPoison
	}

	slog.Info("Processing attendance admitted event",
		"payment_id", event.PaymentID, "user_id", event.UserID, "event_id", event.EventID)
	return nil
}
