package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"fanpass/internal/commission"
	apperrors "fanpass/internal/errors"
	"fanpass/internal/external"
	"fanpass/internal/logger"
	"fanpass/internal/metrics"
	"fanpass/internal/models"
	"fanpass/internal/obs"
	"fanpass/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxDescriptionLength = 127

type OrderService struct {
	payments    PaymentStore
	events      EventStore
	provider    PaymentProvider
	publisher   Publisher
	validate    *validator.Validate
	frontendURL string
}

func NewOrderService(payments PaymentStore, events EventStore, provider PaymentProvider, publisher Publisher, frontendURL string) *OrderService {
	return &OrderService{
		payments:    payments,
		events:      events,
		provider:    provider,
		publisher:   publisher,
		validate:    validator.New(),
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// CreateOrder prices the ticket from the live event, creates the provider
// checkout order and links it to a local pending payment. Nothing is returned
// to the caller unless the link is stored.
func (s *OrderService) CreateOrder(ctx context.Context, in models.OrderInput) (*models.CreateOrderResponse, error) {
	ctx, span := obs.Tracer().Start(ctx, "OrderService.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", in.EventID), attribute.String("user.id", in.UserID))

	resp, err := s.createOrder(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation failed")
		metrics.RecordOrder(orderFailureReason(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", resp.OrderID))
	metrics.RecordOrder(metrics.OutcomeCreated)
	return resp, nil
}

func (s *OrderService) createOrder(ctx context.Context, in models.OrderInput) (*models.CreateOrderResponse, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err)
	}

	event, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, apperrors.ErrEventNotFound
	}

	attendees, err := s.events.CountAttendees(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check capacity: %w", err)
	}
	if event.SoldOut(attendees) {
		return nil, apperrors.ErrSoldOut
	}

	amount := event.Price
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidRequest)
		}
		amount = *in.Amount
	}
	amount = commission.Round(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: event has no payable price", apperrors.ErrInvalidRequest)
	}

	// Существующий платеж должен быть pending и принадлежать тому же пользователю и событию
	paymentID := in.PaymentID
	linkExisting := paymentID != ""
	if linkExisting {
		existing, err := s.payments.GetByID(ctx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get payment: %w", err)
		}
		if existing == nil {
			return nil, apperrors.ErrPaymentNotFound
		}
		if existing.Status != models.PaymentStatusPending {
			return nil, fmt.Errorf("%w: payment %s is already %s", apperrors.ErrInvalidRequest, paymentID, existing.Status)
		}
		if existing.UserID != in.UserID || existing.EventID != in.EventID {
			return nil, fmt.Errorf("%w: payment %s belongs to another checkout", apperrors.ErrInvalidRequest, paymentID)
		}
	} else {
		paymentID = uuid.New().String()
	}

	order, err := s.provider.CreateOrder(ctx, s.buildProviderOrder(in, event, paymentID, amount), checkoutRequestID(paymentID, amount))
	if err != nil {
		return nil, err
	}

	// Провайдер может вернуть ранее созданный заказ; сумма обязана совпадать с той, что сохраним
	if charged, ok := order.Amount(); ok && !charged.Equal(amount) {
		return nil, fmt.Errorf("%w: order %s is for %s, expected %s",
			apperrors.ErrUpstreamProtocol, order.ID, charged.StringFixed(2), commission.Format(amount))
	}

	approvalURL := order.ApproveLink()
	if approvalURL == "" {
		return nil, fmt.Errorf("%w: order %s has no approve link", apperrors.ErrUpstreamProtocol, order.ID)
	}

	guestName := optional(in.GuestName)
	referrer := optional(in.Referrer)

	if linkExisting {
		err = s.payments.LinkOrder(ctx, repository.LinkOrderParams{
			PaymentID: paymentID,
			OrderID:   order.ID,
			Amount:    amount,
			GuestName: guestName,
			Referrer:  referrer,
		})
	} else {
		err = s.payments.Create(ctx, &models.Payment{
			ID:            paymentID,
			UserID:        in.UserID,
			EventID:       in.EventID,
			Amount:        amount,
			PaypalOrderID: &order.ID,
			Status:        models.PaymentStatusPending,
			ReferredBy:    referrer,
			GuestName:     guestName,
		})
	}
	if err != nil {
		logger.WithContext(ctx).Error("Failed to link payment to provider order",
			"error", err, "payment_id", paymentID, "order_id", order.ID)
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	linked := models.PaymentLinkedEvent{
		PaymentID: paymentID,
		OrderID:   order.ID,
		EventID:   event.ID,
		UserID:    in.UserID,
		Amount:    commission.Format(amount),
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(models.EventPaymentLinked, linked); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment linked event",
			"error", err, "payment_id", paymentID, "event_type", models.EventPaymentLinked)
	}

	logger.WithContext(ctx).Info("Checkout order created",
		"payment_id", paymentID, "order_id", order.ID, "event_id", event.ID, "amount", commission.Format(amount))

	return &models.CreateOrderResponse{
		OrderID:     order.ID,
		ApprovalURL: approvalURL,
		Amount:      commission.Format(amount),
		EventName:   event.Name,
	}, nil
}

func (s *OrderService) buildProviderOrder(in models.OrderInput, event *models.Event, paymentID string, amount decimal.Decimal) external.CreateOrderRequest {
	description := in.Description
	if description == "" {
		description = "Ticket: " + event.Name
	}
	description = truncateRunes(description, maxDescriptionLength)

	returnURL := in.ReturnURL
	if returnURL == "" {
		returnURL = s.frontendURL + "/payment/success?event_id=" + url.QueryEscape(event.ID)
	}
	cancelURL := in.CancelURL
	if cancelURL == "" {
		cancelURL = s.frontendURL + "/payment/cancel?event_id=" + url.QueryEscape(event.ID)
	}

	return external.CreateOrderRequest{
		Intent: external.IntentCapture,
		PurchaseUnits: []external.PurchaseUnit{{
			ReferenceID: paymentID,
			Description: description,
			CustomID:    fmt.Sprintf("event_%s_user_%s", event.ID, in.UserID),
			Amount: &external.Money{
				CurrencyCode: external.CurrencyUSD,
				Value:        commission.Format(amount),
			},
		}},
		ApplicationContext: &external.ApplicationContext{
			ReturnURL:          returnURL,
			CancelURL:          cancelURL,
			UserAction:         external.UserActionPayNow,
			ShippingPreference: "NO_SHIPPING",
		},
	}
}

// checkoutRequestID is the provider idempotency key. A retry of the same
// payment for the same amount replays the original order, any other amount
// gets a fresh one.
func checkoutRequestID(paymentID string, amount decimal.Decimal) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(paymentID+"|"+commission.Format(amount))).String()
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func orderFailureReason(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidRequest):
		return "invalid"
	case apperrors.Is(err, apperrors.ErrNotFound):
		return metrics.OutcomeNotFound
	case apperrors.Is(err, apperrors.ErrSoldOut):
		return "sold_out"
	case apperrors.Is(err, apperrors.ErrUpstreamAuth):
		return "upstream_auth"
	case apperrors.Is(err, apperrors.ErrUpstreamProtocol):
		return "upstream_protocol"
	default:
		return metrics.OutcomeError
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
