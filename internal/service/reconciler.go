package service

import (
	"context"
	"fmt"
	"time"

	"fanpass/internal/commission"
	apperrors "fanpass/internal/errors"
	"fanpass/internal/logger"
	"fanpass/internal/metrics"
	"fanpass/internal/models"
	"fanpass/internal/obs"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Outcome of a reconciliation that did not fail
type Outcome string

const (
	OutcomeCompleted        Outcome = "ok"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

// Post-commit effect names, used in logs and metrics
const (
	effectAttendance = "attendance"
	effectReferral   = "referral_credit"
	effectHosting    = "hosting_credit"
	effectPublish    = "publish"
)

type Reconciler struct {
	payments   PaymentStore
	events     EventStore
	attendance AttendanceStore
	earnings   EarningsStore
	users      UserStore
	publisher  Publisher
}

func NewReconciler(payments PaymentStore, events EventStore, attendance AttendanceStore, earnings EarningsStore, users UserStore, publisher Publisher) *Reconciler {
	return &Reconciler{
		payments:   payments,
		events:     events,
		attendance: attendance,
		earnings:   earnings,
		users:      users,
		publisher:  publisher,
	}
}

// Reconcile completes the payment linked to a provider order exactly once.
// Only a missing payment or a failure before the status transition is
// reported as an error; everything after the transition is best-effort.
func (r *Reconciler) Reconcile(ctx context.Context, orderID, captureID string) (Outcome, error) {
	ctx, span := obs.Tracer().Start(ctx, "Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	outcome, err := r.reconcile(ctx, orderID, captureID)
	switch {
	case apperrors.Is(err, apperrors.ErrPaymentNotFound):
		metrics.RecordReconciliation(metrics.OutcomeNotFound)
	case err != nil:
		metrics.RecordReconciliation(metrics.OutcomeError)
	case outcome == OutcomeAlreadyProcessed:
		metrics.RecordReconciliation(metrics.OutcomeAlreadyProcessed)
	default:
		metrics.RecordReconciliation(metrics.OutcomeCompleted)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation failed")
		return "", err
	}
	span.SetAttributes(attribute.String("reconcile.outcome", string(outcome)))
	return outcome, nil
}

func (r *Reconciler) reconcile(ctx context.Context, orderID, captureID string) (Outcome, error) {
	payment, err := r.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to find payment: %w", err)
	}
	if payment == nil {
		return "", fmt.Errorf("%w: order %s", apperrors.ErrPaymentNotFound, orderID)
	}

	log := logger.WithContext(ctx).With("payment_id", payment.ID, "order_id", orderID)

	if payment.Status == models.PaymentStatusCompleted {
		log.Info("Payment already completed, skipping")
		return OutcomeAlreadyProcessed, nil
	}

	// Комиссии считаются только от сохраненной суммы платежа
	split := commission.Calculate(payment.Amount, payment.Referrer() != "")

	updated, err := r.payments.MarkCompleted(ctx, payment.ID, optional(captureID), split.Referrer, split.Host)
	if err != nil {
		return "", fmt.Errorf("failed to complete payment: %w", err)
	}
	if !updated {
		log.Info("Payment completed by a concurrent delivery, skipping")
		return OutcomeAlreadyProcessed, nil
	}

	payment.Status = models.PaymentStatusCompleted
	payment.PaypalCaptureID = optional(captureID)
	payment.ReferrerCommission = decimal.NewNullDecimal(split.Referrer)
	payment.HostCommission = decimal.NewNullDecimal(split.Host)

	log.Info("Payment completed",
		"amount", commission.Format(split.Amount),
		"referrer_commission", commission.Format(split.Referrer),
		"host_commission", commission.Format(split.Host))

	// Эффекты после коммита не должны зависеть от отмены входящего запроса
	r.applyEffects(context.WithoutCancel(ctx), payment, split)

	return OutcomeCompleted, nil
}

// applyEffects runs every post-commit step in its own error boundary
func (r *Reconciler) applyEffects(ctx context.Context, payment *models.Payment, split commission.Split) {
	if err := r.AdmitAttendance(ctx, payment); err != nil {
		r.effectFailed(ctx, payment, effectAttendance, err)
	}

	if referrer := payment.Referrer(); referrer != "" && split.Referrer.IsPositive() {
		if err := r.creditReferrer(ctx, payment, referrer, split.Referrer); err != nil {
			r.effectFailed(ctx, payment, effectReferral, err)
		}
	}

	if split.Host.IsPositive() {
		if err := r.creditHost(ctx, payment, split.Host); err != nil {
			r.effectFailed(ctx, payment, effectHosting, err)
		}
	}

	completed := models.PaymentCompletedEvent{
		PaymentID:          payment.ID,
		OrderID:            deref(payment.PaypalOrderID),
		CaptureID:          deref(payment.PaypalCaptureID),
		UserID:             payment.UserID,
		EventID:            payment.EventID,
		Amount:             commission.Format(split.Amount),
		ReferredBy:         payment.Referrer(),
		ReferrerCommission: commission.Format(split.Referrer),
		HostCommission:     commission.Format(split.Host),
		GuestName:          payment.Guest(),
		Timestamp:          time.Now(),
	}
	if err := r.publisher.Publish(models.EventPaymentCompleted, completed); err != nil {
		r.effectFailed(ctx, payment, effectPublish, err)
	}
}

// AdmitAttendance registers the payer as an attendee of the paid event. An
// existing row for the same payment is not an error.
func (r *Reconciler) AdmitAttendance(ctx context.Context, payment *models.Payment) error {
	attendance := &models.Attendance{
		UserID:        payment.UserID,
		EventID:       payment.EventID,
		PaymentID:     payment.ID,
		PaymentStatus: models.AttendancePaymentStatus,
		ReferredBy:    payment.ReferredBy,
		GuestName:     payment.GuestName,
	}

	admitted, err := r.attendance.Admit(ctx, attendance)
	if err != nil {
		return fmt.Errorf("failed to admit attendance: %w", err)
	}
	if !admitted {
		return nil
	}

	admittedEvent := models.AttendanceAdmittedEvent{
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		EventID:   payment.EventID,
		Timestamp: time.Now(),
	}
	if err := r.publisher.Publish(models.EventAttendanceAdmitted, admittedEvent); err != nil {
		logger.WithContext(ctx).Error("Failed to publish attendance admitted event",
			"error", err, "payment_id", payment.ID, "event_type", models.EventAttendanceAdmitted)
	}
	return nil
}

func (r *Reconciler) creditReferrer(ctx context.Context, payment *models.Payment, username string, amount decimal.Decimal) error {
	user, err := r.users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to resolve referrer: %w", err)
	}
	if user == nil {
		return fmt.Errorf("referrer %q: %w", username, apperrors.ErrNotFound)
	}
	return r.credit(ctx, payment, user.ID, models.RoleReferral, amount)
}

func (r *Reconciler) creditHost(ctx context.Context, payment *models.Payment, amount decimal.Decimal) error {
	event, err := r.events.GetByID(ctx, payment.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event host: %w", err)
	}
	if event == nil {
		return apperrors.ErrEventNotFound
	}
	if event.CreatorID == nil || *event.CreatorID == "" {
		logger.WithContext(ctx).Debug("Event has no host, skipping hosting commission",
			"payment_id", payment.ID, "event_id", payment.EventID)
		return nil
	}
	return r.credit(ctx, payment, *event.CreatorID, models.RoleEventHosting, amount)
}

func (r *Reconciler) credit(ctx context.Context, payment *models.Payment, userID, role string, amount decimal.Decimal) error {
	entry := &models.EarningsEntry{
		UserID:    userID,
		PaymentID: payment.ID,
		EventID:   payment.EventID,
		Role:      role,
		Amount:    amount,
	}

	credited, err := r.earnings.Credit(ctx, entry)
	if err != nil {
		return err
	}
	if !credited {
		logger.WithContext(ctx).Info("Commission already credited",
			"payment_id", payment.ID, "role", role)
		return nil
	}

	metrics.RecordCommission(role, amount)

	creditedEvent := models.CommissionCreditedEvent{
		PaymentID: payment.ID,
		UserID:    userID,
		Role:      role,
		Amount:    commission.Format(amount),
		Timestamp: time.Now(),
	}
	if err := r.publisher.Publish(models.EventCommissionCredited, creditedEvent); err != nil {
		logger.WithContext(ctx).Error("Failed to publish commission credited event",
			"error", err, "payment_id", payment.ID, "event_type", models.EventCommissionCredited)
	}
	return nil
}

func (r *Reconciler) effectFailed(ctx context.Context, payment *models.Payment, effect string, err error) {
	metrics.RecordEffectFailure(effect)

	if apperrors.Is(err, apperrors.ErrSoldOut) {
		logger.WithContext(ctx).Warn("Paid payment could not be admitted, event is full",
			"payment_id", payment.ID, "order_id", deref(payment.PaypalOrderID),
			"event_id", payment.EventID, "effect", effect)
		return
	}

	logger.WithContext(ctx).Error("Post-commit effect failed",
		"error", fmt.Errorf("%w: %v", apperrors.ErrTransientPersistence, err),
		"payment_id", payment.ID, "order_id", deref(payment.PaypalOrderID), "effect", effect)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
