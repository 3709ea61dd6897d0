package service

import (
	"context"
	"time"

	"fanpass/internal/external"
	"fanpass/internal/logger"
	"fanpass/internal/metrics"
)

// Payments completed longer ago than this are no longer re-admitted
const attendanceRepairWindow = 24 * time.Hour

// SweepReport summarises one sweep pass
type SweepReport struct {
	Checked      int
	Completed    int
	StillPending int
	Repaired     int
	Failed       int
}

// Sweeper completes payments whose webhook never arrived by asking the
// provider for the order state, and re-admits attendance that a failed
// post-commit step left out.
type Sweeper struct {
	payments   PaymentStore
	provider   PaymentProvider
	reconciler *Reconciler
	minAge     time.Duration
	maxAge     time.Duration
	batchSize  int
	now        func() time.Time
}

// NewSweeper builds a sweeper for pending payments aged between minAge and
// maxAge. A non-positive maxAge leaves the age unbounded.
func NewSweeper(payments PaymentStore, provider PaymentProvider, reconciler *Reconciler, minAge, maxAge time.Duration, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		payments:   payments,
		provider:   provider,
		reconciler: reconciler,
		minAge:     minAge,
		maxAge:     maxAge,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) SweepReport {
	var report SweepReport
	log := logger.WithContext(ctx)

	now := s.now()
	var notBefore time.Time
	if s.maxAge > 0 {
		notBefore = now.Add(-s.maxAge)
	}

	stale, err := s.payments.ListStalePending(ctx, now.Add(-s.minAge), notBefore, s.batchSize)
	if err != nil {
		log.Error("Failed to list stale pending payments", "error", err)
		report.Failed++
	}

	for _, payment := range stale {
		report.Checked++
		orderID := deref(payment.PaypalOrderID)

		order, err := s.provider.GetOrder(ctx, orderID)
		// отметка ставится и при ошибке, иначе один сбойный заказ держит очередь
		if markErr := s.payments.MarkChecked(ctx, payment.ID, now); markErr != nil {
			log.Warn("Failed to mark payment checked", "error", markErr, "payment_id", payment.ID)
		}
		if err != nil {
			log.Error("Failed to fetch provider order", "error", err, "payment_id", payment.ID, "order_id", orderID)
			metrics.RecordSweep(metrics.OutcomeError)
			report.Failed++
			continue
		}

		captureID := order.CompletedCaptureID()
		if order.Status != external.OrderStatusCompleted || captureID == "" {
			metrics.RecordSweep("pending")
			report.StillPending++
			continue
		}

		if _, err := s.reconciler.Reconcile(ctx, orderID, captureID); err != nil {
			log.Error("Failed to reconcile swept payment", "error", err, "payment_id", payment.ID, "order_id", orderID)
			metrics.RecordSweep(metrics.OutcomeError)
			report.Failed++
			continue
		}
		metrics.RecordSweep(metrics.OutcomeCompleted)
		report.Completed++
	}

	missing, err := s.payments.ListCompletedWithoutAttendance(ctx, s.now().Add(-attendanceRepairWindow), s.batchSize)
	if err != nil {
		log.Error("Failed to list payments without attendance", "error", err)
		report.Failed++
	}

	for i := range missing {
		payment := &missing[i]
		if err := s.reconciler.AdmitAttendance(ctx, payment); err != nil {
			s.reconciler.effectFailed(ctx, payment, effectAttendance, err)
			report.Failed++
			continue
		}
		metrics.RecordSweep("repaired")
		report.Repaired++
	}

	return report
}
