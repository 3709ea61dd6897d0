package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fanpass/internal/database"
	apperrors "fanpass/internal/errors"
	"fanpass/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, user_id, event_id, amount, paypal_order_id, paypal_capture_id, status,
		       referred_by, referrer_commission, host_commission, guest_name, created_at, updated_at`

// ErrDuplicateOrder - the provider order id is already linked to another payment
var ErrDuplicateOrder = errors.New("provider order already linked to a payment")

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetByID returns nil, nil when the payment does not exist
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE id = $1`

	err := database.WithRetry(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, payment, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}

	return payment, nil
}

// GetByOrderID looks a payment up by its provider order id. nil, nil when absent.
func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	payment := &models.Payment{}
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE paypal_order_id = $1`

	err := database.WithRetry(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, payment, query, orderID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by order %s: %w", orderID, err)
	}

	return payment, nil
}

// Create inserts a new pending payment already linked to a provider order
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, event_id, amount, paypal_order_id, status, referred_by, guest_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}

	err := r.db.QueryRowContext(ctx, query,
		payment.ID,
		payment.UserID,
		payment.EventID,
		payment.Amount,
		payment.PaypalOrderID,
		payment.Status,
		payment.ReferredBy,
		payment.GuestName,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// LinkOrderParams - data written onto an existing pending payment after the
// provider order is created
type LinkOrderParams struct {
	PaymentID string
	OrderID   string
	Amount    decimal.Decimal
	GuestName *string
	Referrer  *string
}

// LinkOrder attaches the provider order to a pending payment. The referrer is
// only written when the payment has none yet.
func (r *PaymentRepository) LinkOrder(ctx context.Context, p LinkOrderParams) error {
	query := `
		UPDATE payments
		SET paypal_order_id = $2, amount = $3,
		    guest_name = COALESCE($4, guest_name),
		    referred_by = COALESCE(referred_by, $5),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, p.PaymentID, p.OrderID, p.Amount, p.GuestName, p.Referrer)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to link payment %s to order: %w", p.PaymentID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pending %w: %s", apperrors.ErrPaymentNotFound, p.PaymentID)
	}

	return nil
}

// MarkCompleted moves a payment from pending to completed together with the
// capture id and the commission split. It reports false when the payment was
// no longer pending, i.e. another delivery completed it first.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id string, captureID *string, referrerCommission, hostCommission decimal.Decimal) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'completed', paypal_capture_id = $2,
		    referrer_commission = $3, host_commission = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id, captureID, referrerCommission, hostCommission)
	if err != nil {
		return false, fmt.Errorf("failed to complete payment %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows == 1, nil
}

// ListStalePending returns pending payments with a provider order created
// between notBefore and olderThan. Payments never checked come first, then the
// least recently checked, so abandoned checkouts cannot starve newer ones.
func (r *PaymentRepository) ListStalePending(ctx context.Context, olderThan, notBefore time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending' AND paypal_order_id IS NOT NULL
		  AND created_at < $1 AND created_at > $2
		ORDER BY last_checked_at NULLS FIRST, created_at
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &payments, query, olderThan, notBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale pending payments: %w", err)
	}

	return payments, nil
}

// MarkChecked stamps the time the sweep last asked the provider about a pending payment
func (r *PaymentRepository) MarkChecked(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE payments SET last_checked_at = $2 WHERE id = $1 AND status = 'pending'`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark payment %s checked: %w", id, err)
	}
	return nil
}

// ListCompletedWithoutAttendance returns payments completed since the given
// time that have no attendance row.
func (r *PaymentRepository) ListCompletedWithoutAttendance(ctx context.Context, since time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		WHERE p.status = 'completed' AND p.updated_at > $1
		  AND NOT EXISTS (SELECT 1 FROM user_events ue WHERE ue.payment_id = p.id)
		ORDER BY p.updated_at
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &payments, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list completed payments without attendance: %w", err)
	}

	return payments, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
