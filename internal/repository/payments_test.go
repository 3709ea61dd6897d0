package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	apperrors "fanpass/internal/errors"
	"fanpass/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentColumnNames = []string{
	"id", "user_id", "event_id", "amount", "paypal_order_id", "paypal_capture_id", "status",
	"referred_by", "referrer_commission", "host_commission", "guest_name", "created_at", "updated_at",
}

func pendingPaymentRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(paymentColumnNames).
		AddRow("p1", "u1", "e1", "25.00", "O1", nil, "pending", "rita", nil, nil, "Guest", now, now)
}

func TestPaymentRepository_GetByOrderID(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE paypal_order_id = $1")).
		WithArgs("O1").
		WillReturnRows(pendingPaymentRow())

	payment, err := repo.GetByOrderID(context.Background(), "O1")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, "p1", payment.ID)
	assert.True(t, decimal.RequireFromString("25").Equal(payment.Amount))
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, "rita", payment.Referrer())
	assert.Equal(t, "Guest", payment.Guest())
	assert.Nil(t, payment.PaypalCaptureID)
	assert.False(t, payment.ReferrerCommission.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_GetByOrderID_NotFound(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE paypal_order_id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(paymentColumnNames))

	payment, err := repo.GetByOrderID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestPaymentRepository_Create(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments (id, user_id, event_id, amount, paypal_order_id, status, referred_by, guest_name)")).
		WithArgs("p1", "u1", "e1", decimal.RequireFromString("25.00"), "O1", "pending", "rita", nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	payment := &models.Payment{
		ID:            "p1",
		UserID:        "u1",
		EventID:       "e1",
		Amount:        decimal.RequireFromString("25.00"),
		PaypalOrderID: strPtr("O1"),
		ReferredBy:    strPtr("rita"),
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, now, payment.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_Create_DuplicateOrder(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Payment{ID: "p1", PaypalOrderID: strPtr("O1")})
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestPaymentRepository_LinkOrder(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET paypal_order_id = $2, amount = $3, guest_name = COALESCE($4, guest_name), referred_by = COALESCE(referred_by, $5), updated_at = NOW() WHERE id = $1 AND status = 'pending'")).
		WithArgs("p1", "O1", decimal.RequireFromString("25.00"), "Guest", "rita").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.LinkOrder(context.Background(), LinkOrderParams{
		PaymentID: "p1",
		OrderID:   "O1",
		Amount:    decimal.RequireFromString("25.00"),
		GuestName: strPtr("Guest"),
		Referrer:  strPtr("rita"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_LinkOrder_NotPending(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET paypal_order_id")).
		WithArgs("p1", "O1", decimal.RequireFromString("25.00"), nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.LinkOrder(context.Background(), LinkOrderParams{
		PaymentID: "p1",
		OrderID:   "O1",
		Amount:    decimal.RequireFromString("25.00"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPaymentNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPaymentRepository_MarkCompleted(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)
	query := regexp.QuoteMeta("UPDATE payments SET status = 'completed', paypal_capture_id = $2, referrer_commission = $3, host_commission = $4, updated_at = NOW() WHERE id = $1 AND status = 'pending'")

	mock.ExpectExec(query).
		WithArgs("p1", "CAP-1", decimal.RequireFromString("5.00"), decimal.RequireFromString("2.50")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs("p1", "CAP-1", decimal.RequireFromString("5.00"), decimal.RequireFromString("2.50")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	updated, err := repo.MarkCompleted(ctx, "p1", strPtr("CAP-1"), decimal.RequireFromString("5.00"), decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	assert.True(t, updated)

	// second delivery loses the compare-and-set
	updated, err = repo.MarkCompleted(ctx, "p1", strPtr("CAP-1"), decimal.RequireFromString("5.00"), decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ListStalePending(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)
	cutoff := time.Now().Add(-10 * time.Minute)

	notBefore := time.Now().Add(-72 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY last_checked_at NULLS FIRST, created_at LIMIT $3")).
		WithArgs(cutoff, notBefore, 50).
		WillReturnRows(pendingPaymentRow())

	payments, err := repo.ListStalePending(context.Background(), cutoff, notBefore, 50)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "O1", *payments[0].PaypalOrderID)
}

func TestPaymentRepository_MarkChecked(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET last_checked_at = $2 WHERE id = $1 AND status = 'pending'")).
		WithArgs("p1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkChecked(context.Background(), "p1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ListCompletedWithoutAttendance(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepository(db)
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("NOT EXISTS (SELECT 1 FROM user_events ue WHERE ue.payment_id = p.id)")).
		WithArgs(since, 10).
		WillReturnRows(sqlmock.NewRows(paymentColumnNames))

	payments, err := repo.ListCompletedWithoutAttendance(context.Background(), since, 10)
	require.NoError(t, err)
	assert.Empty(t, payments)
}
