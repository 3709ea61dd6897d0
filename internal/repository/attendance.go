package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fanpass/internal/database"
	apperrors "fanpass/internal/errors"
	"fanpass/internal/models"
)

type AttendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Admit inserts an attendance row for a paid payment. The event row is locked
// for the duration of the transaction so two admissions cannot both take the
// last free slot. Returns false when the row already existed.
func (r *AttendanceRepository) Admit(ctx context.Context, a *models.Attendance) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxAttendees sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT max_attendees FROM events WHERE id = $1 FOR UPDATE`, a.EventID,
	).Scan(&maxAttendees)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperrors.ErrEventNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock event %s: %w", a.EventID, err)
	}

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM user_events WHERE user_id = $1 AND event_id = $2 AND payment_id = $3)`,
		a.UserID, a.EventID, a.PaymentID)
	if err != nil {
		return false, fmt.Errorf("failed to check attendance: %w", err)
	}
	if exists {
		return false, nil
	}

	if maxAttendees.Valid {
		var count int64
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_events WHERE event_id = $1`, a.EventID); err != nil {
			return false, fmt.Errorf("failed to count attendees: %w", err)
		}
		if count >= maxAttendees.Int64 {
			return false, apperrors.ErrSoldOut
		}
	}

	if a.PaymentStatus == "" {
		a.PaymentStatus = models.AttendancePaymentStatus
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_events (user_id, event_id, payment_id, payment_status, referred_by, guest_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, event_id, payment_id) DO NOTHING
		RETURNING id, created_at`,
		a.UserID, a.EventID, a.PaymentID, a.PaymentStatus, a.ReferredBy, a.GuestName,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert attendance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit attendance: %w", err)
	}

	return true, nil
}
