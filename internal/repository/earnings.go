package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fanpass/internal/database"
	"fanpass/internal/models"
)

type EarningsRepository struct {
	db *database.DB
}

func NewEarningsRepository(db *database.DB) *EarningsRepository {
	return &EarningsRepository{db: db}
}

// Credit writes one ledger entry and increments the user's running totals in
// the same transaction. A (payment, role) pair is credited at most once; a
// repeated call returns false and leaves the totals untouched.
func (r *EarningsRepository) Credit(ctx context.Context, entry *models.EarningsEntry) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO earnings (user_id, payment_id, event_id, role, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_id, role) DO NOTHING
		RETURNING id, created_at`,
		entry.UserID, entry.PaymentID, entry.EventID, entry.Role, entry.Amount,
	).Scan(&entry.ID, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert %s ledger entry: %w", entry.Role, err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_earnings = total_earnings + $1, pending_earnings = pending_earnings + $1
		WHERE id = $2`,
		entry.Amount, entry.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to increment earnings: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return false, fmt.Errorf("failed to increment earnings: user %s not found", entry.UserID)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit credit: %w", err)
	}

	return true, nil
}

// ListByUser returns the latest ledger entries of a user, newest first
func (r *EarningsRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.EarningsEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	entries := []models.EarningsEntry{}
	query := `
		SELECT id, user_id, payment_id, event_id, role, amount, created_at
		FROM earnings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}

	return entries, nil
}
