package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fanpass/internal/database"
	"fanpass/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

// GetByID returns nil, nil when the event does not exist
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, name, price, max_attendees, creator_id, created_at, updated_at
		FROM events
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Name,
		&event.Price,
		&event.MaxAttendees,
		&event.CreatorID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}

	return event, nil
}

// CountAttendees returns the number of attendance rows of an event
func (r *EventRepository) CountAttendees(ctx context.Context, eventID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM user_events WHERE event_id = $1`

	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("failed to count attendees of event %s: %w", eventID, err)
	}

	return count, nil
}
