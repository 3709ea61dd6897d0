package service

import (
	"context"
	"time"

	"fanpass/internal/external"
	"fanpass/internal/models"
	"fanpass/internal/repository"

	"github.com/shopspring/decimal"
)

// Storage ports. The repository package provides the production implementations.

type PaymentStore interface {
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	LinkOrder(ctx context.Context, p repository.LinkOrderParams) error
	MarkCompleted(ctx context.Context, id string, captureID *string, referrerCommission, hostCommission decimal.Decimal) (bool, error)
	ListStalePending(ctx context.Context, olderThan, notBefore time.Time, limit int) ([]models.Payment, error)
	MarkChecked(ctx context.Context, id string, at time.Time) error
	ListCompletedWithoutAttendance(ctx context.Context, since time.Time, limit int) ([]models.Payment, error)
}

type EventStore interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	CountAttendees(ctx context.Context, eventID string) (int, error)
}

type AttendanceStore interface {
	Admit(ctx context.Context, a *models.Attendance) (bool, error)
}

type EarningsStore interface {
	Credit(ctx context.Context, entry *models.EarningsEntry) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.EarningsEntry, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// PaymentProvider is the checkout side of the provider client
type PaymentProvider interface {
	CreateOrder(ctx context.Context, order external.CreateOrderRequest, requestID string) (*external.Order, error)
	GetOrder(ctx context.Context, orderID string) (*external.Order, error)
}

// Publisher sends pipeline events; delivery is best-effort
type Publisher interface {
	Publish(subject string, data interface{}) error
}

type EarningsCache interface {
	GetEarningsSummary(ctx context.Context, userID string) (*models.EarningsSummaryResponse, error)
	SetEarningsSummary(ctx context.Context, summary *models.EarningsSummaryResponse) error
}
