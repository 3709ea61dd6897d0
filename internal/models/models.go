package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// AttendancePaymentStatus is the payment_status stored on attendance rows.
const AttendancePaymentStatus = "paid"

// Earnings roles
const (
	RoleReferral     = "referral"
	RoleEventHosting = "event_hosting"
)

// User represents the earnings-relevant part of a platform user
type User struct {
	ID              string          `json:"id" db:"id"`
	Username        string          `json:"username" db:"username"`
	TotalEarnings   decimal.Decimal `json:"total_earnings" db:"total_earnings"`
	PendingEarnings decimal.Decimal `json:"pending_earnings" db:"pending_earnings"`
}

// Event represents a sellable event
type Event struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Price        decimal.Decimal `json:"price" db:"price"`
	MaxAttendees *int            `json:"max_attendees" db:"max_attendees"`
	CreatorID    *string         `json:"creator_id" db:"creator_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// SoldOut reports whether the event has no free slot left for the given
// number of current attendees. Events without a cap never sell out.
func (e *Event) SoldOut(currentAttendees int) bool {
	if e.MaxAttendees == nil {
		return false
	}
	return currentAttendees >= *e.MaxAttendees
}

// Payment represents one checkout attempt
type Payment struct {
	ID                 string              `json:"id" db:"id"`
	UserID             string              `json:"user_id" db:"user_id"`
	EventID            string              `json:"event_id" db:"event_id"`
	Amount             decimal.Decimal     `json:"amount" db:"amount"`
	PaypalOrderID      *string             `json:"paypal_order_id" db:"paypal_order_id"`
	PaypalCaptureID    *string             `json:"paypal_capture_id" db:"paypal_capture_id"`
	Status             string              `json:"status" db:"status"`
	ReferredBy         *string             `json:"referred_by" db:"referred_by"`
	ReferrerCommission decimal.NullDecimal `json:"referrer_commission" db:"referrer_commission"`
	HostCommission     decimal.NullDecimal `json:"host_commission" db:"host_commission"`
	GuestName          *string             `json:"guest_name" db:"guest_name"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// Referrer returns the referrer username, or "" when the payment was not referred.
func (p *Payment) Referrer() string {
	if p.ReferredBy == nil {
		return ""
	}
	return *p.ReferredBy
}

// Guest returns the guest display name, or "".
func (p *Payment) Guest() string {
	if p.GuestName == nil {
		return ""
	}
	return *p.GuestName
}

// Attendance links a user to a paid slot at an event (user_events table)
type Attendance struct {
	ID            int64     `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	EventID       string    `json:"event_id" db:"event_id"`
	PaymentID     string    `json:"payment_id" db:"payment_id"`
	PaymentStatus string    `json:"payment_status" db:"payment_status"`
	ReferredBy    *string   `json:"referred_by" db:"referred_by"`
	GuestName     *string   `json:"guest_name" db:"guest_name"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// EarningsEntry is an immutable ledger row crediting a user for one payment
type EarningsEntry struct {
	ID        int64           `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	PaymentID string          `json:"payment_id" db:"payment_id"`
	EventID   string          `json:"event_id" db:"event_id"`
	Role      string          `json:"role" db:"role"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
