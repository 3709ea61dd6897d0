package models

import "time"

// NATS Event Types
const (
	EventPaymentLinked      = "payment.linked"
	EventPaymentCompleted   = "payment.completed"
	EventAttendanceAdmitted = "attendance.admitted"
	EventCommissionCredited = "commission.credited"
)

// PaymentLinkedEvent is published once a local payment is tied to a provider order
type PaymentLinkedEvent struct {
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent represents a committed pending -> completed transition
type PaymentCompletedEvent struct {
	PaymentID          string    `json:"payment_id"`
	OrderID            string    `json:"order_id"`
	CaptureID          string    `json:"capture_id"`
	UserID             string    `json:"user_id"`
	EventID            string    `json:"event_id"`
	Amount             string    `json:"amount"`
	ReferredBy         string    `json:"referred_by,omitempty"`
	ReferrerCommission string    `json:"referrer_commission"`
	HostCommission     string    `json:"host_commission"`
	GuestName          string    `json:"guest_name,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// AttendanceAdmittedEvent represents a new attendance row
type AttendanceAdmittedEvent struct {
	PaymentID string    `json:"payment_id"`
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CommissionCreditedEvent represents one ledger entry plus earnings increment
type CommissionCreditedEvent struct {
	PaymentID string    `json:"payment_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
