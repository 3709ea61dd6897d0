package repository

import (
	"fanpass/internal/database"
)

type Repositories struct {
	Payments   *PaymentRepository
	Events     *EventRepository
	Attendance *AttendanceRepository
	Earnings   *EarningsRepository
	Users      *UserRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Payments:   NewPaymentRepository(db),
		Events:     NewEventRepository(db),
		Attendance: NewAttendanceRepository(db),
		Earnings:   NewEarningsRepository(db),
		Users:      NewUserRepository(db),
	}
}
