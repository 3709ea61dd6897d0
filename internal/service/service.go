package service

import (
	"fanpass/internal/repository"
)

type Services struct {
	Orders     *OrderService
	Reconciler *Reconciler
	Earnings   *EarningsService
}

func NewServices(repos *repository.Repositories, provider PaymentProvider, publisher Publisher, cache EarningsCache, frontendURL string) *Services {
	reconciler := NewReconciler(repos.Payments, repos.Events, repos.Attendance, repos.Earnings, repos.Users, publisher)

	return &Services{
		Orders:     NewOrderService(repos.Payments, repos.Events, provider, publisher, frontendURL),
		Reconciler: reconciler,
		Earnings:   NewEarningsService(repos.Users, repos.Earnings, cache),
	}
}
