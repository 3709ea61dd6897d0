package service

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "fanpass/internal/errors"
	"fanpass/internal/external"
	"fanpass/internal/models"
	"fanpass/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memDB mimics the relational guarantees the repositories rely on:
// the conditional status update and the unique constraints.
type memDB struct {
	mu         sync.Mutex
	payments   map[string]*models.Payment
	events     map[string]*models.Event
	users      map[string]*models.User
	attendance []models.Attendance
	ledger     []models.EarningsEntry
	checkedAt  map[string]time.Time

	failLink   error
	failAdmit  error
	failCredit map[string]error
}

func newMemDB() *memDB {
	return &memDB{
		payments:   map[string]*models.Payment{},
		events:     map[string]*models.Event{},
		users:      map[string]*models.User{},
		checkedAt:  map[string]time.Time{},
		failCredit: map[string]error{},
	}
}

func (db *memDB) addUser(id, username string) {
	db.users[id] = &models.User{ID: id, Username: username}
}

func (db *memDB) addEvent(id, name, price string, capacity *int, creator *string) {
	db.events[id] = &models.Event{ID: id, Name: name, Price: decimal.RequireFromString(price), MaxAttendees: capacity, CreatorID: creator}
}

func (db *memDB) ledgerFor(paymentID string) []models.EarningsEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.EarningsEntry
	for _, e := range db.ledger {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out
}

func (db *memDB) pending(userID string) decimal.Decimal {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[userID].PendingEarnings
}

type memPayments struct{ *memDB }
type memEvents struct{ *memDB }
type memAttendance struct{ *memDB }
type memEarnings struct{ *memDB }
type memUsers struct{ *memDB }

func (s memPayments) GetByID(_ context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (s memPayments) GetByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.PaypalOrderID != nil && *p.PaypalOrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s memPayments) Create(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLink != nil {
		return s.failLink
	}
	cp := *payment
	cp.CreatedAt = time.Now()
	s.payments[payment.ID] = &cp
	return nil
}

func (s memPayments) LinkOrder(_ context.Context, p repository.LinkOrderParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLink != nil {
		return s.failLink
	}
	payment, ok := s.payments[p.PaymentID]
	if !ok || payment.Status != models.PaymentStatusPending {
		return apperrors.ErrPaymentNotFound
	}
	orderID := p.OrderID
	payment.PaypalOrderID = &orderID
	payment.Amount = p.Amount
	if p.GuestName != nil {
		payment.GuestName = p.GuestName
	}
	if payment.ReferredBy == nil {
		payment.ReferredBy = p.Referrer
	}
	return nil
}

func (s memPayments) MarkCompleted(_ context.Context, id string, captureID *string, referrer, host decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[id]
	if !ok || payment.Status != models.PaymentStatusPending {
		return false, nil
	}
	payment.Status = models.PaymentStatusCompleted
	payment.PaypalCaptureID = captureID
	payment.ReferrerCommission = decimal.NewNullDecimal(referrer)
	payment.HostCommission = decimal.NewNullDecimal(host)
	payment.UpdatedAt = time.Now()
	return true, nil
}

func (s memPayments) ListStalePending(_ context.Context, olderThan, notBefore time.Time, limit int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentStatusPending && p.PaypalOrderID != nil &&
			p.CreatedAt.Before(olderThan) && p.CreatedAt.After(notBefore) {
			out = append(out, *p)
		}
	}
	// never checked first, then least recently checked, then oldest
	sort.Slice(out, func(i, j int) bool {
		ci, iok := s.checkedAt[out[i].ID]
		cj, jok := s.checkedAt[out[j].ID]
		switch {
		case iok != jok:
			return !iok
		case iok && !ci.Equal(cj):
			return ci.Before(cj)
		default:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memPayments) MarkChecked(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok && p.Status == models.PaymentStatusPending {
		s.checkedAt[id] = at
	}
	return nil
}

func (s memPayments) ListCompletedWithoutAttendance(_ context.Context, since time.Time, limit int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.Status != models.PaymentStatusCompleted || !p.UpdatedAt.After(since) {
			continue
		}
		found := false
		for _, a := range s.attendance {
			if a.PaymentID == p.ID {
				found = true
				break
			}
		}
		if !found {
			out = append(out, *p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memEvents) GetByID(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (s memEvents) CountAttendees(_ context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(eventID), nil
}

func (db *memDB) countLocked(eventID string) int {
	n := 0
	for _, a := range db.attendance {
		if a.EventID == eventID {
			n++
		}
	}
	return n
}

func (s memAttendance) Admit(_ context.Context, a *models.Attendance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdmit != nil {
		return false, s.failAdmit
	}
	event, ok := s.events[a.EventID]
	if !ok {
		return false, apperrors.ErrEventNotFound
	}
	for _, existing := range s.attendance {
		if existing.UserID == a.UserID && existing.EventID == a.EventID && existing.PaymentID == a.PaymentID {
			return false, nil
		}
	}
	if event.SoldOut(s.countLocked(a.EventID)) {
		return false, apperrors.ErrSoldOut
	}
	a.ID = int64(len(s.attendance) + 1)
	s.attendance = append(s.attendance, *a)
	return true, nil
}

func (s memEarnings) Credit(_ context.Context, entry *models.EarningsEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCredit[entry.Role]; err != nil {
		return false, err
	}
	for _, e := range s.ledger {
		if e.PaymentID == entry.PaymentID && e.Role == entry.Role {
			return false, nil
		}
	}
	user, ok := s.users[entry.UserID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	entry.ID = int64(len(s.ledger) + 1)
	s.ledger = append(s.ledger, *entry)
	user.TotalEarnings = user.TotalEarnings.Add(entry.Amount)
	user.PendingEarnings = user.PendingEarnings.Add(entry.Amount)
	return true, nil
}

func (s memEarnings) ListByUser(_ context.Context, userID string, limit int) ([]models.EarningsEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.EarningsEntry{}
	for i := len(s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ledger[i].UserID == userID {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}

func (s memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	messages []interface{}
	err      error
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.messages = append(p.messages, data)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateOrder(ctx context.Context, order external.CreateOrderRequest, requestID string) (*external.Order, error) {
	args := m.Called(ctx, order, requestID)
	if o := args.Get(0); o != nil {
		return o.(*external.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) GetOrder(ctx context.Context, orderID string) (*external.Order, error) {
	args := m.Called(ctx, orderID)
	if o := args.Get(0); o != nil {
		return o.(*external.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetEarningsSummary(ctx context.Context, userID string) (*models.EarningsSummaryResponse, error) {
	args := m.Called(ctx, userID)
	if s := args.Get(0); s != nil {
		return s.(*models.EarningsSummaryResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCache) SetEarningsSummary(ctx context.Context, summary *models.EarningsSummaryResponse) error {
	return m.Called(ctx, summary).Error(0)
}

func approvedOrder(id string) *external.Order {
	return &external.Order{
		ID:     id,
		Status: "CREATED",
		Links: []external.Link{
			{Href: "https://api/self", Rel: "self", Method: "GET"},
			{Href: "https://checkout/" + id, Rel: "approve", Method: "GET"},
		},
	}
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
