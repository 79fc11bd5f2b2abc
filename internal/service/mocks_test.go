package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v76"
	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/payments"
)

// ---------- Mocks ----------

// mockStore serializes transactional sections the way row locks would.
type mockStore struct {
	mu sync.Mutex
}

func (m *mockStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(nil)
}

type mockSlotRepo struct {
	mu    sync.Mutex
	slots map[int64]*domain.Slot
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: make(map[int64]*domain.Slot)}
}

func (m *mockSlotRepo) add(id, bayID int64, start time.Time, status domain.SlotStatus) {
	m.slots[id] = &domain.Slot{
		ID:        id,
		BayID:     bayID,
		StartTime: start,
		EndTime:   start.Add(55 * time.Minute),
		Status:    status,
	}
}

func (m *mockSlotRepo) GetByID(_ context.Context, id int64) (*domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *mockSlotRepo) ListForDate(_ context.Context, dayStart, dayEnd time.Time, bayID *int64) ([]domain.SlotWithBay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SlotWithBay
	for _, s := range m.slots {
		if s.StartTime.Before(dayStart) || !s.StartTime.Before(dayEnd) {
			continue
		}
		if bayID != nil && s.BayID != *bayID {
			continue
		}
		out = append(out, domain.SlotWithBay{Slot: *s, BayName: "Bay"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *mockSlotRepo) BlockRange(_ context.Context, from, to time.Time, bayID *int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.slots {
		if s.Status == domain.SlotAvailable && !s.StartTime.Before(from) && !s.EndTime.After(to) {
			if bayID == nil || s.BayID == *bayID {
				s.Status = domain.SlotMaintenance
				n++
			}
		}
	}
	return n, nil
}

func (m *mockSlotRepo) UnblockRange(_ context.Context, from, to time.Time, bayID *int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.slots {
		if s.Status == domain.SlotMaintenance && !s.StartTime.Before(from) && !s.EndTime.After(to) {
			if bayID == nil || s.BayID == *bayID {
				s.Status = domain.SlotAvailable
				n++
			}
		}
	}
	return n, nil
}

func (m *mockSlotRepo) AvailableIDs(_ context.Context, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availableLocked(ids), nil
}

func (m *mockSlotRepo) AvailableWindow(_ context.Context, bayID int64, from, to time.Time) ([]domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Slot
	for _, s := range m.slots {
		if s.BayID == bayID && s.Status == domain.SlotAvailable &&
			!s.StartTime.Before(from) && s.StartTime.Before(to) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *mockSlotRepo) LockAvailableTx(_ context.Context, _ pgx.Tx, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availableLocked(ids), nil
}

func (m *mockSlotRepo) availableLocked(ids []int64) []int64 {
	var out []int64
	for _, id := range ids {
		if s, ok := m.slots[id]; ok && s.Status == domain.SlotAvailable {
			out = append(out, id)
		}
	}
	return out
}

func (m *mockSlotRepo) SetStatusTx(_ context.Context, _ pgx.Tx, ids []int64, status domain.SlotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if s, ok := m.slots[id]; ok {
			s.Status = status
		}
	}
	return nil
}

func (m *mockSlotRepo) BulkInsert(_ context.Context, slots []domain.Slot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var inserted int64
	for _, s := range slots {
		exists := false
		for _, have := range m.slots {
			if have.BayID == s.BayID && have.StartTime.Equal(s.StartTime) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		s.ID = int64(len(m.slots) + 1)
		cp := s
		m.slots[cp.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (m *mockSlotRepo) Create(_ context.Context, slot *domain.Slot) (*domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot.ID = int64(len(m.slots) + 1)
	cp := *slot
	m.slots[cp.ID] = &cp
	return slot, nil
}

func (m *mockSlotRepo) Update(_ context.Context, slot *domain.Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot.ID]; !ok {
		return false, nil
	}
	cp := *slot
	m.slots[cp.ID] = &cp
	return true, nil
}

func (m *mockSlotRepo) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return false, nil
	}
	delete(m.slots, id)
	return true, nil
}

func (m *mockSlotRepo) status(id int64) domain.SlotStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id].Status
}

type mockBookingRepo struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[int64]*domain.Booking
	slotIDs  map[int64][]int64
	slots    *mockSlotRepo
	users    *mockUserRepo

	periodDetails []domain.BookingDetail
}

func newMockBookingRepo(slots *mockSlotRepo, users *mockUserRepo) *mockBookingRepo {
	return &mockBookingRepo{
		nextID:   1,
		bookings: make(map[int64]*domain.Booking),
		slotIDs:  make(map[int64][]int64),
		slots:    slots,
		users:    users,
	}
}

func (m *mockBookingRepo) CreateTx(_ context.Context, _ pgx.Tx, userID int64, status domain.BookingStatus, paymentID, paymentStatus *string, slotIDs []int64) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &domain.Booking{
		ID:            m.nextID,
		UserID:        userID,
		ManageToken:   "token-" + string(rune('a'+m.nextID)),
		Status:        status,
		PaymentID:     paymentID,
		PaymentStatus: paymentStatus,
		BookingTime:   time.Now(),
		CreatedAt:     time.Now(),
	}
	m.nextID++
	m.bookings[b.ID] = b
	m.slotIDs[b.ID] = append([]int64(nil), slotIDs...)
	cp := *b
	return &cp, nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, id int64) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (m *mockBookingRepo) GetDetail(ctx context.Context, id int64) (*domain.BookingDetail, error) {
	b, err := m.GetByID(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}
	detail := &domain.BookingDetail{Booking: *b}

	m.mu.Lock()
	ids := append([]int64(nil), m.slotIDs[id]...)
	m.mu.Unlock()
	for _, sid := range ids {
		if s, _ := m.slots.GetByID(ctx, sid); s != nil {
			detail.Slots = append(detail.Slots, domain.SlotWithBay{Slot: *s, BayName: "Bay"})
		}
	}
	sort.Slice(detail.Slots, func(i, j int) bool {
		return detail.Slots[i].StartTime.Before(detail.Slots[j].StartTime)
	})

	if m.users != nil {
		if u, _ := m.users.FindByID(ctx, b.UserID); u != nil {
			detail.User = u
		}
	}
	return detail, nil
}

func (m *mockBookingRepo) SetConfirmed(_ context.Context, id int64, paymentID, paymentStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status == domain.BookingConfirmed {
		return false, nil
	}
	b.Status = domain.BookingConfirmed
	b.PaymentID = &paymentID
	b.PaymentStatus = &paymentStatus
	return true, nil
}

func (m *mockBookingRepo) SetStatusTx(_ context.Context, _ pgx.Tx, id int64, status domain.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, nil
	}
	b.Status = status
	return true, nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, id int64, status domain.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, nil
	}
	b.Status = status
	return true, nil
}

func (m *mockBookingRepo) SlotIDsTx(_ context.Context, _ pgx.Tx, bookingID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.slotIDs[bookingID]...), nil
}

func (m *mockBookingRepo) AttachSlotsTx(_ context.Context, _ pgx.Tx, bookingID int64, slotIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slotIDs[bookingID] = append(m.slotIDs[bookingID], slotIDs...)
	return nil
}

func (m *mockBookingRepo) DeleteTx(_ context.Context, _ pgx.Tx, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return false, nil
	}
	delete(m.bookings, id)
	delete(m.slotIDs, id)
	return true, nil
}

func (m *mockBookingRepo) List(_ context.Context, limit, offset int, status *domain.BookingStatus) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if status != nil && b.Status != *status {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockBookingRepo) ListForUserInPeriod(_ context.Context, userID int64, from, to time.Time) ([]domain.BookingDetail, error) {
	return m.periodDetails, nil
}

type mockUserRepo struct {
	mu         sync.Mutex
	nextID     int64
	byID       map[int64]*domain.User
	byEmail    map[string]*domain.User
	byCustomer map[string]*domain.User

	lastTier   *domain.MembershipTier
	lastStatus domain.MembershipStatus
	lastStart  *time.Time
	lastEnd    *time.Time
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		nextID:     1,
		byID:       make(map[int64]*domain.User),
		byEmail:    make(map[string]*domain.User),
		byCustomer: make(map[string]*domain.User),
	}
}

func (m *mockUserRepo) seed(u domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.nextID
		m.nextID++
	}
	m.byID[u.ID] = &u
	m.byEmail[u.Email] = &u
	if u.StripeCustomerID != nil {
		m.byCustomer[*u.StripeCustomerID] = &u
	}
	return &u
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepo) FindByStripeCustomer(_ context.Context, customerID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byCustomer[customerID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *mockUserRepo) UpsertGuest(_ context.Context, info domain.GuestInfo) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[info.Email]; ok {
		u.Name = info.Name
		u.Phone = info.Phone
		cp := *u
		return &cp, nil
	}
	u := &domain.User{ID: m.nextID, Email: info.Email, Name: info.Name, Phone: info.Phone, Role: domain.RoleGuest}
	m.nextID++
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) UpdateMembership(_ context.Context, customerID string, tier *domain.MembershipTier, status domain.MembershipStatus, periodStart, periodEnd *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byCustomer[customerID]
	if !ok {
		return false, nil
	}
	m.lastTier, m.lastStatus, m.lastStart, m.lastEnd = tier, status, periodStart, periodEnd
	u.MembershipTier = tier
	u.MembershipStatus = &status
	u.CurrentPeriodStart = periodStart
	u.CurrentPeriodEnd = periodEnd
	return true, nil
}

type mockBayRepo struct {
	bays []domain.Bay
}

func (m *mockBayRepo) List(_ context.Context) ([]domain.Bay, error) {
	return m.bays, nil
}

func (m *mockBayRepo) GetByID(_ context.Context, id int64) (*domain.Bay, error) {
	for _, b := range m.bays {
		if b.ID == id {
			cp := b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockBayRepo) Create(_ context.Context, name string) (*domain.Bay, error) {
	b := domain.Bay{ID: int64(len(m.bays) + 1), Name: name}
	m.bays = append(m.bays, b)
	return &b, nil
}

type mockBus struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockBus) Publish(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockBus) Close() error { return nil }

func (m *mockBus) count(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type mockProvider struct {
	mu            sync.Mutex
	created       int
	lastAmount    int64
	lastMetadata  map[string]string
	retrieveCents int64
	retrieveErr   error
}

func (m *mockProvider) CreateIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (*payments.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	m.lastAmount = amount
	m.lastMetadata = metadata
	return &payments.Intent{ID: "pi_test", ClientSecret: "cs_test", Amount: amount}, nil
}

func (m *mockProvider) RetrieveIntent(_ context.Context, id string) (*payments.Intent, error) {
	if m.retrieveErr != nil {
		return nil, m.retrieveErr
	}
	return &payments.Intent{ID: id, Amount: m.retrieveCents}, nil
}

func (m *mockProvider) UpdateIntentMetadata(_ context.Context, _ string, _ map[string]string) error {
	return nil
}

func (m *mockProvider) VerifyWebhook(_ []byte, _ string) (stripe.Event, error) {
	return stripe.Event{}, nil
}

type mockMailer struct {
	mu        sync.Mutex
	sent      int
	lastTo    string
	lastCents int64
}

func (m *mockMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	return "mock-id", nil
}

func (m *mockMailer) SendBookingConfirmation(toEmail, toName string, _ *domain.BookingDetail, amountCents int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	m.lastTo = toEmail
	m.lastCents = amountCents
	return nil
}
