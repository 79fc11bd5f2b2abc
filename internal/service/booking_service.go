package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/mailer"
	"github.com/teebox/teebox-bookings/internal/payments"
	"github.com/teebox/teebox-bookings/internal/repository"
	"github.com/teebox/teebox-bookings/pkg/config"
	"github.com/teebox/teebox-bookings/pkg/events"
	"github.com/teebox/teebox-bookings/pkg/logger"
)

// slotGap is the pad between a slot's display end and the next slot's
// start: 55-minute slots on a 1-hour cadence.
const slotGap = 5 * time.Minute

type BookingService interface {
	Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.BookingDetail, error)
	CreatePaymentIntent(ctx context.Context, slotIDs []int64, guest *domain.GuestInfo, userID *int64) (*payments.Intent, error)
	Confirm(ctx context.Context, bookingID int64, paymentID, paymentStatus string) (*domain.BookingDetail, error)
	HandleFailedPayment(ctx context.Context, bookingID int64) error
	CreateAdmin(ctx context.Context, userID int64, slotIDs []int64) (*domain.BookingDetail, error)
	Delete(ctx context.Context, bookingID int64) error
	UpdateStatus(ctx context.Context, bookingID int64, status domain.BookingStatus) error
	Extend(ctx context.Context, bookingID int64, hours int) (*domain.BookingDetail, string, error)
	CheckExtendAvailability(ctx context.Context, bookingID int64) (canExtend1Hour, canExtend2Hours bool, err error)
	Get(ctx context.Context, id int64) (*domain.BookingDetail, error)
	List(ctx context.Context, limit, offset int, status *domain.BookingStatus) ([]domain.Booking, error)
}

type bookingService struct {
	store    repository.TxRunner
	slots    repository.SlotRepository
	bookings repository.BookingRepository
	users    repository.UserRepository
	payments payments.Provider
	mailer   mailer.Service
	bus      events.Publisher
	cfg      *config.Config
}

func NewBookingService(
	store repository.TxRunner,
	slots repository.SlotRepository,
	bookings repository.BookingRepository,
	users repository.UserRepository,
	provider payments.Provider,
	mail mailer.Service,
	bus events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		store:    store,
		slots:    slots,
		bookings: bookings,
		users:    users,
		payments: provider,
		mailer:   mail,
		bus:      bus,
		cfg:      cfg,
	}
}

// Create reserves the requested slots for a user or checkout guest. The
// availability re-check, booking insert, and slot flip to awaiting payment
// commit as one transaction; a lost race surfaces as SlotsUnavailableError
// naming the contested ids.
func (s *bookingService) Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.BookingDetail, error) {
	if len(req.SlotIDs) == 0 {
		return nil, domain.ErrNoSlotIDs
	}

	userID, err := s.resolveIdentity(ctx, req.UserID, req.Guest)
	if err != nil {
		return nil, err
	}

	var booking *domain.Booking
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.slots.LockAvailableTx(ctx, tx, req.SlotIDs)
		if err != nil {
			return fmt.Errorf("failed to lock slots: %w", err)
		}
		if len(locked) != len(req.SlotIDs) {
			return &domain.SlotsUnavailableError{MissingIDs: missingIDs(req.SlotIDs, locked)}
		}

		booking, err = s.bookings.CreateTx(ctx, tx, userID, domain.BookingPending, req.PaymentID, req.PaymentStatus, req.SlotIDs)
		if err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		return s.slots.SetStatusTx(ctx, tx, req.SlotIDs, domain.SlotAwaitingPayment)
	})
	if err != nil {
		return nil, err
	}

	if err := s.bus.Publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: booking.ID,
		UserID:    booking.UserID,
		SlotIDs:   req.SlotIDs,
		Status:    string(booking.Status),
		CreatedAt: booking.CreatedAt,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking created event", "error", err, "booking_id", booking.ID)
	}

	return s.bookings.GetDetail(ctx, booking.ID)
}

// CreatePaymentIntent prices the requested slots and opens a payment intent
// carrying the reservation request in its metadata. The availability check
// here is advisory; the binding one happens when the intent-created webhook
// drives Create. Unavailable ids are reported so the UI can reselect.
func (s *bookingService) CreatePaymentIntent(ctx context.Context, slotIDs []int64, guest *domain.GuestInfo, userID *int64) (*payments.Intent, error) {
	if len(slotIDs) == 0 {
		return nil, domain.ErrNoSlotIDs
	}
	if guest == nil && userID == nil {
		return nil, domain.ErrMissingIdentity
	}

	available, err := s.slots.AvailableIDs(ctx, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check slot availability: %w", err)
	}
	if len(available) != len(slotIDs) {
		return nil, &domain.SlotsUnavailableError{MissingIDs: missingIDs(slotIDs, available)}
	}

	amount := int64(len(slotIDs)) * s.cfg.Venue.HourlyRate
	metadata := map[string]string{
		"slot_ids": joinIDs(slotIDs),
	}
	if userID != nil {
		metadata["user_id"] = strconv.FormatInt(*userID, 10)
	}
	if guest != nil {
		metadata["guest_name"] = guest.Name
		metadata["guest_email"] = guest.Email
		metadata["guest_phone"] = guest.Phone
	}

	intent, err := s.payments.CreateIntent(ctx, amount, s.cfg.Stripe.Currency, metadata)
	if err != nil {
		return nil, fmt.Errorf("payment provider rejected intent creation: %w", err)
	}
	return intent, nil
}

// Confirm marks a booking paid. Calling it again for an already-confirmed
// booking is a no-op; duplicate webhook deliveries are harmless. The
// charge amount shown in the confirmation email comes from the provider,
// not from local pricing.
func (s *bookingService) Confirm(ctx context.Context, bookingID int64, paymentID, paymentStatus string) (*domain.BookingDetail, error) {
	existing, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if existing == nil {
		return nil, domain.ErrBookingNotFound
	}
	alreadyConfirmed := existing.Status == domain.BookingConfirmed

	if !alreadyConfirmed {
		if _, err := s.bookings.SetConfirmed(ctx, bookingID, paymentID, paymentStatus); err != nil {
			return nil, fmt.Errorf("failed to confirm booking: %w", err)
		}
	}

	detail, err := s.bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload booking: %w", err)
	}
	if detail == nil {
		return nil, domain.ErrBookingNotFound
	}
	if alreadyConfirmed {
		return detail, nil
	}

	var amount int64
	if intent, err := s.payments.RetrieveIntent(ctx, paymentID); err != nil {
		logger.ErrorContext(ctx, "Failed to retrieve payment intent", "error", err, "payment_id", paymentID)
	} else {
		amount = intent.Amount
	}

	if detail.User != nil && detail.User.Email != "" {
		if err := s.mailer.SendBookingConfirmation(detail.User.Email, detail.User.Name, detail, amount); err != nil {
			logger.ErrorContext(ctx, "Failed to send confirmation email", "error", err, "booking_id", bookingID)
		}
	}

	var email string
	if detail.User != nil {
		email = detail.User.Email
	}
	if err := s.bus.Publish(ctx, events.BookingConfirmed, events.BookingConfirmedEvent{
		BookingID:     bookingID,
		UserID:        detail.UserID,
		PaymentID:     paymentID,
		AmountCents:   amount,
		ConfirmedAt:   time.Now(),
		CustomerEmail: email,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking confirmed event", "error", err, "booking_id", bookingID)
	}

	return detail, nil
}

// HandleFailedPayment flips the booking to failed and releases every
// attached slot, all or nothing. Already-failed bookings are a no-op.
func (s *bookingService) HandleFailedPayment(ctx context.Context, bookingID int64) error {
	existing, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if existing == nil {
		return domain.ErrBookingNotFound
	}
	if existing.Status == domain.BookingFailed {
		return nil
	}

	var released []int64
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.bookings.SetStatusTx(ctx, tx, bookingID, domain.BookingFailed); err != nil {
			return fmt.Errorf("failed to mark booking failed: %w", err)
		}
		ids, err := s.bookings.SlotIDsTx(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("failed to list booking slots: %w", err)
		}
		released = ids
		return s.slots.SetStatusTx(ctx, tx, ids, domain.SlotAvailable)
	})
	if err != nil {
		return err
	}

	if err := s.bus.Publish(ctx, events.BookingFailed, events.BookingFailedEvent{
		BookingID:     bookingID,
		ReleasedSlots: released,
		FailedAt:      time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking failed event", "error", err, "booking_id", bookingID)
	}
	return nil
}

// CreateAdmin records a walk-in or phone booking: no payment step, slots go
// straight to booked, status confirmed - local.
func (s *bookingService) CreateAdmin(ctx context.Context, userID int64, slotIDs []int64) (*domain.BookingDetail, error) {
	if len(slotIDs) == 0 {
		return nil, domain.ErrNoSlotIDs
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	var booking *domain.Booking
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.slots.LockAvailableTx(ctx, tx, slotIDs)
		if err != nil {
			return fmt.Errorf("failed to lock slots: %w", err)
		}
		if len(locked) != len(slotIDs) {
			return &domain.SlotsUnavailableError{MissingIDs: missingIDs(slotIDs, locked)}
		}

		booking, err = s.bookings.CreateTx(ctx, tx, userID, domain.BookingConfirmedLocal, nil, nil, slotIDs)
		if err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return s.slots.SetStatusTx(ctx, tx, slotIDs, domain.SlotBooked)
	})
	if err != nil {
		return nil, err
	}

	return s.bookings.GetDetail(ctx, booking.ID)
}

// Delete removes a booking and returns its slots to the pool, confirmed or
// not.
func (s *bookingService) Delete(ctx context.Context, bookingID int64) error {
	existing, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if existing == nil {
		return domain.ErrBookingNotFound
	}

	var released []int64
	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		ids, err := s.bookings.SlotIDsTx(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("failed to list booking slots: %w", err)
		}
		released = ids
		if err := s.slots.SetStatusTx(ctx, tx, ids, domain.SlotAvailable); err != nil {
			return fmt.Errorf("failed to release slots: %w", err)
		}
		found, err := s.bookings.DeleteTx(ctx, tx, bookingID)
		if err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}
		if !found {
			return domain.ErrBookingNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.bus.Publish(ctx, events.BookingDeleted, events.BookingDeletedEvent{
		BookingID:     bookingID,
		ReleasedSlots: released,
		DeletedAt:     time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking deleted event", "error", err, "booking_id", bookingID)
	}
	return nil
}

// UpdateStatus is the manual admin correction: unconditional overwrite,
// no slot side effects.
func (s *bookingService) UpdateStatus(ctx context.Context, bookingID int64, status domain.BookingStatus) error {
	found, err := s.bookings.UpdateStatus(ctx, bookingID, status)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if !found {
		return domain.ErrBookingNotFound
	}
	return nil
}

// Extend attaches trailing contiguous slots in the booking's bay. The match
// is exact: a short or gapped window aborts the whole extension with no
// partial effect.
func (s *bookingService) Extend(ctx context.Context, bookingID int64, hours int) (*domain.BookingDetail, string, error) {
	if hours != 1 && hours != 2 {
		return nil, "", domain.ErrInvalidExtension
	}

	detail, err := s.bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load booking: %w", err)
	}
	if detail == nil {
		return nil, "", domain.ErrBookingNotFound
	}
	if len(detail.Slots) == 0 {
		return nil, "", domain.ErrNoSlots
	}

	last := detail.Slots[len(detail.Slots)-1]
	extendFrom := last.EndTime.Add(slotGap)

	window, err := s.slots.AvailableWindow(ctx, last.BayID, extendFrom, extendFrom.Add(time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, "", fmt.Errorf("failed to query extension window: %w", err)
	}
	if len(window) != hours {
		return nil, "", &domain.NotEnoughSlotsError{Wanted: hours, Found: len(window)}
	}
	for i, slot := range window {
		if !slot.StartTime.Equal(extendFrom.Add(time.Duration(i) * time.Hour)) {
			return nil, "", &domain.NotConsecutiveError{Position: i}
		}
	}

	ids := make([]int64, len(window))
	for i, slot := range window {
		ids[i] = slot.ID
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.slots.LockAvailableTx(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock extension slots: %w", err)
		}
		if len(locked) != len(ids) {
			return &domain.NotEnoughSlotsError{Wanted: hours, Found: len(locked)}
		}
		if err := s.bookings.AttachSlotsTx(ctx, tx, bookingID, ids); err != nil {
			return fmt.Errorf("failed to attach extension slots: %w", err)
		}
		return s.slots.SetStatusTx(ctx, tx, ids, domain.SlotBooked)
	})
	if err != nil {
		return nil, "", err
	}

	if err := s.bus.Publish(ctx, events.BookingExtended, events.BookingExtendedEvent{
		BookingID:  bookingID,
		AddedSlots: ids,
		Hours:      hours,
		ExtendedAt: time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking extended event", "error", err, "booking_id", bookingID)
	}

	message := fmt.Sprintf("Booking extended by %d hour", hours)
	if hours > 1 {
		message += "s"
	}

	updated, err := s.bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to reload booking: %w", err)
	}
	return updated, message, nil
}

// CheckExtendAvailability runs the same windowed lookups as Extend without
// mutating anything; it drives the extend buttons in the UI.
func (s *bookingService) CheckExtendAvailability(ctx context.Context, bookingID int64) (bool, bool, error) {
	detail, err := s.bookings.GetDetail(ctx, bookingID)
	if err != nil {
		return false, false, fmt.Errorf("failed to load booking: %w", err)
	}
	if detail == nil {
		return false, false, domain.ErrBookingNotFound
	}
	if len(detail.Slots) == 0 {
		return false, false, domain.ErrNoSlots
	}

	last := detail.Slots[len(detail.Slots)-1]
	extendFrom := last.EndTime.Add(slotGap)

	can := [2]bool{}
	for h := 1; h <= 2; h++ {
		window, err := s.slots.AvailableWindow(ctx, last.BayID, extendFrom, extendFrom.Add(time.Duration(h)*time.Hour))
		if err != nil {
			return false, false, fmt.Errorf("failed to query extension window: %w", err)
		}
		ok := len(window) == h
		for i := 0; ok && i < h; i++ {
			ok = window[i].StartTime.Equal(extendFrom.Add(time.Duration(i) * time.Hour))
		}
		can[h-1] = ok
	}
	return can[0], can[1], nil
}

func (s *bookingService) Get(ctx context.Context, id int64) (*domain.BookingDetail, error) {
	return s.bookings.GetDetail(ctx, id)
}

func (s *bookingService) List(ctx context.Context, limit, offset int, status *domain.BookingStatus) ([]domain.Booking, error) {
	return s.bookings.List(ctx, limit, offset, status)
}

func (s *bookingService) resolveIdentity(ctx context.Context, userID *int64, guest *domain.GuestInfo) (int64, error) {
	if guest != nil {
		user, err := s.users.UpsertGuest(ctx, *guest)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert guest: %w", err)
		}
		return user.ID, nil
	}
	if userID != nil {
		return *userID, nil
	}
	return 0, domain.ErrMissingIdentity
}

func missingIDs(requested, found []int64) []int64 {
	have := make(map[int64]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	var missing []int64
	for _, id := range requested {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
