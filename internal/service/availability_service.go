package service

import (
	"context"
	"fmt"
	"time"

	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/repository"
	"github.com/teebox/teebox-bookings/pkg/config"
	"github.com/teebox/teebox-bookings/pkg/events"
	"github.com/teebox/teebox-bookings/pkg/logger"
)

type AvailabilityService interface {
	SlotsForDate(ctx context.Context, date time.Time, bayID *int64) ([]domain.SlotWithBay, error)
	BlockSlots(ctx context.Context, from, to time.Time, bayID *int64) (int64, error)
	UnblockSlots(ctx context.Context, from, to time.Time, bayID *int64) (int64, error)
	Bays(ctx context.Context) ([]domain.Bay, error)
	CreateSlot(ctx context.Context, slot *domain.Slot) (*domain.Slot, error)
	UpdateSlot(ctx context.Context, slot *domain.Slot) error
	DeleteSlot(ctx context.Context, id int64) error
}

type availabilityService struct {
	slots repository.SlotRepository
	bays  repository.BayRepository
	bus   events.Publisher
	venue config.VenueConfig
}

func NewAvailabilityService(slots repository.SlotRepository, bays repository.BayRepository, bus events.Publisher, venue config.VenueConfig) AvailabilityService {
	return &availabilityService{slots: slots, bays: bays, bus: bus, venue: venue}
}

// SlotsForDate lists every slot on the venue-local calendar day, any status,
// optionally filtered to one bay.
func (s *availabilityService) SlotsForDate(ctx context.Context, date time.Time, bayID *int64) ([]domain.SlotWithBay, error) {
	if date.IsZero() {
		return nil, domain.ErrMissingDate
	}
	loc := s.venue.Location()
	local := date.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	slots, err := s.slots.ListForDate(ctx, dayStart, dayEnd, bayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

// BlockSlots takes available slots inside [from, to] out of circulation for
// maintenance. Slots already awaiting payment or booked are untouched; the
// returned count is how many actually flipped.
func (s *availabilityService) BlockSlots(ctx context.Context, from, to time.Time, bayID *int64) (int64, error) {
	if err := validateRange(from, to); err != nil {
		return 0, err
	}
	affected, err := s.slots.BlockRange(ctx, from, to, bayID)
	if err != nil {
		return 0, fmt.Errorf("failed to block slots: %w", err)
	}

	if err := s.bus.Publish(ctx, events.SlotsBlocked, events.SlotsBlockedEvent{
		From: from, To: to, BayID: bayID, Affected: affected,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish slots blocked event", "error", err)
	}
	return affected, nil
}

// UnblockSlots is the exact inverse of BlockSlots: only maintenance slots
// return to available, so a booking that landed in the range is never
// clobbered.
func (s *availabilityService) UnblockSlots(ctx context.Context, from, to time.Time, bayID *int64) (int64, error) {
	if err := validateRange(from, to); err != nil {
		return 0, err
	}
	affected, err := s.slots.UnblockRange(ctx, from, to, bayID)
	if err != nil {
		return 0, fmt.Errorf("failed to unblock slots: %w", err)
	}

	if err := s.bus.Publish(ctx, events.SlotsUnblocked, events.SlotsBlockedEvent{
		From: from, To: to, BayID: bayID, Affected: affected,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish slots unblocked event", "error", err)
	}
	return affected, nil
}

func (s *availabilityService) Bays(ctx context.Context) ([]domain.Bay, error) {
	return s.bays.List(ctx)
}

func (s *availabilityService) CreateSlot(ctx context.Context, slot *domain.Slot) (*domain.Slot, error) {
	if slot.StartTime.IsZero() || slot.EndTime.IsZero() || !slot.EndTime.After(slot.StartTime) {
		return nil, domain.ErrInvalidDateRange
	}
	if slot.Status == "" {
		slot.Status = domain.SlotAvailable
	}
	bay, err := s.bays.GetByID(ctx, slot.BayID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bay: %w", err)
	}
	if bay == nil {
		return nil, domain.ErrBayNotFound
	}
	created, err := s.slots.Create(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("failed to create slot: %w", err)
	}
	return created, nil
}

// UpdateSlot is the admin override: it writes whatever it is handed, with no
// booking consistency checks.
func (s *availabilityService) UpdateSlot(ctx context.Context, slot *domain.Slot) error {
	found, err := s.slots.Update(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if !found {
		return domain.ErrSlotNotFound
	}
	return nil
}

// DeleteSlot refuses to remove a slot any booking still references.
func (s *availabilityService) DeleteSlot(ctx context.Context, id int64) error {
	found, err := s.slots.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if !found {
		return domain.ErrSlotNotFound
	}
	return nil
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return domain.ErrMissingDate
	}
	if to.Before(from) {
		return domain.ErrInvalidDateRange
	}
	return nil
}
