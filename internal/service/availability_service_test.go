package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/service"
	"github.com/teebox/teebox-bookings/pkg/config"
	"github.com/teebox/teebox-bookings/pkg/events"
)

func newAvailabilityFixture(t *testing.T) (*mockSlotRepo, *mockBayRepo, *mockBus, service.AvailabilityService) {
	t.Helper()
	slots := newMockSlotRepo()
	bays := &mockBayRepo{bays: []domain.Bay{{ID: 1, Name: "Bay 1"}}}
	bus := &mockBus{}
	venue := config.Load().Venue
	venue.Timezone = "UTC"
	return slots, bays, bus, service.NewAvailabilityService(slots, bays, bus, venue)
}

func TestBlockSlots_LeavesReservedSlotsAlone(t *testing.T) {
	slots, _, bus, svc := newAvailabilityFixture(t)
	base := time.Date(2026, time.September, 10, 9, 0, 0, 0, time.UTC)
	slots.add(1, 1, base, domain.SlotAvailable)
	slots.add(2, 1, base.Add(time.Hour), domain.SlotBooked)
	slots.add(3, 1, base.Add(2*time.Hour), domain.SlotAwaitingPayment)

	affected, err := svc.BlockSlots(context.Background(), base, base.Add(3*time.Hour), nil)
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 {
		t.Errorf("affected = %d, want 1", affected)
	}
	if got := slots.status(1); got != domain.SlotMaintenance {
		t.Errorf("slot 1 = %q, want maintenance", got)
	}
	if got := slots.status(2); got != domain.SlotBooked {
		t.Errorf("slot 2 = %q, blocked slots must not touch bookings", got)
	}
	if got := slots.status(3); got != domain.SlotAwaitingPayment {
		t.Errorf("slot 3 = %q, in-flight checkouts must survive a block", got)
	}
	if bus.count(events.SlotsBlocked) != 1 {
		t.Error("no slots.blocked event published")
	}
}

func TestUnblockSlots_OnlyRevertsMaintenance(t *testing.T) {
	slots, _, _, svc := newAvailabilityFixture(t)
	base := time.Date(2026, time.September, 10, 9, 0, 0, 0, time.UTC)
	slots.add(1, 1, base, domain.SlotMaintenance)
	slots.add(2, 1, base.Add(time.Hour), domain.SlotBooked)

	affected, err := svc.UnblockSlots(context.Background(), base, base.Add(2*time.Hour), nil)
	if err != nil {
		t.Fatal(err)
	}
	if affected != 1 {
		t.Errorf("affected = %d, want 1", affected)
	}
	if got := slots.status(2); got != domain.SlotBooked {
		t.Errorf("slot 2 = %q, unblock must not release bookings", got)
	}
}

func TestBlockSlots_ValidatesRange(t *testing.T) {
	_, _, _, svc := newAvailabilityFixture(t)
	now := time.Now()

	if _, err := svc.BlockSlots(context.Background(), now, now.Add(-time.Hour), nil); !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Errorf("inverted range: want ErrInvalidDateRange, got %v", err)
	}
	if _, err := svc.BlockSlots(context.Background(), time.Time{}, now, nil); !errors.Is(err, domain.ErrMissingDate) {
		t.Errorf("zero from: want ErrMissingDate, got %v", err)
	}
}

func TestSlotsForDate_UsesVenueLocalDayBounds(t *testing.T) {
	slots, _, _, svc := newAvailabilityFixture(t)
	day := time.Date(2026, time.September, 10, 12, 0, 0, 0, time.UTC)
	slots.add(1, 1, time.Date(2026, time.September, 10, 9, 0, 0, 0, time.UTC), domain.SlotAvailable)
	slots.add(2, 1, time.Date(2026, time.September, 11, 9, 0, 0, 0, time.UTC), domain.SlotAvailable)

	got, err := svc.SlotsForDate(context.Background(), day, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("got %d slots, want only the Sep 10 slot", len(got))
	}
}

func TestSlotsForDate_RequiresADate(t *testing.T) {
	_, _, _, svc := newAvailabilityFixture(t)
	if _, err := svc.SlotsForDate(context.Background(), time.Time{}, nil); !errors.Is(err, domain.ErrMissingDate) {
		t.Fatalf("want ErrMissingDate, got %v", err)
	}
}

func TestCreateSlot_RejectsUnknownBay(t *testing.T) {
	_, _, _, svc := newAvailabilityFixture(t)
	start := time.Date(2026, time.September, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.CreateSlot(context.Background(), &domain.Slot{
		BayID: 99, StartTime: start, EndTime: start.Add(55 * time.Minute),
	})
	if !errors.Is(err, domain.ErrBayNotFound) {
		t.Fatalf("want ErrBayNotFound, got %v", err)
	}
}
