package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/service"
	"github.com/teebox/teebox-bookings/pkg/config"
)

func membershipFixture(t *testing.T) (*mockUserRepo, *mockBookingRepo, service.MembershipService) {
	t.Helper()
	users := newMockUserRepo()
	slots := newMockSlotRepo()
	bookings := newMockBookingRepo(slots, users)
	cfg := config.Load()
	cfg.Venue.Timezone = "UTC"
	svc := service.NewMembershipService(users, bookings, &mockBus{}, cfg.Membership, cfg.Venue)
	return users, bookings, svc
}

func activeMember(tier domain.MembershipTier, customerID string) domain.User {
	status := domain.MembershipActive
	start := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return domain.User{
		Email:              "member@example.com",
		Role:               domain.RoleUser,
		MembershipTier:     &tier,
		MembershipStatus:   &status,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		StripeCustomerID:   &customerID,
	}
}

func periodBooking(slotStarts ...time.Time) domain.BookingDetail {
	d := domain.BookingDetail{Booking: domain.Booking{ID: 1, Status: domain.BookingConfirmed}}
	for i, start := range slotStarts {
		d.Slots = append(d.Slots, domain.SlotWithBay{
			Slot: domain.Slot{ID: int64(i + 1), BayID: 1, StartTime: start, EndTime: start.Add(55 * time.Minute)},
		})
	}
	return d
}

func TestUsageStats_ExcludesWeekendsForWeekdayTier(t *testing.T) {
	users, bookings, svc := membershipFixture(t)
	user := users.seed(activeMember(domain.TierPar, "cus_1"))

	saturday := time.Date(2026, time.September, 5, 10, 0, 0, 0, time.UTC)
	tuesday := time.Date(2026, time.September, 8, 10, 0, 0, 0, time.UTC)
	bookings.periodDetails = []domain.BookingDetail{periodBooking(saturday, tuesday)}

	stats := svc.UsageStats(context.Background(), user)
	if stats == nil {
		t.Fatal("stats = nil for an active member")
	}
	if stats.UsedHours != 1 {
		t.Errorf("used = %d, want 1: Saturday play is billed outside a PAR membership", stats.UsedHours)
	}
	if stats.TotalHours != 8 {
		t.Errorf("total = %d, want the PAR allowance of 8", stats.TotalHours)
	}
	if stats.RemainingHours != 7 {
		t.Errorf("remaining = %d, want 7", stats.RemainingHours)
	}
}

func TestUsageStats_CountsWeekendsForWeekendTier(t *testing.T) {
	users, bookings, svc := membershipFixture(t)
	user := users.seed(activeMember(domain.TierBirdie, "cus_2"))

	saturday := time.Date(2026, time.September, 5, 10, 0, 0, 0, time.UTC)
	tuesday := time.Date(2026, time.September, 8, 10, 0, 0, 0, time.UTC)
	bookings.periodDetails = []domain.BookingDetail{periodBooking(saturday, tuesday)}

	stats := svc.UsageStats(context.Background(), user)
	if stats == nil {
		t.Fatal("stats = nil")
	}
	if stats.UsedHours != 2 {
		t.Errorf("used = %d, want 2", stats.UsedHours)
	}
}

func TestUsageStats_NilWithoutActivePeriod(t *testing.T) {
	users, _, svc := membershipFixture(t)
	user := users.seed(domain.User{Email: "plain@example.com", Role: domain.RoleUser})

	if stats := svc.UsageStats(context.Background(), user); stats != nil {
		t.Errorf("stats = %+v, want nil for a user with no membership", stats)
	}
	if stats := svc.UsageStats(context.Background(), nil); stats != nil {
		t.Error("stats for nil user should be nil")
	}
}

func TestUsageStats_RemainingNeverNegative(t *testing.T) {
	users, bookings, svc := membershipFixture(t)
	user := users.seed(activeMember(domain.TierPar, "cus_3"))

	var starts []time.Time
	day := time.Date(2026, time.September, 7, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		starts = append(starts, day.Add(time.Duration(i)*time.Hour))
	}
	bookings.periodDetails = []domain.BookingDetail{periodBooking(starts...)}

	stats := svc.UsageStats(context.Background(), user)
	if stats == nil {
		t.Fatal("stats = nil")
	}
	if stats.UsedHours != 10 {
		t.Errorf("used = %d, want 10", stats.UsedHours)
	}
	if stats.RemainingHours != 0 {
		t.Errorf("remaining = %d, want clamped to 0", stats.RemainingHours)
	}
}

func TestHandleSubscriptionUpdate_SetsTierAndPeriod(t *testing.T) {
	users, _, svc := membershipFixture(t)
	users.seed(activeMember(domain.TierPar, "cus_9"))

	start := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	err := svc.HandleSubscriptionUpdate(context.Background(), service.SubscriptionUpdate{
		CustomerID:  "cus_9",
		PriceID:     "price_birdie",
		Status:      "active",
		PeriodStart: start,
		PeriodEnd:   end,
	})
	if err != nil {
		t.Fatal(err)
	}
	if users.lastTier == nil || *users.lastTier != domain.TierBirdie {
		t.Errorf("tier = %v, want BIRDIE", users.lastTier)
	}
	if users.lastStatus != domain.MembershipActive {
		t.Errorf("status = %q, want ACTIVE", users.lastStatus)
	}
	if users.lastStart == nil || !users.lastStart.Equal(start) {
		t.Errorf("period start = %v, want %v", users.lastStart, start)
	}
}

func TestHandleSubscriptionUpdate_UnknownPriceForcesCancellation(t *testing.T) {
	users, _, svc := membershipFixture(t)
	users.seed(activeMember(domain.TierPar, "cus_9"))

	err := svc.HandleSubscriptionUpdate(context.Background(), service.SubscriptionUpdate{
		CustomerID: "cus_9",
		PriceID:    "price_mystery",
		Status:     "active",
	})
	if err != nil {
		t.Fatal(err)
	}
	if users.lastTier != nil {
		t.Errorf("tier = %v, want cleared", users.lastTier)
	}
	if users.lastStatus != domain.MembershipCancelled {
		t.Errorf("status = %q, an unknown price must cancel regardless of provider status", users.lastStatus)
	}
}

func TestHandleSubscriptionUpdate_CancellationClearsPeriod(t *testing.T) {
	users, _, svc := membershipFixture(t)
	users.seed(activeMember(domain.TierBirdie, "cus_9"))

	err := svc.HandleSubscriptionUpdate(context.Background(), service.SubscriptionUpdate{
		CustomerID:  "cus_9",
		PriceID:     "price_birdie",
		Status:      "canceled",
		PeriodStart: time.Now(),
		PeriodEnd:   time.Now().AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if users.lastStatus != domain.MembershipCancelled {
		t.Errorf("status = %q, want CANCELLED", users.lastStatus)
	}
	if users.lastStart != nil || users.lastEnd != nil {
		t.Error("period bounds should be cleared on cancellation")
	}
}

func TestHandleSubscriptionUpdate_UnknownCustomer(t *testing.T) {
	_, _, svc := membershipFixture(t)
	err := svc.HandleSubscriptionUpdate(context.Background(), service.SubscriptionUpdate{
		CustomerID: "cus_ghost",
		PriceID:    "price_par",
		Status:     "active",
	})
	if err == nil {
		t.Fatal("want an error for an unknown customer")
	}
}
