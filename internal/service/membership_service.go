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

// SubscriptionUpdate is the provider-neutral shape of a subscription webhook:
// who, which price, what provider status, and the current billing period.
type SubscriptionUpdate struct {
	CustomerID  string
	PriceID     string
	Status      string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type MembershipService interface {
	UsageStats(ctx context.Context, user *domain.User) *domain.UsageStats
	UsageStatsForUser(ctx context.Context, userID int64) (*domain.User, *domain.UsageStats, error)
	HandleSubscriptionUpdate(ctx context.Context, update SubscriptionUpdate) error
}

type membershipService struct {
	users    repository.UserRepository
	bookings repository.BookingRepository
	bus      events.Publisher
	tiers    config.MembershipConfig
	venue    config.VenueConfig
}

func NewMembershipService(users repository.UserRepository, bookings repository.BookingRepository, bus events.Publisher, tiers config.MembershipConfig, venue config.VenueConfig) MembershipService {
	return &membershipService{users: users, bookings: bookings, bus: bus, tiers: tiers, venue: venue}
}

// UsageStats computes hours consumed against the member's included allowance
// for the current billing period. It is decorative: any missing precondition
// or failure yields nil rather than an error, and the caller renders the
// response without the block.
func (s *membershipService) UsageStats(ctx context.Context, user *domain.User) *domain.UsageStats {
	if user == nil || !user.HasActivePeriod() {
		return nil
	}
	tier, ok := s.tiers.Tiers[string(*user.MembershipTier)]
	if !ok {
		return nil
	}

	details, err := s.bookings.ListForUserInPeriod(ctx, user.ID, *user.CurrentPeriodStart, *user.CurrentPeriodEnd)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to compute usage stats", "error", err, "user_id", user.ID)
		return nil
	}

	loc := s.venue.Location()
	used := 0
	for _, d := range details {
		for _, slot := range d.Slots {
			if !tier.WeekendAccess && isWeekend(slot.StartTime.In(loc)) {
				// weekend play is billed separately for weekday-only tiers
				continue
			}
			used++
		}
	}

	remaining := tier.IncludedHours - used
	if remaining < 0 {
		remaining = 0
	}
	return &domain.UsageStats{
		UsedHours:      used,
		TotalHours:     tier.IncludedHours,
		RemainingHours: remaining,
	}
}

// UsageStatsForUser loads the user and computes their stats in one call.
// The stats pointer is nil for users without a live membership.
func (s *membershipService) UsageStatsForUser(ctx context.Context, userID int64) (*domain.User, *domain.UsageStats, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, nil, domain.ErrUserNotFound
	}
	return user, s.UsageStats(ctx, user), nil
}

// HandleSubscriptionUpdate syncs a provider subscription event onto the user
// keyed by customer id. An unrecognized price clears the tier and forces
// CANCELLED regardless of the provider status; period bounds are only kept
// while the membership is active.
func (s *membershipService) HandleSubscriptionUpdate(ctx context.Context, update SubscriptionUpdate) error {
	var tier *domain.MembershipTier
	for name, cfg := range s.tiers.Tiers {
		if cfg.PriceID == update.PriceID {
			t := domain.MembershipTier(name)
			tier = &t
			break
		}
	}

	status := domain.MembershipCancelled
	if tier != nil && isActiveSubscription(update.Status) {
		status = domain.MembershipActive
	}

	var periodStart, periodEnd *time.Time
	if status == domain.MembershipActive {
		if !update.PeriodStart.IsZero() {
			periodStart = &update.PeriodStart
		}
		if !update.PeriodEnd.IsZero() {
			periodEnd = &update.PeriodEnd
		}
	}

	found, err := s.users.UpdateMembership(ctx, update.CustomerID, tier, status, periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	if !found {
		return fmt.Errorf("no user for stripe customer %s: %w", update.CustomerID, domain.ErrUserNotFound)
	}

	var tierName *string
	if tier != nil {
		n := string(*tier)
		tierName = &n
	}
	if err := s.bus.Publish(ctx, events.MembershipUpdated, events.MembershipUpdatedEvent{
		CustomerID: update.CustomerID,
		Tier:       tierName,
		Status:     string(status),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish membership updated event", "error", err, "customer_id", update.CustomerID)
	}
	return nil
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func isActiveSubscription(providerStatus string) bool {
	switch providerStatus {
	case "active", "trialing":
		return true
	default:
		return false
	}
}
