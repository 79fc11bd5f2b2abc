package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

type MembershipTier string

const (
	TierPar       MembershipTier = "PAR"
	TierBirdie    MembershipTier = "BIRDIE"
	TierHoleInOne MembershipTier = "HOLEINONE"
)

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipCancelled MembershipStatus = "CANCELLED"
)

// User is a customer, staff member, or checkout guest. Membership fields
// are synchronized from payment-provider subscription webhooks and keyed by
// StripeCustomerID.
type User struct {
	ID                 int64             `json:"id"`
	Email              string            `json:"email"`
	Name               string            `json:"name"`
	Phone              string            `json:"phone"`
	Role               Role              `json:"role"`
	PasswordHash       string            `json:"-"`
	MembershipTier     *MembershipTier   `json:"membership_tier,omitempty"`
	MembershipStatus   *MembershipStatus `json:"membership_status,omitempty"`
	CurrentPeriodStart *time.Time        `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time        `json:"current_period_end,omitempty"`
	StripeCustomerID   *string           `json:"stripe_customer_id,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HasActivePeriod reports whether the user's membership fields describe a
// live billing period that usage accounting can bill against.
func (u *User) HasActivePeriod() bool {
	return u.MembershipTier != nil &&
		u.MembershipStatus != nil && *u.MembershipStatus == MembershipActive &&
		u.CurrentPeriodStart != nil && u.CurrentPeriodEnd != nil
}

// UsageStats summarizes how much of a member's included allowance the
// current billing period has consumed.
type UsageStats struct {
	UsedHours      int `json:"used_hours"`
	TotalHours     int `json:"total_hours"`
	RemainingHours int `json:"remaining_hours"`
}
