package domain

import "time"

type BookingStatus string

const (
	BookingPending        BookingStatus = "pending"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingConfirmedLocal BookingStatus = "confirmed - local"
	BookingCancelled      BookingStatus = "cancelled"
	BookingFailed         BookingStatus = "failed"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingConfirmed, BookingConfirmedLocal, BookingCancelled, BookingFailed:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// Booking reserves one or more slots for a user. Every slot attached to a
// booking was available at reservation time; total duration is slot count
// times the slot length.
type Booking struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	ManageToken   string        `json:"manage_token"`
	Status        BookingStatus `json:"status"`
	PaymentID     *string       `json:"payment_id,omitempty"`
	PaymentStatus *string       `json:"payment_status,omitempty"`
	BookingTime   time.Time     `json:"booking_time"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BookingDetail is a booking loaded with its slots (ordered by start time)
// and the owning user.
type BookingDetail struct {
	Booking
	Slots []SlotWithBay `json:"slots"`
	User  *User         `json:"user,omitempty"`
}

// GuestInfo is the checkout contact block used to upsert a guest user by
// email at booking time.
type GuestInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateBookingRequest carries exactly one identity source: Guest contact
// info, or the id of an existing user.
type CreateBookingRequest struct {
	UserID        *int64     `json:"user_id,omitempty"`
	Guest         *GuestInfo `json:"guest,omitempty"`
	SlotIDs       []int64    `json:"slot_ids"`
	PaymentID     *string    `json:"payment_id,omitempty"`
	PaymentStatus *string    `json:"payment_status,omitempty"`
}
