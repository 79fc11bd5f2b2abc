package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the booking and availability engines. Services wrap
// these with context; the HTTP layer maps them onto status codes.
var (
	ErrMissingIdentity  = errors.New("either a user id or guest info is required")
	ErrMissingDate      = errors.New("date is required")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrBayNotFound      = errors.New("bay not found")
	ErrNoSlots          = errors.New("booking has no slots")
	ErrNoSlotIDs        = errors.New("at least one slot id is required")
	ErrInvalidExtension = errors.New("extension must be 1 or 2 hours")
)

// SlotsUnavailableError reports a reservation conflict and names exactly
// which requested slot ids were not available (concurrently reserved,
// blocked, or nonexistent).
type SlotsUnavailableError struct {
	MissingIDs []int64
}

func (e *SlotsUnavailableError) Error() string {
	return fmt.Sprintf("slots unavailable: %v", e.MissingIDs)
}

// NotEnoughSlotsError reports an extension window that came back short.
type NotEnoughSlotsError struct {
	Wanted int
	Found  int
}

func (e *NotEnoughSlotsError) Error() string {
	return fmt.Sprintf("not enough available slots to extend: wanted %d, found %d", e.Wanted, e.Found)
}

// NotConsecutiveError reports a gap in the extension window: a slot exists
// at the wrong cadence position, usually because an intermediate slot is
// blocked or booked.
type NotConsecutiveError struct {
	Position int
}

func (e *NotConsecutiveError) Error() string {
	return fmt.Sprintf("available slots are not consecutive at position %d", e.Position)
}

// IsConflict reports whether err is a legitimate scheduling conflict rather
// than a bug: lost reservation race, short window, or gapped window.
func IsConflict(err error) bool {
	var su *SlotsUnavailableError
	var ne *NotEnoughSlotsError
	var nc *NotConsecutiveError
	return errors.As(err, &su) || errors.As(err, &ne) || errors.As(err, &nc)
}
