package domain

import "time"

// SlotStatus is the closed set of states a slot moves through. A slot only
// changes status through the availability engine (block/unblock) or the
// booking engine (reserve/confirm/release).
type SlotStatus string

const (
	SlotAvailable       SlotStatus = "available"
	SlotAwaitingPayment SlotStatus = "awaiting payment"
	SlotBooked          SlotStatus = "booked"
	SlotMaintenance     SlotStatus = "maintenance"
)

func ParseSlotStatus(s string) (SlotStatus, bool) {
	switch SlotStatus(s) {
	case SlotAvailable, SlotAwaitingPayment, SlotBooked, SlotMaintenance:
		return SlotStatus(s), true
	default:
		return "", false
	}
}

// Bay is one physical simulator bay. Bays are immutable after creation and
// own many slots.
type Bay struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Slot is the atomic reservable unit: one bay for one hour of the schedule.
// The display duration is 55 minutes; starts sit on a 1-hour cadence, so
// adjacent slots leave a 5-minute gap.
type Slot struct {
	ID        int64      `json:"id"`
	BayID     int64      `json:"bay_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Status    SlotStatus `json:"status"`
}

// SlotWithBay joins a slot with its bay's display name for date listings.
type SlotWithBay struct {
	Slot
	BayName string `json:"bay_name"`
}
