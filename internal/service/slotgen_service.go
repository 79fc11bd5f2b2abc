package service

import (
	"context"
	"fmt"
	"time"

	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/repository"
	"github.com/teebox/teebox-bookings/pkg/config"
	"github.com/teebox/teebox-bookings/pkg/logger"
)

// SlotGenerator materializes the booking horizon: one slot per bay per
// operating hour, on a 1-hour cadence with the configured display duration.
// Runs are idempotent; existing slots are left alone.
type SlotGenerator struct {
	bays  repository.BayRepository
	slots repository.SlotRepository
	venue config.VenueConfig
}

func NewSlotGenerator(bays repository.BayRepository, slots repository.SlotRepository, venue config.VenueConfig) *SlotGenerator {
	return &SlotGenerator{bays: bays, slots: slots, venue: venue}
}

// Generate builds slots for every open day in [from, from+days) and returns
// how many rows were actually inserted.
func (g *SlotGenerator) Generate(ctx context.Context, from time.Time, days int) (int64, error) {
	bays, err := g.bays.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bays: %w", err)
	}
	if len(bays) == 0 {
		return 0, nil
	}

	loc := g.venue.Location()
	start := from.In(loc)
	duration := time.Duration(g.venue.SlotMinutes) * time.Minute

	var batch []domain.Slot
	for day := 0; day < days; day++ {
		date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, day)
		if date.Weekday() == g.venue.ClosedWeekday {
			continue
		}
		for hour := g.venue.OpenHour; hour < g.venue.CloseHour; hour++ {
			slotStart := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, loc)
			for _, bay := range bays {
				batch = append(batch, domain.Slot{
					BayID:     bay.ID,
					StartTime: slotStart,
					EndTime:   slotStart.Add(duration),
					Status:    domain.SlotAvailable,
				})
			}
		}
	}

	inserted, err := g.slots.BulkInsert(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to insert slots: %w", err)
	}
	logger.InfoContext(ctx, "Slot generation complete", "candidates", len(batch), "inserted", inserted)
	return inserted, nil
}
