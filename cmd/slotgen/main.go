package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/teebox/teebox-bookings/internal/repository"
	"github.com/teebox/teebox-bookings/internal/service"
	"github.com/teebox/teebox-bookings/pkg/config"
	"github.com/teebox/teebox-bookings/pkg/database"
	"github.com/teebox/teebox-bookings/pkg/logger"
)

// slotgen materializes the booking horizon. Run it from cron; reruns are
// idempotent.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	days := flag.Int("days", cfg.Venue.HorizonDays, "how many days of slots to generate")
	from := flag.String("from", "", "first day to generate (YYYY-MM-DD, default today)")
	flag.Parse()

	start := time.Now()
	if *from != "" {
		parsed, err := time.ParseInLocation("2006-01-02", *from, cfg.Venue.Location())
		if err != nil {
			logger.Error("Invalid -from date", "error", err, "from", *from)
			os.Exit(1)
		}
		start = parsed
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gen := service.NewSlotGenerator(
		repository.NewBayRepository(pool),
		repository.NewSlotRepository(pool),
		cfg.Venue,
	)

	inserted, err := gen.Generate(ctx, start, *days)
	if err != nil {
		logger.Error("Slot generation failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Slot generation finished", "inserted", inserted, "days", *days)
}
