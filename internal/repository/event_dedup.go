package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDedup remembers processed webhook event ids so duplicate deliveries
// are dropped before they reach the booking engine. The engine operations
// are themselves idempotent; this is the outer guard.
type EventDedup struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEventDedup(client *redis.Client, ttl time.Duration) *EventDedup {
	return &EventDedup{client: client, ttl: ttl}
}

// Seen records the event id and reports whether it had been recorded
// before. Redis failures report the event as unseen (fail open), since
// processing a duplicate is safe and dropping a first delivery is not.
func (d *EventDedup) Seen(ctx context.Context, eventID string) bool {
	ok, err := d.client.SetNX(ctx, "webhook:event:"+eventID, 1, d.ttl).Result()
	if err != nil {
		return false
	}
	return !ok
}
