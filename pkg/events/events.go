package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/teebox/teebox-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Booking lifecycle
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingFailed    = "booking.failed"
	BookingExtended  = "booking.extended"
	BookingDeleted   = "booking.deleted"

	// Slot inventory
	SlotsBlocked   = "slots.blocked"
	SlotsUnblocked = "slots.unblocked"

	// Membership
	MembershipUpdated = "membership.updated"

	// Notification
	NotifySend = "notify.send"
)

// Event payloads
type BookingCreatedEvent struct {
	BookingID int64     `json:"booking_id"`
	UserID    int64     `json:"user_id"`
	SlotIDs   []int64   `json:"slot_ids"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingConfirmedEvent struct {
	BookingID     int64     `json:"booking_id"`
	UserID        int64     `json:"user_id"`
	PaymentID     string    `json:"payment_id"`
	AmountCents   int64     `json:"amount_cents"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
	CustomerEmail string    `json:"customer_email,omitempty"`
}

type BookingFailedEvent struct {
	BookingID     int64     `json:"booking_id"`
	ReleasedSlots []int64   `json:"released_slots"`
	FailedAt      time.Time `json:"failed_at"`
}

type BookingExtendedEvent struct {
	BookingID  int64     `json:"booking_id"`
	AddedSlots []int64   `json:"added_slots"`
	Hours      int       `json:"hours"`
	ExtendedAt time.Time `json:"extended_at"`
}

type BookingDeletedEvent struct {
	BookingID     int64     `json:"booking_id"`
	ReleasedSlots []int64   `json:"released_slots"`
	DeletedAt     time.Time `json:"deleted_at"`
}

type SlotsBlockedEvent struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	BayID    *int64    `json:"bay_id,omitempty"`
	Affected int64     `json:"affected"`
}

type MembershipUpdatedEvent struct {
	CustomerID string  `json:"customer_id"`
	Tier       *string `json:"tier"`
	Status     string  `json:"status"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Data      map[string]interface{} `json:"data"`
}
