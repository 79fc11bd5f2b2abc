package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/http/response"
	"github.com/teebox/teebox-bookings/internal/service"
	"github.com/teebox/teebox-bookings/pkg/logger"
)

const webhookBodyLimit = 1 << 16 // 64KB, per Stripe's recommendation

// StripeWebhook is the payment reconciliation entry point. The signature
// gate rejects forgeries; the Redis dedup drops replays; the engine
// operations behind each event type are idempotent besides, so an event
// that slips past the dedup is still harmless.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		response.BadRequest(w, "Failed to read request body")
		return
	}

	event, err := h.payments.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.WarnContext(r.Context(), "Webhook signature verification failed", "error", err)
		response.WriteError(w, http.StatusBadRequest, "Invalid signature", response.CodeInvalidToken)
		return
	}

	if h.dedup != nil && h.dedup.Seen(r.Context(), event.ID) {
		logger.InfoContext(r.Context(), "Duplicate webhook event dropped", "event_id", event.ID, "type", event.Type)
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	logger.InfoContext(r.Context(), "Processing webhook event", "event_id", event.ID, "type", event.Type)

	switch event.Type {
	case "payment_intent.created":
		err = h.handleIntentCreated(r, event)
	case "payment_intent.succeeded":
		err = h.handleIntentSucceeded(r, event)
	case "payment_intent.payment_failed":
		err = h.handleIntentFailed(r, event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		err = h.handleSubscriptionEvent(r, event)
	default:
		// unhandled event types are acknowledged so Stripe stops retrying
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err != nil {
		logger.ErrorContext(r.Context(), "Webhook processing failed",
			"error", err, "event_id", event.ID, "type", event.Type)
		response.InternalError(w, "Webhook processing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// handleIntentCreated performs the binding reservation: the slot ids and
// identity ride in the intent metadata, and the resulting booking id is
// written back onto the intent so later events can find it. A reservation
// lost to a concurrent booking is acknowledged, not retried; the succeeded
// handler will find no booking id and the payment is refunded out of band.
func (h *Handlers) handleIntentCreated(r *http.Request, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return err
	}

	req, err := reservationFromMetadata(intent.Metadata)
	if err != nil {
		logger.WarnContext(r.Context(), "Intent metadata unusable, skipping reservation",
			"error", err, "payment_id", intent.ID)
		return nil
	}
	paymentID := intent.ID
	paymentStatus := string(intent.Status)
	req.PaymentID = &paymentID
	req.PaymentStatus = &paymentStatus

	detail, err := h.bookings.Create(r.Context(), *req)
	if err != nil {
		if domain.IsConflict(err) {
			logger.WarnContext(r.Context(), "Reservation lost, slots taken before intent settled",
				"error", err, "payment_id", intent.ID)
			return nil
		}
		return err
	}

	return h.payments.UpdateIntentMetadata(r.Context(), intent.ID, map[string]string{
		"booking_id": strconv.FormatInt(detail.ID, 10),
	})
}

func (h *Handlers) handleIntentSucceeded(r *http.Request, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return err
	}

	bookingID, ok := bookingIDFromMetadata(intent.Metadata)
	if !ok {
		logger.WarnContext(r.Context(), "Succeeded intent carries no booking id", "payment_id", intent.ID)
		return nil
	}

	_, err := h.bookings.Confirm(r.Context(), bookingID, intent.ID, string(intent.Status))
	if errors.Is(err, domain.ErrBookingNotFound) {
		logger.WarnContext(r.Context(), "Succeeded intent references missing booking",
			"payment_id", intent.ID, "booking_id", bookingID)
		return nil
	}
	return err
}

func (h *Handlers) handleIntentFailed(r *http.Request, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return err
	}

	bookingID, ok := bookingIDFromMetadata(intent.Metadata)
	if !ok {
		return nil
	}

	err := h.bookings.HandleFailedPayment(r.Context(), bookingID)
	if errors.Is(err, domain.ErrBookingNotFound) {
		return nil
	}
	return err
}

func (h *Handlers) handleSubscriptionEvent(r *http.Request, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return err
	}
	if sub.Customer == nil {
		return nil
	}

	update := service.SubscriptionUpdate{
		CustomerID: sub.Customer.ID,
		Status:     string(sub.Status),
	}
	if event.Type == "customer.subscription.deleted" {
		update.Status = "canceled"
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		update.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodStart > 0 {
		update.PeriodStart = time.Unix(sub.CurrentPeriodStart, 0)
	}
	if sub.CurrentPeriodEnd > 0 {
		update.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0)
	}

	err := h.membership.HandleSubscriptionUpdate(r.Context(), update)
	if errors.Is(err, domain.ErrUserNotFound) {
		// a subscription for a customer we never issued is not retriable
		logger.WarnContext(r.Context(), "Subscription event for unknown customer", "customer_id", update.CustomerID)
		return nil
	}
	return err
}

// reservationFromMetadata rebuilds the booking request the checkout endpoint
// stashed on the intent.
func reservationFromMetadata(metadata map[string]string) (*domain.CreateBookingRequest, error) {
	ids, err := splitIDs(metadata["slot_ids"])
	if err != nil {
		return nil, err
	}

	req := &domain.CreateBookingRequest{SlotIDs: ids}
	if v := metadata["user_id"]; v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		req.UserID = &id
	}
	if email := metadata["guest_email"]; email != "" {
		req.Guest = &domain.GuestInfo{
			Name:  metadata["guest_name"],
			Email: email,
			Phone: metadata["guest_phone"],
		}
	}
	return req, nil
}

func bookingIDFromMetadata(metadata map[string]string) (int64, bool) {
	v, ok := metadata["booking_id"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func splitIDs(csv string) ([]int64, error) {
	if csv == "" {
		return nil, domain.ErrNoSlotIDs
	}
	parts := strings.Split(csv, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
