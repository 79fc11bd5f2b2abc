package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/http/response"
	"github.com/teebox/teebox-bookings/internal/service"
	"github.com/teebox/teebox-bookings/pkg/auth"
)

// Login authenticates a staff account and returns a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, "Email and password are required")
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if err == service.ErrInvalidCredentials {
			response.Unauthorized(w, "Invalid email or password")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"user":         user,
	})
}

func (h *Handlers) ListBays(w http.ResponseWriter, r *http.Request) {
	bays, err := h.availability.Bays(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bays": bays})
}

// ListSlots returns every slot on one venue-local calendar day, any status,
// optionally filtered to a single bay.
func (h *Handlers) ListSlots(w http.ResponseWriter, r *http.Request) {
	dateParam := r.URL.Query().Get("date")
	if dateParam == "" {
		response.BadRequest(w, "date query parameter is required")
		return
	}
	date, err := parseTimeParam(dateParam)
	if err != nil {
		response.BadRequest(w, "Invalid date format, want YYYY-MM-DD")
		return
	}
	bayID, err := parseBayID(r)
	if err != nil {
		response.BadRequest(w, "Invalid bay_id")
		return
	}

	// bare dates carry no zone; pin them to midday in the venue's zone so
	// DST shifts cannot push them onto a neighboring day
	if len(dateParam) == len("2006-01-02") {
		loc := h.cfg.Venue.Location()
		date = time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, loc)
	}

	slots, err := h.availability.SlotsForDate(r.Context(), date, bayID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": dateParam, "slots": slots})
}

// CreatePaymentIntent prices a slot selection and opens the checkout. The
// reservation itself happens when the provider confirms intent creation on
// the webhook.
func (h *Handlers) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SlotIDs []int64           `json:"slot_ids"`
		Guest   *domain.GuestInfo `json:"guest,omitempty"`
		UserID  *int64            `json:"user_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Guest != nil && req.Guest.Email == "" {
		response.BadRequest(w, "Guest email is required")
		return
	}

	intent, err := h.bookings.CreatePaymentIntent(r.Context(), req.SlotIDs, req.Guest, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment_intent_id": intent.ID,
		"client_secret":     intent.ClientSecret,
		"amount_cents":      intent.Amount,
	})
}

// GetBooking serves the guest self-service lookup: booking id plus the
// manage token issued at creation. Staff tokens skip the manage token.
func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	detail, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	// a missing booking and a bad token look the same from outside
	if detail == nil || !h.canAccessBooking(r, &detail.Booking) {
		response.NotFound(w, "Booking not found")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// ExtendAvailability reports whether the booking can grow by one or two
// trailing hours in its bay.
func (h *Handlers) ExtendAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}
	if !h.authorizeBookingAccess(w, r, id) {
		return
	}

	can1, can2, err := h.bookings.CheckExtendAvailability(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"can_extend_1_hour":  can1,
		"can_extend_2_hours": can2,
	})
}

func (h *Handlers) ExtendBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}
	if !h.authorizeBookingAccess(w, r, id) {
		return
	}

	var req struct {
		Hours int `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	detail, message, err := h.bookings.Extend(r.Context(), id, req.Hours)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"booking": detail,
	})
}

// MyUsage returns the authenticated member's allowance consumption for the
// current billing period. Users without a live membership get an empty body.
func (h *Handlers) MyUsage(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	if claims == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	user, stats, err := h.membership.UsageStatsForUser(r.Context(), claims.Sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := map[string]interface{}{"user_id": user.ID}
	if user.MembershipTier != nil {
		body["tier"] = *user.MembershipTier
	}
	if stats != nil {
		body["usage"] = stats
	}
	writeJSON(w, http.StatusOK, body)
}

// authorizeBookingAccess loads the booking and enforces the same rule as
// GetBooking, writing the error response itself on failure.
func (h *Handlers) authorizeBookingAccess(w http.ResponseWriter, r *http.Request, id int64) bool {
	booking, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return false
	}
	if booking == nil || !h.canAccessBooking(r, &booking.Booking) {
		response.NotFound(w, "Booking not found")
		return false
	}
	return true
}

// canAccessBooking accepts a matching manage token, the owning user's
// bearer token, or any staff bearer token.
func (h *Handlers) canAccessBooking(r *http.Request, booking *domain.Booking) bool {
	if token := r.URL.Query().Get("manage_token"); token != "" && token == booking.ManageToken {
		return true
	}

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	claims, err := auth.Parse(strings.TrimPrefix(authHeader, "Bearer "), h.cfg.Auth.JWTSecret)
	if err != nil {
		return false
	}
	return claims.Role == "admin" || claims.Sub == booking.UserID
}
