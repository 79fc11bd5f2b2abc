package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/http/response"
)

func (h *Handlers) AdminListBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	var status *domain.BookingStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st, ok := domain.ParseBookingStatus(v)
		if !ok {
			response.BadRequest(w, "Invalid status parameter")
			return
		}
		status = &st
	}

	bookings, err := h.bookings.List(r.Context(), limit, offset, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *Handlers) AdminGetBooking(w http.ResponseWriter, r *http.Request) {
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
	if detail == nil {
		response.NotFound(w, "Booking not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// AdminCreateBooking records a walk-in or phone reservation. No payment is
// involved; the booking lands as confirmed - local with its slots booked.
func (h *Handlers) AdminCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  int64   `json:"user_id"`
		SlotIDs []int64 `json:"slot_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.UserID == 0 {
		response.BadRequest(w, "user_id is required")
		return
	}

	detail, err := h.bookings.CreateAdmin(r.Context(), req.UserID, req.SlotIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// AdminUpdateBookingStatus is the manual correction: the status is written
// as-is, with no slot side effects.
func (h *Handlers) AdminUpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	status, ok := domain.ParseBookingStatus(req.Status)
	if !ok {
		response.BadRequest(w, "Invalid status value")
		return
	}

	if err := h.bookings.UpdateStatus(r.Context(), id, status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handlers) AdminDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	if err := h.bookings.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AdminExtendBooking(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid booking ID")
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

type blockRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	BayID *int64 `json:"bay_id,omitempty"`
}

func (h *Handlers) AdminBlockSlots(w http.ResponseWriter, r *http.Request) {
	h.flipSlotRange(w, r, h.availability.BlockSlots)
}

func (h *Handlers) AdminUnblockSlots(w http.ResponseWriter, r *http.Request) {
	h.flipSlotRange(w, r, h.availability.UnblockSlots)
}

func (h *Handlers) flipSlotRange(w http.ResponseWriter, r *http.Request, op func(context.Context, time.Time, time.Time, *int64) (int64, error)) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	from, err := parseTimeParam(req.From)
	if err != nil {
		response.BadRequest(w, "Invalid from timestamp")
		return
	}
	to, err := parseTimeParam(req.To)
	if err != nil {
		response.BadRequest(w, "Invalid to timestamp")
		return
	}

	affected, err := op(r.Context(), from, to, req.BayID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

func (h *Handlers) AdminCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BayID     int64  `json:"bay_id"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Status    string `json:"status,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	start, err := parseTimeParam(req.StartTime)
	if err != nil {
		response.BadRequest(w, "Invalid start_time")
		return
	}
	end, err := parseTimeParam(req.EndTime)
	if err != nil {
		response.BadRequest(w, "Invalid end_time")
		return
	}

	slot := &domain.Slot{BayID: req.BayID, StartTime: start, EndTime: end}
	if req.Status != "" {
		st, ok := domain.ParseSlotStatus(req.Status)
		if !ok {
			response.BadRequest(w, "Invalid slot status")
			return
		}
		slot.Status = st
	}

	created, err := h.availability.CreateSlot(r.Context(), slot)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) AdminUpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid slot ID")
		return
	}

	var req struct {
		BayID     int64  `json:"bay_id"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	start, err := parseTimeParam(req.StartTime)
	if err != nil {
		response.BadRequest(w, "Invalid start_time")
		return
	}
	end, err := parseTimeParam(req.EndTime)
	if err != nil {
		response.BadRequest(w, "Invalid end_time")
		return
	}
	status, ok := domain.ParseSlotStatus(req.Status)
	if !ok {
		response.BadRequest(w, "Invalid slot status")
		return
	}

	slot := &domain.Slot{ID: id, BayID: req.BayID, StartTime: start, EndTime: end, Status: status}
	if err := h.availability.UpdateSlot(r.Context(), slot); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

func (h *Handlers) AdminDeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid slot ID")
		return
	}

	if err := h.availability.DeleteSlot(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AdminUserUsage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	user, stats, err := h.membership.UsageStatsForUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	body := map[string]interface{}{"user_id": user.ID, "email": user.Email}
	if user.MembershipTier != nil {
		body["tier"] = *user.MembershipTier
	}
	if stats != nil {
		body["usage"] = stats
	}
	writeJSON(w, http.StatusOK, body)
}
