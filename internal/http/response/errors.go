package response

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the structured JSON error body every endpoint returns.
type ErrorResponse struct {
	Error      string  `json:"error"`
	Code       string  `json:"code,omitempty"`
	Details    string  `json:"details,omitempty"`
	MissingIDs []int64 `json:"missing_slot_ids,omitempty"`
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	writeBody(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteErrorWithDetails writes a structured JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, message, code, details string) {
	writeBody(w, statusCode, ErrorResponse{Error: message, Code: code, Details: details})
}

// WriteConflict reports a reservation conflict along with the slot ids the
// client should reselect.
func WriteConflict(w http.ResponseWriter, message string, missingIDs []int64) {
	writeBody(w, http.StatusConflict, ErrorResponse{
		Error:      message,
		Code:       CodeSlotsUnavailable,
		MissingIDs: missingIDs,
	})
}

func writeBody(w http.ResponseWriter, statusCode int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode error response: %v", err)
	}
}

// Common error codes
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeSlotsUnavailable = "SLOTS_UNAVAILABLE"
	CodeNotConsecutive   = "SLOTS_NOT_CONSECUTIVE"
	CodeUpstreamError    = "UPSTREAM_ERROR"
)

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message, CodeConflict)
}

func BadGateway(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, message, CodeUpstreamError)
}
