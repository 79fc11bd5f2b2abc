package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/teebox/teebox-bookings/internal/domain"
	"github.com/teebox/teebox-bookings/internal/http/response"
	"github.com/teebox/teebox-bookings/internal/payments"
	"github.com/teebox/teebox-bookings/internal/repository"
	"github.com/teebox/teebox-bookings/internal/service"
	"github.com/teebox/teebox-bookings/pkg/auth"
	"github.com/teebox/teebox-bookings/pkg/config"
	"github.com/teebox/teebox-bookings/pkg/logger"
	"github.com/teebox/teebox-bookings/pkg/middleware"
)

type claimsKey struct{}

type Handlers struct {
	bookings     service.BookingService
	availability service.AvailabilityService
	membership   service.MembershipService
	auth         service.AuthService
	payments     payments.Provider
	dedup        *repository.EventDedup
	cfg          *config.Config
}

func New(
	bookings service.BookingService,
	availability service.AvailabilityService,
	membership service.MembershipService,
	authService service.AuthService,
	provider payments.Provider,
	dedup *repository.EventDedup,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		bookings:     bookings,
		availability: availability,
		membership:   membership,
		auth:         authService,
		payments:     provider,
		dedup:        dedup,
		cfg:          cfg,
	}
}

// Routes assembles the full API surface.
func (h *Handlers) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.ServiceName("bookings-api"))
	r.Use(middleware.Logging)
	r.Use(middleware.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/webhooks/stripe", h.StripeWebhook)

		r.Get("/bays", h.ListBays)
		r.Get("/slots", h.ListSlots)
		r.Post("/payments/intent", h.CreatePaymentIntent)

		r.Get("/bookings/{id}", h.GetBooking)
		r.Get("/bookings/{id}/extend-availability", h.ExtendAvailability)
		r.Post("/bookings/{id}/extend", h.ExtendBooking)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT(""))
			r.Get("/me/usage", h.MyUsage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))

			r.Get("/bookings", h.AdminListBookings)
			r.Post("/bookings", h.AdminCreateBooking)
			r.Get("/bookings/{id}", h.AdminGetBooking)
			r.Put("/bookings/{id}/status", h.AdminUpdateBookingStatus)
			r.Delete("/bookings/{id}", h.AdminDeleteBooking)
			r.Post("/bookings/{id}/extend", h.AdminExtendBooking)

			r.Post("/slots/block", h.AdminBlockSlots)
			r.Post("/slots/unblock", h.AdminUnblockSlots)
			r.Post("/slots", h.AdminCreateSlot)
			r.Put("/slots/{id}", h.AdminUpdateSlot)
			r.Delete("/slots/{id}", h.AdminDeleteSlot)

			r.Get("/users/{id}/usage", h.AdminUserUsage)
		})
	})

	return r
}

// RequireJWT authenticates the bearer token and optionally enforces a role.
// Admins pass every role gate.
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				response.Unauthorized(w, "Missing or invalid authorization header")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.Parse(token, h.cfg.Auth.JWTSecret)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != "admin" {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Sub)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeServiceError maps engine errors onto HTTP statuses: validation
// sentinels to 400, not-found sentinels to 404, scheduling conflicts to 409,
// everything else to 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var unavailable *domain.SlotsUnavailableError
	var short *domain.NotEnoughSlotsError
	var gapped *domain.NotConsecutiveError

	switch {
	case errors.As(err, &unavailable):
		response.WriteConflict(w, "Some requested slots are no longer available", unavailable.MissingIDs)
	case errors.As(err, &short):
		response.WriteError(w, http.StatusConflict, short.Error(), response.CodeSlotsUnavailable)
	case errors.As(err, &gapped):
		response.WriteError(w, http.StatusConflict, gapped.Error(), response.CodeNotConsecutive)
	case errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrSlotNotFound),
		errors.Is(err, domain.ErrBayNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrMissingIdentity),
		errors.Is(err, domain.ErrMissingDate),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrNoSlotIDs),
		errors.Is(err, domain.ErrNoSlots),
		errors.Is(err, domain.ErrInvalidExtension):
		response.BadRequest(w, err.Error())
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Internal server error")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// parseTimeParam accepts RFC 3339 timestamps and bare dates.
func parseTimeParam(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func parseBayID(r *http.Request) (*int64, error) {
	v := r.URL.Query().Get("bay_id")
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
