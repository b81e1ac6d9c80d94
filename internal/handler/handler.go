// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/service"
)

// Handler holds all HTTP handlers for the booking API.
type Handler struct {
	catalog  *service.CatalogService
	identity *service.IdentityService
	bookings *service.BookingService
	payments *service.PaymentService
	log      *slog.Logger
}

// NewHandler builds the handler set over the four services.
func NewHandler(
	catalog *service.CatalogService,
	identity *service.IdentityService,
	bookings *service.BookingService,
	payments *service.PaymentService,
	log *slog.Logger,
) *Handler {
	return &Handler{
		catalog:  catalog,
		identity: identity,
		bookings: bookings,
		payments: payments,
		log:      log,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// decodeJSON ignores fields it does not know; whitelisted updates rely on it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError maps a service or store error to a status code.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidID), errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "class not found")
	case errors.Is(err, repository.ErrClassFull):
		writeError(w, http.StatusConflict, "class is fully booked")
	case errors.Is(err, service.ErrPaymentsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func queryFlag(r *http.Request, key string) bool {
	v := strings.ToLower(r.URL.Query().Get(key))
	return v != "" && v != "false" && v != "0"
}

// ─── Classes ──────────────────────────────────────────────────────────────────

// GetClass handles GET /classes/{id}
// With ?email= the class carries isBooked for that user.
func (h *Handler) GetClass(w http.ResponseWriter, r *http.Request) {
	c, err := h.bookings.ResolveClassWithBookingStatus(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("email"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if c == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListClasses handles GET /classes?email=&sort=&limit=
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	classes, err := h.catalog.List(r.Context(), model.ClassFilter{
		InstructorEmail: r.URL.Query().Get("email"),
		SortByEnrolled:  queryFlag(r, "sort"),
		Limit:           limit,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if classes == nil {
		classes = []model.ClassListing{}
	}
	writeJSON(w, http.StatusOK, classes)
}

// CreateClass handles POST /class
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req model.CreateClassRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.catalog.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateClass handles PUT /classes/{id}
// Only name, image, seats and price are applied.
func (h *Handler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	var u model.ClassUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.catalog.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteClass handles DELETE /classes/{id}
func (h *Handler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	res, err := h.catalog.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Users ────────────────────────────────────────────────────────────────────

// ListUsers handles GET /users?getInstructor=&limit=
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	users, err := h.identity.ListUsers(r.Context(), queryFlag(r, "getInstructor"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []model.UserAccount{}
	}
	writeJSON(w, http.StatusOK, users)
}

// ChangeRole handles PUT /makeinstructor/{id}
// An empty body promotes the user to instructor.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req model.RoleChangeRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.identity.ChangeRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteUser handles DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.identity.DeleteUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Login handles POST /jwtANDusers
// Unknown users get {} unless the body asks for registration.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	resp, err := h.identity.LoginOrRegister(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if resp == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// ListBookings handles GET /bookings?getPaid=&email=
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookings.ListBookings(r.Context(), model.BookingFilter{
		PaidOnly:  queryFlag(r, "getPaid"),
		UserEmail: r.URL.Query().Get("email"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// GetBooking handles GET /bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if b == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CreateBooking handles POST /bookings
// The seat is taken in the same step; a full class answers 409.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteBooking handles DELETE /bookings/{id}
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	res, err := h.bookings.DeleteBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Payments ─────────────────────────────────────────────────────────────────

// CreatePaymentIntent handles POST /create-payment-intent
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentIntentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	intent, err := h.payments.CreatePaymentIntent(r.Context(), req.Price)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// FinalizePayment handles POST /payments
func (h *Handler) FinalizePayment(w http.ResponseWriter, r *http.Request) {
	var req model.FinalizePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	res, err := h.bookings.FinalizePayment(r.Context(), req.OrderID, req.TransactionID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Banner handles GET /
func Banner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Rhythmax is running ..."))
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
