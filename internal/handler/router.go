package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every route. metricsHandler may be nil.
func NewRouter(h *Handler, verifier TokenVerifier, log *slog.Logger, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Trace)
	r.Use(Logger(log))
	r.Use(CORS)

	r.Get("/", Banner)
	r.Get("/health", HealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	requireAuth := RequireAuth(verifier)

	r.Route("/classes", func(r chi.Router) {
		r.Get("/", h.ListClasses)
		r.Get("/{id}", h.GetClass)
		r.Put("/{id}", h.UpdateClass)
		r.With(requireAuth).Delete("/{id}", h.DeleteClass)
	})
	r.With(requireAuth).Post("/class", h.CreateClass)

	r.With(requireAuth).Get("/users", h.ListUsers)
	r.With(requireAuth).Delete("/users/{id}", h.DeleteUser)
	r.Put("/makeinstructor/{id}", h.ChangeRole)
	r.Post("/jwtANDusers", h.Login)

	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", h.ListBookings)
		r.Post("/", h.CreateBooking)
		r.Get("/{id}", h.GetBooking)
		r.Delete("/{id}", h.DeleteBooking)
	})

	r.Post("/create-payment-intent", h.CreatePaymentIntent)
	r.Post("/payments", h.FinalizePayment)

	return r
}
