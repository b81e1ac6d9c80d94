// Package metrics holds the Prometheus collectors the server exports.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// HTTPRequests counts served requests by method, route pattern and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes request latency per route pattern.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BookingsCreated counts bookings that took a seat.
	BookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Number of bookings recorded",
		},
	)

	// BookingsRejected counts refused bookings; reason is full, no_class or invalid_id.
	BookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_rejected_total",
			Help: "Number of booking attempts refused, by reason",
		},
		[]string{"reason"},
	)

	// BookingsDeleted counts bookings removed along with their seat.
	BookingsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_deleted_total",
			Help: "Number of bookings removed",
		},
	)

	// PaymentsFinalized counts bookings marked paid, upserts included.
	PaymentsFinalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_finalized_total",
			Help: "Number of bookings marked paid",
		},
	)

	// EventPublishFailures counts booking events the broker did not take.
	EventPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Number of booking events that could not be published",
		},
	)

	// DeadLettered counts payment callbacks moved to the dead-letter queue.
	DeadLettered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_events_dead_lettered_total",
			Help: "Number of payment callbacks transferred to the dead-letter queue",
		},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequests,
		HTTPDuration,
		BookingsCreated,
		BookingsRejected,
		BookingsDeleted,
		PaymentsFinalized,
		EventPublishFailures,
		DeadLettered,
	)
}
