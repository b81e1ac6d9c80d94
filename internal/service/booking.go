package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/events"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/metrics"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
	"github.com/Shivanand-hulikatti/rhythmax-server/internal/repository"
)

// BookingService records reservations against classes and tracks their
// payment state.
type BookingService struct {
	bookings  BookingStore
	classes   ClassStore
	publisher EventPublisher
	log       *slog.Logger
}

// NewBookingService builds the booking flow. classes is read for the
// isBooked view; publisher receives booking events.
func NewBookingService(bookings BookingStore, classes ClassStore, publisher EventPublisher, log *slog.Logger) *BookingService {
	return &BookingService{
		bookings:  bookings,
		classes:   classes,
		publisher: publisher,
		log:       log.With(slog.String("service", "booking")),
	}
}

// BookingEvent is the payload of every booking.* event.
type BookingEvent struct {
	BookingID     string  `json:"booking_id"`
	ClassID       string  `json:"class_id,omitempty"`
	Email         string  `json:"email,omitempty"`
	Price         float64 `json:"price,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
}

// CreateBooking takes a seat in the class and records the booking as one
// step. A full class yields repository.ErrClassFull and leaves the counter
// untouched.
func (s *BookingService) CreateBooking(ctx context.Context, req model.CreateBookingRequest) (model.InsertResult, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateBooking")
	defer span.End()

	req.ClassID = strings.TrimSpace(req.ClassID)
	req.UserEmail = normalizeEmail(req.UserEmail)
	span.SetAttributes(attribute.String("class.id", req.ClassID))

	if req.ClassID == "" {
		return model.InsertResult{}, fmt.Errorf("%w: classId is required", ErrInvalidInput)
	}
	if req.UserEmail == "" {
		return model.InsertResult{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if req.Price < 0 {
		return model.InsertResult{}, fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}

	b := &model.Booking{
		ClassID:   req.ClassID,
		UserEmail: req.UserEmail,
		ClassName: req.ClassName,
		Price:     req.Price,
	}
	id, err := s.bookings.Reserve(ctx, b)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrClassFull):
			metrics.BookingsRejected.WithLabelValues("full").Inc()
		case errors.Is(err, repository.ErrNotFound):
			metrics.BookingsRejected.WithLabelValues("no_class").Inc()
		case errors.Is(err, repository.ErrInvalidID):
			metrics.BookingsRejected.WithLabelValues("invalid_id").Inc()
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "reserve failed")
			return model.InsertResult{}, fmt.Errorf("create booking: %w", err)
		}
		return model.InsertResult{}, err
	}
	metrics.BookingsCreated.Inc()
	span.SetAttributes(attribute.String("booking.id", id))

	s.log.Info("booking created",
		slog.String("booking_id", id),
		slog.String("class_id", b.ClassID),
		slog.String("email", b.UserEmail),
	)
	s.publish(ctx, events.BookingCreated, BookingEvent{
		BookingID: id,
		ClassID:   b.ClassID,
		Email:     b.UserEmail,
		Price:     b.Price,
	})
	return model.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

// ListBookings returns the bookings matching every set filter field.
func (s *BookingService) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	f.UserEmail = normalizeEmail(f.UserEmail)
	bookings, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// GetBooking returns the booking or nil when there is none.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ResolveClassWithBookingStatus fetches a class and, when email is set,
// whether that user holds a booking for it. The two reads are independent.
func (s *BookingService) ResolveClassWithBookingStatus(ctx context.Context, classID, email string) (*model.ClassWithStatus, error) {
	ctx, span := tracer.Start(ctx, "BookingService.ResolveClassWithBookingStatus")
	defer span.End()

	c, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get class: %w", err)
	}

	out := &model.ClassWithStatus{ClassListing: c}
	email = normalizeEmail(email)
	if email == "" {
		return out, nil
	}
	booked, err := s.bookings.Exists(ctx, email, classID)
	if err != nil {
		return nil, fmt.Errorf("check booking: %w", err)
	}
	out.IsBooked = &booked
	return out, nil
}

// FinalizePayment marks the booking paid with the given transaction. The
// update is an upsert and does not check that orderID exists.
func (s *BookingService) FinalizePayment(ctx context.Context, orderID, transactionID string) (model.UpdateResult, error) {
	ctx, span := tracer.Start(ctx, "BookingService.FinalizePayment")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", orderID))

	if strings.TrimSpace(transactionID) == "" {
		return model.UpdateResult{}, fmt.Errorf("%w: transactionId is required", ErrInvalidInput)
	}
	res, err := s.bookings.MarkPaid(ctx, orderID, transactionID)
	if err != nil {
		if !errors.Is(err, repository.ErrInvalidID) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "mark paid failed")
		}
		return model.UpdateResult{}, fmt.Errorf("finalize payment: %w", err)
	}
	metrics.PaymentsFinalized.Inc()

	s.log.Info("payment finalized",
		slog.String("booking_id", orderID),
		slog.String("transaction_id", transactionID),
		slog.Int64("upserted", res.UpsertedCount),
	)
	s.publish(ctx, events.BookingPaid, BookingEvent{BookingID: orderID, TransactionID: transactionID})
	return res, nil
}

// DeleteBooking removes the booking and gives its seat back to the class.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) (model.DeleteResult, error) {
	res, err := s.bookings.Delete(ctx, id)
	if err != nil {
		return model.DeleteResult{}, fmt.Errorf("delete booking: %w", err)
	}
	if res.DeletedCount == 0 {
		return res, nil
	}
	metrics.BookingsDeleted.Inc()
	s.log.Info("booking deleted", slog.String("booking_id", id))
	s.publish(ctx, events.BookingDeleted, BookingEvent{BookingID: id})
	return res, nil
}

// publish never fails the request; the store write already happened.
func (s *BookingService) publish(ctx context.Context, key string, evt BookingEvent) {
	if err := s.publisher.Publish(ctx, key, evt); err != nil {
		metrics.EventPublishFailures.Inc()
		s.log.Warn("publish event",
			slog.String("event", key),
			slog.String("booking_id", evt.BookingID),
			slog.Any("error", err),
		)
	}
}
