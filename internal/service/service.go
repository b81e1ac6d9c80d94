// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the store backends.
package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/Shivanand-hulikatti/rhythmax-server/internal/model"
)

// ErrInvalidInput marks a request the service refuses before touching a store.
var ErrInvalidInput = errors.New("invalid input")

var tracer = otel.Tracer("github.com/Shivanand-hulikatti/rhythmax-server/internal/service")

// ClassStore is the classes collection as the services use it.
type ClassStore interface {
	Create(ctx context.Context, c *model.ClassListing) (string, error)
	List(ctx context.Context, f model.ClassFilter) ([]model.ClassListing, error)
	GetByID(ctx context.Context, id string) (*model.ClassListing, error)
	Update(ctx context.Context, id string, u model.ClassUpdate) (model.UpdateResult, error)
	Delete(ctx context.Context, id string) (model.DeleteResult, error)
}

// UserStore is the users collection.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.UserAccount, error)
	Create(ctx context.Context, u *model.UserAccount) (string, error)
	List(ctx context.Context, f model.UserFilter) ([]model.UserAccount, error)
	SetRole(ctx context.Context, id, role string) (model.UpdateResult, error)
	Delete(ctx context.Context, id string) (model.DeleteResult, error)
}

// BookingStore is the bookings collection. Reserve and Delete keep the
// class enrolled counter in step with the bookings.
type BookingStore interface {
	Reserve(ctx context.Context, b *model.Booking) (string, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	Exists(ctx context.Context, email, classID string) (bool, error)
	MarkPaid(ctx context.Context, id, transactionID string) (model.UpdateResult, error)
	Delete(ctx context.Context, id string) (model.DeleteResult, error)
}

// EventPublisher emits booking events.
type EventPublisher interface {
	Publish(ctx context.Context, key string, data any) error
}

// TokenIssuer mints session credentials.
type TokenIssuer interface {
	Issue(email string) (string, error)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
