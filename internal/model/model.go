// Package model defines the core domain types for the class booking platform.
package model

import "time"

// Payment states a Booking moves through. The transition is one-way.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "Paid"
)

// User roles.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// ClassListing is a scheduled offering with a limited number of seats.
type ClassListing struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Image           string    `json:"image"`
	Seats           int       `json:"seats"`
	Price           float64   `json:"price"`
	InstructorName  string    `json:"instructorName"`
	InstructorEmail string    `json:"instructorEmail"`
	Enrolled        int       `json:"enrolled"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Remaining returns the number of available seats.
func (c *ClassListing) Remaining() int {
	return c.Seats - c.Enrolled
}

// IsFull returns true when no seats remain.
func (c *ClassListing) IsFull() bool {
	return c.Enrolled >= c.Seats
}

// ClassWithStatus is a class enriched with the caller's booking status.
// IsBooked is only present when the caller identified themselves.
type ClassWithStatus struct {
	*ClassListing
	IsBooked *bool `json:"isBooked,omitempty"`
}

// ClassFilter narrows a class listing.
type ClassFilter struct {
	InstructorEmail string
	SortByEnrolled  bool
	Limit           int
}

// ClassUpdate carries the only fields a class update may touch.
// Nil fields are left unchanged.
type ClassUpdate struct {
	Name  *string  `json:"name"`
	Image *string  `json:"image"`
	Seats *int     `json:"seats"`
	Price *float64 `json:"price"`
}

// Empty reports whether the update would change nothing.
func (u ClassUpdate) Empty() bool {
	return u.Name == nil && u.Image == nil && u.Seats == nil && u.Price == nil
}

// UserAccount is a registered user, keyed by email.
type UserAccount struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Photo     string    `json:"photo"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserFilter narrows a user listing.
type UserFilter struct {
	Role  string
	Limit int
}

// Booking is a user's reservation against a ClassListing.
type Booking struct {
	ID            string    `json:"_id"`
	ClassID       string    `json:"classId"`
	UserEmail     string    `json:"email"`
	ClassName     string    `json:"className"`
	Price         float64   `json:"price"`
	PaymentStatus string    `json:"paymentStatus"`
	TransactionID *string   `json:"transactionId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// BookingFilter narrows a booking listing. Set fields combine conjunctively.
type BookingFilter struct {
	PaidOnly  bool
	UserEmail string
}

// InsertResult mirrors the acknowledgement a document store returns for an insert.
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// UpdateResult mirrors the acknowledgement a document store returns for an update.
type UpdateResult struct {
	Acknowledged  bool   `json:"acknowledged"`
	MatchedCount  int64  `json:"matchedCount"`
	ModifiedCount int64  `json:"modifiedCount"`
	UpsertedCount int64  `json:"upsertedCount"`
	UpsertedID    string `json:"upsertedId,omitempty"`
}

// DeleteResult mirrors the acknowledgement a document store returns for a delete.
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// CreateClassRequest is the payload for creating a new class.
type CreateClassRequest struct {
	Name            string  `json:"name"`
	Image           string  `json:"image"`
	Seats           int     `json:"seats"`
	Price           float64 `json:"price"`
	InstructorName  string  `json:"instructorName"`
	InstructorEmail string  `json:"instructorEmail"`
}

// CreateBookingRequest is the payload for booking a class.
type CreateBookingRequest struct {
	ClassID   string  `json:"classId"`
	UserEmail string  `json:"email"`
	ClassName string  `json:"className"`
	Price     float64 `json:"price"`
}

// LoginRequest is the payload for login-or-register. Insert asks for the
// account to be created when it does not exist yet; it is never stored.
type LoginRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Photo  string `json:"photo"`
	Role   string `json:"role"`
	Insert bool   `json:"insert"`
}

// LoginResponse carries the session credential and the account's role.
type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// RoleChangeRequest is the payload for changing a user's role.
type RoleChangeRequest struct {
	Role string `json:"role"`
}

// PaymentIntentRequest asks for a payment intent covering a price.
type PaymentIntentRequest struct {
	Price float64 `json:"price"`
}

// PaymentIntent is what the client needs to complete a payment.
type PaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// FinalizePaymentRequest is the payment callback payload.
type FinalizePaymentRequest struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the envelope used by the auth middleware.
type MessageResponse struct {
	Message string `json:"message"`
}
