// Package repository holds what every store backend shares: the sentinel
// errors services and handlers switch on. The backends themselves live in
// the mongodb, postgres and memory subpackages.
package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidID is returned when an identifier is not in the backend's id format.
var ErrInvalidID = errors.New("invalid id")

// ErrClassFull is returned when a class has no remaining seats.
var ErrClassFull = errors.New("class is fully booked")

// ErrDuplicate is returned when an insert collides with a unique key.
var ErrDuplicate = errors.New("duplicate key")
