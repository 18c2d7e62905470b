package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found (or was already deleted).
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input). Nothing was written.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrBookingConflict indicates the candidate stay intersects an active booking
// of the same apartment. Retryable with different dates.
type ErrBookingConflict struct {
	ApartmentID    int64
	Start          Date
	End            Date
	ConflictingIDs []int64
}

func (e *ErrBookingConflict) Error() string {
	if len(e.ConflictingIDs) == 0 {
		return fmt.Sprintf("apartment %d is already booked between %s and %s", e.ApartmentID, e.Start, e.End)
	}
	ids := make([]string, len(e.ConflictingIDs))
	for i, id := range e.ConflictingIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("apartment %d is already booked between %s and %s (bookings: %s)",
		e.ApartmentID, e.Start, e.End, strings.Join(ids, ", "))
}

// ErrStorage wraps an unexpected persistence failure. Surfaced as an opaque error.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage error [%s]: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnavailable indicates an optional feature is not configured.
type ErrUnavailable struct {
	Feature string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s is not available", e.Feature)
}
