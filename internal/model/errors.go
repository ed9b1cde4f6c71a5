package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError means the caller sent malformed input; resubmitting with
// corrected input is always possible.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// SlotUnavailableError means the requested window had no resolvable capacity
// at write time. The caller should re-resolve and pick another instance.
type SlotUnavailableError struct {
	ConsultantID uuid.UUID
	Date         time.Time
	Window       TimeRange
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("no bookable capacity for consultant %s on %s between %s and %s",
		e.ConsultantID, e.Date.Format(DateOnly), e.Window.Start, e.Window.End)
}

// InvalidStateTransitionError signals an edge not present in the booking
// state machine. The booking is left unchanged.
type InvalidStateTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// NotFoundError covers both a missing row and a row outside the caller's
// organization scope; the two are indistinguishable on purpose.
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError means a concurrent mutation won the race, e.g. capacity was
// exhausted at commit time. The whole operation is safe to retry from a
// fresh resolve.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// PersistenceError wraps an underlying store failure. Not retried by the
// engine; surfaced to the caller as an opaque server error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
