package model

import (
    "errors"
    "fmt"
)

// Not-found errors.
var (
    ErrShowNotFound    = errors.New("show not found")
    ErrBookingNotFound = errors.New("booking not found")
)

// Validation errors are raised before any ledger work starts.
var (
    ErrEmptySeatRequest     = errors.New("seat_ids is required")
    ErrDuplicateSeatRequest = errors.New("duplicate seat in request")
    ErrSeatNotInHall        = errors.New("seat does not belong to the show's hall")
)

// Conflict and ledger errors.
var (
    // ErrSeatUnavailable means at least one requested seat is already booked.
    ErrSeatUnavailable = errors.New("seat unavailable")
    // ErrSeatAlreadyBooked is returned by a ledger when an insert hits
    // the (show, seat) uniqueness constraint.
    ErrSeatAlreadyBooked = errors.New("seat already booked for show")
    // ErrLedgerUnavailable marks ledger failures worth retrying:
    // deadlocks, lock wait timeouts, dropped connections.
    ErrLedgerUnavailable = errors.New("ledger temporarily unavailable")
    // ErrRetryable is surfaced to callers once internal retries are spent.
    ErrRetryable = errors.New("booking could not be completed, retry later")
)

// DuplicateSeatError lists the seat ids that appeared more than once.
type DuplicateSeatError struct {
    SeatIDs []uint64
}

func (e *DuplicateSeatError) Error() string {
    return fmt.Sprintf("%s: %v", ErrDuplicateSeatRequest, e.SeatIDs)
}

func (e *DuplicateSeatError) Unwrap() error { return ErrDuplicateSeatRequest }

// SeatNotInHallError lists requested seats that are not part of the
// show's hall.
type SeatNotInHallError struct {
    SeatIDs []uint64
}

func (e *SeatNotInHallError) Error() string {
    return fmt.Sprintf("%s: %v", ErrSeatNotInHall, e.SeatIDs)
}

func (e *SeatNotInHallError) Unwrap() error { return ErrSeatNotInHall }

// SeatUnavailableError names exactly the requested seats that are
// already booked so the caller can adjust the request.
type SeatUnavailableError struct {
    ShowID  uint64
    SeatIDs []uint64
}

func (e *SeatUnavailableError) Error() string {
    return fmt.Sprintf("%s: show %d seats %v", ErrSeatUnavailable, e.ShowID, e.SeatIDs)
}

func (e *SeatUnavailableError) Unwrap() error { return ErrSeatUnavailable }

// RetryableError wraps the last transient failure after the engine
// gave up retrying.
type RetryableError struct {
    Attempts int
    Err      error
}

func (e *RetryableError) Error() string {
    return fmt.Sprintf("%s after %d attempts: %v", ErrRetryable, e.Attempts, e.Err)
}

// Unwrap exposes both the retryable marker and the underlying cause.
func (e *RetryableError) Unwrap() []error { return []error{ErrRetryable, e.Err} }
