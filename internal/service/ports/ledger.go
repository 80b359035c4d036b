package ports

import (
	"context"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// Ledger is the durable store of committed bookings.  The reservation
// engine's transaction boundary lives here.
type Ledger interface {
	// WithAtomicUnit runs fn inside one unit of work.  Everything fn
	// writes is committed when it returns nil and discarded otherwise.
	WithAtomicUnit(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	// SeatsBookedForShow is an unserialized read for display purposes.
	SeatsBookedForShow(ctx context.Context, showID uint64) ([]uint64, error)
	// CountBookedByShow returns booked seat counts keyed by show id.
	CountBookedByShow(ctx context.Context, showIDs []uint64) (map[uint64]int, error)
	// GetBooking loads a booking with its seats or model.ErrBookingNotFound.
	GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)
}

// LedgerTx is the view of the ledger inside an atomic unit.
type LedgerTx interface {
	SeatsBookedForShow(ctx context.Context, showID uint64) ([]uint64, error)
	// InsertBooking stores the booking and its seats and fills in the
	// generated ids.  A (show, seat) pair that is already taken yields an
	// error wrapping model.ErrSeatAlreadyBooked.
	InsertBooking(ctx context.Context, b *model.Booking) error
}
