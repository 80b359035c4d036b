package ports

import (
	"context"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// BookingNotifier is told about every committed booking.  Calls happen
// after commit and their failures never affect the booking.
type BookingNotifier interface {
	NotifyBookingConfirmed(ctx context.Context, b *model.Booking, show *model.Show) error
}

// AvailabilityCache stores display snapshots of a show's free seats.
// Snapshots are versioned per show: Get reports the version it looked
// at and Set must be given that same version, so a snapshot computed
// before an Invalidate can never be served after it.
type AvailabilityCache interface {
	Get(ctx context.Context, showID uint64) (offers []model.SeatOffer, version int64, hit bool, err error)
	Set(ctx context.Context, showID uint64, version int64, offers []model.SeatOffer) error
	Invalidate(ctx context.Context, showID uint64) error
}

// SeatBroadcaster pushes seat state changes to live listeners.
type SeatBroadcaster interface {
	SeatsBooked(ctx context.Context, showID uint64, seatIDs []uint64) error
}
