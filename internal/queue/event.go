// Package queue moves booking confirmations over RabbitMQ: a publisher
// on the commit path and a consumer that keeps the audit log.
package queue

import (
    "time"

    "github.com/iliyamo/cinema-booking-engine/internal/model"
)

// BookingQueue is the durable queue carrying BookingConfirmedEvent.
const BookingQueue = "booking.confirmed"

// BookingConfirmedEvent is published once per committed booking.  It
// carries enough detail for downstream consumers to log or notify
// without querying the primary database.
type BookingConfirmedEvent struct {
    MessageID   string   `json:"message_id"`
    BookingID   uint64   `json:"booking_id"`
    ShowID      uint64   `json:"show_id"`
    HallID      uint64   `json:"hall_id"`
    HallName    string   `json:"hall_name"`
    MovieName   string   `json:"movie_name"`
    StartsAt    string   `json:"starts_at"`
    EndsAt      string   `json:"ends_at"`
    SeatIDs     []uint64 `json:"seat_ids"`
    SeatLabels  []string `json:"seats"`
    TotalCents  int64    `json:"total_cents"`
    ConfirmedAt string   `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the event for a committed booking.
// Times are RFC3339 in UTC.
func NewBookingConfirmedEvent(msgID string, b *model.Booking, show *model.Show, hall *model.Hall, movie *model.Movie) BookingConfirmedEvent {
    labels := make([]string, 0, len(b.Seats))
    for _, s := range b.Seats {
        labels = append(labels, s.Label)
    }
    return BookingConfirmedEvent{
        MessageID:   msgID,
        BookingID:   b.ID,
        ShowID:      show.ID,
        HallID:      hall.ID,
        HallName:    hall.Name,
        MovieName:   movie.Name,
        StartsAt:    show.StartsAt.UTC().Format(time.RFC3339),
        EndsAt:      show.EndsAt(movie.DurationMin).UTC().Format(time.RFC3339),
        SeatIDs:     b.SeatIDs(),
        SeatLabels:  labels,
        TotalCents:  b.TotalCents,
        ConfirmedAt: b.CreatedAt.UTC().Format(time.RFC3339),
    }
}
