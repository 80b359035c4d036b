package model

import "time"

// BookingStatus is the lifecycle state of a booking request.  A request
// starts as Requested and ends in exactly one of the terminal states;
// only Confirmed bookings are ever persisted.
type BookingStatus string

const (
    BookingRequested BookingStatus = "REQUESTED"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingRejected  BookingStatus = "REJECTED"
)

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
    return s == BookingConfirmed || s == BookingRejected
}

// Booking records a confirmed reservation of one or more seats for a
// single show.  It is immutable once committed.
//
// Fields:
//  ID         – primary key identifier.
//  ShowID     – show being booked.
//  Status     – always CONFIRMED for stored rows.
//  TotalCents – sum of the seat prices.
//  CreatedAt  – commit timestamp.
//  Seats      – booked seats with their snapshotted prices.
type Booking struct {
    ID         uint64        // bookings.id
    ShowID     uint64        // bookings.show_id
    Status     BookingStatus // bookings.status
    TotalCents int64         // bookings.total_cents
    CreatedAt  time.Time     // bookings.created_at
    Seats      []BookedSeat
}

// SeatIDs returns the booked seat identifiers in booking order.
func (b *Booking) SeatIDs() []uint64 {
    ids := make([]uint64, 0, len(b.Seats))
    for _, s := range b.Seats {
        ids = append(ids, s.SeatID)
    }
    return ids
}

// BookedSeat links a booking to one seat of the show.  The price is
// the amount charged at booking time and is never recomputed.  ShowID
// is repeated here so storage can enforce one booking per seat and show.
type BookedSeat struct {
    ID         uint64 // booked_seats.id
    BookingID  uint64 // booked_seats.booking_id
    ShowID     uint64 // booked_seats.show_id
    SeatID     uint64 // booked_seats.seat_id
    PriceCents int64  // booked_seats.price_cents
    Label      string // seats.label, display only
}

// Ticket is the customer-facing view of a booking: where and when the
// show runs and where each seat is.
type Ticket struct {
    Booking   Booking
    MovieName string
    HallName  string
    StartsAt  time.Time
    EndsAt    time.Time
    Seats     []TicketSeat
}

// TicketSeat is one seat line printed on a ticket.
type TicketSeat struct {
    SeatID        uint64
    Label         string
    SeatTypeTitle string
    PriceCents    int64
}
