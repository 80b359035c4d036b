package model

// Seat describes a physical seat in a hall.  Seats are ordered by
// Position within their hall; Label is what gets printed on a ticket.
//
// Fields:
//  ID         – primary key identifier.
//  HallID     – hall to which this seat belongs.
//  Label      – display name of the seat (e.g. "A1").
//  SeatTypeID – category used for the price premium.
//  Position   – ordering of the seat within the hall layout.
type Seat struct {
    ID         uint64 // seats.id
    HallID     uint64 // seats.hall_id
    Label      string // seats.label
    SeatTypeID uint64 // seats.seat_type_id
    Position   uint32 // seats.position
}

// SeatOffer is one row of a show's availability: a free seat together
// with its category and the price it would be charged at.
type SeatOffer struct {
    SeatID        uint64 `json:"seat_id"`
    SeatLabel     string `json:"seat_label"`
    SeatTypeTitle string `json:"seat_type_title"`
    PriceCents    int64  `json:"price_cents"`
}
