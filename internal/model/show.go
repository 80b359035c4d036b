package model

import "time"

// Show represents a scheduled screening of a movie in a hall.  Shows
// are never mutated after creation and two shows of the same hall
// never overlap.
//
// Fields:
//  ID             – primary key identifier.
//  HallID         – hall where the show takes place.
//  MovieID        – movie being screened.
//  StartsAt       – start of the screening (UTC).
//  BasePriceCents – per-seat price before the seat type premium.
//  CreatedAt      – creation timestamp.
type Show struct {
    ID             uint64    // shows.id
    HallID         uint64    // shows.hall_id
    MovieID        uint64    // shows.movie_id
    StartsAt       time.Time // shows.starts_at
    BasePriceCents int64     // shows.base_price_cents
    CreatedAt      time.Time // shows.created_at
}

// EndsAt returns the end of the screening for the given movie length.
func (s Show) EndsAt(durationMin int) time.Time {
    return s.StartsAt.Add(time.Duration(durationMin) * time.Minute)
}

// Showing is a show as listed to customers: catalog details joined in
// and seat counts derived from the ledger.
type Showing struct {
    Show           Show
    MovieName      string
    DurationMin    int
    HallName       string
    TotalSeats     int
    AvailableSeats int
}

// SoldOut reports whether no seat is left for the show.
func (s Showing) SoldOut() bool { return s.AvailableSeats <= 0 }
