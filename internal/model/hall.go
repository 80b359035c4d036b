package model

// Hall represents the single screening room a show runs in.  A hall
// owns a fixed seat layout which is created once by administration and
// never reconfigured afterwards.
//
// Fields:
//  ID   – primary key identifier.
//  Name – display name of the hall (e.g. "A").
type Hall struct {
    ID   uint64 // halls.id
    Name string // halls.name
}

// SeatType is a seating category shared by many seats.  The premium
// is a whole percentage applied on top of a show's base price, so a
// VIP type with PremiumPercent 50 costs one and a half times the base.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – category name (e.g. "regular", "vip").
//  PremiumPercent – surcharge in percent, never negative.
type SeatType struct {
    ID             uint64 // seat_types.id
    Title          string // seat_types.title
    PremiumPercent int    // seat_types.premium_percent
}

// Movie is a film that can be scheduled in shows.
type Movie struct {
    ID          uint64 // movies.id
    Name        string // movies.name
    DurationMin int    // movies.duration_min, always > 0
}
