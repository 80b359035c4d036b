package ports

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// Catalog is the read-only view of halls, seats, seat types, movies and
// shows.  Implementations return model.ErrShowNotFound for unknown shows.
type Catalog interface {
	GetShow(ctx context.Context, showID uint64) (*model.Show, error)
	GetHall(ctx context.Context, hallID uint64) (*model.Hall, error)
	GetMovie(ctx context.Context, movieID uint64) (*model.Movie, error)
	// GetHallSeats returns the hall layout ordered by position.
	GetHallSeats(ctx context.Context, hallID uint64) ([]model.Seat, error)
	// GetSeatTypes resolves seat types by id; missing ids are absent from the map.
	GetSeatTypes(ctx context.Context, ids []uint64) (map[uint64]model.SeatType, error)
	// ListShowsFrom returns shows starting at or after from, with movie
	// and hall names and total seat counts filled in.
	ListShowsFrom(ctx context.Context, from time.Time) ([]model.Showing, error)
}
