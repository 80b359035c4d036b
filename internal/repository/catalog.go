package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// CatalogRepo is the read side of the catalog as the reservation engine
// sees it.  It delegates to the per-entity repositories.
type CatalogRepo struct {
	Halls     *HallRepo
	Seats     *SeatRepo
	SeatTypes *SeatTypeRepo
	Movies    *MovieRepo
	Shows     *ShowRepo
}

// NewCatalogRepo builds every catalog repository over one DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{
		Halls:     NewHallRepo(db),
		Seats:     NewSeatRepo(db),
		SeatTypes: NewSeatTypeRepo(db),
		Movies:    NewMovieRepo(db),
		Shows:     NewShowRepo(db),
	}
}

func (c *CatalogRepo) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
	return c.Shows.GetByID(ctx, showID)
}

func (c *CatalogRepo) GetHall(ctx context.Context, hallID uint64) (*model.Hall, error) {
	return c.Halls.GetByID(ctx, hallID)
}

func (c *CatalogRepo) GetMovie(ctx context.Context, movieID uint64) (*model.Movie, error) {
	return c.Movies.GetByID(ctx, movieID)
}

func (c *CatalogRepo) GetHallSeats(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	return c.Seats.GetByHall(ctx, hallID)
}

func (c *CatalogRepo) GetSeatTypes(ctx context.Context, ids []uint64) (map[uint64]model.SeatType, error) {
	return c.SeatTypes.GetByIDs(ctx, ids)
}

func (c *CatalogRepo) ListShowsFrom(ctx context.Context, from time.Time) ([]model.Showing, error) {
	return c.Shows.ListFrom(ctx, from)
}
