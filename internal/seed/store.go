package seed

import (
	"context"
	"errors"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
)

// RepoStore writes the fixture through the MySQL repositories.
type RepoStore struct {
	Catalog *repository.CatalogRepo
}

var _ Store = RepoStore{}

func (s RepoStore) CreateSeatType(ctx context.Context, st *model.SeatType) error {
	return s.Catalog.SeatTypes.Create(ctx, st)
}

func (s RepoStore) HallExists(ctx context.Context, name string) (bool, error) {
	_, err := s.Catalog.Halls.GetByName(ctx, name)
	if errors.Is(err, repository.ErrHallNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s RepoStore) CreateHall(ctx context.Context, h *model.Hall) error {
	return s.Catalog.Halls.Create(ctx, h)
}

func (s RepoStore) CreateSeats(ctx context.Context, seats []model.Seat) error {
	return s.Catalog.Seats.CreateBulk(ctx, seats)
}

func (s RepoStore) CreateMovie(ctx context.Context, m *model.Movie) error {
	return s.Catalog.Movies.Create(ctx, m)
}

func (s RepoStore) CreateShow(ctx context.Context, sh *model.Show) error {
	return s.Catalog.Shows.Create(ctx, sh)
}
