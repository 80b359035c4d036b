package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

var _ ports.Catalog = (*CatalogRepo)(nil)

func TestCatalogRepo_GetHallSeats(t *testing.T) {
	db, mock := newMockDB(t)
	catalog := NewCatalogRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY position, id`)).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hall_id", "label", "seat_type_id", "position"}).
			AddRow(1, 1, "A1", 1, 1).
			AddRow(2, 1, "A2", 2, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM seats`)).WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hall_id", "label", "seat_type_id", "position"}))

	seats, err := catalog.GetHallSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []model.Seat{
		{ID: 1, HallID: 1, Label: "A1", SeatTypeID: 1, Position: 1},
		{ID: 2, HallID: 1, Label: "A2", SeatTypeID: 2, Position: 2},
	}, seats)

	none, err := catalog.GetHallSeats(context.Background(), 9)
	require.NoError(t, err)
	assert.Empty(t, none)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_GetSeatTypes(t *testing.T) {
	db, mock := newMockDB(t)
	catalog := NewCatalogRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, premium_percent FROM seat_types WHERE id IN (?, ?)`)).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "premium_percent"}).
			AddRow(1, "regular", 0).
			AddRow(2, "vip", 50))

	types, err := catalog.GetSeatTypes(context.Background(), []uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]model.SeatType{
		1: {ID: 1, Title: "regular", PremiumPercent: 0},
		2: {ID: 2, Title: "vip", PremiumPercent: 50},
	}, types)

	empty, err := catalog.GetSeatTypes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepo_GetHallAndMovie(t *testing.T) {
	db, mock := newMockDB(t)
	catalog := NewCatalogRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM halls WHERE id = ?`)).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "A"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM halls WHERE id = ?`)).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery(qMovie).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "duration_min"}).AddRow(7, "Heat", 170))

	hall, err := catalog.GetHall(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "A", hall.Name)

	_, err = catalog.GetHall(context.Background(), 2)
	assert.ErrorIs(t, err, ErrHallNotFound)

	movie, err := catalog.GetMovie(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 170, movie.DurationMin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_CreateBulk(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSeatRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO seats (hall_id, seat_type_id, label, position) VALUES (?, ?, ?, ?),(?, ?, ?, ?)`)).
		WithArgs(1, 1, "A1", 1, 1, 2, "A2", 2).
		WillReturnResult(sqlmock.NewResult(1, 2))

	require.NoError(t, repo.CreateBulk(context.Background(), []model.Seat{
		{HallID: 1, SeatTypeID: 1, Label: "A1", Position: 1},
		{HallID: 1, SeatTypeID: 2, Label: "A2", Position: 2},
	}))
	require.NoError(t, repo.CreateBulk(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogCreates(t *testing.T) {
	db, mock := newMockDB(t)
	catalog := NewCatalogRepo(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO halls (name) VALUES (?)`)).WithArgs("A").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO seat_types (title, premium_percent) VALUES (?, ?)`)).WithArgs("vip", 50).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO movies (name, duration_min) VALUES (?, ?)`)).WithArgs("Heat", 170).
		WillReturnResult(sqlmock.NewResult(5, 1))

	hall := &model.Hall{Name: "A"}
	require.NoError(t, catalog.Halls.Create(ctx, hall))
	assert.Equal(t, uint64(3), hall.ID)

	st := &model.SeatType{Title: "vip", PremiumPercent: 50}
	require.NoError(t, catalog.SeatTypes.Create(ctx, st))
	assert.Equal(t, uint64(4), st.ID)

	movie := &model.Movie{Name: "Heat", DurationMin: 170}
	require.NoError(t, catalog.Movies.Create(ctx, movie))
	assert.Equal(t, uint64(5), movie.ID)

	assert.Error(t, catalog.SeatTypes.Create(ctx, &model.SeatType{Title: "bad", PremiumPercent: -1}))
	assert.Error(t, catalog.Movies.Create(ctx, &model.Movie{Name: "short"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
