package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// MovieRepo manages persistence for movies.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

// Create inserts a movie.  DurationMin must be positive since shows
// derive their end time from it.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	if m.DurationMin <= 0 {
		return errors.New("duration_min must be positive")
	}
	const q = `INSERT INTO movies (name, duration_min) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, m.Name, m.DurationMin)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// GetByID retrieves a movie or ErrMovieNotFound.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	return getMovie(ctx, r.db, id)
}

func getMovie(ctx context.Context, q queryer, id uint64) (*model.Movie, error) {
	const sel = `SELECT id, name, duration_min FROM movies WHERE id = ?`
	var m model.Movie
	if err := q.QueryRowContext(ctx, sel, id).Scan(&m.ID, &m.Name, &m.DurationMin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return &m, nil
}
