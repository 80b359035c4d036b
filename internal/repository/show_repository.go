package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel checks
	"fmt"
	"time"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// ShowRepo manages persistence for shows.  Shows are immutable once
// created; the only lifecycle operations are Create and Delete.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

// Create schedules a show.  The end time is derived from the movie's
// duration and stored alongside the start so overlap checks stay a
// single range query.  The hall row is locked for the duration of the
// check so two concurrent creates cannot both pass it.  Returns
// ErrShowOverlap when the hall is busy, ErrHallNotFound or
// ErrMovieNotFound for unknown references.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) (err error) {
	if s.BasePriceCents <= 0 {
		return errors.New("base_price_cents must be positive")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var hallID uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM halls WHERE id = ? FOR UPDATE`, s.HallID).Scan(&hallID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrHallNotFound
		}
		return err
	}
	movie, err := getMovie(ctx, tx, s.MovieID)
	if err != nil {
		return err
	}

	start := s.StartsAt.UTC()
	end := s.EndsAt(movie.DurationMin).UTC()
	overlaps, err := findOverlapping(ctx, tx, s.HallID, start, end)
	if err != nil {
		return err
	}
	if len(overlaps) > 0 {
		return fmt.Errorf("%w: show %d", ErrShowOverlap, overlaps[0].ID)
	}

	const q = `INSERT INTO shows (hall_id, movie_id, starts_at, ends_at, base_price_cents) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.HallID, s.MovieID, start, end, s.BasePriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.StartsAt = start
	// read back DB defaults
	if err = tx.QueryRowContext(ctx, `SELECT created_at FROM shows WHERE id = ?`, s.ID).Scan(&s.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID retrieves a show by its ID.  It returns model.ErrShowNotFound
// if there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT id, hall_id, movie_id, starts_at, base_price_cents, created_at FROM shows WHERE id = ?`
	var s model.Show
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.HallID, &s.MovieID, &s.StartsAt, &s.BasePriceCents, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}

// findOverlapping finds all shows in the hall whose schedule overlaps
// [start, end).  A show overlaps when it starts before the proposed end
// and ends after the proposed start.
func findOverlapping(ctx context.Context, q queryer, hallID uint64, start, end time.Time) ([]model.Show, error) {
	const sel = `SELECT id, hall_id, movie_id, starts_at, base_price_cents, created_at
	             FROM shows
	             WHERE hall_id = ? AND NOT (ends_at <= ? OR starts_at >= ?)
	             ORDER BY starts_at`
	rows, err := q.QueryContext(ctx, sel, hallID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overlaps []model.Show
	for rows.Next() {
		var s model.Show
		if err := rows.Scan(&s.ID, &s.HallID, &s.MovieID, &s.StartsAt, &s.BasePriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		overlaps = append(overlaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overlaps, nil
}

// Delete removes a show that has no bookings.  The show row is locked
// first so a booking cannot slip in between the check and the delete.
// Returns model.ErrShowNotFound or ErrConflict when bookings exist.
func (r *ShowRepo) Delete(ctx context.Context, id uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var showID uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM shows WHERE id = ? FOR UPDATE`, id).Scan(&showID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrShowNotFound
		}
		return err
	}
	var bookings int
	if err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE show_id = ?`, id).Scan(&bookings); err != nil {
		return err
	}
	if bookings > 0 {
		return ErrConflict
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id)
	return err
}

// ListFrom returns the shows starting at or after from, ordered by
// start time, with movie and hall names and the hall's seat count.
func (r *ShowRepo) ListFrom(ctx context.Context, from time.Time) ([]model.Showing, error) {
	const q = `SELECT s.id, s.hall_id, s.movie_id, s.starts_at, s.base_price_cents, s.created_at,
	                  m.name, m.duration_min, h.name,
	                  (SELECT COUNT(*) FROM seats se WHERE se.hall_id = s.hall_id)
	           FROM shows s
	           JOIN movies m ON m.id = s.movie_id
	           JOIN halls h ON h.id = s.hall_id
	           WHERE s.starts_at >= ?
	           ORDER BY s.starts_at, s.id`
	rows, err := r.db.QueryContext(ctx, q, from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.Showing, 0)
	for rows.Next() {
		var sh model.Showing
		if err := rows.Scan(
			&sh.Show.ID, &sh.Show.HallID, &sh.Show.MovieID, &sh.Show.StartsAt, &sh.Show.BasePriceCents, &sh.Show.CreatedAt,
			&sh.MovieName, &sh.DurationMin, &sh.HallName, &sh.TotalSeats,
		); err != nil {
			return nil, err
		}
		result = append(result, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
