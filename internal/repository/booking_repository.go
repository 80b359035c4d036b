package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

// BookingRepo is the MySQL booking ledger.  Bookings are only ever
// inserted; booked_seats carries UNIQUE (show_id, seat_id) so the
// database has the final word on who gets a seat.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

var _ ports.Ledger = (*BookingRepo)(nil)

// WithAtomicUnit runs fn in a READ COMMITTED transaction, so each
// attempt of the engine re-reads the latest committed seats.  Errors
// returned by fn are passed through untouched after rollback; driver
// errors from begin and commit are classified.
func (r *BookingRepo) WithAtomicUnit(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", classify(err))
	}
	if err := fn(ctx, &bookingTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

// SeatsBookedForShow returns the seat ids booked for a show, outside of
// any transaction.
func (r *BookingRepo) SeatsBookedForShow(ctx context.Context, showID uint64) ([]uint64, error) {
	return seatsBookedForShow(ctx, r.db, showID)
}

// CountBookedByShow returns the number of booked seats per show.  Shows
// without bookings are absent from the map.
func (r *BookingRepo) CountBookedByShow(ctx context.Context, showIDs []uint64) (map[uint64]int, error) {
	out := make(map[uint64]int, len(showIDs))
	if len(showIDs) == 0 {
		return out, nil
	}
	in, args := inClause(showIDs)
	q := `SELECT show_id, COUNT(*) FROM booked_seats WHERE show_id IN (` + in + `) GROUP BY show_id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var showID uint64
		var n int
		if err := rows.Scan(&showID, &n); err != nil {
			return nil, err
		}
		out[showID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBooking loads a booking with its seats (labels included), or
// model.ErrBookingNotFound.
func (r *BookingRepo) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	const q = `SELECT id, show_id, status, total_cents, created_at FROM bookings WHERE id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(&b.ID, &b.ShowID, &b.Status, &b.TotalCents, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrBookingNotFound
		}
		return nil, err
	}

	const seatQ = `SELECT bs.id, bs.booking_id, bs.show_id, bs.seat_id, bs.price_cents, se.label
	               FROM booked_seats bs
	               JOIN seats se ON se.id = bs.seat_id
	               WHERE bs.booking_id = ?
	               ORDER BY bs.id`
	rows, err := r.db.QueryContext(ctx, seatQ, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	b.Seats = make([]model.BookedSeat, 0)
	for rows.Next() {
		var s model.BookedSeat
		if err := rows.Scan(&s.ID, &s.BookingID, &s.ShowID, &s.SeatID, &s.PriceCents, &s.Label); err != nil {
			return nil, err
		}
		b.Seats = append(b.Seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

// bookingTx is the ledger view inside one transaction.
type bookingTx struct {
	tx *sql.Tx
}

func (t *bookingTx) SeatsBookedForShow(ctx context.Context, showID uint64) ([]uint64, error) {
	ids, err := seatsBookedForShow(ctx, t.tx, showID)
	return ids, classify(err)
}

// InsertBooking writes the booking row and all of its seats.  The seats
// go in as one multi-row INSERT ordered by seat id, so concurrent units
// take the (show, seat) index locks in the same order.  InnoDB hands out
// consecutive auto-increment ids starting at LastInsertId.
func (t *bookingTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (show_id, status, total_cents, created_at) VALUES (?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, b.ShowID, string(b.Status), b.TotalCents, b.CreatedAt)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	if len(b.Seats) == 0 {
		return nil
	}

	order := make([]int, len(b.Seats))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return b.Seats[order[i]].SeatID < b.Seats[order[j]].SeatID })

	var sb strings.Builder
	sb.WriteString(`INSERT INTO booked_seats (booking_id, show_id, seat_id, price_cents) VALUES `)
	args := make([]interface{}, 0, len(b.Seats)*4)
	for k, i := range order {
		if k > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, b.ID, b.ShowID, b.Seats[i].SeatID, b.Seats[i].PriceCents)
	}
	res, err = t.tx.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return classify(err)
	}
	first, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for k, i := range order {
		b.Seats[i].ID = uint64(first) + uint64(k)
		b.Seats[i].BookingID = b.ID
		b.Seats[i].ShowID = b.ShowID
	}
	return nil
}

func seatsBookedForShow(ctx context.Context, q queryer, showID uint64) ([]uint64, error) {
	const sel = `SELECT seat_id FROM booked_seats WHERE show_id = ? ORDER BY seat_id`
	rows, err := q.QueryContext(ctx, sel, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
