package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// SeatTypeRepo stores seat categories and their price premiums.
type SeatTypeRepo struct {
	db *sql.DB
}

// NewSeatTypeRepo constructs a SeatTypeRepo with the given DB handle.
func NewSeatTypeRepo(db *sql.DB) *SeatTypeRepo {
	return &SeatTypeRepo{db: db}
}

// Create inserts a seat type and sets its ID.
func (r *SeatTypeRepo) Create(ctx context.Context, st *model.SeatType) error {
	if st.PremiumPercent < 0 {
		return errors.New("premium_percent must not be negative")
	}
	const q = `INSERT INTO seat_types (title, premium_percent) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, st.Title, st.PremiumPercent)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	return nil
}

// GetByIDs resolves seat types by id in one query.  Unknown ids are
// simply missing from the result.
func (r *SeatTypeRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.SeatType, error) {
	out := make(map[uint64]model.SeatType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in, args := inClause(ids)
	q := `SELECT id, title, premium_percent FROM seat_types WHERE id IN (` + in + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st model.SeatType
		if err := rows.Scan(&st.ID, &st.Title, &st.PremiumPercent); err != nil {
			return nil, err
		}
		out[st.ID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
