package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// ErrConflict is returned when a delete cannot be performed because of
// dependent records, such as deleting a show that already has bookings.
// Callers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrShowOverlap is returned when a new show would overlap an existing
// show of the same hall.
var ErrShowOverlap = errors.New("show overlaps another show in the hall")

// Lookup failures for catalog entities other than shows, which use
// model.ErrShowNotFound.
var (
	ErrHallNotFound  = errors.New("hall not found")
	ErrMovieNotFound = errors.New("movie not found")
)

// MySQL server error numbers the ledger reacts to.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// classify maps driver errors onto the ledger's error contract.
// Uniqueness violations become model.ErrSeatAlreadyBooked; deadlocks,
// lock wait timeouts and dropped connections become
// model.ErrLedgerUnavailable.  Anything else is returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %v", model.ErrSeatAlreadyBooked, err)
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %v", model.ErrLedgerUnavailable, err)
		}
		return err
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", model.ErrLedgerUnavailable, err)
	}
	return err
}
