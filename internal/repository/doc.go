// Package repository holds the MySQL data access for the catalog
// (halls, seat types, seats, movies, shows) and the booking ledger.
//
// Schema management lives outside this service.  The repositories
// expect the following tables (all foreign keys NOT NULL, times in UTC):
//
//	CREATE TABLE halls (
//	    id   BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	    name VARCHAR(64) NOT NULL UNIQUE
//	);
//	CREATE TABLE seat_types (
//	    id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	    title           VARCHAR(64) NOT NULL UNIQUE,
//	    premium_percent INT UNSIGNED NOT NULL DEFAULT 0
//	);
//	CREATE TABLE seats (
//	    id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	    hall_id      BIGINT UNSIGNED NOT NULL REFERENCES halls(id),
//	    seat_type_id BIGINT UNSIGNED NOT NULL REFERENCES seat_types(id),
//	    label        VARCHAR(16) NOT NULL,
//	    position     INT UNSIGNED NOT NULL,
//	    UNIQUE KEY uq_seat_label (hall_id, label)
//	);
//	CREATE TABLE movies (
//	    id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	    name         VARCHAR(255) NOT NULL,
//	    duration_min INT UNSIGNED NOT NULL
//	);
//	CREATE TABLE shows (
//	    id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	    hall_id          BIGINT UNSIGNED NOT NULL REFERENCES halls(id),
//	    movie_id         BIGINT UNSIGNED NOT NULL REFERENCES movies(id),
//	    starts_at        DATETIME NOT NULL,
//	    ends_at          DATETIME NOT NULL,
//	    base_price_cents BIGINT UNSIGNED NOT NULL,
//	    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    KEY idx_shows_hall_time (hall_id, starts_at)
//	);
//	CREATE TABLE bookings (
//	    id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	    show_id     BIGINT UNSIGNED NOT NULL REFERENCES shows(id),
//	    status      ENUM('CONFIRMED') NOT NULL,
//	    total_cents BIGINT UNSIGNED NOT NULL,
//	    created_at  DATETIME NOT NULL
//	);
//	CREATE TABLE booked_seats (
//	    id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
//	    booking_id  BIGINT UNSIGNED NOT NULL REFERENCES bookings(id),
//	    show_id     BIGINT UNSIGNED NOT NULL REFERENCES shows(id),
//	    seat_id     BIGINT UNSIGNED NOT NULL REFERENCES seats(id),
//	    price_cents BIGINT UNSIGNED NOT NULL,
//	    UNIQUE KEY uq_show_seat (show_id, seat_id)
//	);
//
// uq_show_seat is what keeps a seat from being sold twice for a show.
package repository

import (
	"context"
	"database/sql"
	"strings"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// inClause returns "?, ?, ?" for n placeholders and the ids as args.
func inClause(ids []uint64) (string, []interface{}) {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}
