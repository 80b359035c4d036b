// Command seed loads a catalog fixture into an empty database, or
// removes a show that has not been booked yet.
//
//	go run ./cmd/seed -file catalog.example.yaml
//	go run ./cmd/seed -delete-show 3
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/config"
	"github.com/iliyamo/cinema-booking-engine/internal/database"
	"github.com/iliyamo/cinema-booking-engine/internal/logging"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
	"github.com/iliyamo/cinema-booking-engine/internal/seed"
)

func main() {
	path := flag.String("file", "catalog.example.yaml", "YAML catalog fixture")
	timeout := flag.Duration("timeout", time.Minute, "overall time limit")
	deleteShow := flag.Uint64("delete-show", 0, "delete the show with this id instead of seeding")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if *deleteShow != 0 {
		removeShow(cfg, log, *deleteShow, *timeout)
		return
	}

	f, err := os.Open(*path)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("open fixture")
	}
	fixture, err := seed.Parse(f)
	_ = f.Close()
	if err != nil {
		log.WithFields(logrus.Fields{"file": *path, "error": err.Error()}).Fatal("invalid fixture")
	}

	db := openDB(cfg, log)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sum, err := seed.Apply(ctx, seed.RepoStore{Catalog: repository.NewCatalogRepo(db)}, fixture)
	fields := logrus.Fields{
		"file":       *path,
		"seat_types": sum.SeatTypes,
		"halls":      sum.Halls,
		"seats":      sum.Seats,
		"movies":     sum.Movies,
		"shows":      sum.Shows,
	}
	if err != nil {
		fields["error"] = err.Error()
		log.WithFields(fields).Error("seed failed, catalog partially written")
		db.Close()
		os.Exit(1)
	}
	log.WithFields(fields).Info("catalog seeded")
}

func openDB(cfg config.Config, log *logrus.Logger) *sql.DB {
	db, err := database.Open(database.Options{
		User:         cfg.DBUser,
		Pass:         cfg.DBPass,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		Name:         cfg.DBName,
		MaxOpenConns: 2,
	})
	if err != nil {
		log.WithField("error", err.Error()).Fatal("connect database")
	}
	return db
}

// removeShow deletes a show.  Shows with bookings are kept: their
// tickets must stay resolvable.
func removeShow(cfg config.Config, log *logrus.Logger, showID uint64, timeout time.Duration) {
	db := openDB(cfg, log)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entry := log.WithField("show_id", showID)
	err := repository.NewShowRepo(db).Delete(ctx, showID)
	switch {
	case err == nil:
		entry.Info("show deleted")
		return
	case errors.Is(err, repository.ErrConflict):
		entry.Error("show has bookings, not deleted")
	case errors.Is(err, model.ErrShowNotFound):
		entry.Error("show not found")
	default:
		entry.WithField("error", err.Error()).Error("delete show failed")
	}
	db.Close()
	os.Exit(1)
}
