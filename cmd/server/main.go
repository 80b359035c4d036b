package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/cache"
	"github.com/iliyamo/cinema-booking-engine/internal/config"
	"github.com/iliyamo/cinema-booking-engine/internal/database"
	"github.com/iliyamo/cinema-booking-engine/internal/handler"
	"github.com/iliyamo/cinema-booking-engine/internal/live"
	"github.com/iliyamo/cinema-booking-engine/internal/logging"
	"github.com/iliyamo/cinema-booking-engine/internal/middleware"
	"github.com/iliyamo/cinema-booking-engine/internal/queue"
	"github.com/iliyamo/cinema-booking-engine/internal/repository"
	"github.com/iliyamo/cinema-booking-engine/internal/router"
	"github.com/iliyamo/cinema-booking-engine/internal/service"
	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load() // Load environment config
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.WithField("error", err.Error()).Error("server stopped with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User:         cfg.DBUser,
		Pass:         cfg.DBPass,
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		Name:         cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	log.WithFields(logrus.Fields{"host": cfg.DBHost, "database": cfg.DBName}).Info("database connected")

	// Redis is optional: without it the limiter runs in-process, reads
	// skip the cache and the live stream is not offered.
	var rdb redis.UniversalClient
	if c := config.NewRedisClient(); c != nil {
		rdb = c
		defer c.Close()
		log.Info("redis connected")
	} else {
		log.Warn("redis unavailable, running without cache and live updates")
	}

	catalog := repository.NewCatalogRepo(db)
	ledger := repository.NewBookingRepo(db)

	var availCache ports.AvailabilityCache
	engineOpts := []service.EngineOption{
		service.WithNotifier(queue.NewPublisher(cfg.RabbitURL, catalog, log)),
	}
	var liveHandler *handler.LiveHandler
	if rdb != nil {
		if cfg.Cache.Enabled {
			availCache = cache.NewAvailabilityCache(rdb, cfg.Cache.Prefix, cfg.Cache.TTL)
			engineOpts = append(engineOpts, service.WithAvailabilityCache(availCache))
		}
		engineOpts = append(engineOpts, service.WithBroadcaster(live.NewPublisher(rdb)))
		liveHandler = handler.NewLiveHandler(ctx, catalog, live.NewRelay(rdb, log), log)
	}

	resolver := service.NewAvailabilityResolver(catalog, ledger, availCache, log)
	engine := service.NewReservationEngine(catalog, ledger, service.Options{
		MaxAttempts: cfg.Reservation.MaxAttempts,
		Backoff:     cfg.Reservation.RetryBackoff,
		MaxBackoff:  cfg.Reservation.MaxBackoff,
		TxTimeout:   cfg.Reservation.TxTimeout,
	}, log, engineOpts...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, db)
	router.RegisterShows(e, handler.NewShowHandler(resolver, log), liveHandler)
	router.RegisterBookings(e, handler.NewBookingHandler(engine, log),
		middleware.NewTokenBucket(cfg.RateLimit, rdb, log))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		audit := queue.NewAuditLog(cfg.BookingLogPath)
		if err := queue.StartBookingConsumer(ctx, cfg.RabbitURL, audit, log); err != nil && !errors.Is(err, context.Canceled) {
			log.WithField("error", err.Error()).Error("booking consumer stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port // Address string with port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	wg.Wait()
	log.Info("server stopped")
	return nil
}
