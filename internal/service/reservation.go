package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/pricing"
	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

// Options bounds the work the engine does for one booking request.
type Options struct {
	// MaxAttempts is the number of atomic units tried per request.
	MaxAttempts int
	// Backoff is the first pause after a transient ledger failure; it
	// doubles per attempt up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// TxTimeout bounds a single atomic unit.
	TxTimeout time.Duration
	// HookTimeout bounds cache invalidation and the live broadcast
	// after a commit.  They run detached from the caller's context.
	HookTimeout time.Duration
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		Backoff:     25 * time.Millisecond,
		MaxBackoff:  500 * time.Millisecond,
		TxTimeout:   5 * time.Second,
		HookTimeout: 2 * time.Second,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MaxAttempts < 1 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = def.Backoff
	}
	if o.MaxBackoff < o.Backoff {
		o.MaxBackoff = o.Backoff
	}
	if o.TxTimeout <= 0 {
		o.TxTimeout = def.TxTimeout
	}
	if o.HookTimeout <= 0 {
		o.HookTimeout = def.HookTimeout
	}
	return o
}

// EngineOption wires an optional collaborator into the engine.
type EngineOption func(*ReservationEngine)

// WithNotifier sends a confirmation for each committed booking.
func WithNotifier(n ports.BookingNotifier) EngineOption {
	return func(e *ReservationEngine) { e.notifier = n }
}

// WithAvailabilityCache invalidates cached availability after commits.
func WithAvailabilityCache(c ports.AvailabilityCache) EngineOption {
	return func(e *ReservationEngine) { e.cache = c }
}

// WithBroadcaster publishes booked seats to live listeners.
func WithBroadcaster(b ports.SeatBroadcaster) EngineOption {
	return func(e *ReservationEngine) { e.broadcaster = b }
}

// WithClock overrides the time source used for booking timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *ReservationEngine) { e.now = now }
}

// ReservationEngine books seats for shows.  For any show and seat at
// most one booking is ever committed: requested seats are re-checked
// inside a ledger atomic unit, and the ledger's (show, seat) uniqueness
// constraint decides races that slip past the check.
type ReservationEngine struct {
	catalog     ports.Catalog
	ledger      ports.Ledger
	notifier    ports.BookingNotifier
	cache       ports.AvailabilityCache
	broadcaster ports.SeatBroadcaster
	opts        Options
	logger      *logrus.Logger
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewReservationEngine builds an engine over the given catalog and ledger.
func NewReservationEngine(
	catalog ports.Catalog,
	ledger ports.Ledger,
	opts Options,
	logger *logrus.Logger,
	options ...EngineOption,
) *ReservationEngine {
	e := &ReservationEngine{
		catalog: catalog,
		ledger:  ledger,
		opts:    opts.normalized(),
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Book reserves all requested seats of a show or none of them.
//
// Validation and not-found errors are returned before the ledger is
// touched.  A seat that is already booked yields *model.SeatUnavailableError
// naming the conflicting seats.  Transient ledger failures are retried
// with backoff and surface as *model.RetryableError when retries run out.
func (e *ReservationEngine) Book(ctx context.Context, showID uint64, seatIDs []uint64) (*model.Booking, error) {
	if err := validateSeatRequest(seatIDs); err != nil {
		return nil, err
	}
	show, err := e.catalog.GetShow(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}
	seats, err := e.quote(ctx, show, seatIDs)
	if err != nil {
		return nil, err
	}

	booking, err := e.commit(ctx, show, seats)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"show_id":  showID,
			"seat_ids": seatIDs,
			"status":   model.BookingRejected,
			"error":    err.Error(),
		}).Info("booking rejected")
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"show_id":     showID,
		"seat_ids":    booking.SeatIDs(),
		"total_cents": booking.TotalCents,
		"status":      booking.Status,
	}).Info("booking confirmed")

	e.afterCommit(ctx, booking, show)
	return booking, nil
}

// Ticket returns a committed booking with show, hall and seat details.
func (e *ReservationEngine) Ticket(ctx context.Context, bookingID uint64) (*model.Ticket, error) {
	b, err := e.ledger.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	show, err := e.catalog.GetShow(ctx, b.ShowID)
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}
	movie, err := e.catalog.GetMovie(ctx, show.MovieID)
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	hall, err := e.catalog.GetHall(ctx, show.HallID)
	if err != nil {
		return nil, fmt.Errorf("get hall: %w", err)
	}
	hallSeats, err := e.catalog.GetHallSeats(ctx, show.HallID)
	if err != nil {
		return nil, fmt.Errorf("get hall seats: %w", err)
	}
	types, err := e.catalog.GetSeatTypes(ctx, seatTypeIDs(hallSeats))
	if err != nil {
		return nil, fmt.Errorf("get seat types: %w", err)
	}

	byID := make(map[uint64]model.Seat, len(hallSeats))
	for _, s := range hallSeats {
		byID[s.ID] = s
	}
	t := &model.Ticket{
		Booking:   *b,
		MovieName: movie.Name,
		HallName:  hall.Name,
		StartsAt:  show.StartsAt,
		EndsAt:    show.EndsAt(movie.DurationMin),
		Seats:     make([]model.TicketSeat, 0, len(b.Seats)),
	}
	for i, bs := range b.Seats {
		seat := byID[bs.SeatID]
		t.Booking.Seats[i].Label = seat.Label
		t.Seats = append(t.Seats, model.TicketSeat{
			SeatID:        bs.SeatID,
			Label:         seat.Label,
			SeatTypeTitle: types[seat.SeatTypeID].Title,
			PriceCents:    bs.PriceCents,
		})
	}
	return t, nil
}

// quote checks that every requested seat belongs to the show's hall and
// prices it.  Shows are immutable, so prices computed here are the ones
// committed.
func (e *ReservationEngine) quote(ctx context.Context, show *model.Show, seatIDs []uint64) ([]model.BookedSeat, error) {
	hallSeats, err := e.catalog.GetHallSeats(ctx, show.HallID)
	if err != nil {
		return nil, fmt.Errorf("get hall seats: %w", err)
	}
	byID := make(map[uint64]model.Seat, len(hallSeats))
	for _, s := range hallSeats {
		byID[s.ID] = s
	}

	requested := make([]model.Seat, 0, len(seatIDs))
	var foreign []uint64
	for _, id := range seatIDs {
		s, ok := byID[id]
		if !ok {
			foreign = append(foreign, id)
			continue
		}
		requested = append(requested, s)
	}
	if len(foreign) > 0 {
		return nil, &model.SeatNotInHallError{SeatIDs: foreign}
	}

	types, err := e.catalog.GetSeatTypes(ctx, seatTypeIDs(requested))
	if err != nil {
		return nil, fmt.Errorf("get seat types: %w", err)
	}
	seats := make([]model.BookedSeat, 0, len(requested))
	for _, s := range requested {
		st, ok := types[s.SeatTypeID]
		if !ok {
			return nil, fmt.Errorf("seat %d: unknown seat type %d", s.ID, s.SeatTypeID)
		}
		price, err := pricing.SeatPrice(show.BasePriceCents, st.PremiumPercent)
		if err != nil {
			return nil, fmt.Errorf("price seat %d: %w", s.ID, err)
		}
		seats = append(seats, model.BookedSeat{
			ShowID:     show.ID,
			SeatID:     s.ID,
			PriceCents: price,
			Label:      s.Label,
		})
	}
	return seats, nil
}

// commit runs the re-check-and-insert unit until it succeeds, hits a
// definite conflict, or runs out of attempts.
func (e *ReservationEngine) commit(ctx context.Context, show *model.Show, seats []model.BookedSeat) (*model.Booking, error) {
	var lastErr error
	lostRace := false
	pause := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(e.opts.Backoff),
		backoff.WithMaxInterval(e.opts.MaxBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		booking, err := e.attempt(ctx, show, seats)
		if err == nil {
			return booking, nil
		}

		var unavailable *model.SeatUnavailableError
		switch {
		case errors.As(err, &unavailable):
			return nil, err
		case errors.Is(err, model.ErrSeatAlreadyBooked):
			lostRace = true
		case e.transient(ctx, err):
			lostRace = false
		default:
			return nil, err
		}
		lastErr = err

		e.logger.WithFields(logrus.Fields{
			"show_id":   show.ID,
			"attempt":   attempt,
			"lost_race": lostRace,
			"error":     err.Error(),
		}).Debug("booking attempt failed, retrying")

		if attempt == e.opts.MaxAttempts {
			break
		}
		if lostRace {
			// the next re-check sees the winner's seats
			continue
		}
		if err := e.sleep(ctx, pause.NextBackOff()); err != nil {
			return nil, err
		}
	}

	if lostRace {
		return nil, e.conflictAfterRace(ctx, show.ID, seats, lastErr)
	}
	return nil, &model.RetryableError{Attempts: e.opts.MaxAttempts, Err: lastErr}
}

func (e *ReservationEngine) attempt(ctx context.Context, show *model.Show, seats []model.BookedSeat) (*model.Booking, error) {
	txCtx, cancel := context.WithTimeout(ctx, e.opts.TxTimeout)
	defer cancel()

	booking := &model.Booking{
		ShowID: show.ID,
		Status: model.BookingRequested,
		Seats:  append([]model.BookedSeat(nil), seats...),
	}
	prices := make([]int64, 0, len(seats))
	for _, s := range seats {
		prices = append(prices, s.PriceCents)
	}

	err := e.ledger.WithAtomicUnit(txCtx, func(ctx context.Context, tx ports.LedgerTx) error {
		booked, err := tx.SeatsBookedForShow(ctx, show.ID)
		if err != nil {
			return fmt.Errorf("read booked seats: %w", err)
		}
		if conflicts := intersect(booking.SeatIDs(), booked); len(conflicts) > 0 {
			return &model.SeatUnavailableError{ShowID: show.ID, SeatIDs: conflicts}
		}
		booking.Status = model.BookingConfirmed
		booking.TotalCents = pricing.Total(prices)
		booking.CreatedAt = e.now().UTC()
		if err := tx.InsertBooking(ctx, booking); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// transient reports whether err is worth another atomic unit.  A
// timeout of the unit itself counts; the caller's own cancellation
// does not.
func (e *ReservationEngine) transient(ctx context.Context, err error) bool {
	if errors.Is(err, model.ErrLedgerUnavailable) {
		return true
	}
	return ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded)
}

// conflictAfterRace names the seats lost to concurrent bookings once
// the retries are spent.
func (e *ReservationEngine) conflictAfterRace(ctx context.Context, showID uint64, seats []model.BookedSeat, lastErr error) error {
	requested := make([]uint64, 0, len(seats))
	for _, s := range seats {
		requested = append(requested, s.SeatID)
	}
	booked, err := e.ledger.SeatsBookedForShow(ctx, showID)
	if err != nil {
		return &model.RetryableError{Attempts: e.opts.MaxAttempts, Err: lastErr}
	}
	conflicts := intersect(requested, booked)
	if len(conflicts) == 0 {
		return &model.RetryableError{Attempts: e.opts.MaxAttempts, Err: lastErr}
	}
	return &model.SeatUnavailableError{ShowID: showID, SeatIDs: conflicts}
}

// afterCommit runs once the booking is durable.  A caller that goes
// away after the commit must not leave a stale snapshot behind, so the
// hooks run on a detached context.
func (e *ReservationEngine) afterCommit(ctx context.Context, b *model.Booking, show *model.Show) {
	detached := context.WithoutCancel(ctx)
	hookCtx, cancel := context.WithTimeout(detached, e.opts.HookTimeout)
	defer cancel()

	if e.cache != nil {
		if err := e.cache.Invalidate(hookCtx, show.ID); err != nil {
			e.logger.WithFields(logrus.Fields{
				"show_id": show.ID,
				"error":   err.Error(),
			}).Error("availability cache invalidation failed")
		}
	}
	if e.broadcaster != nil {
		if err := e.broadcaster.SeatsBooked(hookCtx, show.ID, b.SeatIDs()); err != nil {
			e.logger.WithFields(logrus.Fields{
				"show_id": show.ID,
				"error":   err.Error(),
			}).Warn("seat broadcast failed")
		}
	}
	if e.notifier != nil {
		go func(ctx context.Context) {
			if err := e.notifier.NotifyBookingConfirmed(ctx, b, show); err != nil {
				e.logger.WithFields(logrus.Fields{
					"booking_id": b.ID,
					"error":      err.Error(),
				}).Warn("booking confirmation not published")
			}
		}(detached)
	}
}

func validateSeatRequest(seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return model.ErrEmptySeatRequest
	}
	seen := make(map[uint64]int, len(seatIDs))
	var dups []uint64
	for _, id := range seatIDs {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		return &model.DuplicateSeatError{SeatIDs: dups}
	}
	return nil
}

// intersect returns the members of want found in have, in want's order.
func intersect(want, have []uint64) []uint64 {
	if len(want) == 0 || len(have) == 0 {
		return nil
	}
	set := make(map[uint64]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	var out []uint64
	for _, id := range want {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
