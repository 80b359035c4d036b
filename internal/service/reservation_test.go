package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyBookingConfirmed(ctx context.Context, b *model.Booking, show *model.Show) error {
	args := m.Called(ctx, b, show)
	return args.Error(0)
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls map[uint64][]uint64
}

func (r *recordingBroadcaster) SeatsBooked(_ context.Context, showID uint64, seatIDs []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[uint64][]uint64)
	}
	r.calls[showID] = append(r.calls[showID], seatIDs...)
	return nil
}

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, catalog *memCatalog, ledger *memLedger, options ...EngineOption) *ReservationEngine {
	t.Helper()
	options = append([]EngineOption{WithClock(func() time.Time { return fixedNow })}, options...)
	e := NewReservationEngine(catalog, ledger, DefaultOptions(), newTestLogger(t), options...)
	e.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return e
}

func TestReservationEngine_Book_HallA(t *testing.T) {
	ctx := context.Background()
	catalog := hallACatalog()
	ledger := newMemLedger()
	resolver := NewAvailabilityResolver(catalog, ledger, nil, newTestLogger(t))
	engine := newTestEngine(t, catalog, ledger)

	offers, err := resolver.Availability(ctx, 10)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, model.SeatOffer{SeatID: 1, SeatLabel: "A1", SeatTypeTitle: "regular", PriceCents: 1000}, offers[0])
	assert.Equal(t, model.SeatOffer{SeatID: 2, SeatLabel: "A2", SeatTypeTitle: "vip", PriceCents: 1500}, offers[1])

	b, err := engine.Book(ctx, 10, []uint64{1})
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, int64(1000), b.TotalCents)
	assert.Equal(t, fixedNow, b.CreatedAt)
	require.Len(t, b.Seats, 1)
	assert.Equal(t, uint64(1), b.Seats[0].SeatID)
	assert.Equal(t, int64(1000), b.Seats[0].PriceCents)
	assert.Equal(t, b.ID, b.Seats[0].BookingID)

	free, err := resolver.AvailableSeatIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, free)

	_, err = engine.Book(ctx, 10, []uint64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSeatUnavailable)
	var unavailable *model.SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []uint64{1}, unavailable.SeatIDs)
	assert.Equal(t, 1, ledger.bookingCount())
}

func TestReservationEngine_Book_MultiSeatTotal(t *testing.T) {
	engine := newTestEngine(t, hallACatalog(), newMemLedger())

	b, err := engine.Book(context.Background(), 10, []uint64{2, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), b.TotalCents)
	assert.Equal(t, []uint64{2, 1}, b.SeatIDs())
	assert.Equal(t, int64(1500), b.Seats[0].PriceCents)
	assert.Equal(t, int64(1000), b.Seats[1].PriceCents)
}

func TestReservationEngine_Book_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	catalog := hallACatalog()
	ledger := newMemLedger()
	ledger.seed(10, 2)
	engine := newTestEngine(t, catalog, ledger)

	_, err := engine.Book(ctx, 10, []uint64{1, 2})
	var unavailable *model.SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []uint64{2}, unavailable.SeatIDs)
	assert.Equal(t, uint64(10), unavailable.ShowID)

	booked, err := ledger.SeatsBookedForShow(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, booked, "seat 1 must not be booked by a failed request")
	assert.Equal(t, 1, ledger.bookingCount())
}

func TestReservationEngine_Book_Validation(t *testing.T) {
	tests := []struct {
		name    string
		showID  uint64
		seatIDs []uint64
		target  error
		check   func(t *testing.T, err error)
	}{
		{
			name:    "empty request",
			showID:  10,
			seatIDs: nil,
			target:  model.ErrEmptySeatRequest,
		},
		{
			name:    "duplicate seats",
			showID:  10,
			seatIDs: []uint64{1, 2, 1, 1, 2},
			target:  model.ErrDuplicateSeatRequest,
			check: func(t *testing.T, err error) {
				var dup *model.DuplicateSeatError
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, []uint64{1, 2}, dup.SeatIDs)
			},
		},
		{
			name:    "unknown show",
			showID:  99,
			seatIDs: []uint64{1},
			target:  model.ErrShowNotFound,
		},
		{
			name:    "seat from another hall",
			showID:  10,
			seatIDs: []uint64{1, 101, 102},
			target:  model.ErrSeatNotInHall,
			check: func(t *testing.T, err error) {
				var foreign *model.SeatNotInHallError
				require.ErrorAs(t, err, &foreign)
				assert.Equal(t, []uint64{101, 102}, foreign.SeatIDs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newMemLedger()
			engine := newTestEngine(t, bigHallCatalog(3), ledger)

			b, err := engine.Book(context.Background(), tt.showID, tt.seatIDs)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.ErrorIs(t, err, tt.target)
			if tt.check != nil {
				tt.check(t, err)
			}
			assert.Zero(t, ledger.unitCount(), "ledger must not be touched")
		})
	}
}

func TestReservationEngine_Book_ConcurrentSameSeat(t *testing.T) {
	catalog := hallACatalog()
	ledger := newMemLedger()
	engine := newTestEngine(t, catalog, ledger)

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []*model.Booking
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			b, err := engine.Book(context.Background(), 10, []uint64{2})
			mu.Lock()
			defer mu.Unlock()
			var unavailable *model.SeatUnavailableError
			switch {
			case err == nil:
				winners = append(winners, b)
			case errors.As(err, &unavailable):
				assert.Equal(t, []uint64{2}, unavailable.SeatIDs)
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, winners, 1)
	assert.Equal(t, int64(1500), winners[0].TotalCents)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, 1, ledger.bookingCount())
}

func TestReservationEngine_Book_ConcurrentOverlappingSets(t *testing.T) {
	ctx := context.Background()
	catalog := bigHallCatalog(10)
	ledger := newMemLedger()
	engine := newTestEngine(t, catalog, ledger)

	// each request overlaps its neighbours by one seat
	requests := make([][]uint64, 0, 9)
	for i := uint64(101); i < 110; i++ {
		requests = append(requests, []uint64{i, i + 1})
	}

	var wg sync.WaitGroup
	results := make([]error, len(requests))
	bookings := make([]*model.Booking, len(requests))
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req []uint64) {
			defer wg.Done()
			bookings[i], results[i] = engine.Book(ctx, 20, req)
		}(i, req)
	}
	wg.Wait()

	owner := make(map[uint64]uint64)
	for i, err := range results {
		if err != nil {
			var unavailable *model.SeatUnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Subset(t, requests[i], unavailable.SeatIDs)
			continue
		}
		for _, s := range bookings[i].Seats {
			prev, taken := owner[s.SeatID]
			require.False(t, taken, "seat %d booked by %d and %d", s.SeatID, prev, bookings[i].ID)
			owner[s.SeatID] = bookings[i].ID
		}
	}

	booked, err := ledger.SeatsBookedForShow(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, booked, len(owner))
	assert.NotEmpty(t, owner)
}

func TestReservationEngine_Book_LostRaceRetriesAndReportsConflict(t *testing.T) {
	catalog := hallACatalog()
	ledger := newMemLedger()
	var once sync.Once
	ledger.afterRead = func() {
		// a competing booking commits between our check and our insert
		once.Do(func() { ledger.seed(10, 2) })
	}
	engine := newTestEngine(t, catalog, ledger)

	_, err := engine.Book(context.Background(), 10, []uint64{1, 2})
	var unavailable *model.SeatUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []uint64{2}, unavailable.SeatIDs)
	assert.Equal(t, 2, ledger.unitCount(), "the lost race is retried once and then sees the winner")
}

func TestReservationEngine_Book_LostRaceToDisjointSeatSucceeds(t *testing.T) {
	catalog := bigHallCatalog(4)
	ledger := newMemLedger()
	engine := newTestEngine(t, catalog, ledger)
	ledger.failures = []error{model.ErrSeatAlreadyBooked}

	b, err := engine.Book(context.Background(), 20, []uint64{101, 102})
	require.NoError(t, err)
	assert.Equal(t, int64(1600), b.TotalCents)
	assert.Equal(t, 2, ledger.unitCount())
}

func TestReservationEngine_Book_TransientFailures(t *testing.T) {
	t.Run("recovers before retries run out", func(t *testing.T) {
		ledger := newMemLedger()
		ledger.failures = []error{model.ErrLedgerUnavailable, model.ErrLedgerUnavailable}
		engine := newTestEngine(t, hallACatalog(), ledger)

		var pauses []time.Duration
		engine.sleep = func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		}

		b, err := engine.Book(context.Background(), 10, []uint64{1})
		require.NoError(t, err)
		assert.Equal(t, model.BookingConfirmed, b.Status)
		assert.Equal(t, 3, ledger.unitCount())
		assert.Equal(t, []time.Duration{25 * time.Millisecond, 50 * time.Millisecond}, pauses)
	})

	t.Run("pauses are capped", func(t *testing.T) {
		ledger := newMemLedger()
		ledger.failures = []error{model.ErrLedgerUnavailable, model.ErrLedgerUnavailable, model.ErrLedgerUnavailable}
		opts := Options{MaxAttempts: 4, Backoff: 25 * time.Millisecond, MaxBackoff: 40 * time.Millisecond}
		engine := NewReservationEngine(hallACatalog(), ledger, opts, newTestLogger(t))

		var pauses []time.Duration
		engine.sleep = func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		}

		_, err := engine.Book(context.Background(), 10, []uint64{1})
		require.NoError(t, err)
		assert.Equal(t, []time.Duration{25 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}, pauses)
	})

	t.Run("gives up with a retryable error", func(t *testing.T) {
		ledger := newMemLedger()
		ledger.failures = []error{model.ErrLedgerUnavailable, model.ErrLedgerUnavailable, model.ErrLedgerUnavailable}
		engine := newTestEngine(t, hallACatalog(), ledger)

		_, err := engine.Book(context.Background(), 10, []uint64{1})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrRetryable)
		assert.ErrorIs(t, err, model.ErrLedgerUnavailable)
		var retryable *model.RetryableError
		require.ErrorAs(t, err, &retryable)
		assert.Equal(t, 3, retryable.Attempts)
		assert.Zero(t, ledger.bookingCount())
	})

	t.Run("unit timeout is transient", func(t *testing.T) {
		ledger := newMemLedger()
		ledger.failures = []error{context.DeadlineExceeded}
		engine := newTestEngine(t, hallACatalog(), ledger)

		_, err := engine.Book(context.Background(), 10, []uint64{1})
		require.NoError(t, err)
		assert.Equal(t, 2, ledger.unitCount())
	})

	t.Run("unknown errors are not retried", func(t *testing.T) {
		boom := errors.New("syntax error")
		ledger := newMemLedger()
		ledger.failures = []error{boom}
		engine := newTestEngine(t, hallACatalog(), ledger)

		_, err := engine.Book(context.Background(), 10, []uint64{1})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, ledger.unitCount())
	})
}

func TestReservationEngine_Book_CallerCancellationIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ledger := newMemLedger()
	ledger.afterRead = cancel
	engine := newTestEngine(t, hallACatalog(), ledger)

	_, err := engine.Book(ctx, 10, []uint64{1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ledger.unitCount())
	assert.Zero(t, ledger.bookingCount())
}

func TestReservationEngine_Book_AfterCommitHooks(t *testing.T) {
	ctx := context.Background()
	catalog := hallACatalog()
	ledger := newMemLedger()
	cache := newMemCache()
	broadcaster := &recordingBroadcaster{}
	notifier := new(mockNotifier)

	notified := make(chan struct{})
	notifier.On("NotifyBookingConfirmed", mock.Anything, mock.MatchedBy(func(b *model.Booking) bool {
		return b.ShowID == 10 && b.TotalCents == 1500
	}), mock.AnythingOfType("*model.Show")).
		Return(errors.New("broker down")).
		Run(func(mock.Arguments) { close(notified) }).
		Once()

	engine := newTestEngine(t, catalog, ledger,
		WithAvailabilityCache(cache),
		WithBroadcaster(broadcaster),
		WithNotifier(notifier),
	)

	b, err := engine.Book(ctx, 10, []uint64{2})
	require.NoError(t, err, "a failing notifier must not affect the booking")
	require.NotNil(t, b)

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Fatal("notifier was not called")
	}
	notifier.AssertExpectations(t)

	assert.Equal(t, []uint64{10}, cache.invalidated)
	assert.Equal(t, []uint64{2}, broadcaster.calls[10])
}

func TestReservationEngine_Book_CallerGoneAfterCommitStillInvalidates(t *testing.T) {
	catalog := hallACatalog()
	ledger := newMemLedger()
	cache := newMemCache()
	resolver := NewAvailabilityResolver(catalog, ledger, cache, newTestLogger(t))
	engine := newTestEngine(t, catalog, ledger, WithAvailabilityCache(cache))

	warm, err := resolver.Availability(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, warm, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger.afterCommit = cancel

	b, err := engine.Book(ctx, 10, []uint64{1})
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, []uint64{10}, cache.invalidated)

	offers, err := resolver.Availability(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, uint64(2), offers[0].SeatID)
}

func TestReservationEngine_Book_RejectedSkipsHooks(t *testing.T) {
	ledger := newMemLedger()
	ledger.seed(10, 1)
	cache := newMemCache()
	notifier := new(mockNotifier)
	engine := newTestEngine(t, hallACatalog(), ledger, WithAvailabilityCache(cache), WithNotifier(notifier))

	_, err := engine.Book(context.Background(), 10, []uint64{1})
	require.ErrorIs(t, err, model.ErrSeatUnavailable)
	assert.Empty(t, cache.invalidated)
	notifier.AssertNotCalled(t, "NotifyBookingConfirmed", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationEngine_Ticket(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, hallACatalog(), newMemLedger())

	b, err := engine.Book(ctx, 10, []uint64{1, 2})
	require.NoError(t, err)

	ticket, err := engine.Ticket(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Heat", ticket.MovieName)
	assert.Equal(t, "A", ticket.HallName)
	assert.Equal(t, time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC), ticket.StartsAt)
	assert.Equal(t, time.Date(2026, 11, 1, 20, 50, 0, 0, time.UTC), ticket.EndsAt)
	assert.Equal(t, int64(2500), ticket.Booking.TotalCents)
	assert.Equal(t, []model.TicketSeat{
		{SeatID: 1, Label: "A1", SeatTypeTitle: "regular", PriceCents: 1000},
		{SeatID: 2, Label: "A2", SeatTypeTitle: "vip", PriceCents: 1500},
	}, ticket.Seats)

	_, err = engine.Ticket(ctx, 12345)
	assert.ErrorIs(t, err, model.ErrBookingNotFound)
}

func TestOptions_Normalized(t *testing.T) {
	o := Options{MaxAttempts: 0, Backoff: 100 * time.Millisecond, MaxBackoff: time.Millisecond}.normalized()
	assert.Equal(t, 3, o.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, o.Backoff)
	assert.Equal(t, 100*time.Millisecond, o.MaxBackoff)
	assert.Equal(t, 5*time.Second, o.TxTimeout)
	assert.Equal(t, 2*time.Second, o.HookTimeout)
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []uint64{3, 1}, intersect([]uint64{3, 2, 1}, []uint64{1, 3, 9}))
	assert.Nil(t, intersect([]uint64{1}, nil))
	assert.Nil(t, intersect([]uint64{1}, []uint64{2}))
}
