package service

import (
	"context"
	"io"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

func newTestLogger(t *testing.T) *logrus.Logger {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// memCatalog is an in-memory catalog.
type memCatalog struct {
	shows     map[uint64]model.Show
	halls     map[uint64]model.Hall
	movies    map[uint64]model.Movie
	seats     map[uint64][]model.Seat
	seatTypes map[uint64]model.SeatType
}

// hallACatalog builds hall "A" with seat 1 (regular) and seat 2 (vip,
// +50%), and show 10 at a base price of 10.00.
func hallACatalog() *memCatalog {
	return &memCatalog{
		shows: map[uint64]model.Show{
			10: {ID: 10, HallID: 1, MovieID: 7, StartsAt: time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC), BasePriceCents: 1000},
		},
		halls:  map[uint64]model.Hall{1: {ID: 1, Name: "A"}},
		movies: map[uint64]model.Movie{7: {ID: 7, Name: "Heat", DurationMin: 170}},
		seats: map[uint64][]model.Seat{
			1: {
				{ID: 1, HallID: 1, Label: "A1", SeatTypeID: 1, Position: 1},
				{ID: 2, HallID: 1, Label: "A2", SeatTypeID: 2, Position: 2},
			},
		},
		seatTypes: map[uint64]model.SeatType{
			1: {ID: 1, Title: "regular", PremiumPercent: 0},
			2: {ID: 2, Title: "vip", PremiumPercent: 50},
		},
	}
}

// bigHallCatalog builds show 20 in hall 2 with n regular seats numbered 1..n.
func bigHallCatalog(n int) *memCatalog {
	c := hallACatalog()
	c.halls[2] = model.Hall{ID: 2, Name: "B"}
	c.shows[20] = model.Show{ID: 20, HallID: 2, MovieID: 7, StartsAt: time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC), BasePriceCents: 800}
	for i := 1; i <= n; i++ {
		c.seats[2] = append(c.seats[2], model.Seat{ID: uint64(100 + i), HallID: 2, Label: "B" + strconv.Itoa(i), SeatTypeID: 1, Position: uint32(i)})
	}
	return c
}

func (c *memCatalog) GetShow(_ context.Context, id uint64) (*model.Show, error) {
	s, ok := c.shows[id]
	if !ok {
		return nil, model.ErrShowNotFound
	}
	return &s, nil
}

func (c *memCatalog) GetHall(_ context.Context, id uint64) (*model.Hall, error) {
	h := c.halls[id]
	return &h, nil
}

func (c *memCatalog) GetMovie(_ context.Context, id uint64) (*model.Movie, error) {
	m := c.movies[id]
	return &m, nil
}

func (c *memCatalog) GetHallSeats(_ context.Context, hallID uint64) ([]model.Seat, error) {
	return append([]model.Seat(nil), c.seats[hallID]...), nil
}

func (c *memCatalog) GetSeatTypes(_ context.Context, ids []uint64) (map[uint64]model.SeatType, error) {
	out := make(map[uint64]model.SeatType, len(ids))
	for _, id := range ids {
		if st, ok := c.seatTypes[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (c *memCatalog) ListShowsFrom(_ context.Context, from time.Time) ([]model.Showing, error) {
	var out []model.Showing
	for _, s := range c.shows {
		if s.StartsAt.Before(from) {
			continue
		}
		m := c.movies[s.MovieID]
		out = append(out, model.Showing{
			Show:        s,
			MovieName:   m.Name,
			DurationMin: m.DurationMin,
			HallName:    c.halls[s.HallID].Name,
			TotalSeats:  len(c.seats[s.HallID]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Show.StartsAt.Before(out[j].Show.StartsAt) })
	return out, nil
}

type seatKey struct{ show, seat uint64 }

// memLedger behaves like a database with snapshot reads and a unique
// (show, seat) index checked at commit.
type memLedger struct {
	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]*model.Booking
	taken    map[seatKey]uint64
	units    int
	// failures are returned by successive units before fn runs.
	failures []error
	// afterRead runs inside a unit right after the booked seats are read.
	afterRead func()
	// afterCommit runs once a unit's bookings are stored.
	afterCommit func()
}

func newMemLedger() *memLedger {
	return &memLedger{
		bookings: make(map[uint64]*model.Booking),
		taken:    make(map[seatKey]uint64),
	}
}

func (l *memLedger) WithAtomicUnit(ctx context.Context, fn func(ctx context.Context, tx ports.LedgerTx) error) error {
	l.mu.Lock()
	l.units++
	var injected error
	if len(l.failures) > 0 {
		injected, l.failures = l.failures[0], l.failures[1:]
	}
	l.mu.Unlock()
	if injected != nil {
		return injected
	}

	tx := &memTx{ledger: l}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.commit(tx.staged); err != nil {
		return err
	}
	if l.afterCommit != nil {
		l.afterCommit()
	}
	return nil
}

func (l *memLedger) commit(staged []*model.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range staged {
		for _, s := range b.Seats {
			if _, ok := l.taken[seatKey{b.ShowID, s.SeatID}]; ok {
				return model.ErrSeatAlreadyBooked
			}
		}
	}
	for _, b := range staged {
		l.store(b)
	}
	return nil
}

// store must be called with mu held.
func (l *memLedger) store(b *model.Booking) {
	l.nextID++
	b.ID = l.nextID
	for i := range b.Seats {
		b.Seats[i].BookingID = b.ID
		b.Seats[i].ID = l.nextID*1000 + uint64(i)
		l.taken[seatKey{b.ShowID, b.Seats[i].SeatID}] = b.ID
	}
	cp := *b
	cp.Seats = append([]model.BookedSeat(nil), b.Seats...)
	l.bookings[b.ID] = &cp
}

// seed commits a booking directly, bypassing any unit.
func (l *memLedger) seed(showID uint64, seatIDs ...uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := &model.Booking{ShowID: showID, Status: model.BookingConfirmed}
	for _, id := range seatIDs {
		b.Seats = append(b.Seats, model.BookedSeat{ShowID: showID, SeatID: id})
	}
	l.store(b)
}

func (l *memLedger) SeatsBookedForShow(_ context.Context, showID uint64) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []uint64
	for k := range l.taken {
		if k.show == showID {
			ids = append(ids, k.seat)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (l *memLedger) CountBookedByShow(_ context.Context, showIDs []uint64) (map[uint64]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[uint64]int, len(showIDs))
	for k := range l.taken {
		out[k.show]++
	}
	return out, nil
}

func (l *memLedger) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	cp := *b
	cp.Seats = append([]model.BookedSeat(nil), b.Seats...)
	return &cp, nil
}

func (l *memLedger) bookingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bookings)
}

func (l *memLedger) unitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.units
}

type memTx struct {
	ledger *memLedger
	staged []*model.Booking
}

func (t *memTx) SeatsBookedForShow(ctx context.Context, showID uint64) ([]uint64, error) {
	ids, err := t.ledger.SeatsBookedForShow(ctx, showID)
	if hook := t.ledger.afterRead; hook != nil {
		hook()
	}
	return ids, err
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	t.staged = append(t.staged, b)
	return nil
}

// blockingCatalog holds GetHallSeats until release is closed or the
// caller's context ends.
type blockingCatalog struct {
	*memCatalog
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingCatalog(c *memCatalog) *blockingCatalog {
	return &blockingCatalog{memCatalog: c, entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *blockingCatalog) GetHallSeats(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	c.once.Do(func() { close(c.entered) })
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.memCatalog.GetHallSeats(ctx, hallID)
}

// memCache is a versioned in-memory availability cache.
type memCache struct {
	mu          sync.Mutex
	versions    map[uint64]int64
	entries     map[seatKey][]model.SeatOffer
	invalidated []uint64
	sets        int
}

func newMemCache() *memCache {
	return &memCache{versions: map[uint64]int64{}, entries: map[seatKey][]model.SeatOffer{}}
}

func (c *memCache) Get(_ context.Context, showID uint64) ([]model.SeatOffer, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.versions[showID]
	offers, ok := c.entries[seatKey{showID, uint64(v)}]
	return offers, v, ok, nil
}

func (c *memCache) Set(_ context.Context, showID uint64, version int64, offers []model.SeatOffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[seatKey{showID, uint64(version)}] = offers
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, showID uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[showID]++
	c.invalidated = append(c.invalidated, showID)
	return nil
}
