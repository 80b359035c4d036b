package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/pricing"
	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

// AvailabilityResolver derives which seats of a show are still free.
// Nothing per-show is stored: availability is always the hall layout
// minus the seats committed in the ledger.  Reads here are for display
// and are not serialized against bookings.
type AvailabilityResolver struct {
	catalog ports.Catalog
	ledger  ports.Ledger
	cache   ports.AvailabilityCache
	group   singleflight.Group
	logger  *logrus.Logger
	// sharedTimeout bounds a computation shared by concurrent misses.
	sharedTimeout time.Duration
}

// NewAvailabilityResolver builds a resolver.  cache may be nil.
func NewAvailabilityResolver(
	catalog ports.Catalog,
	ledger ports.Ledger,
	cache ports.AvailabilityCache,
	logger *logrus.Logger,
) *AvailabilityResolver {
	return &AvailabilityResolver{
		catalog: catalog,
		ledger:  ledger,
		cache:   cache,
		logger:  logger,

		sharedTimeout: 5 * time.Second,
	}
}

// AvailableSeatIDs returns the free seat ids of a show in hall order.
func (r *AvailabilityResolver) AvailableSeatIDs(ctx context.Context, showID uint64) ([]uint64, error) {
	show, err := r.catalog.GetShow(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}
	free, err := r.freeSeats(ctx, show)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(free))
	for _, s := range free {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Availability returns every free seat of a show with its label, seat
// type and price.  Snapshots are served from the cache when one is
// configured; concurrent misses for the same show share one computation.
// The shared computation is detached from any one caller, so a caller
// that gives up does not fail the others.
func (r *AvailabilityResolver) Availability(ctx context.Context, showID uint64) ([]model.SeatOffer, error) {
	if r.cache == nil {
		return r.compute(ctx, showID)
	}

	offers, version, hit, err := r.cache.Get(ctx, showID)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"show_id": showID,
			"error":   err.Error(),
		}).Warn("availability cache read failed")
		return r.compute(ctx, showID)
	}
	if hit {
		return offers, nil
	}

	key := strconv.FormatUint(showID, 10) + ":" + strconv.FormatInt(version, 10)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sharedTimeout)
		defer cancel()

		computed, err := r.compute(sctx, showID)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(sctx, showID, version, computed); err != nil {
			r.logger.WithFields(logrus.Fields{
				"show_id": showID,
				"error":   err.Error(),
			}).Warn("availability cache write failed")
		}
		return computed, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.SeatOffer), nil
	}
}

// ListShowings returns shows starting at or after from with their seat
// counts.  Sold out shows are left out unless includeSoldOut is set.
func (r *AvailabilityResolver) ListShowings(ctx context.Context, from time.Time, includeSoldOut bool) ([]model.Showing, error) {
	showings, err := r.catalog.ListShowsFrom(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	if len(showings) == 0 {
		return []model.Showing{}, nil
	}
	ids := make([]uint64, 0, len(showings))
	for _, s := range showings {
		ids = append(ids, s.Show.ID)
	}
	booked, err := r.ledger.CountBookedByShow(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count booked seats: %w", err)
	}

	result := make([]model.Showing, 0, len(showings))
	for _, s := range showings {
		s.AvailableSeats = s.TotalSeats - booked[s.Show.ID]
		if s.AvailableSeats < 0 {
			s.AvailableSeats = 0
		}
		if s.SoldOut() && !includeSoldOut {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *AvailabilityResolver) compute(ctx context.Context, showID uint64) ([]model.SeatOffer, error) {
	show, err := r.catalog.GetShow(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("get show: %w", err)
	}
	free, err := r.freeSeats(ctx, show)
	if err != nil {
		return nil, err
	}
	types, err := r.catalog.GetSeatTypes(ctx, seatTypeIDs(free))
	if err != nil {
		return nil, fmt.Errorf("get seat types: %w", err)
	}

	offers := make([]model.SeatOffer, 0, len(free))
	for _, seat := range free {
		st, ok := types[seat.SeatTypeID]
		if !ok {
			return nil, fmt.Errorf("seat %d: unknown seat type %d", seat.ID, seat.SeatTypeID)
		}
		price, err := pricing.SeatPrice(show.BasePriceCents, st.PremiumPercent)
		if err != nil {
			return nil, fmt.Errorf("price seat %d: %w", seat.ID, err)
		}
		offers = append(offers, model.SeatOffer{
			SeatID:        seat.ID,
			SeatLabel:     seat.Label,
			SeatTypeTitle: st.Title,
			PriceCents:    price,
		})
	}
	return offers, nil
}

func (r *AvailabilityResolver) freeSeats(ctx context.Context, show *model.Show) ([]model.Seat, error) {
	seats, err := r.catalog.GetHallSeats(ctx, show.HallID)
	if err != nil {
		return nil, fmt.Errorf("get hall seats: %w", err)
	}
	booked, err := r.ledger.SeatsBookedForShow(ctx, show.ID)
	if err != nil {
		return nil, fmt.Errorf("read booked seats: %w", err)
	}
	taken := make(map[uint64]struct{}, len(booked))
	for _, id := range booked {
		taken[id] = struct{}{}
	}
	free := make([]model.Seat, 0, len(seats))
	for _, s := range seats {
		if _, ok := taken[s.ID]; !ok {
			free = append(free, s)
		}
	}
	return free, nil
}

func seatTypeIDs(seats []model.Seat) []uint64 {
	seen := make(map[uint64]struct{})
	ids := make([]uint64, 0)
	for _, s := range seats {
		if _, ok := seen[s.SeatTypeID]; ok {
			continue
		}
		seen[s.SeatTypeID] = struct{}{}
		ids = append(ids, s.SeatTypeID)
	}
	return ids
}
