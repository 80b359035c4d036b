// Package cache keeps display snapshots of show availability in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

// AvailabilityCache stores one JSON snapshot per show and version.
//
// Keys:
//
//	<prefix>:<show>:ver        current version, INCR'd on every commit
//	<prefix>:<show>:v<version> snapshot, expires after ttl
//
// The version key never expires: letting it reset would make old
// snapshot keys reachable again.
type AvailabilityCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.AvailabilityCache = (*AvailabilityCache)(nil)

// NewAvailabilityCache returns a cache over rdb.  An empty prefix
// defaults to "avail" and a non-positive ttl to 30s.
func NewAvailabilityCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) *AvailabilityCache {
	if prefix == "" {
		prefix = "avail"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AvailabilityCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *AvailabilityCache) versionKey(showID uint64) string {
	return c.prefix + ":" + strconv.FormatUint(showID, 10) + ":ver"
}

func (c *AvailabilityCache) dataKey(showID uint64, version int64) string {
	return fmt.Sprintf("%s:%d:v%d", c.prefix, showID, version)
}

// Get returns the snapshot for the show's current version, if any.
func (c *AvailabilityCache) Get(ctx context.Context, showID uint64) ([]model.SeatOffer, int64, bool, error) {
	version, err := c.rdb.Get(ctx, c.versionKey(showID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("get version: %w", err)
	}

	bs, err := c.rdb.Get(ctx, c.dataKey(showID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, fmt.Errorf("get snapshot: %w", err)
	}
	var offers []model.SeatOffer
	if err := json.Unmarshal(bs, &offers); err != nil {
		// a corrupt entry behaves like a miss and is overwritten by the next Set
		return nil, version, false, nil
	}
	return offers, version, true, nil
}

// Set stores offers as the snapshot of the given version.
func (c *AvailabilityCache) Set(ctx context.Context, showID uint64, version int64, offers []model.SeatOffer) error {
	if offers == nil {
		offers = []model.SeatOffer{}
	}
	bs, err := json.Marshal(offers)
	if err != nil {
		return err
	}
	return c.rdb.SetEx(ctx, c.dataKey(showID, version), bs, c.ttl).Err()
}

// Invalidate bumps the show's version so every later Get misses.
func (c *AvailabilityCache) Invalidate(ctx context.Context, showID uint64) error {
	return c.rdb.Incr(ctx, c.versionKey(showID)).Err()
}
