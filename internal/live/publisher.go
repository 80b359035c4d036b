// Package live fans booked seats out to websocket listeners over Redis
// pub/sub, so every server instance sees every commit.
package live

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

// EventSeatsBooked is the only event type published today.
const EventSeatsBooked = "seats.booked"

// SeatEvent is the JSON payload sent on a show's channel and relayed
// unchanged to websocket clients.
type SeatEvent struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	ShowID  uint64    `json:"show_id"`
	SeatIDs []uint64  `json:"seat_ids"`
	At      time.Time `json:"at"`
}

// Channel returns the pub/sub channel carrying a show's seat events.
func Channel(showID uint64) string {
	return "show:" + strconv.FormatUint(showID, 10) + ":seats"
}

// Publisher implements ports.SeatBroadcaster on Redis PUBLISH.
type Publisher struct {
	rdb redis.UniversalClient
	now func() time.Time
}

var _ ports.SeatBroadcaster = (*Publisher)(nil)

func NewPublisher(rdb redis.UniversalClient) *Publisher {
	return &Publisher{rdb: rdb, now: time.Now}
}

// SeatsBooked publishes one event for the committed seats.
func (p *Publisher) SeatsBooked(ctx context.Context, showID uint64, seatIDs []uint64) error {
	ev := SeatEvent{
		ID:      uuid.NewString(),
		Type:    EventSeatsBooked,
		ShowID:  showID,
		SeatIDs: seatIDs,
		At:      p.now().UTC(),
	}
	if ev.SeatIDs == nil {
		ev.SeatIDs = []uint64{}
	}
	bs, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(showID), bs).Err()
}
