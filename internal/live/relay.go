package live

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings with this period, must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512
)

// Relay forwards a show's Redis channel to websocket connections.
type Relay struct {
	rdb    redis.UniversalClient
	logger *logrus.Logger

	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewRelay(rdb redis.UniversalClient, logger *logrus.Logger) *Relay {
	return &Relay{rdb: rdb, logger: logger, pingPeriod: pingPeriod, pongWait: pongWait}
}

// Serve subscribes to the show's channel and writes every event to conn
// until the client goes away, ctx ends or the subscription fails.  Serve
// owns conn and closes it on return.
func (r *Relay) Serve(ctx context.Context, conn *websocket.Conn, showID uint64) error {
	defer conn.Close()

	sub := r.rdb.Subscribe(ctx, Channel(showID))
	defer sub.Close()

	// wait for the subscription so no event published after the upgrade is lost
	if _, err := sub.Receive(ctx); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "live updates unavailable"),
			time.Now().Add(writeWait))
		return fmt.Errorf("subscribe %s: %w", Channel(showID), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.readPump(conn, cancel)

	ticker := time.NewTicker(r.pingPeriod)
	defer ticker.Stop()
	msgs := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return err
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (r *Relay) readPump(conn *websocket.Conn, done context.CancelFunc) {
	defer done()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(r.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.WithField("error", err.Error()).Debug("live client read failed")
			}
			return
		}
	}
}
