package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// ShowGetter confirms a show exists before a client is upgraded.
type ShowGetter interface {
	GetShow(ctx context.Context, showID uint64) (*model.Show, error)
}

// SeatRelay streams a show's seat events to an upgraded connection.
type SeatRelay interface {
	Serve(ctx context.Context, conn *websocket.Conn, showID uint64) error
}

// LiveHandler upgrades GET /v1/shows/:id/live to a websocket.
type LiveHandler struct {
	Shows  ShowGetter
	Relay  SeatRelay
	Logger *logrus.Logger

	// base outlives the request: hijacked connections are not tracked
	// by the HTTP server, so shutdown reaches them through base.
	base     context.Context
	upgrader websocket.Upgrader
}

// NewLiveHandler returns a handler whose connections close when base ends.
func NewLiveHandler(base context.Context, shows ShowGetter, relay SeatRelay, logger *logrus.Logger) *LiveHandler {
	return &LiveHandler{
		Shows:  shows,
		Relay:  relay,
		Logger: logger,
		base:   base,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// allow all origins, the stream carries no private data
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream handles GET /v1/shows/:id/live.
func (h *LiveHandler) Stream(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	if _, err := h.Shows.GetShow(c.Request().Context(), showID); err != nil {
		return writeError(c, h.Logger, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		return nil
	}

	log := h.Logger.WithFields(logrus.Fields{"show_id": showID, "remote_ip": c.RealIP()})
	log.Debug("live client connected")
	if err := h.Relay.Serve(h.base, conn, showID); err != nil {
		log.WithField("error", err.Error()).Warn("live relay ended")
		return nil
	}
	log.Debug("live client disconnected")
	return nil
}
