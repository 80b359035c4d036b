package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-engine/internal/handler"
)

// RegisterRoutes registers the operational endpoints.  /healthz answers
// as long as the process runs; /readyz also pings the database.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterShows registers the read side: show listings, availability and
// the live seat stream.  live may be nil when Redis is not configured.
func RegisterShows(e *echo.Echo, s *handler.ShowHandler, live *handler.LiveHandler) {
	g := e.Group("/v1")
	g.GET("/shows", s.ListShows)
	g.GET("/shows/:id/availability", s.GetAvailability)
	if live != nil {
		g.GET("/shows/:id/live", live.Stream)
	}
}

// RegisterBookings registers the write side.  limit runs only in front
// of booking creation, the one endpoint that opens ledger transactions.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.POST("/shows/:id/bookings", b.CreateBooking, limit)
	g.GET("/bookings/:id", b.GetTicket)
}
