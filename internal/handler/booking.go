package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
	"github.com/iliyamo/cinema-booking-engine/internal/pricing"
)

// Booker commits bookings and reads them back as tickets.
type Booker interface {
	Book(ctx context.Context, showID uint64, seatIDs []uint64) (*model.Booking, error)
	Ticket(ctx context.Context, bookingID uint64) (*model.Ticket, error)
}

// BookingHandler serves the write side: booking seats and fetching tickets.
type BookingHandler struct {
	Engine Booker
	Logger *logrus.Logger
}

func NewBookingHandler(engine Booker, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{Engine: engine, Logger: logger}
}

type bookedSeatItem struct {
	SeatID        uint64 `json:"seat_id"`
	SeatLabel     string `json:"seat_label"`
	SeatTypeTitle string `json:"seat_type_title,omitempty"`
	PriceCents    int64  `json:"price_cents"`
	Price         string `json:"price"`
}

type bookingResponse struct {
	BookingID       uint64              `json:"booking_id"`
	ShowID          uint64              `json:"show_id"`
	Status          model.BookingStatus `json:"status"`
	Seats           []bookedSeatItem    `json:"seats"`
	TotalPriceCents int64               `json:"total_price_cents"`
	TotalPrice      string              `json:"total_price"`
	CreatedAt       time.Time           `json:"created_at"`
	Show            *ticketShowInfo     `json:"show,omitempty"`
}

type ticketShowInfo struct {
	Movie    string    `json:"movie"`
	Hall     string    `json:"hall"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// CreateBooking handles POST /v1/shows/:id/bookings.  The request body
// must contain a JSON object with a "seat_ids" array.  All seats are
// booked or none are.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var body struct {
		SeatIDs []uint64 `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	b, err := h.Engine.Book(c.Request().Context(), showID, body.SeatIDs)
	if err != nil {
		return writeError(c, h.Logger, err)
	}

	seats := make([]bookedSeatItem, 0, len(b.Seats))
	for _, s := range b.Seats {
		seats = append(seats, bookedSeatItem{
			SeatID:     s.SeatID,
			SeatLabel:  s.Label,
			PriceCents: s.PriceCents,
			Price:      pricing.FormatCents(s.PriceCents),
		})
	}
	return c.JSON(http.StatusCreated, bookingResponse{
		BookingID:       b.ID,
		ShowID:          b.ShowID,
		Status:          b.Status,
		Seats:           seats,
		TotalPriceCents: b.TotalCents,
		TotalPrice:      pricing.FormatCents(b.TotalCents),
		CreatedAt:       b.CreatedAt.UTC(),
	})
}

// GetTicket handles GET /v1/bookings/:id.
func (h *BookingHandler) GetTicket(c echo.Context) error {
	bookingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	t, err := h.Engine.Ticket(c.Request().Context(), bookingID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}

	seats := make([]bookedSeatItem, 0, len(t.Seats))
	for _, s := range t.Seats {
		seats = append(seats, bookedSeatItem{
			SeatID:        s.SeatID,
			SeatLabel:     s.Label,
			SeatTypeTitle: s.SeatTypeTitle,
			PriceCents:    s.PriceCents,
			Price:         pricing.FormatCents(s.PriceCents),
		})
	}
	return c.JSON(http.StatusOK, bookingResponse{
		BookingID:       t.Booking.ID,
		ShowID:          t.Booking.ShowID,
		Status:          t.Booking.Status,
		Seats:           seats,
		TotalPriceCents: t.Booking.TotalCents,
		TotalPrice:      pricing.FormatCents(t.Booking.TotalCents),
		CreatedAt:       t.Booking.CreatedAt.UTC(),
		Show: &ticketShowInfo{
			Movie:    t.MovieName,
			Hall:     t.HallName,
			StartsAt: t.StartsAt.UTC(),
			EndsAt:   t.EndsAt.UTC(),
		},
	})
}
