// Package handler exposes the booking engine over HTTP.
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

// AvailabilityReader serves the read side of the catalog.
type AvailabilityReader interface {
	Availability(ctx context.Context, showID uint64) ([]model.SeatOffer, error)
	ListShowings(ctx context.Context, from time.Time, includeSoldOut bool) ([]model.Showing, error)
}

// ShowHandler serves show listings and seat availability.
type ShowHandler struct {
	Reader AvailabilityReader
	Logger *logrus.Logger
	Now    func() time.Time
}

func NewShowHandler(reader AvailabilityReader, logger *logrus.Logger) *ShowHandler {
	return &ShowHandler{Reader: reader, Logger: logger, Now: time.Now}
}

// offerItem is one free seat with its price in cents and as text.
type offerItem struct {
	SeatID        uint64 `json:"seat_id"`
	SeatLabel     string `json:"seat_label"`
	SeatTypeTitle string `json:"seat_type_title"`
	PriceCents    int64  `json:"price_cents"`
	Price         string `json:"price"`
}

// GetAvailability handles GET /v1/shows/:id/availability.
func (h *ShowHandler) GetAvailability(c echo.Context) error {
	showID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	offers, err := h.Reader.Availability(c.Request().Context(), showID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	items := make([]offerItem, 0, len(offers))
	for _, o := range offers {
		items = append(items, offerItem{
			SeatID:        o.SeatID,
			SeatLabel:     o.SeatLabel,
			SeatTypeTitle: o.SeatTypeTitle,
			PriceCents:    o.PriceCents,
			Price:         pricing.FormatCents(o.PriceCents),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": showID, "items": items})
}
