package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-booking-engine/internal/pricing"
)

// showItem is a show as listed to customers.
type showItem struct {
	ShowID         uint64    `json:"show_id"`
	Movie          string    `json:"movie"`
	Hall           string    `json:"hall"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	BasePriceCents int64     `json:"base_price_cents"`
	BasePrice      string    `json:"base_price"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	SoldOut        bool      `json:"sold_out"`
}

// ListShows handles GET /v1/shows.
//
// Query: from (RFC3339, default now), include_sold_out (bool, default
// false), page (default 1) and page_size (default 20, at most 100).
func (h *ShowHandler) ListShows(c echo.Context) error {
	from := h.Now().UTC()
	if raw := strings.TrimSpace(c.QueryParam("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC3339"})
		}
		from = t.UTC()
	}
	includeSoldOut := false
	if raw := c.QueryParam("include_sold_out"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "include_sold_out must be a boolean"})
		}
		includeSoldOut = b
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	ps, _ := strconv.Atoi(c.QueryParam("page_size"))
	if ps < 1 {
		ps = 20
	}
	if ps > 100 {
		ps = 100
	}

	showings, err := h.Reader.ListShowings(c.Request().Context(), from, includeSoldOut)
	if err != nil {
		return writeError(c, h.Logger, err)
	}

	total := len(showings)
	lo := (page - 1) * ps
	if lo > total {
		lo = total
	}
	hi := lo + ps
	if hi > total {
		hi = total
	}

	items := make([]showItem, 0, hi-lo)
	for _, s := range showings[lo:hi] {
		items = append(items, showItem{
			ShowID:         s.Show.ID,
			Movie:          s.MovieName,
			Hall:           s.HallName,
			StartsAt:       s.Show.StartsAt.UTC(),
			EndsAt:         s.Show.EndsAt(s.DurationMin).UTC(),
			BasePriceCents: s.Show.BasePriceCents,
			BasePrice:      pricing.FormatCents(s.Show.BasePriceCents),
			TotalSeats:     s.TotalSeats,
			AvailableSeats: s.AvailableSeats,
			SoldOut:        s.SoldOut(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": ps,
	})
}
