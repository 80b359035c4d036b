package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

// retryAfterSeconds is advertised when the engine ran out of retries.
const retryAfterSeconds = 1

// writeError maps domain errors onto status codes and JSON bodies.
// Anything unrecognised is logged and reported as a 500 without detail.
func writeError(c echo.Context, logger *logrus.Logger, err error) error {
	var (
		dup         *model.DuplicateSeatError
		foreign     *model.SeatNotInHallError
		unavailable *model.SeatUnavailableError
	)
	switch {
	case errors.Is(err, model.ErrEmptySeatRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	case errors.As(err, &dup):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":      "duplicate seat in request",
			"duplicates": dup.SeatIDs,
		})
	case errors.Is(err, model.ErrShowNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
	case errors.Is(err, model.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.As(err, &foreign):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":    "seats do not belong to the show's hall",
			"seat_ids": foreign.SeatIDs,
		})
	case errors.As(err, &unavailable):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some seats are unavailable",
			"unavailable": unavailable.SeatIDs,
		})
	case errors.Is(err, model.ErrRetryable):
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"error":       "booking could not be completed, retry later",
			"retry_after": retryAfterSeconds,
		})
	}

	logger.WithFields(logrus.Fields{
		"path":  c.Path(),
		"error": err.Error(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// parseID reads a positive uint64 path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
