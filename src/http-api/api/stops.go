package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jack-barr3tt/db-engine/src/common/types"
)

const dateLayout = "2006-01-02"

func stopsCacheKey(eva int64, date string) string {
	return fmt.Sprintf("api:stops:%d:%s", eva, date)
}

const hourlyDelaysCacheKey = "api:delays:hourly"

// GetStationStops lists the stored stops of one station for a day, today
// when no date is given.
func (s *APIServer) GetStationStops(c *fiber.Ctx) error {
	eva, err := strconv.ParseInt(c.Params("eva"), 10, 64)
	if err != nil || eva <= 0 {
		return c.Status(http.StatusBadRequest).JSON(types.ErrorResponse{
			Error:   "Invalid parameter",
			Message: "eva must be a positive integer",
		})
	}

	date := s.now().UTC()
	if raw := c.Query("date"); raw != "" {
		date, err = time.Parse(dateLayout, raw)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   "Invalid parameter",
				Message: "date must be formatted as YYYY-MM-DD",
			})
		}
	}
	day := date.Format(dateLayout)

	body, err := s.cached(c.UserContext(), stopsCacheKey(eva, day), func() (any, error) {
		stops, err := s.Store.StopsForStation(c.UserContext(), eva, date)
		if err != nil {
			return nil, err
		}
		return types.StationStopsResponse{EvaNumber: eva, Date: day, Stops: stops}, nil
	})
	if err != nil {
		s.Logger.Errorw("failed to query stops", "eva", eva, "date", day, "error", err)
		errStr := err.Error()
		return c.Status(http.StatusInternalServerError).JSON(types.ErrorResponse{
			Error:   "Database error",
			Message: "Failed to retrieve stops",
			Stack:   &errStr,
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

func (s *APIServer) GetHourlyDelays(c *fiber.Ctx) error {
	body, err := s.cached(c.UserContext(), hourlyDelaysCacheKey, func() (any, error) {
		return s.Store.HourlyDelays(c.UserContext())
	})
	if err != nil {
		s.Logger.Errorw("failed to query hourly delays", "error", err)
		errStr := err.Error()
		return c.Status(http.StatusInternalServerError).JSON(types.ErrorResponse{
			Error:   "Database error",
			Message: "Failed to retrieve delay summary",
			Stack:   &errStr,
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
