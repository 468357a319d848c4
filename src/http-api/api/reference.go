package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jack-barr3tt/db-engine/src/common/types"
)

func (s *APIServer) GetStations(c *fiber.Ctx) error {
	stations, err := s.Store.StationsByName(c.UserContext(), s.Stations)
	if err != nil {
		s.Logger.Errorw("failed to query stations", "error", err)
		errStr := err.Error()
		return c.Status(http.StatusInternalServerError).JSON(types.ErrorResponse{
			Error:   "Database error",
			Message: "Failed to retrieve stations",
			Stack:   &errStr,
		})
	}

	return c.JSON(stations)
}
