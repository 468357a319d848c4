package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jack-barr3tt/db-engine/src/common/types"
)

// GetHealth implements the health check endpoint
func (s *APIServer) GetHealth(c *fiber.Ctx) error {
	response := types.HealthResponse{
		Status:  "healthy",
		Version: "1.0.0",
	}
	return c.JSON(response)
}
