package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterHandlers(app *fiber.App, s *APIServer) {
	app.Get("/health", s.GetHealth)
	app.Get("/stations", s.GetStations)
	app.Get("/stations/:eva/stops", s.GetStationStops)
	app.Get("/delays/hourly", s.GetHourlyDelays)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
