package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jack-barr3tt/db-engine/src/common/config"
	"github.com/jack-barr3tt/db-engine/src/common/data"
	"github.com/jack-barr3tt/db-engine/src/common/dbapi"
	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jack-barr3tt/db-engine/src/common/utils"
	"go.uber.org/zap"
)

type coordinateSource interface {
	StationCoordinates(ctx context.Context, name string) (types.Coordinates, error)
}

type weatherSource interface {
	Current(ctx context.Context, coords types.Coordinates) (types.WeatherAPICurrent, error)
}

// collect reads the current weather for every station. Stations that fail
// are logged and left out.
func collect(ctx context.Context, logger *zap.SugaredLogger, stations []string, coords coordinateSource, weather weatherSource, now time.Time) []types.WeatherObservation {
	observations := make([]types.WeatherObservation, 0, len(stations))

	for _, station := range stations {
		location, err := coords.StationCoordinates(ctx, station)
		if err != nil {
			logger.Errorw("failed to look up station coordinates", "station", station, "error", err)
			continue
		}

		current, err := weather.Current(ctx, location)
		if err != nil {
			logger.Errorw("failed to fetch weather", "station", station, "error", err)
			continue
		}

		observations = append(observations, types.WeatherObservation{
			StationName: station,
			Hour:        now.Hour(),
			Temperature: current.TempC,
			Humidity:    current.Humidity,
			Wind:        current.WindKph,
			Condition:   current.Condition.Text,
			Visibility:  current.VisKm,
			RecordTime:  now,
		})
	}

	return observations
}

func main() {
	os.Exit(run())
}

func run() int {
	utils.InitLogger()
	defer utils.SyncLogger()
	logger := utils.ServiceLogger("weather-fetcher")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWeather()
	if err != nil {
		logger.Errorw("failed to load configuration", "error", err)
		return 1
	}

	weather, err := dbapi.NewWeatherClient(cfg)
	if err != nil {
		logger.Errorw("failed to configure weather client", "error", err)
		return 1
	}

	pg, err := utils.NewPostgresConnection(ctx)
	if err != nil {
		logger.Errorw("failed to connect to Postgres", "error", err)
		return 1
	}
	defer pg.Close()

	dc := data.NewDataClient(pg, nil, logger)
	if err := dc.EnsureSchema(ctx); err != nil {
		logger.Errorw("failed to prepare schema", "error", err)
		return 1
	}

	observations := collect(ctx, logger, cfg.Stations, dc, weather, time.Now())

	saved, err := dc.SaveWeather(ctx, observations)
	if err != nil {
		logger.Errorw("failed to store weather", "error", err)
		return 1
	}
	logger.Infow("weather recorded", "stations", len(cfg.Stations), "saved", saved)

	return 0
}
