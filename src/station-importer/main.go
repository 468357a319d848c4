package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jack-barr3tt/db-engine/src/common/config"
	"github.com/jack-barr3tt/db-engine/src/common/data"
	"github.com/jack-barr3tt/db-engine/src/common/dbapi"
	"github.com/jack-barr3tt/db-engine/src/common/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	utils.InitLogger()
	defer utils.SyncLogger()
	logger := utils.ServiceLogger("station-importer")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Errorw("failed to load configuration", "error", err)
		return 1
	}

	pg, err := utils.NewPostgresConnection(ctx)
	if err != nil {
		logger.Errorw("failed to connect to Postgres", "error", err)
		return 1
	}
	defer pg.Close()

	rdb := utils.NewRedisClient()
	defer rdb.Close()

	dc := data.NewDataClient(pg, rdb, logger)
	if err := dc.EnsureSchema(ctx); err != nil {
		logger.Errorw("failed to prepare schema", "error", err)
		return 1
	}

	logger.Info("Updating stations reference data...")
	stations, err := dbapi.NewClient(cfg).FetchStations(ctx)
	if err != nil {
		logger.Errorw("failed to fetch stations", "error", err)
		return 1
	}

	written, err := dc.UpsertStations(ctx, stations)
	if err != nil {
		logger.Errorw("failed to store stations", "error", err)
		return 1
	}
	logger.Infow("Stations reference data updated successfully", "fetched", len(stations), "written", written)

	// renamed or removed stations must not be served from a stale cache
	for _, name := range cfg.Stations {
		if err := rdb.Del(ctx, data.BuildStationKey(name)).Err(); err != nil {
			logger.Warnw("failed to clear station cache", "station", name, "error", err)
		}
	}

	return 0
}
