package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jack-barr3tt/db-engine/src/common/config"
	"github.com/jack-barr3tt/db-engine/src/common/data"
	"github.com/jack-barr3tt/db-engine/src/common/dbapi"
	"github.com/jack-barr3tt/db-engine/src/common/events"
	"github.com/jack-barr3tt/db-engine/src/common/ingest"
	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jack-barr3tt/db-engine/src/common/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	utils.InitLogger()
	defer utils.SyncLogger()
	logger := utils.ServiceLogger("update-timetables")

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

	publisher, closePublisher := events.Connect(logger)
	defer closePublisher()

	ingestor := ingest.NewIngestor(dc, dbapi.NewClient(cfg), dc, publisher, logger)
	summary := ingestor.Run(ctx, types.FeedChanges, cfg.Stations)

	if err := summary.Err(); err != nil {
		logger.Errorw("station configuration needs attention", "run_id", summary.RunID, "error", err)
		return 1
	}

	return 0
}
