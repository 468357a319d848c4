package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jack-barr3tt/db-engine/src/common/config"
	"github.com/jack-barr3tt/db-engine/src/common/data"
	"github.com/jack-barr3tt/db-engine/src/common/events"
	"github.com/jack-barr3tt/db-engine/src/common/utils"
	"github.com/jack-barr3tt/db-engine/src/http-api/api"
)

func main() {
	utils.InitLogger()
	defer utils.SyncLogger()
	log := utils.ServiceLogger("http-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnv(); err != nil {
		log.Fatalw("failed to load environment", "error", err)
	}
	stations, err := config.Stations()
	if err != nil {
		log.Fatalw("failed to load station list", "error", err)
	}

	db, err := utils.NewPostgresConnection(ctx)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	rdb := utils.NewRedisClient()
	defer rdb.Close()

	server := api.NewServer(data.NewDataClient(db, rdb, log), rdb, log, stations)

	var wg sync.WaitGroup
	mqConn, channel, err := utils.NewRabbitConnection()
	if err != nil {
		log.Warnw("RabbitMQ unavailable, cached responses expire by TTL only", "error", err)
	} else {
		defer mqConn.Close()
		defer channel.Close()

		listener := events.NewListener(ctx, &wg, channel, events.QueueTimetableUpdates, log, server.Invalidate)
		wg.Add(1)
		go func() {
			if err := listener.Start(); err != nil {
				log.Errorw("ingestion event listener stopped", "error", err)
			}
		}()
	}

	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()

		path := c.Path()
		if path != "/health" && path != "/metrics" {
			log.Infow("request", "method", c.Method(), "path", path, "status", c.Response().StatusCode())
		}

		return err
	})

	app.Use(cors.New())

	api.RegisterHandlers(app, server)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			log.Warnw("fiber shutdown failed", "error", err)
		}
	}()

	if err := app.Listen(":3000"); err != nil {
		log.Fatalw("fiber listen failed", "error", err)
	}

	stop()
	wg.Wait()
}
