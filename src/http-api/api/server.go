package api

import (
	"context"
	"time"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const responseCacheTTL = 5 * time.Minute

// Store is the read side of the data client.
type Store interface {
	StationsByName(ctx context.Context, names []string) ([]types.Station, error)
	StopsForStation(ctx context.Context, evaNumber int64, date time.Time) ([]types.StoredStop, error)
	HourlyDelays(ctx context.Context) ([]types.HourlyDelay, error)
}

type APIServer struct {
	Store    Store
	Redis    *redis.Client
	Logger   *zap.SugaredLogger
	Stations []string
	now      func() time.Time
}

// NewServer builds the read API. rdb may be nil, in which case every request
// goes to Postgres.
func NewServer(store Store, rdb *redis.Client, logger *zap.SugaredLogger, stations []string) *APIServer {
	return &APIServer{
		Store:    store,
		Redis:    rdb,
		Logger:   logger,
		Stations: stations,
		now:      time.Now,
	}
}
