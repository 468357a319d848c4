package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

var ErrUnknownStation = errors.New("unknown station")

const stationCacheTTL = 24 * time.Hour

func BuildStationKey(name string) string {
	return "station:eva:" + name
}

// ResolveEvaNumber maps a configured station name to its eva number. The
// match is exact and case-sensitive; a miss is a configuration problem.
func (dc *DataClient) ResolveEvaNumber(ctx context.Context, name string) (int64, error) {
	key := BuildStationKey(name)

	if dc.rdb != nil {
		eva, err := dc.rdb.Get(ctx, key).Int64()
		if err == nil {
			return eva, nil
		}
		if !errors.Is(err, redis.Nil) {
			dc.logger.Warnw("station cache read failed", "station", name, "error", err)
		}
	}

	var eva, matches int64
	err := dc.pg.QueryRow(ctx, `
		SELECT eva_number, COUNT(*) OVER ()
		FROM raw_stations
		WHERE name = $1
		ORDER BY eva_number
		LIMIT 1
	`, name).Scan(&eva, &matches)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve station %q: %w", name, err)
	}
	if matches > 1 {
		dc.logger.Warnw("station name matches several eva numbers, using the lowest",
			"station", name, "eva", eva, "matches", matches)
	}

	if dc.rdb != nil {
		if err := dc.rdb.Set(ctx, key, eva, stationCacheTTL).Err(); err != nil {
			dc.logger.Warnw("station cache write failed", "station", name, "error", err)
		}
	}

	return eva, nil
}

func (dc *DataClient) StationCoordinates(ctx context.Context, name string) (types.Coordinates, error) {
	var lat, lon *float64
	err := dc.pg.QueryRow(ctx, `
		SELECT latitude, longitude FROM raw_stations
		WHERE name = $1
		ORDER BY eva_number
		LIMIT 1
	`, name).Scan(&lat, &lon)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Coordinates{}, fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}
	if err != nil {
		return types.Coordinates{}, err
	}

	if lat == nil || lon == nil {
		return types.Coordinates{}, fmt.Errorf("station %q has no coordinates", name)
	}

	return types.Coordinates{Latitude: *lat, Longitude: *lon}, nil
}
