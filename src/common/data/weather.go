package data

import (
	"context"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jackc/pgx/v5"
)

func (dc *DataClient) SaveWeather(ctx context.Context, observations []types.WeatherObservation) (int64, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	return dc.pg.CopyFrom(ctx,
		pgx.Identifier{"raw_weather"},
		[]string{"station_name", "hour", "temperature", "humidity", "wind", "condition", "visibility", "record_time"},
		pgx.CopyFromSlice(len(observations), func(i int) ([]any, error) {
			o := observations[i]
			return []any{o.StationName, o.Hour, o.Temperature, o.Humidity, o.Wind, o.Condition, o.Visibility, o.RecordTime}, nil
		}),
	)
}
