package data

import (
	"context"
	"fmt"

	"github.com/jack-barr3tt/db-engine/src/common/types"
)

// UpsertStations refreshes raw_stations from the station data API. Rows are
// keyed by eva number; names and coordinates are overwritten.
func (dc *DataClient) UpsertStations(ctx context.Context, stations []types.Station) (int, error) {
	if len(stations) == 0 {
		return 0, nil
	}

	numbers := make([]int32, len(stations))
	names := make([]string, len(stations))
	cities := make([]string, len(stations))
	zipcodes := make([]string, len(stations))
	states := make([]string, len(stations))
	evas := make([]int64, len(stations))
	lats := make([]*float64, len(stations))
	lons := make([]*float64, len(stations))

	for i, s := range stations {
		numbers[i] = int32(s.Number)
		names[i] = s.Name
		cities[i] = s.City
		zipcodes[i] = s.Zipcode
		states[i] = s.FederalState
		evas[i] = s.EvaNumber
		lats[i] = s.Latitude
		lons[i] = s.Longitude
	}

	tx, err := dc.pg.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO raw_stations (id, name, city, zipcode, federal_state, eva_number, latitude, longitude)
		SELECT * FROM unnest(
			$1::int[], $2::text[], $3::text[], $4::text[], $5::text[], $6::bigint[], $7::float8[], $8::float8[]
		)
		ON CONFLICT (eva_number) DO UPDATE SET
			id = EXCLUDED.id,
			name = EXCLUDED.name,
			city = EXCLUDED.city,
			zipcode = EXCLUDED.zipcode,
			federal_state = EXCLUDED.federal_state,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude
	`, numbers, names, cities, zipcodes, states, evas, lats, lons)
	if err != nil {
		return 0, fmt.Errorf("upsert stations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

// StationsByName returns the stored stations for the given names, in name
// order. Unknown names are left out.
func (dc *DataClient) StationsByName(ctx context.Context, names []string) ([]types.Station, error) {
	rows, err := dc.pg.Query(ctx, `
		SELECT id, name, city, zipcode, federal_state, eva_number, latitude, longitude
		FROM raw_stations
		WHERE name = ANY($1)
		ORDER BY name, eva_number
	`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := []types.Station{}
	for rows.Next() {
		var station types.Station
		var number *int32
		var city, zipcode, state *string
		if err := rows.Scan(&number, &station.Name, &city, &zipcode, &state, &station.EvaNumber, &station.Latitude, &station.Longitude); err != nil {
			return nil, err
		}
		if number != nil {
			station.Number = int(*number)
		}
		if city != nil {
			station.City = *city
		}
		if zipcode != nil {
			station.Zipcode = *zipcode
		}
		if state != nil {
			station.FederalState = *state
		}
		stations = append(stations, station)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stations, nil
}
