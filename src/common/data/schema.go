package data

import (
	"context"
	"fmt"
)

// The natural key uses NULLS NOT DISTINCT (Postgres 15+) so stops with absent
// optional fields still collide on re-ingestion.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS raw_stations (
		id             INTEGER,
		name           TEXT NOT NULL,
		city           TEXT,
		zipcode        TEXT,
		federal_state  TEXT,
		eva_number     BIGINT PRIMARY KEY,
		latitude       DOUBLE PRECISION,
		longitude      DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS raw_stations_name_idx ON raw_stations (name)`,

	`CREATE TABLE IF NOT EXISTS timetable_stops (
		id                      BIGSERIAL PRIMARY KEY,
		station_eva_number      BIGINT NOT NULL,
		service_id              TEXT NOT NULL,
		train_category          TEXT,
		train_number            TEXT,
		train_operator          TEXT,
		platform                TEXT,
		route_before_arrival    TEXT,
		route_after_departure   TEXT,
		planned_arrival_time    TIMESTAMP,
		planned_departure_time  TIMESTAMP,
		actual_arrival_time     TIMESTAMP,
		actual_departure_time   TIMESTAMP,
		ingested_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT timetable_stops_natural_key UNIQUE NULLS NOT DISTINCT (
			station_eva_number, service_id, train_category, train_number, train_operator,
			platform, route_before_arrival, route_after_departure,
			planned_arrival_time, planned_departure_time
		)
	)`,
	`CREATE INDEX IF NOT EXISTS timetable_stops_service_idx ON timetable_stops (service_id, station_eva_number)`,

	`CREATE TABLE IF NOT EXISTS timetable_pending_changes (
		station_eva_number     BIGINT NOT NULL,
		service_id             TEXT NOT NULL,
		actual_arrival_time    TIMESTAMP,
		actual_departure_time  TIMESTAMP,
		received_at            TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (station_eva_number, service_id)
	)`,

	`CREATE TABLE IF NOT EXISTS raw_weather (
		id            BIGSERIAL PRIMARY KEY,
		station_name  TEXT NOT NULL,
		hour          INTEGER NOT NULL,
		temperature   DOUBLE PRECISION,
		humidity      INTEGER,
		wind          DOUBLE PRECISION,
		condition     TEXT,
		visibility    DOUBLE PRECISION,
		record_time   TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS data_dates (
		date DATE PRIMARY KEY
	)`,
}

// EnsureSchema creates the tables this engine writes to if they are missing.
func (dc *DataClient) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := dc.pg.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
