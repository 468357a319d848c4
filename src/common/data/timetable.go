package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jack-barr3tt/db-engine/src/common/types"
)

var ErrWriteFailure = errors.New("timetable write failed")

// Parked changes older than this are assumed to belong to stops that will
// never be planned at this station.
const pendingChangeMaxAge = 24 * time.Hour

type PlannedResult struct {
	Skipped        int
	Inserted       int
	ChangesApplied int
}

type ChangeResult struct {
	Skipped   int
	Updated   int
	Unmatched int
}

const insertPlannedStops = `
	INSERT INTO timetable_stops (
		station_eva_number, service_id, train_category, train_number, train_operator,
		platform, route_before_arrival, route_after_departure,
		planned_arrival_time, planned_departure_time
	)
	SELECT $1::bigint, r.*
	FROM unnest(
		$2::text[], $3::text[], $4::text[], $5::text[], $6::text[],
		$7::text[], $8::text[], $9::timestamp[], $10::timestamp[]
	) AS r(
		service_id, train_category, train_number, train_operator, platform,
		route_before_arrival, route_after_departure, planned_arrival_time, planned_departure_time
	)
	ON CONFLICT DO NOTHING`

const applyPendingChanges = `
	WITH applied AS (
		DELETE FROM timetable_pending_changes p
		USING timetable_stops t
		WHERE p.station_eva_number = $1
		  AND t.station_eva_number = p.station_eva_number
		  AND t.service_id = p.service_id
		RETURNING p.service_id, p.actual_arrival_time, p.actual_departure_time
	)
	UPDATE timetable_stops t
	SET actual_arrival_time = COALESCE(a.actual_arrival_time, t.actual_arrival_time),
	    actual_departure_time = COALESCE(a.actual_departure_time, t.actual_departure_time)
	FROM (SELECT DISTINCT ON (service_id) * FROM applied) a
	WHERE t.station_eva_number = $1 AND t.service_id = a.service_id`

const updateActualTimes = `
	UPDATE timetable_stops
	SET actual_arrival_time = COALESCE($1, actual_arrival_time),
	    actual_departure_time = COALESCE($2, actual_departure_time)
	WHERE service_id = $3 AND station_eva_number = $4`

const parkChange = `
	INSERT INTO timetable_pending_changes (
		station_eva_number, service_id, actual_arrival_time, actual_departure_time, received_at
	) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (station_eva_number, service_id) DO UPDATE SET
		actual_arrival_time = COALESCE(EXCLUDED.actual_arrival_time, timetable_pending_changes.actual_arrival_time),
		actual_departure_time = COALESCE(EXCLUDED.actual_departure_time, timetable_pending_changes.actual_departure_time),
		received_at = EXCLUDED.received_at`

const purgePendingChanges = `
	DELETE FROM timetable_pending_changes
	WHERE station_eva_number = $1 AND received_at < $2`

// sortedRecords fixes the write order so batches are deterministic.
func sortedRecords(records map[string]types.StopRecord) []types.StopRecord {
	sorted := make([]types.StopRecord, 0, len(records))
	for _, r := range records {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ServiceID < sorted[j].ServiceID
	})
	return sorted
}

// WritePlanned inserts a station's planned stops, ignoring rows whose natural
// key already exists, then applies any changes that arrived before their
// planned row. Everything happens in one transaction.
func (dc *DataClient) WritePlanned(ctx context.Context, evaNumber int64, records map[string]types.StopRecord) (PlannedResult, error) {
	var result PlannedResult

	var (
		serviceIDs       []string
		categories       []*string
		numbers          []*string
		operators        []*string
		platforms        []*string
		routesBefore     []*string
		routesAfter      []*string
		plannedArrival   []*time.Time
		plannedDeparture []*time.Time
	)

	for _, r := range sortedRecords(records) {
		if !r.HasPlannedPayload() {
			dc.logger.Debugw("skipping stop without planned arrival or departure", "eva", evaNumber, "service_id", r.ServiceID)
			result.Skipped++
			continue
		}
		serviceIDs = append(serviceIDs, r.ServiceID)
		categories = append(categories, r.TrainCategory)
		numbers = append(numbers, r.TrainNumber)
		operators = append(operators, r.TrainOperator)
		platforms = append(platforms, r.Platform)
		routesBefore = append(routesBefore, r.RouteBeforeArrival)
		routesAfter = append(routesAfter, r.RouteAfterDeparture)
		plannedArrival = append(plannedArrival, r.PlannedArrivalTime)
		plannedDeparture = append(plannedDeparture, r.PlannedDepartureTime)
	}

	if len(serviceIDs) == 0 {
		return result, nil
	}

	tx, err := dc.pg.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: begin: %w", ErrWriteFailure, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertPlannedStops,
		evaNumber,
		serviceIDs,
		categories,
		numbers,
		operators,
		platforms,
		routesBefore,
		routesAfter,
		plannedArrival,
		plannedDeparture,
	)
	if err != nil {
		return result, fmt.Errorf("%w: insert planned stops: %w", ErrWriteFailure, err)
	}
	inserted := int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, applyPendingChanges, evaNumber)
	if err != nil {
		return result, fmt.Errorf("%w: apply parked changes: %w", ErrWriteFailure, err)
	}
	applied := int(tag.RowsAffected())

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("%w: commit: %w", ErrWriteFailure, err)
	}

	result.Inserted = inserted
	result.ChangesApplied = applied
	return result, nil
}

// WriteChanges applies actual times to stored stops keyed by service id and
// station. A change without a stored stop is parked instead of failing the
// batch; it never creates a planned row.
func (dc *DataClient) WriteChanges(ctx context.Context, evaNumber int64, records map[string]types.StopRecord) (ChangeResult, error) {
	var result ChangeResult

	pending := make([]types.StopRecord, 0, len(records))
	for _, r := range sortedRecords(records) {
		if !r.HasActualTime() {
			result.Skipped++
			continue
		}
		pending = append(pending, r)
	}

	if len(pending) == 0 {
		return result, nil
	}

	tx, err := dc.pg.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: begin: %w", ErrWriteFailure, err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, purgePendingChanges, evaNumber, now.Add(-pendingChangeMaxAge)); err != nil {
		return result, fmt.Errorf("%w: purge parked changes: %w", ErrWriteFailure, err)
	}

	var updated, unmatched int
	for _, r := range pending {
		tag, err := tx.Exec(ctx, updateActualTimes, r.ActualArrivalTime, r.ActualDepartureTime, r.ServiceID, evaNumber)
		if err != nil {
			return result, fmt.Errorf("%w: update %s: %w", ErrWriteFailure, r.ServiceID, err)
		}

		if tag.RowsAffected() > 0 {
			updated += int(tag.RowsAffected())
			continue
		}

		unmatched++
		if _, err := tx.Exec(ctx, parkChange, evaNumber, r.ServiceID, r.ActualArrivalTime, r.ActualDepartureTime, now); err != nil {
			return result, fmt.Errorf("%w: park %s: %w", ErrWriteFailure, r.ServiceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("%w: commit: %w", ErrWriteFailure, err)
	}

	result.Updated = updated
	result.Unmatched = unmatched
	return result, nil
}

// StopsForStation lists stored stops whose planned time falls on date.
func (dc *DataClient) StopsForStation(ctx context.Context, evaNumber int64, date time.Time) ([]types.StoredStop, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows, err := dc.pg.Query(ctx, `
		SELECT id, station_eva_number, service_id, train_category, train_number, train_operator,
		       platform, route_before_arrival, route_after_departure,
		       planned_arrival_time, planned_departure_time,
		       actual_arrival_time, actual_departure_time,
		       (EXTRACT(EPOCH FROM actual_arrival_time - planned_arrival_time) / 60)::int,
		       (EXTRACT(EPOCH FROM actual_departure_time - planned_departure_time) / 60)::int,
		       ingested_at
		FROM timetable_stops
		WHERE station_eva_number = $1
		  AND COALESCE(planned_departure_time, planned_arrival_time) >= $2
		  AND COALESCE(planned_departure_time, planned_arrival_time) < $3
		ORDER BY COALESCE(planned_departure_time, planned_arrival_time), service_id
	`, evaNumber, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	stops := []types.StoredStop{}
	for rows.Next() {
		var stop types.StoredStop
		if err := rows.Scan(
			&stop.ID,
			&stop.StationEvaNumber,
			&stop.ServiceID,
			&stop.TrainCategory,
			&stop.TrainNumber,
			&stop.TrainOperator,
			&stop.Platform,
			&stop.RouteBeforeArrival,
			&stop.RouteAfterDeparture,
			&stop.PlannedArrivalTime,
			&stop.PlannedDepartureTime,
			&stop.ActualArrivalTime,
			&stop.ActualDepartureTime,
			&stop.ArrivalDelayMinutes,
			&stop.DepartureDelayMinutes,
			&stop.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stop row: %w", err)
		}
		stop.Arrives = stop.PlannedArrivalTime != nil || stop.RouteBeforeArrival != nil
		stop.Departs = stop.PlannedDepartureTime != nil || stop.RouteAfterDeparture != nil
		stops = append(stops, stop)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop rows: %w", err)
	}

	return stops, nil
}

// HourlyDelays aggregates average delays by hour of the planned time.
func (dc *DataClient) HourlyDelays(ctx context.Context) ([]types.HourlyDelay, error) {
	rows, err := dc.pg.Query(ctx, `
		SELECT EXTRACT(HOUR FROM COALESCE(planned_departure_time, planned_arrival_time))::int AS hour_of_day,
		       COALESCE(AVG(EXTRACT(EPOCH FROM actual_arrival_time - planned_arrival_time) / 60), 0)::float8,
		       COALESCE(AVG(EXTRACT(EPOCH FROM actual_departure_time - planned_departure_time) / 60), 0)::float8,
		       COUNT(*) FILTER (
		           WHERE actual_arrival_time > planned_arrival_time
		              OR actual_departure_time > planned_departure_time
		       )::int
		FROM timetable_stops
		WHERE COALESCE(planned_departure_time, planned_arrival_time) IS NOT NULL
		GROUP BY hour_of_day
		ORDER BY hour_of_day
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly delays: %w", err)
	}
	defer rows.Close()

	delays := []types.HourlyDelay{}
	for rows.Next() {
		var d types.HourlyDelay
		if err := rows.Scan(&d.HourOfDay, &d.AvgArrivalDelayMin, &d.AvgDepartureDelayMin, &d.TotalDelays); err != nil {
			return nil, err
		}
		delays = append(delays, d)
	}

	return delays, rows.Err()
}

// RecordDataDate marks a day as having ingested data.
func (dc *DataClient) RecordDataDate(ctx context.Context, date time.Time) error {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	_, err := dc.pg.Exec(ctx, `INSERT INTO data_dates (date) VALUES ($1) ON CONFLICT DO NOTHING`, day)
	return err
}
