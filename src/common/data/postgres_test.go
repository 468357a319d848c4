package data

import (
	"context"
	"os"
	"testing"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// These tests need a scratch Postgres 15+ in TEST_DATABASE_URL. They cover
// what pgxmock cannot: the natural-key conflict rule in the schema.
const scratchEva = int64(9999001)

func newPostgresClient(t *testing.T) (*DataClient, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	dc := NewDataClient(pool, nil, zap.NewNop().Sugar())
	require.NoError(t, dc.EnsureSchema(ctx))

	cleanup := func() {
		_, _ = pool.Exec(ctx, `DELETE FROM timetable_stops WHERE station_eva_number = $1`, scratchEva)
		_, _ = pool.Exec(ctx, `DELETE FROM timetable_pending_changes WHERE station_eva_number = $1`, scratchEva)
	}
	cleanup()
	t.Cleanup(cleanup)

	return dc, pool
}

func TestPostgres_WritePlannedIsIdempotent(t *testing.T) {
	dc, pool := newPostgresClient(t)
	ctx := context.Background()

	// origin and terminus stops leave half of the key NULL
	records := map[string]types.StopRecord{
		"origin": {
			ServiceID:            "origin",
			TrainCategory:        str("RE"),
			RouteAfterDeparture:  str("Buxtehude"),
			PlannedDepartureTime: at(t, "2025-01-15 10:15"),
			Departs:              true,
		},
		"terminus": {
			ServiceID:          "terminus",
			RouteBeforeArrival: str("Kiel Hbf|Neumünster"),
			PlannedArrivalTime: at(t, "2025-01-15 10:46"),
			Arrives:            true,
		},
		"through": {
			ServiceID:            "through",
			Platform:             str("13"),
			PlannedArrivalTime:   at(t, "2025-01-15 11:00"),
			PlannedDepartureTime: at(t, "2025-01-15 11:05"),
			Arrives:              true,
			Departs:              true,
		},
	}

	first, err := dc.WritePlanned(ctx, scratchEva, records)
	require.NoError(t, err)
	second, err := dc.WritePlanned(ctx, scratchEva, records)
	require.NoError(t, err)

	assert.Equal(t, 3, first.Inserted)
	assert.Equal(t, 0, second.Inserted)

	var stored int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM timetable_stops WHERE station_eva_number = $1`, scratchEva).Scan(&stored))
	assert.Equal(t, 3, stored)
}

func TestPostgres_ChangeBeforePlanIsApplied(t *testing.T) {
	dc, pool := newPostgresClient(t)
	ctx := context.Background()

	changes, err := dc.WriteChanges(ctx, scratchEva, map[string]types.StopRecord{
		"A1": {ServiceID: "A1", ActualArrivalTime: at(t, "2025-01-15 10:34"), Arrives: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changes.Unmatched)

	planned, err := dc.WritePlanned(ctx, scratchEva, map[string]types.StopRecord{
		"A1": {
			ServiceID:            "A1",
			PlannedArrivalTime:   at(t, "2025-01-15 10:30"),
			PlannedDepartureTime: at(t, "2025-01-15 10:35"),
			Arrives:              true,
			Departs:              true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, planned.Inserted)
	assert.Equal(t, 1, planned.ChangesApplied)

	// a later departure-only change keeps the stored arrival
	_, err = dc.WriteChanges(ctx, scratchEva, map[string]types.StopRecord{
		"A1": {ServiceID: "A1", ActualDepartureTime: at(t, "2025-01-15 10:39"), Departs: true},
	})
	require.NoError(t, err)

	var rows int
	var arrival, departure *string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT COUNT(*) OVER (), to_char(actual_arrival_time, 'HH24:MI'), to_char(actual_departure_time, 'HH24:MI')
		FROM timetable_stops WHERE station_eva_number = $1 AND service_id = 'A1'
	`, scratchEva).Scan(&rows, &arrival, &departure))
	assert.Equal(t, 1, rows)
	assert.Equal(t, str("10:34"), arrival)
	assert.Equal(t, str("10:39"), departure)
}
