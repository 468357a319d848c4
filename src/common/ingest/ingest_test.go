package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jack-barr3tt/db-engine/src/common/data"
	"github.com/jack-barr3tt/db-engine/src/common/dbapi"
	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jack-barr3tt/db-engine/src/common/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	hamburgEva = int64(8002549)
	munichEva  = int64(8000261)
	cologneEva = int64(8000207)
)

const plannedFeed = `<stops><s id="A1"><ar pt="2501151030" ppth="X|Y"/><dp pt="2501151035"/></s><s id="B2"/></stops>`
const changeFeed = `<stops><s id="A1"><ar ct="2501151034"/></s><s id="Z9"><dp ct="2501151101"/></s></stops>`

type fakeResolver map[string]int64

func (r fakeResolver) ResolveEvaNumber(_ context.Context, name string) (int64, error) {
	eva, ok := r[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", data.ErrUnknownStation, name)
	}
	return eva, nil
}

type fakeFetcher struct {
	feeds map[int64]string
	errs  map[int64]error
	calls []int64
}

func (f *fakeFetcher) Fetch(_ context.Context, _ types.FeedMode, eva int64) (string, error) {
	f.calls = append(f.calls, eva)
	if err, ok := f.errs[eva]; ok {
		return "", err
	}
	return f.feeds[eva], nil
}

// memStore mimics the natural-key insert and keyed update of the real writer.
type memStore struct {
	rows    map[string]types.StopRecord
	failFor map[int64]error
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]types.StopRecord{}, failFor: map[int64]error{}}
}

func naturalKey(r types.StopRecord) string {
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%v|%v",
		r.StationEvaNumber, r.ServiceID,
		utils.Deref(r.TrainCategory), utils.Deref(r.TrainNumber), utils.Deref(r.TrainOperator),
		utils.Deref(r.Platform), utils.Deref(r.RouteBeforeArrival), utils.Deref(r.RouteAfterDeparture),
		r.PlannedArrivalTime, r.PlannedDepartureTime,
	)
}

func (m *memStore) WritePlanned(_ context.Context, eva int64, records map[string]types.StopRecord) (data.PlannedResult, error) {
	var result data.PlannedResult
	if err := m.failFor[eva]; err != nil {
		return result, fmt.Errorf("%w: %w", data.ErrWriteFailure, err)
	}
	for _, r := range records {
		if !r.HasPlannedPayload() {
			result.Skipped++
			continue
		}
		key := naturalKey(r)
		if _, exists := m.rows[key]; exists {
			continue
		}
		m.rows[key] = r
		result.Inserted++
	}
	return result, nil
}

func (m *memStore) WriteChanges(_ context.Context, eva int64, records map[string]types.StopRecord) (data.ChangeResult, error) {
	var result data.ChangeResult
	if err := m.failFor[eva]; err != nil {
		return result, fmt.Errorf("%w: %w", data.ErrWriteFailure, err)
	}
	for _, r := range records {
		if !r.HasActualTime() {
			result.Skipped++
			continue
		}
		matched := false
		for key, row := range m.rows {
			if row.ServiceID != r.ServiceID || row.StationEvaNumber != eva {
				continue
			}
			if r.ActualArrivalTime != nil {
				row.ActualArrivalTime = r.ActualArrivalTime
			}
			if r.ActualDepartureTime != nil {
				row.ActualDepartureTime = r.ActualDepartureTime
			}
			m.rows[key] = row
			matched = true
			result.Updated++
		}
		if !matched {
			result.Unmatched++
		}
	}
	return result, nil
}

type recordingPublisher struct {
	events []types.StationIngested
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event types.StationIngested) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func newTestIngestor(t *testing.T, fetcher *fakeFetcher, store *memStore, publisher *recordingPublisher) (*Ingestor, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	resolver := fakeResolver{"Hamburg Hbf": hamburgEva, "München Hbf": munichEva, "Köln Hbf": cologneEva}

	in := NewIngestor(resolver, fetcher, store, publisher, zap.New(core).Sugar())
	in.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return in, logs
}

func TestRun_PlannedFeedIsWrittenPerStation(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[int64]string{hamburgEva: plannedFeed, munichEva: plannedFeed}}
	store := newMemStore()
	publisher := &recordingPublisher{}
	in, _ := newTestIngestor(t, fetcher, store, publisher)

	summary := in.Run(context.Background(), types.FeedPlanned, []string{"Hamburg Hbf", "München Hbf"})

	require.NoError(t, summary.Err())
	assert.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		assert.Equal(t, StageDone, r.Stage)
		assert.Equal(t, 2, r.Parsed)
		assert.Equal(t, 1, r.Skipped)
		assert.Equal(t, 1, r.Inserted)
	}
	assert.Len(t, store.rows, 2)
	for _, row := range store.rows {
		assert.NotZero(t, row.StationEvaNumber)
	}

	require.Len(t, publisher.events, 2)
	assert.Equal(t, summary.RunID, publisher.events[0].RunID)
	assert.Equal(t, "Hamburg Hbf", publisher.events[0].Station)
	assert.Equal(t, hamburgEva, publisher.events[0].EvaNumber)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[int64]string{hamburgEva: plannedFeed}}
	store := newMemStore()
	in, _ := newTestIngestor(t, fetcher, store, &recordingPublisher{})

	first := in.Run(context.Background(), types.FeedPlanned, []string{"Hamburg Hbf"})
	second := in.Run(context.Background(), types.FeedPlanned, []string{"Hamburg Hbf"})

	assert.Equal(t, 1, first.Results[0].Inserted)
	assert.Equal(t, 0, second.Results[0].Inserted)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, store.rows, 1)
}

func TestRun_UnknownStationIsReportedAndSkipped(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[int64]string{hamburgEva: plannedFeed}}
	in, logs := newTestIngestor(t, fetcher, newMemStore(), &recordingPublisher{})

	summary := in.Run(context.Background(), types.FeedPlanned, []string{"Unknown Station", "Hamburg Hbf"})

	require.Len(t, summary.Results, 2)
	assert.Equal(t, StageResolve, summary.Results[0].Stage)
	assert.ErrorIs(t, summary.Results[0].Err, data.ErrUnknownStation)
	assert.Equal(t, StageDone, summary.Results[1].Stage)
	assert.Equal(t, []int64{hamburgEva}, fetcher.calls)

	err := summary.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, data.ErrUnknownStation)
	assert.ErrorContains(t, err, "Unknown Station")

	failures := logs.FilterMessage("station ingestion failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "Unknown Station", fields["station"])
	assert.Equal(t, "resolve", fmt.Sprint(fields["stage"]))
}

func TestRun_FailuresStayWithinTheirStation(t *testing.T) {
	fetcher := &fakeFetcher{
		feeds: map[int64]string{
			hamburgEva: `<stops><s id="A1"><ar pt="25011510`,
			cologneEva: plannedFeed,
		},
		errs: map[int64]error{munichEva: fmt.Errorf("%w: plan returned HTTP 503", dbapi.ErrFeedUnavailable)},
	}
	store := newMemStore()
	publisher := &recordingPublisher{}
	in, logs := newTestIngestor(t, fetcher, store, publisher)

	summary := in.Run(context.Background(), types.FeedPlanned, []string{"Hamburg Hbf", "München Hbf", "Köln Hbf"})

	require.Len(t, summary.Results, 3)
	assert.Equal(t, StageParse, summary.Results[0].Stage)
	assert.ErrorIs(t, summary.Results[0].Err, utils.ErrInvalidFeed)
	assert.Equal(t, StageFetch, summary.Results[1].Stage)
	assert.ErrorIs(t, summary.Results[1].Err, dbapi.ErrFeedUnavailable)
	assert.Equal(t, StageDone, summary.Results[2].Stage)
	assert.Equal(t, 1, summary.Results[2].Inserted)

	assert.Len(t, summary.Failed(), 2)
	assert.NoError(t, summary.Err(), "feed and parse failures are retried next run")
	assert.Len(t, publisher.events, 1)
	assert.Len(t, logs.FilterMessage("station ingestion failed").All(), 2)
}

func TestRun_WriteFailureDoesNotStopTheRun(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[int64]string{hamburgEva: plannedFeed, munichEva: plannedFeed}}
	store := newMemStore()
	store.failFor[hamburgEva] = errors.New("could not serialize access")
	in, _ := newTestIngestor(t, fetcher, store, &recordingPublisher{})

	summary := in.Run(context.Background(), types.FeedPlanned, []string{"Hamburg Hbf", "München Hbf"})

	assert.Equal(t, StageWrite, summary.Results[0].Stage)
	assert.ErrorIs(t, summary.Results[0].Err, data.ErrWriteFailure)
	assert.Equal(t, StageDone, summary.Results[1].Stage)
	assert.NoError(t, summary.Err())
}

func TestRun_ChangesUpdateStoredStops(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[int64]string{hamburgEva: plannedFeed}}
	store := newMemStore()
	in, _ := newTestIngestor(t, fetcher, store, &recordingPublisher{})

	in.Run(context.Background(), types.FeedPlanned, []string{"Hamburg Hbf"})

	fetcher.feeds[hamburgEva] = changeFeed
	summary := in.Run(context.Background(), types.FeedChanges, []string{"Hamburg Hbf"})

	require.Len(t, summary.Results, 1)
	result := summary.Results[0]
	assert.Equal(t, StageDone, result.Stage)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Unmatched)

	require.Len(t, store.rows, 1)
	for _, row := range store.rows {
		require.NotNil(t, row.ActualArrivalTime)
		assert.Equal(t, time.Date(2025, 1, 15, 10, 34, 0, 0, time.UTC), *row.ActualArrivalTime)
		assert.Nil(t, row.ActualDepartureTime)
		require.NotNil(t, row.PlannedDepartureTime)
	}
}

func TestRun_PublishFailureIsNotAStationFailure(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[int64]string{hamburgEva: plannedFeed}}
	in, logs := newTestIngestor(t, fetcher, newMemStore(), &recordingPublisher{err: errors.New("channel/connection is not open")})

	summary := in.Run(context.Background(), types.FeedPlanned, []string{"Hamburg Hbf"})

	assert.Empty(t, summary.Failed())
	assert.NoError(t, summary.Err())
	assert.Len(t, logs.FilterMessage("error publishing ingestion event").All(), 1)
}

func TestRun_InvalidModeTouchesNothing(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[int64]string{hamburgEva: plannedFeed}}
	in, _ := newTestIngestor(t, fetcher, newMemStore(), &recordingPublisher{})

	summary := in.Run(context.Background(), types.FeedMode("hourly"), []string{"Hamburg Hbf"})

	assert.Empty(t, summary.Results)
	assert.Empty(t, fetcher.calls)
	assert.Error(t, summary.Err())
}

func TestRunSummary_ErrCombinesUnknownStations(t *testing.T) {
	summary := RunSummary{Results: []StationResult{
		{Station: "Atlantis", Stage: StageResolve, Err: fmt.Errorf("%w: %q", data.ErrUnknownStation, "Atlantis")},
		{Station: "Hamburg Hbf", Stage: StageWrite, Err: data.ErrWriteFailure},
		{Station: "Lemuria", Stage: StageResolve, Err: fmt.Errorf("%w: %q", data.ErrUnknownStation, "Lemuria")},
		{Station: "Köln Hbf", Stage: StageDone},
	}}

	errs := multierr.Errors(summary.Err())
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, data.ErrUnknownStation)
		assert.NotErrorIs(t, err, data.ErrWriteFailure)
	}
}
