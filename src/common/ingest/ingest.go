package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jack-barr3tt/db-engine/src/common/data"
	"github.com/jack-barr3tt/db-engine/src/common/events"
	"github.com/jack-barr3tt/db-engine/src/common/types"
	"github.com/jack-barr3tt/db-engine/src/common/utils"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageParse   Stage = "parse"
	StageWrite   Stage = "write"
	StageDone    Stage = "done"
)

var (
	stationOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_station_outcome_count",
		Help: "Number of station ingestions by the stage they ended in",
	}, []string{"mode", "stage"})
	rowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_rows_count",
		Help: "Number of timetable rows written by kind",
	}, []string{"mode", "kind"})
)

func init() {
	prometheus.MustRegister(stationOutcomes, rowsWritten)
}

type StationResolver interface {
	ResolveEvaNumber(ctx context.Context, name string) (int64, error)
}

type FeedFetcher interface {
	Fetch(ctx context.Context, mode types.FeedMode, evaNumber int64) (string, error)
}

type Writer interface {
	WritePlanned(ctx context.Context, evaNumber int64, records map[string]types.StopRecord) (data.PlannedResult, error)
	WriteChanges(ctx context.Context, evaNumber int64, records map[string]types.StopRecord) (data.ChangeResult, error)
}

// StationResult is the outcome of one station in one run. Stage is the stage
// that failed, or StageDone.
type StationResult struct {
	Station        string
	EvaNumber      int64
	Stage          Stage
	Parsed         int
	Skipped        int
	Inserted       int
	Updated        int
	Unmatched      int
	ChangesApplied int
	Err            error
}

func (r StationResult) Failed() bool {
	return r.Err != nil
}

type RunSummary struct {
	RunID    string
	Mode     types.FeedMode
	Started  time.Time
	Finished time.Time
	Results  []StationResult

	runErr error
}

func (s RunSummary) Failed() []StationResult {
	var failed []StationResult
	for _, r := range s.Results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err reports what an operator has to fix: unknown stations and an unusable
// run. Feed, parse and write failures are left to the next run.
func (s RunSummary) Err() error {
	err := s.runErr
	for _, r := range s.Results {
		if errors.Is(r.Err, data.ErrUnknownStation) {
			err = multierr.Append(err, fmt.Errorf("station %q: %w", r.Station, r.Err))
		}
	}
	return err
}

type Ingestor struct {
	resolver  StationResolver
	fetcher   FeedFetcher
	writer    Writer
	publisher events.Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewIngestor wires the pipeline. A nil publisher disables ingestion events.
func NewIngestor(resolver StationResolver, fetcher FeedFetcher, writer Writer, publisher events.Publisher, logger *zap.SugaredLogger) *Ingestor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Ingestor{
		resolver:  resolver,
		fetcher:   fetcher,
		writer:    writer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ingests one feed for every station in order. A station that fails at
// any stage is recorded and the run moves on to the next one.
func (in *Ingestor) Run(ctx context.Context, mode types.FeedMode, stations []string) RunSummary {
	summary := RunSummary{
		RunID:   uuid.NewString(),
		Mode:    mode,
		Started: in.now(),
		Results: make([]StationResult, 0, len(stations)),
	}
	logger := in.logger.With("run_id", summary.RunID, "mode", mode)

	if !mode.Valid() {
		summary.runErr = fmt.Errorf("unknown feed mode %q", mode)
		summary.Finished = in.now()
		logger.Errorw("refusing to run", "error", summary.runErr)
		return summary
	}

	logger.Infow("ingestion run started", "stations", len(stations))

	for _, station := range stations {
		result := in.ingestStation(ctx, mode, station)
		stationOutcomes.WithLabelValues(string(mode), string(result.Stage)).Inc()

		if result.Failed() {
			logger.Errorw("station ingestion failed",
				"station", station,
				"eva", result.EvaNumber,
				"stage", result.Stage,
				"error", result.Err,
			)
		} else {
			logger.Infow("station ingested",
				"station", station,
				"eva", result.EvaNumber,
				"parsed", result.Parsed,
				"skipped", result.Skipped,
				"inserted", result.Inserted,
				"updated", result.Updated,
				"unmatched", result.Unmatched,
				"changes_applied", result.ChangesApplied,
			)
			in.publish(ctx, logger, summary.RunID, mode, result)
		}

		summary.Results = append(summary.Results, result)
	}

	summary.Finished = in.now()
	logger.Infow("ingestion run finished",
		"stations", len(stations),
		"failed", len(summary.Failed()),
		"took", summary.Finished.Sub(summary.Started),
	)

	return summary
}

func (in *Ingestor) ingestStation(ctx context.Context, mode types.FeedMode, station string) StationResult {
	result := StationResult{Station: station, Stage: StageResolve}

	eva, err := in.resolver.ResolveEvaNumber(ctx, station)
	if err != nil {
		result.Err = err
		return result
	}
	result.EvaNumber = eva

	result.Stage = StageFetch
	feed, err := in.fetcher.Fetch(ctx, mode, eva)
	if err != nil {
		result.Err = err
		return result
	}

	result.Stage = StageParse
	records, err := utils.ParseTimetable(feed, mode)
	if err != nil {
		result.Err = err
		return result
	}
	result.Parsed = len(records)
	for id, record := range records {
		record.StationEvaNumber = eva
		records[id] = record
	}

	result.Stage = StageWrite
	switch mode {
	case types.FeedPlanned:
		written, err := in.writer.WritePlanned(ctx, eva, records)
		if err != nil {
			result.Err = err
			return result
		}
		result.Skipped = written.Skipped
		result.Inserted = written.Inserted
		result.ChangesApplied = written.ChangesApplied
		rowsWritten.WithLabelValues(string(mode), "inserted").Add(float64(written.Inserted))
		rowsWritten.WithLabelValues(string(mode), "changes_applied").Add(float64(written.ChangesApplied))
	case types.FeedChanges:
		written, err := in.writer.WriteChanges(ctx, eva, records)
		if err != nil {
			result.Err = err
			return result
		}
		result.Skipped = written.Skipped
		result.Updated = written.Updated
		result.Unmatched = written.Unmatched
		rowsWritten.WithLabelValues(string(mode), "updated").Add(float64(written.Updated))
		rowsWritten.WithLabelValues(string(mode), "parked").Add(float64(written.Unmatched))
	}

	result.Stage = StageDone
	return result
}

func (in *Ingestor) publish(ctx context.Context, logger *zap.SugaredLogger, runID string, mode types.FeedMode, result StationResult) {
	event := types.StationIngested{
		RunID:     runID,
		Mode:      mode,
		Station:   result.Station,
		EvaNumber: result.EvaNumber,
		Inserted:  result.Inserted,
		Updated:   result.Updated,
		At:        in.now().UTC(),
	}

	if err := in.publisher.Publish(ctx, event); err != nil {
		logger.Warnw("error publishing ingestion event", "station", result.Station, "error", err)
	}
}
