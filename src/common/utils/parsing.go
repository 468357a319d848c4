package utils

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jack-barr3tt/db-engine/src/common/types"
	"go.uber.org/zap"
)

var ErrInvalidFeed = errors.New("invalid timetable feed")

// ParseTimetable walks a plan or rchg document into one StopRecord per
// service id. The mode decides which attributes are read; it is never
// guessed from the content.
func ParseTimetable(xmlText string, mode types.FeedMode) (map[string]types.StopRecord, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown feed mode %q", mode)
	}
	if strings.TrimSpace(xmlText) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidFeed)
	}

	var timetable types.Timetable
	if err := xml.Unmarshal([]byte(xmlText), &timetable); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}

	logger := GetLogger().With("mode", mode)
	records := make(map[string]types.StopRecord, len(timetable.Stops))

	for _, stop := range timetable.Stops {
		if stop.ID == "" {
			logger.Warnw("skipping stop without id")
			continue
		}
		if _, seen := records[stop.ID]; seen {
			logger.Warnw("duplicate service id in feed, keeping the later stop", "service_id", stop.ID)
		}

		records[stop.ID] = buildStopRecord(stop, mode, logger)
	}

	return records, nil
}

func buildStopRecord(stop types.TimetableStop, mode types.FeedMode, logger *zap.SugaredLogger) types.StopRecord {
	record := types.StopRecord{ServiceID: stop.ID}

	if mode == types.FeedPlanned && stop.TripLabel != nil {
		record.TrainCategory = NullString(stop.TripLabel.Category)
		record.TrainNumber = NullString(stop.TripLabel.Number)
		record.TrainOperator = NullString(stop.TripLabel.Operator)
	}

	if arrival := singleEvent(stop.ID, "ar", stop.Arrivals, logger); arrival != nil {
		switch mode {
		case types.FeedPlanned:
			record.Platform = NullString(arrival.PlannedPlatform)
			record.RouteBeforeArrival = NullString(arrival.PlannedPath)
			record.PlannedArrivalTime = eventTime(stop.ID, "ar", "pt", arrival.PlannedTime, logger)
			record.Arrives = record.Platform != nil || record.RouteBeforeArrival != nil || record.PlannedArrivalTime != nil
		case types.FeedChanges:
			record.ActualArrivalTime = eventTime(stop.ID, "ar", "ct", arrival.ChangedTime, logger)
			record.Arrives = record.ActualArrivalTime != nil
		}
	}

	if departure := singleEvent(stop.ID, "dp", stop.Departures, logger); departure != nil {
		switch mode {
		case types.FeedPlanned:
			platform := NullString(departure.PlannedPlatform)
			if record.Platform == nil {
				record.Platform = platform
			}
			record.RouteAfterDeparture = NullString(departure.PlannedPath)
			record.PlannedDepartureTime = eventTime(stop.ID, "dp", "pt", departure.PlannedTime, logger)
			record.Departs = platform != nil || record.RouteAfterDeparture != nil || record.PlannedDepartureTime != nil
		case types.FeedChanges:
			record.ActualDepartureTime = eventTime(stop.ID, "dp", "ct", departure.ChangedTime, logger)
			record.Departs = record.ActualDepartureTime != nil
		}
	}

	return record
}

// singleEvent returns the stop's only ar/dp element. A second one is an
// anomaly nobody has decided how to merge yet, so it is logged and ignored.
func singleEvent(serviceID, element string, events []types.TimetableEvent, logger *zap.SugaredLogger) *types.TimetableEvent {
	if len(events) == 0 {
		return nil
	}
	if len(events) > 1 {
		logger.Warnw("stop has more than one event of the same kind, using the first",
			"service_id", serviceID, "element", element, "count", len(events))
	}
	return &events[0]
}

// eventTime keeps a bad timestamp local to its field: the rest of the stop
// is still usable.
func eventTime(serviceID, element, attribute, raw string, logger *zap.SugaredLogger) *time.Time {
	t, err := ParseFeedTime(raw)
	if err != nil {
		logger.Warnw("dropping unparseable timestamp",
			"service_id", serviceID, "element", element, "attribute", attribute, "value", raw, "error", err)
		return nil
	}
	return t
}
