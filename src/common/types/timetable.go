package types

import (
	"encoding/xml"
	"time"
)

type FeedMode string

const (
	FeedPlanned FeedMode = "planned"
	FeedChanges FeedMode = "changes"
)

func (m FeedMode) Valid() bool {
	return m == FeedPlanned || m == FeedChanges
}

// Timetable is the envelope shared by the plan and rchg feeds. The root
// element name is not checked.
type Timetable struct {
	XMLName xml.Name
	Station string          `xml:"station,attr"`
	Eva     string          `xml:"eva,attr"`
	Stops   []TimetableStop `xml:"s"`
}

type TimetableStop struct {
	ID         string           `xml:"id,attr"`
	TripLabel  *TripLabel       `xml:"tl"`
	Arrivals   []TimetableEvent `xml:"ar"`
	Departures []TimetableEvent `xml:"dp"`
}

type TripLabel struct {
	Category string `xml:"c,attr"`
	Number   string `xml:"n,attr"`
	Operator string `xml:"o,attr"`
	Filter   string `xml:"f,attr"`
	Type     string `xml:"t,attr"`
}

type TimetableEvent struct {
	PlannedTime     string `xml:"pt,attr"`
	ChangedTime     string `xml:"ct,attr"`
	PlannedPlatform string `xml:"pp,attr"`
	ChangedPlatform string `xml:"cp,attr"`
	PlannedPath     string `xml:"ppth,attr"`
	ChangedPath     string `xml:"cpth,attr"`
	Line            string `xml:"l,attr"`
}

// StopRecord is one normalized (service, station) row. Optional fields are nil
// when the feed did not carry them.
type StopRecord struct {
	ServiceID            string     `json:"service_id"`
	TrainCategory        *string    `json:"train_category,omitempty"`
	TrainNumber          *string    `json:"train_number,omitempty"`
	TrainOperator        *string    `json:"train_operator,omitempty"`
	Platform             *string    `json:"platform,omitempty"`
	RouteBeforeArrival   *string    `json:"route_before_arrival,omitempty"`
	RouteAfterDeparture  *string    `json:"route_after_departure,omitempty"`
	PlannedArrivalTime   *time.Time `json:"planned_arrival_time,omitempty"`
	PlannedDepartureTime *time.Time `json:"planned_departure_time,omitempty"`
	ActualArrivalTime    *time.Time `json:"actual_arrival_time,omitempty"`
	ActualDepartureTime  *time.Time `json:"actual_departure_time,omitempty"`
	StationEvaNumber     int64      `json:"station_eva_number"`

	// Set when the stop's ar / dp element carried at least one usable
	// attribute of the feed's mode. An element holding only attributes of
	// the other mode does not count.
	Arrives bool `json:"arrives"`
	Departs bool `json:"departs"`
}

func (r StopRecord) HasArrival() bool {
	return r.Arrives || r.PlannedArrivalTime != nil || r.ActualArrivalTime != nil || r.RouteBeforeArrival != nil
}

func (r StopRecord) HasDeparture() bool {
	return r.Departs || r.PlannedDepartureTime != nil || r.ActualDepartureTime != nil || r.RouteAfterDeparture != nil
}

// IsEmpty reports a stop with neither arrival nor departure payload. Such
// records are kept by the parser but never persisted.
func (r StopRecord) IsEmpty() bool {
	return !r.HasArrival() && !r.HasDeparture()
}

// HasPlannedPayload reports whether a planned-feed record carries anything
// that identifies a planned visit. Records without it are never inserted.
func (r StopRecord) HasPlannedPayload() bool {
	return r.PlannedArrivalTime != nil || r.PlannedDepartureTime != nil ||
		r.RouteBeforeArrival != nil || r.RouteAfterDeparture != nil || r.Platform != nil
}

// HasActualTime reports whether a change-feed record carries anything to apply.
func (r StopRecord) HasActualTime() bool {
	return r.ActualArrivalTime != nil || r.ActualDepartureTime != nil
}
