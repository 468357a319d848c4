package types

import "time"

type ErrorResponse struct {
	Error   string  `json:"error"`
	Message string  `json:"message"`
	Stack   *string `json:"stack,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type StationStopsResponse struct {
	EvaNumber int64        `json:"eva_number"`
	Date      string       `json:"date"`
	Stops     []StoredStop `json:"stops"`
}

// StoredStop is a persisted timetable_stops row as served by the read API.
type StoredStop struct {
	ID int64 `json:"id"`
	StopRecord
	ArrivalDelayMinutes   *int      `json:"arrival_delay_minutes,omitempty"`
	DepartureDelayMinutes *int      `json:"departure_delay_minutes,omitempty"`
	IngestedAt            time.Time `json:"ingested_at"`
}

// HourlyDelay mirrors one row of the dashboard's delay summary.
type HourlyDelay struct {
	HourOfDay            int     `json:"hour_of_day"`
	AvgArrivalDelayMin   float64 `json:"avg_arrival_delay_min"`
	AvgDepartureDelayMin float64 `json:"avg_departure_delay_min"`
	TotalDelays          int     `json:"total_delays"`
}
