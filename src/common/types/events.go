package types

import "time"

// StationIngested is published after a station's batch has been committed.
type StationIngested struct {
	RunID     string    `json:"run_id"`
	Mode      FeedMode  `json:"mode"`
	Station   string    `json:"station"`
	EvaNumber int64     `json:"eva_number"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	At        time.Time `json:"at"`
}
