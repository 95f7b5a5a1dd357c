package scheduler

import "time"

type Snapshot struct {
	StartedAt      time.Time     `json:"started_at"`
	Interval       time.Duration `json:"interval"`
	Mode           string        `json:"mode"`
	LastRunAt      time.Time     `json:"last_run_at"`
	LastError      string        `json:"last_error,omitempty"`
	LastRunID      string        `json:"last_run_id,omitempty"`
	LastOverall    string        `json:"last_overall,omitempty"`
	LastMetPercent float64       `json:"last_met_percent"`
	Running        bool          `json:"running"`
}
