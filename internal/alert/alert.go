// Package alert holds threshold-breach records and the ways they leave
// the process: an append-only JSONL sink and shoutrrr notifications.
// A breach is a monitoring signal, not an error — nothing in this
// package can halt a monitoring loop.
package alert

import "time"

// Alert is a single metric-over-threshold event from one monitoring
// tick.
type Alert struct {
	Type      string  `json:"type"`
	Current   float64 `json:"current"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Record is the persisted form of an Alert: one JSON object per line in
// the sink file.
type Record struct {
	Timestamp string `json:"timestamp"`
	Alert     Alert  `json:"alert"`
}

// NewRecord stamps an alert for persistence.
func NewRecord(ts time.Time, a Alert) Record {
	return Record{Timestamp: ts.Format(time.RFC3339), Alert: a}
}
