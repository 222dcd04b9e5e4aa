package model

import "time"

// MoistureReading is a single soil moisture sample from the probe.
// Immutable once created.
type MoistureReading struct {
	Timestamp time.Time `json:"timestamp"`
	Percent   float64   `json:"percent"` // 0..100
	Raw       int       `json:"raw_value"`
	Channel   int       `json:"channel"`
}
