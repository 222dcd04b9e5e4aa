package model

import "time"

// WateringTrigger identifies what caused a watering cycle.
type WateringTrigger string

const (
	TriggerMoistureLow WateringTrigger = "MOISTURE_LOW"
	TriggerScheduled   WateringTrigger = "SCHEDULED"
	TriggerManual      WateringTrigger = "MANUAL"
	TriggerEmergency   WateringTrigger = "EMERGENCY"
)

// WateringEvent records one completed watering action. Append-only.
type WateringEvent struct {
	Timestamp       time.Time       `json:"timestamp"`
	TriggerMoisture *float64        `json:"trigger_moisture,omitempty"`
	DurationSec     float64         `json:"duration_seconds"`
	Type            WateringTrigger `json:"event_type"`
	Notes           string          `json:"notes,omitempty"`
}

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// SystemEvent records a significant transition, decision or error.
// Append-only.
type SystemEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}
