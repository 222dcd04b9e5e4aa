// Package automation contains the watering control core: the control loop,
// plant state classification, the adaptive moisture threshold and the
// cooldown guard that prevents over-watering.
package automation

import (
	"context"
	"time"

	"github.com/bonsailab/bonsaictl/internal/model"
)

// MoistureSensor produces the current soil moisture reading. Any error means
// the reading is unavailable; the engine does not distinguish why.
type MoistureSensor interface {
	ReadMoisture() (model.MoistureReading, error)
}

// PumpActuator drives the water pump. RunTimed and Pulse block until the
// requested run completes or ctx is cancelled; the engine relies on that and
// on the output being deasserted on every return path.
type PumpActuator interface {
	TurnOn() error
	TurnOff() error
	RunTimed(ctx context.Context, d time.Duration) error
	Pulse(ctx context.Context, on, off, total time.Duration) error
	StopPulsing()
	IsRunning() bool
	RuntimeSeconds() float64
}

// HistoryStore persists readings and events and serves the windowed history
// the threshold estimator needs. Writes are append-only.
type HistoryStore interface {
	LogMoistureReading(ctx context.Context, r model.MoistureReading) error
	LogWateringEvent(ctx context.Context, e model.WateringEvent) error
	LogSystemEvent(ctx context.Context, e model.SystemEvent) error
	MoistureHistory(ctx context.Context, window time.Duration) ([]model.MoistureReading, error)
	WateringHistory(ctx context.Context, window time.Duration) ([]model.WateringEvent, error)
}
