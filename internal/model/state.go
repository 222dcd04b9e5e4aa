package model

// PlantState is the discrete health state derived from moisture readings.
// It is recomputed every control-loop cycle, never persisted as an entity.
type PlantState string

const (
	StateHealthy         PlantState = "healthy"
	StateNeedsWater      PlantState = "needs_water"
	StateRecentlyWatered PlantState = "recently_watered"
	StateSensorError     PlantState = "sensor_error"
	StateCritical        PlantState = "critical"
)
