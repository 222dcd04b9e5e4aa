// Package storage provides HistoryStore implementations: a bounded
// in-memory store and an InfluxDB-backed one, plus a circuit-breaker
// wrapper for either.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bonsailab/bonsaictl/internal/model"
)

const defaultCapacity = 10000

// MemoryStore is a bounded in-memory HistoryStore. Used by tests and by
// deployments that run without an Influx backend.
type MemoryStore struct {
	mu        sync.RWMutex
	readings  []model.MoistureReading
	waterings []model.WateringEvent
	events    []model.SystemEvent
	capacity  int
	now       func() time.Time
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryStore{capacity: capacity, now: time.Now}
}

func (s *MemoryStore) LogMoistureReading(_ context.Context, r model.MoistureReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	if len(s.readings) > s.capacity {
		s.readings = s.readings[len(s.readings)-s.capacity:]
	}
	return nil
}

func (s *MemoryStore) LogWateringEvent(_ context.Context, e model.WateringEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waterings = append(s.waterings, e)
	if len(s.waterings) > s.capacity {
		s.waterings = s.waterings[len(s.waterings)-s.capacity:]
	}
	return nil
}

func (s *MemoryStore) LogSystemEvent(_ context.Context, e model.SystemEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
	return nil
}

func (s *MemoryStore) MoistureHistory(_ context.Context, window time.Duration) ([]model.MoistureReading, error) {
	cutoff := s.now().Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.MoistureReading
	for _, r := range s.readings {
		if !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) WateringHistory(_ context.Context, window time.Duration) ([]model.WateringEvent, error) {
	cutoff := s.now().Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WateringEvent
	for _, e := range s.waterings {
		if !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

// RecentSystemEvents returns up to n most recent system events, newest
// first.
func (s *MemoryStore) RecentSystemEvents(n int) []model.SystemEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]model.SystemEvent, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i])
	}
	return out
}

// DailySummary aggregates one day of readings and waterings.
type DailySummary struct {
	Date           string  `json:"date"`
	MoistureAvg    float64 `json:"moisture_avg"`
	MoistureMin    float64 `json:"moisture_min"`
	MoistureMax    float64 `json:"moisture_max"`
	ReadingsCount  int     `json:"readings_count"`
	WateringEvents int     `json:"watering_events"`
	TotalWaterSec  float64 `json:"total_water_time"`
}

func (s *MemoryStore) DailySummary(day time.Time) DailySummary {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := DailySummary{Date: start.Format("2006-01-02")}
	var total float64
	for _, r := range s.readings {
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			continue
		}
		if sum.ReadingsCount == 0 || r.Percent < sum.MoistureMin {
			sum.MoistureMin = r.Percent
		}
		if sum.ReadingsCount == 0 || r.Percent > sum.MoistureMax {
			sum.MoistureMax = r.Percent
		}
		total += r.Percent
		sum.ReadingsCount++
	}
	if sum.ReadingsCount > 0 {
		sum.MoistureAvg = float64(int(total/float64(sum.ReadingsCount)*10+0.5)) / 10
	}
	for _, e := range s.waterings {
		if e.Timestamp.Before(start) || !e.Timestamp.Before(end) {
			continue
		}
		sum.WateringEvents++
		sum.TotalWaterSec += e.DurationSec
	}
	return sum
}
