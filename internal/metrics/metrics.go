// Package metrics exposes controller state as Prometheus collectors.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bonsailab/bonsaictl/internal/automation"
	"github.com/bonsailab/bonsaictl/internal/model"
)

var plantStates = []model.PlantState{
	model.StateHealthy, model.StateNeedsWater, model.StateRecentlyWatered,
	model.StateSensorError, model.StateCritical,
}

type Set struct {
	moisture    prometheus.Gauge
	state       *prometheus.GaugeVec
	waterings   *prometheus.CounterVec
	storeErrors prometheus.Counter
}

// New registers the collectors on reg. pumpRuntime and threshold feed their
// gauges lazily so the pump and engine stay the source of truth.
func New(reg prometheus.Registerer, pumpRuntime, threshold func() float64) *Set {
	factory := promauto.With(reg)
	s := &Set{
		moisture: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bonsaictl_moisture_percent",
			Help: "Most recent soil moisture reading.",
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bonsaictl_plant_state",
			Help: "Current plant state (1 for the active state).",
		}, []string{"state"}),
		waterings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bonsaictl_waterings_total",
			Help: "Completed watering events by trigger.",
		}, []string{"trigger"}),
		storeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "bonsaictl_store_errors_total",
			Help: "History store operations that returned an error.",
		}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "bonsaictl_pump_runtime_seconds_total",
		Help: "Cumulative pump runtime.",
	}, pumpRuntime)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "bonsaictl_adaptive_threshold_percent",
		Help: "Current adaptive watering threshold.",
	}, threshold)

	s.state.WithLabelValues(string(model.StateHealthy)).Set(1)
	return s
}

// MoistureCallback returns an observer for Engine.AddMoistureCallback.
func (s *Set) MoistureCallback() automation.MoistureCallback {
	return func(pct float64) {
		s.moisture.Set(pct)
	}
}

// StateCallback returns an observer for Engine.AddStateCallback.
func (s *Set) StateCallback() automation.StateCallback {
	return func(_, new model.PlantState) {
		for _, st := range plantStates {
			v := 0.0
			if st == new {
				v = 1
			}
			s.state.WithLabelValues(string(st)).Set(v)
		}
	}
}

// InstrumentedStore counts watering events and store failures on their way
// through to the wrapped store.
type InstrumentedStore struct {
	automation.HistoryStore
	set *Set
}

func InstrumentStore(inner automation.HistoryStore, set *Set) *InstrumentedStore {
	return &InstrumentedStore{HistoryStore: inner, set: set}
}

func (s *InstrumentedStore) LogMoistureReading(ctx context.Context, r model.MoistureReading) error {
	err := s.HistoryStore.LogMoistureReading(ctx, r)
	if err != nil {
		s.set.storeErrors.Inc()
	}
	return err
}

func (s *InstrumentedStore) LogWateringEvent(ctx context.Context, e model.WateringEvent) error {
	err := s.HistoryStore.LogWateringEvent(ctx, e)
	if err != nil {
		s.set.storeErrors.Inc()
	} else {
		s.set.waterings.WithLabelValues(string(e.Type)).Inc()
	}
	return err
}

func (s *InstrumentedStore) LogSystemEvent(ctx context.Context, e model.SystemEvent) error {
	err := s.HistoryStore.LogSystemEvent(ctx, e)
	if err != nil {
		s.set.storeErrors.Inc()
	}
	return err
}
