package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bonsailab/bonsaictl/internal/model"
)

type stubStore struct {
	err error
}

func (s *stubStore) LogMoistureReading(context.Context, model.MoistureReading) error { return s.err }
func (s *stubStore) LogWateringEvent(context.Context, model.WateringEvent) error     { return s.err }
func (s *stubStore) LogSystemEvent(context.Context, model.SystemEvent) error         { return s.err }
func (s *stubStore) MoistureHistory(context.Context, time.Duration) ([]model.MoistureReading, error) {
	return nil, nil
}
func (s *stubStore) WateringHistory(context.Context, time.Duration) ([]model.WateringEvent, error) {
	return nil, nil
}

func newTestSet(t *testing.T) (*Set, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	set := New(reg, func() float64 { return 7.5 }, func() float64 { return 32 })
	return set, reg
}

func TestRegistersCollectors(t *testing.T) {
	_, reg := newTestSet(t)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]bool, len(families))
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, name := range []string{
		"bonsaictl_moisture_percent",
		"bonsaictl_plant_state",
		"bonsaictl_pump_runtime_seconds_total",
		"bonsaictl_adaptive_threshold_percent",
	} {
		if !got[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestGaugeFuncsReadLazily(t *testing.T) {
	_, reg := newTestSet(t)

	if v := gatherValue(t, reg, "bonsaictl_pump_runtime_seconds_total"); v != 7.5 {
		t.Errorf("pump runtime: got %v, want 7.5", v)
	}
	if v := gatherValue(t, reg, "bonsaictl_adaptive_threshold_percent"); v != 32 {
		t.Errorf("threshold: got %v, want 32", v)
	}
}

func TestCallbacksUpdateGauges(t *testing.T) {
	set, reg := newTestSet(t)

	set.MoistureCallback()(43.5)
	if v := gatherValue(t, reg, "bonsaictl_moisture_percent"); v != 43.5 {
		t.Errorf("moisture: got %v, want 43.5", v)
	}

	set.StateCallback()(model.StateHealthy, model.StateCritical)
	if v := testutil.ToFloat64(set.state.WithLabelValues(string(model.StateCritical))); v != 1 {
		t.Errorf("critical gauge: got %v, want 1", v)
	}
	if v := testutil.ToFloat64(set.state.WithLabelValues(string(model.StateHealthy))); v != 0 {
		t.Errorf("healthy gauge: got %v, want 0", v)
	}
}

func TestInstrumentedStoreCounts(t *testing.T) {
	set, _ := newTestSet(t)
	ctx := context.Background()

	ok := InstrumentStore(&stubStore{}, set)
	_ = ok.LogWateringEvent(ctx, model.WateringEvent{Type: model.TriggerManual})
	_ = ok.LogWateringEvent(ctx, model.WateringEvent{Type: model.TriggerManual})
	_ = ok.LogWateringEvent(ctx, model.WateringEvent{Type: model.TriggerEmergency})

	if v := testutil.ToFloat64(set.waterings.WithLabelValues(string(model.TriggerManual))); v != 2 {
		t.Errorf("manual waterings: got %v, want 2", v)
	}
	if v := testutil.ToFloat64(set.waterings.WithLabelValues(string(model.TriggerEmergency))); v != 1 {
		t.Errorf("emergency waterings: got %v, want 1", v)
	}
	if v := testutil.ToFloat64(set.storeErrors); v != 0 {
		t.Errorf("store errors: got %v, want 0", v)
	}

	bad := InstrumentStore(&stubStore{err: errors.New("influx down")}, set)
	_ = bad.LogMoistureReading(ctx, model.MoistureReading{})
	_ = bad.LogWateringEvent(ctx, model.WateringEvent{Type: model.TriggerManual})
	_ = bad.LogSystemEvent(ctx, model.SystemEvent{})

	if v := testutil.ToFloat64(set.storeErrors); v != 3 {
		t.Errorf("store errors: got %v, want 3", v)
	}
	// Failed waterings are not counted as completed.
	if v := testutil.ToFloat64(set.waterings.WithLabelValues(string(model.TriggerManual))); v != 2 {
		t.Errorf("manual waterings after failure: got %v, want 2", v)
	}
}

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			m := f.GetMetric()[0]
			if m.GetGauge() != nil {
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
