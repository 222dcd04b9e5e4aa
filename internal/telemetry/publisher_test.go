package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bonsailab/bonsaictl/internal/model"
)

type capturePub struct {
	topics   []string
	payloads []string
	qos      []byte
	err      error
}

func (c *capturePub) PublishToQos(topic string, qos byte, _ bool, payload string) error {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	c.qos = append(c.qos, qos)
	return c.err
}

func (c *capturePub) Close() {}

func TestStateCallbackPublishes(t *testing.T) {
	sink := &capturePub{}
	p := NewPublisher(sink, "bonsai")

	p.StateCallback()(model.StateHealthy, model.StateNeedsWater)

	if len(sink.topics) != 1 || sink.topics[0] != "event/plantState/bonsai" {
		t.Fatalf("topics: got %v", sink.topics)
	}
	if sink.qos[0] != 1 {
		t.Errorf("qos: got %d, want 1", sink.qos[0])
	}

	var msg stateChangeMessage
	if err := json.Unmarshal([]byte(sink.payloads[0]), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Plant != "bonsai" || msg.OldState != model.StateHealthy || msg.NewState != model.StateNeedsWater {
		t.Errorf("message: %+v", msg)
	}
	if msg.EventID == "" {
		t.Error("event id missing")
	}
}

func TestStateCallbackSwallowsPublishErrors(t *testing.T) {
	p := NewPublisher(&capturePub{err: errors.New("broker gone")}, "bonsai")
	// Must not panic; the engine runs this inline on the control loop.
	p.StateCallback()(model.StateHealthy, model.StateCritical)
}

type stubStore struct {
	waterings int
	err       error
}

func (s *stubStore) LogMoistureReading(context.Context, model.MoistureReading) error { return nil }
func (s *stubStore) LogWateringEvent(context.Context, model.WateringEvent) error {
	s.waterings++
	return s.err
}
func (s *stubStore) LogSystemEvent(context.Context, model.SystemEvent) error { return nil }
func (s *stubStore) MoistureHistory(context.Context, time.Duration) ([]model.MoistureReading, error) {
	return nil, nil
}
func (s *stubStore) WateringHistory(context.Context, time.Duration) ([]model.WateringEvent, error) {
	return nil, nil
}

func TestWrapStorePublishesWaterings(t *testing.T) {
	sink := &capturePub{}
	inner := &stubStore{}
	st := WrapStore(inner, NewPublisher(sink, "bonsai"))

	moisture := 18.0
	evt := model.WateringEvent{
		Timestamp:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		TriggerMoisture: &moisture,
		DurationSec:     16,
		Type:            model.TriggerMoistureLow,
	}
	if err := st.LogWateringEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if inner.waterings != 1 {
		t.Errorf("inner writes: got %d, want 1", inner.waterings)
	}
	if len(sink.topics) != 1 || sink.topics[0] != "event/watering/bonsai" {
		t.Fatalf("topics: got %v", sink.topics)
	}

	var msg wateringMessage
	if err := json.Unmarshal([]byte(sink.payloads[0]), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Plant != "bonsai" || msg.Type != model.TriggerMoistureLow || msg.DurationSec != 16 {
		t.Errorf("message: %+v", msg)
	}
}

func TestWrapStorePublishesEvenWhenWriteFails(t *testing.T) {
	sink := &capturePub{}
	inner := &stubStore{err: errors.New("influx down")}
	st := WrapStore(inner, NewPublisher(sink, "bonsai"))

	err := st.LogWateringEvent(context.Background(), model.WateringEvent{Type: model.TriggerManual})
	if err == nil {
		t.Error("inner error should propagate")
	}
	if len(sink.topics) != 1 {
		t.Errorf("publishes: got %d, want 1", len(sink.topics))
	}
}
