// Package telemetry forwards controller transitions to MQTT topics for
// dashboards and remote monitoring.
package telemetry

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bonsailab/bonsaictl/internal/automation"
	"github.com/bonsailab/bonsaictl/internal/model"
	"github.com/bonsailab/bonsaictl/pkg/mqttconn"
)

const (
	stateTopicTmpl    = "event/plantState/{plant}"
	wateringTopicTmpl = "event/watering/{plant}"
)

type stateChangeMessage struct {
	EventID   string           `json:"event_id"`
	Plant     string           `json:"plant"`
	OldState  model.PlantState `json:"old_state"`
	NewState  model.PlantState `json:"new_state"`
	Timestamp time.Time        `json:"timestamp"`
}

type wateringMessage struct {
	EventID string `json:"event_id"`
	Plant   string `json:"plant"`
	model.WateringEvent
}

// Publisher publishes state changes and watering results at QoS1.
type Publisher struct {
	pub   mqttconn.IPublisher
	plant string
}

func NewPublisher(pub mqttconn.IPublisher, plant string) *Publisher {
	return &Publisher{pub: pub, plant: plant}
}

// StateCallback returns an observer for Engine.AddStateCallback. Publish
// failures are logged, never propagated into the control loop.
func (p *Publisher) StateCallback() automation.StateCallback {
	return func(old, new model.PlantState) {
		msg := stateChangeMessage{
			EventID:   uuid.New().String(),
			Plant:     p.plant,
			OldState:  old,
			NewState:  new,
			Timestamp: time.Now().UTC(),
		}
		b, _ := json.Marshal(msg)
		topic := strings.Replace(stateTopicTmpl, "{plant}", p.plant, 1)
		if err := p.pub.PublishToQos(topic, 1, false, string(b)); err != nil {
			log.Printf("telemetry: publish state change: %v", err)
		}
	}
}

func (p *Publisher) publishWatering(e model.WateringEvent) {
	msg := wateringMessage{EventID: uuid.New().String(), Plant: p.plant, WateringEvent: e}
	b, _ := json.Marshal(msg)
	topic := strings.Replace(wateringTopicTmpl, "{plant}", p.plant, 1)
	if err := p.pub.PublishToQos(topic, 1, false, string(b)); err != nil {
		log.Printf("telemetry: publish watering: %v", err)
	}
}

// Store wraps a HistoryStore so every recorded watering event is also
// published, without the engine knowing about MQTT.
type Store struct {
	automation.HistoryStore
	pub *Publisher
}

func WrapStore(inner automation.HistoryStore, pub *Publisher) *Store {
	return &Store{HistoryStore: inner, pub: pub}
}

func (s *Store) LogWateringEvent(ctx context.Context, e model.WateringEvent) error {
	err := s.HistoryStore.LogWateringEvent(ctx, e)
	s.pub.publishWatering(e)
	return err
}
