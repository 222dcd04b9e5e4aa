package sensor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bonsailab/bonsaictl/internal/model"
	"github.com/bonsailab/bonsaictl/pkg/dedup"
)

// probeMessage is the payload the probe node publishes. A nil percent means
// the probe itself could not read its ADC.
type probeMessage struct {
	Percent   *float64  `json:"percent"`
	Raw       int       `json:"raw_value"`
	Channel   int       `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTSource keeps the most recent probe reading published over MQTT.
// Reads fail once the held reading is older than maxAge, so a silent probe
// surfaces as a sensor error rather than a frozen value.
type MQTTSource struct {
	mu   sync.Mutex
	last model.MoistureReading
	has  bool

	maxAge  time.Duration
	deduper *dedup.Deduper
	now     func() time.Time
}

func NewMQTTSource(maxAge time.Duration) *MQTTSource {
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &MQTTSource{
		maxAge:  maxAge,
		deduper: dedup.New(10*time.Minute, 20000),
		now:     time.Now,
	}
}

// Handle is the consumer callback; wire it to a mqttconn.Consumer. QoS1
// redeliveries are dropped by payload hash before decoding.
func (s *MQTTSource) Handle(_ string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if !s.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var pm probeMessage
	if err := json.Unmarshal(msg.Payload(), &pm); err != nil {
		log.Printf("sensor: bad probe payload: %v", err)
		return nil
	}
	if pm.Percent == nil {
		// Probe reported a fault; let staleness expire the held reading.
		return nil
	}

	pct := *pm.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	ts := pm.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	s.mu.Lock()
	s.last = model.MoistureReading{Timestamp: ts, Percent: pct, Raw: pm.Raw, Channel: pm.Channel}
	s.has = true
	s.mu.Unlock()
	return nil
}

func (s *MQTTSource) ReadMoisture() (model.MoistureReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has || s.now().Sub(s.last.Timestamp) > s.maxAge {
		return model.MoistureReading{}, ErrUnavailable
	}
	return s.last, nil
}
