package mqttconn

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes payloads to MQTT topics.
type IPublisher interface {
	PublishToQos(topic string, qos byte, retained bool, payload string) error
	Close()
}

type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, payload string) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
