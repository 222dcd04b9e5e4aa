package mqttconn

import (
	"context"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message. Returning an error only logs it;
// consumption continues.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes to a topic and feeds messages to a handler.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(h Handler)
}

type Consumer struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, qos: qos, handler: handler}
}

func (c *Consumer) SetHandler(h Handler) {
	c.handler = h
}

// ConsumeMessage subscribes and blocks until ctx is cancelled, then
// unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			log.Printf("mqttconn: no handler for topic %s", c.topic)
			return
		}
		if err := c.handler(c.topic, msg); err != nil {
			log.Printf("mqttconn: handler error on %s: %v", c.topic, err)
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("mqttconn: subscribe %s failed: %v", c.topic, token.Error())
		return
	}
	log.Printf("mqttconn: subscribed to %s", c.topic)

	<-ctx.Done()

	unsub := c.client.Unsubscribe(c.topic)
	unsub.Wait()
}
