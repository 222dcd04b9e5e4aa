// Package mqttconn wraps the paho MQTT client with connection retry,
// a topic publisher and a subscribing consumer.
package mqttconn

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

// NewConn connects to the broker, retrying with exponential backoff.
// The connection is closed when ctx is cancelled.
func NewConn(ctx context.Context, cfg Config) (mqtt.Client, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(addr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqttconn: connect to %s failed: %v", addr, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithMaxRetries(bo, 4))
	if err != nil {
		return nil, fmt.Errorf("mqtt connection after retries: %w", err)
	}

	log.Printf("mqttconn: connected to %s", addr)

	go func() {
		<-ctx.Done()
		client.Disconnect(250)
		log.Println("mqttconn: connection closed")
	}()

	return client, nil
}
