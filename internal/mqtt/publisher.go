// Package mqtt publishes parsed frames as JSON to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"dashtrack/internal/store"
)

type Config struct {
	Broker   string
	Topic    string
	ClientID string
	// Timeout bounds connect and each publish. If 0, defaults to 5s.
	Timeout time.Duration
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

type Publisher struct {
	c       client
	topic   string
	timeout time.Duration
}

func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt broker and topic are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true)

	c := paho.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return newPublisher(c, cfg.Topic, cfg.Timeout), nil
}

func newPublisher(c client, topic string, timeout time.Duration) *Publisher {
	return &Publisher{c: c, topic: topic, timeout: timeout}
}

// Publish sends rec at QoS 1, not retained: every frame is a distinct fix.
func (p *Publisher) Publish(rec store.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("mqtt marshal: %w", err)
	}
	tok := p.c.Publish(p.topic, 1, false, payload)
	if !tok.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt publish %s: timeout", p.topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.c.Disconnect(250)
}
