package export

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// MQTTConfig configures the MQTT publisher
type MQTTConfig struct {
	Broker   string `yaml:"broker" validate:"required"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic" validate:"required"`
	QoS      byte   `yaml:"qos" validate:"max=2"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// tokenPublisher is the part of mqtt.Client the publisher uses
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes each step to <topic>/<run id>/step/<index> and a
// retained summary to <topic>/<fingerprint>/latest
type MQTTPublisher struct {
	client  tokenPublisher
	close   func()
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher connects to the broker
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, tokenError(token))
	}
	p := newMQTTPublisher(client, cfg)
	p.close = func() { client.Disconnect(250) }
	return p, nil
}

func newMQTTPublisher(client tokenPublisher, cfg MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: cfg.Topic, qos: cfg.QoS, timeout: 10 * time.Second}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

func (p *MQTTPublisher) Export(ctx context.Context, sim *results.Simulation) error {
	if sim == nil {
		return ErrNoSimulation
	}
	payloads, err := stepMessages(sim)
	if err != nil {
		return err
	}
	for i, body := range payloads {
		topic := fmt.Sprintf("%s/%s/step/%d", p.topic, sim.RunID, i)
		if err := p.publish(ctx, topic, false, body); err != nil {
			return err
		}
	}
	if n := len(payloads); n > 0 {
		return p.publish(ctx, fmt.Sprintf("%s/%s/latest", p.topic, sim.Fingerprint), true, payloads[n-1])
	}
	return nil
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, retained bool, body []byte) error {
	token := p.client.Publish(topic, p.qos, retained, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

func tokenError(t mqtt.Token) error {
	if err := t.Error(); err != nil {
		return err
	}
	return fmt.Errorf("timed out")
}
