package export

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// KafkaConfig configures the Kafka exporter
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" validate:"required,min=1,dive,hostname_port"`
	Topic   string   `yaml:"topic" validate:"required"`
}

// messageWriter is the part of kafka.Writer the exporter uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaExporter publishes one message per step, keyed by run id so a run
// stays on one partition in order
type KafkaExporter struct {
	writer messageWriter
	topic  string
}

// NewKafkaExporter creates a synchronous writer
func NewKafkaExporter(cfg KafkaConfig) *KafkaExporter {
	return &KafkaExporter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 50 * time.Millisecond,
		},
		topic: cfg.Topic,
	}
}

func (e *KafkaExporter) Name() string { return "kafka" }

func (e *KafkaExporter) Export(ctx context.Context, sim *results.Simulation) error {
	if sim == nil {
		return ErrNoSimulation
	}
	payloads, err := stepMessages(sim)
	if err != nil {
		return err
	}
	key := []byte(sim.RunID.String())
	msgs := make([]kafka.Message, len(payloads))
	for i, p := range payloads {
		msgs[i] = kafka.Message{
			Key:   key,
			Value: p,
			Headers: []kafka.Header{
				{Key: "fingerprint", Value: []byte(sim.Fingerprint)},
				{Key: "status", Value: []byte(sim.Steps[i].Status.String())},
			},
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := e.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write to %s: %w", e.topic, err)
	}
	return nil
}

func (e *KafkaExporter) Close() error { return e.writer.Close() }
