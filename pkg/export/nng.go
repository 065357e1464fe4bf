package export

import (
	"context"
	"fmt"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"

	// Register transports
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// NNGConfig configures the NNG publisher
type NNGConfig struct {
	Listen string `yaml:"listen" validate:"required"`
	Topic  string `yaml:"topic"`
}

// DefaultNNGTopic prefixes every published message
const DefaultNNGTopic = "hydrosim.step"

// NNGPublisher broadcasts steps on a PUB socket. Subscribers filter on the
// topic prefix; messages sent with no subscriber connected are dropped.
type NNGPublisher struct {
	sock  mangos.Socket
	topic []byte
	addr  string
}

// NewNNGPublisher binds a PUB socket to cfg.Listen
func NewNNGPublisher(cfg NNGConfig) (*NNGPublisher, error) {
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	if err := sock.Listen(cfg.Listen); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to bind PUB socket: %w", err)
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultNNGTopic
	}
	return &NNGPublisher{sock: sock, topic: []byte(topic + " "), addr: cfg.Listen}, nil
}

func (p *NNGPublisher) Name() string { return "nng" }

// Addr is the address the socket listens on
func (p *NNGPublisher) Addr() string { return p.addr }

// Export sends "<topic> <json>" for each step
func (p *NNGPublisher) Export(ctx context.Context, sim *results.Simulation) error {
	if sim == nil {
		return ErrNoSimulation
	}
	payloads, err := stepMessages(sim)
	if err != nil {
		return err
	}
	for i, body := range payloads {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := make([]byte, 0, len(p.topic)+len(body))
		msg = append(append(msg, p.topic...), body...)
		if err := p.sock.Send(msg); err != nil {
			return fmt.Errorf("publish step %d: %w", i, err)
		}
	}
	return nil
}

func (p *NNGPublisher) Close() error { return p.sock.Close() }
