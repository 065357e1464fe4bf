package export

import (
	"context"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
)

// Config selects the exporters to open. Nil sections are skipped.
type Config struct {
	File     *FileConfig     `yaml:"file" validate:"omitempty"`
	S3       *S3Config       `yaml:"s3" validate:"omitempty"`
	Postgres *PostgresConfig `yaml:"postgres" validate:"omitempty"`
	Kafka    *KafkaConfig    `yaml:"kafka" validate:"omitempty"`
	NNG      *NNGConfig      `yaml:"nng" validate:"omitempty"`
	MQTT     *MQTTConfig     `yaml:"mqtt" validate:"omitempty"`
}

// Open builds a Fanout over every configured exporter. Exporters opened
// before a failure are closed.
func Open(ctx context.Context, cfg Config, logger logging.Logger, reg *metrics.Registry) (*Fanout, error) {
	out := NewFanout(logger, reg)
	fail := func(err error) (*Fanout, error) {
		out.Close()
		return nil, err
	}

	if cfg.File != nil {
		e, err := NewFileExporter(*cfg.File)
		if err != nil {
			return fail(err)
		}
		out.Add(e)
	}
	if cfg.S3 != nil {
		e, err := NewS3Exporter(ctx, *cfg.S3)
		if err != nil {
			return fail(err)
		}
		out.Add(e)
	}
	if cfg.Postgres != nil {
		e, err := NewPGExporter(ctx, *cfg.Postgres)
		if err != nil {
			return fail(err)
		}
		out.Add(e)
	}
	if cfg.Kafka != nil {
		out.Add(NewKafkaExporter(*cfg.Kafka))
	}
	if cfg.NNG != nil {
		e, err := NewNNGPublisher(*cfg.NNG)
		if err != nil {
			return fail(err)
		}
		out.Add(e)
	}
	if cfg.MQTT != nil {
		e, err := NewMQTTPublisher(*cfg.MQTT)
		if err != nil {
			return fail(err)
		}
		out.Add(e)
	}
	out.logger.Info("exporters opened", logging.Count(out.Len()))
	return out, nil
}
