// Package export ships simulation results to files, object storage,
// databases and message brokers.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// ErrNoSimulation is returned when Export is called with a nil simulation
var ErrNoSimulation = errors.New("no simulation to export")

// Exporter writes a finished simulation somewhere
type Exporter interface {
	Name() string
	Export(ctx context.Context, sim *results.Simulation) error
	Close() error
}

// StepMessage is the payload published per step by the broker exporters
type StepMessage struct {
	RunID       uuid.UUID     `json:"run_id"`
	Network     string        `json:"network"`
	Fingerprint string        `json:"fingerprint"`
	Index       int           `json:"index"`
	Total       int           `json:"total"`
	Step        *results.Step `json:"step"`
}

// stepMessages encodes one message per step
func stepMessages(sim *results.Simulation) ([][]byte, error) {
	out := make([][]byte, len(sim.Steps))
	for i, step := range sim.Steps {
		b, err := json.Marshal(StepMessage{
			RunID:       sim.RunID,
			Network:     sim.Network,
			Fingerprint: sim.Fingerprint,
			Index:       i,
			Total:       len(sim.Steps),
			Step:        step,
		})
		if err != nil {
			return nil, fmt.Errorf("encode step %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// objectName is the base name used for one run by the file and S3 exporters
func objectName(sim *results.Simulation, f results.Format) string {
	return fmt.Sprintf("%s/%s%s", sim.Fingerprint, sim.RunID, f.Extension())
}

// Fanout exports to several exporters in order. Every exporter runs even
// when an earlier one fails; the errors are joined.
type Fanout struct {
	exporters []Exporter
	logger    logging.Logger
	metrics   *metrics.Registry
}

// NewFanout wraps exporters. reg may be nil.
func NewFanout(logger logging.Logger, reg *metrics.Registry, exporters ...Exporter) *Fanout {
	return &Fanout{
		exporters: exporters,
		logger:    logging.OrDefault(logger).With(logging.Component("export")),
		metrics:   reg,
	}
}

// Name identifies the fanout in logs
func (f *Fanout) Name() string { return "fanout" }

// Len is the number of wrapped exporters
func (f *Fanout) Len() int { return len(f.exporters) }

// Add appends an exporter
func (f *Fanout) Add(e Exporter) { f.exporters = append(f.exporters, e) }

// Find returns the first exporter with the given name, or nil
func (f *Fanout) Find(name string) Exporter {
	for _, e := range f.exporters {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// Export runs every exporter
func (f *Fanout) Export(ctx context.Context, sim *results.Simulation) error {
	if sim == nil {
		return ErrNoSimulation
	}
	var errs []error
	for _, e := range f.exporters {
		start := time.Now()
		err := e.Export(ctx, sim)
		status := "ok"
		if err != nil {
			status = "error"
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			f.logger.Error("export failed", logging.String("exporter", e.Name()),
				logging.RunID(sim.RunID.String()), logging.Error(err))
		} else {
			f.logger.Info("exported", logging.String("exporter", e.Name()),
				logging.RunID(sim.RunID.String()), logging.Latency(time.Since(start)))
		}
		if f.metrics != nil {
			f.metrics.RecordExport(e.Name(), status, time.Since(start))
		}
	}
	return errors.Join(errs...)
}

// Close closes every exporter
func (f *Fanout) Close() error {
	var errs []error
	for _, e := range f.exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errors.Join(errs...)
}
