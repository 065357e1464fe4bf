package simulation

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/parallel"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// Scenario is one variant of a network to run: the same topology with its
// own hydraulic options
type Scenario struct {
	Name    string
	Options network.Options
}

// BatchResult is the outcome of one scenario. Simulation holds the steps
// solved before an error.
type BatchResult struct {
	Scenario   string
	Simulation *results.Simulation
	Err        error
}

// DemandSweep builds one scenario per demand multiplier
func DemandSweep(net *network.Network, multipliers ...float64) []Scenario {
	out := make([]Scenario, len(multipliers))
	for i, m := range multipliers {
		opts := net.Options
		opts.DemandMultiplier = m
		out[i] = Scenario{Name: fmt.Sprintf("demand x%g", m), Options: opts}
	}
	return out
}

// RunBatch runs the scenarios on a pool of workers goroutines. The network
// is shared read-only; each scenario gets its own solver. Results keep the
// order of scenarios.
func RunBatch(ctx context.Context, net *network.Network, scenarios []Scenario, workers int, opts Options) ([]BatchResult, error) {
	logger := logging.OrDefault(opts.Logger).With(logging.Component("simulation"))
	pool, err := parallel.NewPool(workers, logger)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	timer := logging.StartTimer(logger, "batch finished",
		logging.Count(len(scenarios)), logging.Int("workers", pool.Workers()))
	sims, errs := parallel.Map(ctx, pool, len(scenarios), func(ctx context.Context, i int) (*results.Simulation, error) {
		sc := scenarios[i]
		runOpts := opts
		runOpts.Logger = logger.With(logging.String("scenario", sc.Name))
		runner, err := New(net.WithOptions(sc.Options), runOpts)
		if err != nil {
			return nil, err
		}
		return runner.Run(ctx)
	})

	out := make([]BatchResult, len(scenarios))
	failed := 0
	for i, sc := range scenarios {
		out[i] = BatchResult{Scenario: sc.Name, Simulation: sims[i], Err: errs[i]}
		if errs[i] != nil {
			failed++
		}
	}
	timer.End(logging.Int("failed", failed))
	return out, nil
}
