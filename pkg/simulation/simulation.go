// Package simulation drives extended-period runs: a steady-state solve at
// every hydraulic time step, with controls applied between steps and tank
// levels carried from one step to the next.
package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/control"
	"github.com/dd0wney/cluso-hydraulics/pkg/demand"
	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// Options tunes a Runner. Zero durations take the network's TIMES values.
type Options struct {
	Solver hydraulics.Options

	Duration time.Duration
	Step     time.Duration

	// Steps, when positive, runs exactly that many hydraulic steps and
	// overrides Duration
	Steps int

	// OnStep, when set, is called with every recorded step
	OnStep func(*results.Step)

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Runner runs one network. Each call to Run owns its state, so a Runner
// may run concurrently with itself.
type Runner struct {
	net      *network.Network
	solver   *hydraulics.Solver
	resolver *demand.Resolver
	tanks    []tank
	opts     Options
	logger   logging.Logger
}

// New prepares a runner for net
func New(net *network.Network, opts Options) (*Runner, error) {
	logger := logging.OrDefault(opts.Logger).With(logging.Component("simulation"))
	solverOpts := opts.Solver
	if solverOpts.Logger == nil {
		solverOpts.Logger = opts.Logger
	}
	if solverOpts.Metrics == nil {
		solverOpts.Metrics = opts.Metrics
	}
	solver, err := hydraulics.New(net, solverOpts)
	if err != nil {
		return nil, err
	}
	resolver, err := demand.NewResolver(net)
	if err != nil {
		return nil, err
	}
	tanks, err := newTanks(net, solver.Evaluator().Converter())
	if err != nil {
		return nil, err
	}

	if opts.Duration <= 0 {
		opts.Duration = net.Times.Duration
	}
	if opts.Step <= 0 {
		opts.Step = net.Times.HydraulicStep
	}
	if opts.Step <= 0 {
		opts.Step = time.Hour
	}
	if opts.Steps > 0 {
		opts.Duration = time.Duration(opts.Steps-1) * opts.Step
	}
	return &Runner{
		net:      net,
		solver:   solver,
		resolver: resolver,
		tanks:    tanks,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Solver returns the steady-state solver used at every step
func (r *Runner) Solver() *hydraulics.Solver { return r.solver }

// Run solves every step from 0 to the duration. An unbalanced step is
// recorded and the run goes on; a failed step ends the run and is returned
// with the steps solved before it.
func (r *Runner) Run(ctx context.Context) (*results.Simulation, error) {
	sim := results.NewSimulation(r.net)
	logger := r.logger.With(logging.RunID(sim.RunID.String()))
	timer := logging.StartTimer(logger, "simulation finished",
		logging.Duration("duration", r.opts.Duration), logging.Duration("step", r.opts.Step))

	sim, err := r.run(ctx, sim, logger)
	if m := r.opts.Metrics; m != nil {
		status := "completed"
		if err != nil {
			status = "failed"
		}
		m.RecordSimulation(status, len(sim.Steps), timer.Elapsed())
	}
	if err != nil {
		timer.EndError(err, logging.Count(len(sim.Steps)))
		return sim, err
	}
	timer.End(logging.Count(len(sim.Steps)), logging.Int("unbalanced", sim.Unbalanced()))
	return sim, nil
}

func (r *Runner) run(ctx context.Context, sim *results.Simulation, logger logging.Logger) (*results.Simulation, error) {
	eval := r.solver.Evaluator()
	controller, err := control.NewController(r.solver.Checker())
	if err != nil {
		return sim, err
	}
	clog := control.NewLog(r.net, eval)
	defer func() { sim.ControlLog = clog.Entries() }()

	links := make([]headloss.LinkState, r.net.NumLinks())
	for k := range links {
		links[k] = eval.DefaultState(k)
	}
	var heads []float64 // tank heads by node index; nil until the first step
	var warm *hydraulics.State

	for t := time.Duration(0); t <= r.opts.Duration; t += r.opts.Step {
		if err := ctx.Err(); err != nil {
			return sim, fmt.Errorf("simulation canceled at %s: %w", t, err)
		}
		period := r.resolver.PeriodAt(t)
		cond, err := r.solver.Conditions(r.resolver, period, heads)
		if err != nil {
			return sim, fmt.Errorf("simulation step at %s: %w", t, err)
		}

		changes := controller.ApplyControls(t, cond.Heads, links)
		clog.Record(t, changes...)
		if err := r.solver.ApplySpeeds(r.resolver, period, links); err != nil {
			return sim, fmt.Errorf("simulation step at %s: %w", t, err)
		}
		cond.Links = links
		cond.Warm = warm

		res, err := r.solver.Solve(ctx, cond)
		if err != nil {
			return sim, fmt.Errorf("simulation step at %s: %w", t, err)
		}
		clog.Record(t, res.Changes...)

		if r.reportable(t) {
			step := results.NewStep(r.solver, t, res)
			sim.Steps = append(sim.Steps, step)
			if r.opts.OnStep != nil {
				r.opts.OnStep(step)
			}
		}
		for _, w := range res.Warnings {
			logger.Warn(w, logging.SimTime(int64(t/time.Second)))
		}
		logger.Info("step solved",
			logging.SimTime(int64(t/time.Second)),
			logging.String("status", res.Status.String()),
			logging.Trial(res.Trials),
			logging.Count(len(changes)+len(res.Changes)))

		warm = res.State
		links = append(links[:0], res.State.Links...)
		heads = r.advanceTanks(cond.Heads, res, r.opts.Step.Seconds())
	}
	return sim, nil
}

// reportable reports whether the step at t falls on a reporting time
func (r *Runner) reportable(t time.Duration) bool {
	start, every := r.net.Times.ReportStart, r.net.Times.ReportStep
	if t < start {
		return false
	}
	return every <= 0 || every <= r.opts.Step || (t-start)%every == 0
}

// advanceTanks integrates each tank's net inflow over dt seconds
func (r *Runner) advanceTanks(fixed []float64, res *hydraulics.Result, dt float64) []float64 {
	next := append([]float64(nil), fixed...)
	if len(r.tanks) == 0 {
		return next
	}
	inflow := make([]float64, r.net.NumNodes())
	for k, q := range res.State.Flows {
		i, j := r.solver.Checker().Endpoints(k)
		inflow[i] -= q
		inflow[j] += q
	}
	for i := range r.tanks {
		tk := &r.tanks[i]
		next[tk.node] = tk.advance(fixed[tk.node], inflow[tk.node], dt)
	}
	return next
}
