// Command hydrosim loads a network file, runs it and prints a report.
//
//	hydrosim [flags] network.inp
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/config"
	"github.com/dd0wney/cluso-hydraulics/pkg/export"
	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/resilience"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
	"github.com/dd0wney/cluso-hydraulics/pkg/simulation"
)

type options struct {
	configPath string
	steps      int
	output     string
	format     string
	sweep      string
	pressure   float64
	export     bool
	quiet      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML config file")
	flag.IntVar(&o.steps, "steps", 0, "number of hydraulic steps (0 = network duration)")
	flag.StringVar(&o.output, "o", "", "write results to this file")
	flag.StringVar(&o.format, "format", "", "result format: json, yaml, csv, archive (default from -o extension)")
	flag.StringVar(&o.sweep, "sweep", "", "comma-separated demand multipliers to run as a batch")
	flag.Float64Var(&o.pressure, "pressure", -1, "required pressure for the resilience index (default from config)")
	flag.BoolVar(&o.export, "export", false, "send results to the exporters in the config")
	flag.BoolVar(&o.quiet, "q", false, "do not print the report")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] network.inp\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Arg(0), o); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, path string, o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.pressure >= 0 {
		cfg.Simulation.RequiredPressure = o.pressure
	}
	logger := cfg.Logger(os.Stderr)
	reg := metrics.NewRegistry()

	timer := logging.StartTimer(logger, "network loaded", logging.Path(path))
	net, err := inp.LoadFile(path, cfg.LoadOptions(logger))
	if err != nil {
		timer.EndError(err)
		return err
	}
	timer.End(logging.Count(net.NumNodes()), logging.Int("links", net.NumLinks()))

	simOpts := cfg.SimulationOptions(logger, reg)
	simOpts.Steps = o.steps

	if o.sweep != "" {
		multipliers, err := parseSweep(o.sweep)
		if err != nil {
			return err
		}
		out, err := simulation.RunBatch(ctx, net, simulation.DemandSweep(net, multipliers...), cfg.Simulation.Workers, simOpts)
		if err != nil {
			return err
		}
		if !o.quiet {
			fmt.Println(renderBatch(net, out))
		}
		var errs []error
		for _, r := range out {
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.Scenario, r.Err))
			}
		}
		return errors.Join(errs...)
	}

	runner, err := simulation.New(net, simOpts)
	if err != nil {
		return err
	}
	sim, runErr := runner.Run(ctx)
	if sim == nil {
		return runErr
	}

	idx, err := resilience.Series(sim, net, cfg.Simulation.RequiredPressure)
	if err != nil {
		logger.Debug("resilience index unavailable", logging.Error(err))
		idx = nil
	}
	if !o.quiet {
		fmt.Println(renderReport(net, sim, idx))
	}
	if o.output != "" {
		if err := writeResults(sim, o.output, o.format); err != nil {
			return err
		}
	}
	if o.export {
		if err := exportResults(ctx, cfg, sim, logger, reg); err != nil {
			return err
		}
	}
	return runErr
}

func parseSweep(s string) ([]float64, error) {
	var out []float64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		m, err := strconv.ParseFloat(f, 64)
		if err != nil || m < 0 {
			return nil, fmt.Errorf("invalid demand multiplier %q", f)
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, errors.New("sweep needs at least one multiplier")
	}
	return out, nil
}

func writeResults(sim *results.Simulation, path, format string) error {
	if format == "" {
		format = filepath.Ext(path)
	}
	f, err := results.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := results.Marshal(sim, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func exportResults(ctx context.Context, cfg *config.Config, sim *results.Simulation, logger logging.Logger, reg *metrics.Registry) error {
	fan, err := export.Open(ctx, cfg.Export, logger, reg)
	if err != nil {
		return err
	}
	if fan.Len() == 0 {
		return errors.New("no exporters configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	return errors.Join(fan.Export(ctx, sim), fan.Close())
}

// exitCode maps load errors to 2, solver failures to 3 and the rest to 1
func exitCode(err error) int {
	var pe *inp.ParseError
	var ve *network.ValidationError
	switch {
	case errors.As(err, &pe), errors.As(err, &ve):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	}
	for _, target := range []error{hydraulics.ErrNotConverged, hydraulics.ErrStatusOscillation, hydraulics.ErrSingularSystem, hydraulics.ErrTrialBudget} {
		if errors.Is(err, target) {
			return 3
		}
	}
	return 1
}
