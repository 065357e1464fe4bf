// Command hydrosim-tui browses the steps of a run in the terminal.
//
//	hydrosim-tui results.json
//	hydrosim-tui network.inp
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/cluso-hydraulics/pkg/config"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
	"github.com/dd0wney/cluso-hydraulics/pkg/simulation"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	steps := flag.Int("steps", 0, "number of hydraulic steps when running a network file")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] results.{json,yaml,sz} | network.inp\n", os.Args[0])
		os.Exit(2)
	}

	sim, err := open(flag.Arg(0), *configPath, *steps)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(sim), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// open decodes a results file, or runs a network file
func open(path, configPath string, steps int) (*results.Simulation, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".inp" {
		return runNetwork(path, configPath, steps)
	}
	format, err := results.ParseFormat(ext)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return results.Decode(f, format)
}

func runNetwork(path, configPath string, steps int) (*results.Simulation, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	// the terminal belongs to the UI
	logger := logging.NewNopLogger()
	net, err := inp.LoadFile(path, cfg.LoadOptions(logger))
	if err != nil {
		return nil, err
	}
	opts := cfg.SimulationOptions(logger, nil)
	opts.Steps = steps
	runner, err := simulation.New(net, opts)
	if err != nil {
		return nil, err
	}
	sim, err := runner.Run(context.Background())
	if err != nil && (sim == nil || len(sim.Steps) == 0) {
		return nil, err
	}
	return sim, nil
}
