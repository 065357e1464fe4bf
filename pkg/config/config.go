// Package config loads run and server settings from a YAML file with
// HYDRO_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-hydraulics/pkg/export"
	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/parallel"
	"github.com/dd0wney/cluso-hydraulics/pkg/simulation"
	"github.com/dd0wney/cluso-hydraulics/pkg/validation"
)

// Config is the full settings tree
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Load       LoadConfig       `yaml:"load"`
	Solver     SolverConfig     `yaml:"solver"`
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
	Export     export.Config    `yaml:"export"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

type LoadConfig struct {
	Duplicates string `yaml:"duplicates" validate:"omitempty,oneof=merge last-wins reject"`
}

type SolverConfig struct {
	MaxStatusFlips int `yaml:"max_status_flips" validate:"min=1"`
	MaxTotalTrials int `yaml:"max_total_trials" validate:"min=0"`
}

// SimulationConfig overrides the network's TIMES section when set
type SimulationConfig struct {
	Duration time.Duration `yaml:"duration" validate:"min=0"`
	Step     time.Duration `yaml:"step" validate:"min=0"`
	Workers  int           `yaml:"workers" validate:"min=1"`

	// RequiredPressure is the service pressure used by the resilience index
	RequiredPressure float64 `yaml:"required_pressure" validate:"min=0"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	JWTSecret    string        `yaml:"jwt_secret" validate:"omitempty,min=16"`
	CacheSize    int           `yaml:"cache_size" validate:"min=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"min=1024"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxSteps     int           `yaml:"max_steps" validate:"min=1"`
}

// Default returns the settings used when no file is given
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "json"},
		Load:   LoadConfig{Duplicates: "merge"},
		Solver: SolverConfig{MaxStatusFlips: hydraulics.DefaultOptions().MaxStatusFlips},
		Simulation: SimulationConfig{
			Workers:          4,
			RequiredPressure: 20,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			CacheSize:    64,
			MaxBodyBytes: 8 << 20,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			MaxSteps:     1000,
		},
	}
}

// Load reads path (when not empty) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates it. Environment
// variables are not consulted.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// Validate checks the struct tags, then the rules that span fields
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	v := validation.NewCollector("config")
	v.For("simulation", "").
		When(c.Simulation.Duration > 0 && c.Simulation.Step > 0, func(v *validation.Collector) {
			if c.Simulation.Step > c.Simulation.Duration {
				v.Addf("step", "step %s is longer than duration %s", c.Simulation.Step, c.Simulation.Duration)
			}
		}).
		RangeInt("workers", c.Simulation.Workers, 1, parallel.MaxWorkers)
	return v.Err()
}

// Logger builds the logger described by the log section
func (c *Config) Logger(w io.Writer) logging.Logger {
	format := logging.FormatJSON
	if c.Log.Format == string(logging.FormatText) {
		format = logging.FormatText
	}
	return logging.New(w, logging.ParseLevel(c.Log.Level), format)
}

// LoadOptions returns the loader settings
func (c *Config) LoadOptions(logger logging.Logger) inp.LoadOptions {
	policy, _ := inp.ParseDuplicatePolicy(c.Load.Duplicates)
	return inp.LoadOptions{Duplicates: policy, Logger: logger}
}

// SolverOptions returns the steady-state solver settings
func (c *Config) SolverOptions(logger logging.Logger, reg *metrics.Registry) hydraulics.Options {
	opts := hydraulics.DefaultOptions()
	opts.MaxStatusFlips = c.Solver.MaxStatusFlips
	opts.MaxTotalTrials = c.Solver.MaxTotalTrials
	opts.Logger = logger
	opts.Metrics = reg
	return opts
}

// SimulationOptions returns the extended-period settings
func (c *Config) SimulationOptions(logger logging.Logger, reg *metrics.Registry) simulation.Options {
	return simulation.Options{
		Solver:   c.SolverOptions(logger, reg),
		Duration: c.Simulation.Duration,
		Step:     c.Simulation.Step,
		Logger:   logger,
		Metrics:  reg,
	}
}
