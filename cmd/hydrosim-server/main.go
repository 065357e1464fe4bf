// Command hydrosim-server serves the solver over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/api"
	"github.com/dd0wney/cluso-hydraulics/pkg/config"
	"github.com/dd0wney/cluso-hydraulics/pkg/export"
	"github.com/dd0wney/cluso-hydraulics/pkg/health"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/parallel"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	issue := flag.String("issue-token", "", "print a bearer token for this subject and exit")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "lifetime of an issued token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger := cfg.Logger(os.Stdout).With(logging.Component("server"))

	if *issue != "" {
		if err := issueToken(cfg, *issue, *ttl); err != nil {
			logger.Error("issue token", logging.Error(err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", logging.Error(err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	reg := metrics.NewRegistry()
	srv, err := api.NewServer(serverConfig(cfg, logger, reg), logger, reg)
	if err != nil {
		return err
	}

	fan, err := export.Open(ctx, cfg.Export, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := fan.Close(); err != nil {
			logger.Warn("closing exporters", logging.Error(err))
		}
	}()
	if fan.Len() > 0 {
		pool, err := parallel.NewPool(cfg.Simulation.Workers, logger)
		if err != nil {
			return err
		}
		// drain queued exports before the exporters close
		defer pool.Close()
		srv.SetExporter(fan, pool)
		if pg, ok := fan.Find("postgres").(*export.PGExporter); ok {
			srv.Health().RegisterReadinessCheck("postgres", health.PingCheck("postgres", pg.Ping))
		}
		logger.Info("exporters ready", logging.Count(fan.Len()))
	}

	if cfg.Server.JWTSecret == "" {
		logger.Warn("authentication disabled: no jwt_secret configured")
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}

func serverConfig(cfg *config.Config, logger logging.Logger, reg *metrics.Registry) api.Config {
	return api.Config{
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		MaxSteps:         cfg.Server.MaxSteps,
		CacheSize:        cfg.Server.CacheSize,
		JWTSecret:        cfg.Server.JWTSecret,
		RequiredPressure: cfg.Simulation.RequiredPressure,
		Load:             cfg.LoadOptions(logger),
		Simulation:       cfg.SimulationOptions(logger, reg),
	}
}

func issueToken(cfg *config.Config, subject string, ttl time.Duration) error {
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("no jwt_secret configured")
	}
	a, err := api.NewAuthenticator(cfg.Server.JWTSecret)
	if err != nil {
		return err
	}
	token, err := a.Issue(subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
