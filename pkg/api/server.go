// Package api serves the solver over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-hydraulics/pkg/api/middleware"
	"github.com/dd0wney/cluso-hydraulics/pkg/export"
	"github.com/dd0wney/cluso-hydraulics/pkg/health"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/parallel"
	"github.com/dd0wney/cluso-hydraulics/pkg/simulation"
)

// Config tunes the server
type Config struct {
	MaxBodyBytes int64
	MaxSteps     int
	CacheSize    int

	// JWTSecret enables bearer-token auth on /v1 when set
	JWTSecret string

	// RequiredPressure is the service pressure for the resilience index
	RequiredPressure float64

	Load       inp.LoadOptions
	Simulation simulation.Options
	TLS        bool
}

// Server is the HTTP solve service
type Server struct {
	cfg      Config
	router   *mux.Router
	logger   logging.Logger
	metrics  *metrics.Registry
	health   *health.Checker
	cache    *resultCache
	auth     *Authenticator
	exporter export.Exporter
	pool     *parallel.Pool
	started  time.Time
}

// NewServer builds the router. reg may be nil, in which case a private
// registry is used.
func NewServer(cfg Config, logger logging.Logger, reg *metrics.Registry) (*Server, error) {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 8 << 20
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 1000
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	logger = logging.OrDefault(logger).With(logging.Component("api"))
	cfg.Simulation.Metrics = reg
	cfg.Simulation.Logger = logging.OrDefault(cfg.Simulation.Logger)
	cfg.Load.Logger = logging.OrDefault(cfg.Load.Logger)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: reg,
		health:  health.NewChecker(),
		cache:   newResultCache(cfg.CacheSize),
		started: time.Now(),
	}
	if cfg.JWTSecret != "" {
		a, err := NewAuthenticator(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		s.auth = a
	}
	s.registerChecks()
	s.routes()
	return s, nil
}

// SetExporter ships every fresh simulation to e on pool. Exports run after
// the response is written; failures are logged.
func (s *Server) SetExporter(e export.Exporter, pool *parallel.Pool) {
	s.exporter = e
	s.pool = pool
	s.health.RegisterLivenessCheck("workers", health.PoolCheck(pool.Workers(), pool.Panics))
}

// Health exposes the checker so callers can add probes
func (s *Server) Health() *health.Checker { return s.health }

// Authenticator returns nil when auth is disabled
func (s *Server) Authenticator() *Authenticator { return s.auth }

// Handler returns the root handler
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(
		middleware.PanicRecovery(s.logger),
		middleware.RequestID(),
		middleware.SecurityHeaders(s.cfg.TLS),
		middleware.Logging(s.logger),
		middleware.Metrics(s.metrics),
	)

	r.Handle("/health", s.health.LivenessHandler()).Methods(http.MethodGet)
	r.Handle("/health/ready", s.health.ReadinessHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(handlers.CompressHandler)
	if s.auth != nil {
		v1.Use(s.auth.Middleware)
	}
	v1.Use(middleware.BodySizeLimit(s.cfg.MaxBodyBytes, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
	})))
	v1.HandleFunc("/solve", s.handleSolve).Methods(http.MethodPost)
	v1.HandleFunc("/results/{fingerprint}", s.handleResults).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	s.router = r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.String("addr", addr), logging.Bool("auth", s.auth != nil))
		errCh <- srv.ListenAndServe()
	}()
	go s.updateSystemMetrics(ctx)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// updateSystemMetrics refreshes the runtime gauges every 10 seconds
func (s *Server) updateSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		s.metrics.UpdateSystemMetrics(s.started)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
