package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dd0wney/cluso-hydraulics/pkg/api/middleware"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/resilience"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
	"github.com/dd0wney/cluso-hydraulics/pkg/simulation"
)

// handleSolve loads the network file in the body and runs it. steps is
// the number of hydraulic steps to simulate; 0 or absent runs the
// network's own duration.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	params, err := parseSolveParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid query", errorDetails(err)...)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	start := time.Now()
	net, err := inp.Load(bytes.NewReader(body), s.cfg.Load)
	if err != nil {
		s.metrics.RecordLoad("error", time.Since(start))
		respondError(w, loadErrorStatus(err), "Invalid network", errorDetails(err)...)
		return
	}
	s.metrics.RecordLoad("ok", time.Since(start))

	opts := s.cfg.Simulation
	opts.Steps = params.Steps
	if n := stepCount(net, opts); n > s.cfg.MaxSteps {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Run has %d steps, limit is %d", n, s.cfg.MaxSteps))
		return
	}

	key := cacheKey(net.Fingerprint(), params.Steps)
	if entry, ok := s.cache.get(key); ok {
		s.metrics.RecordCache(true)
		s.respondSimulation(w, entry, true, format(params))
		return
	}
	s.metrics.RecordCache(false)

	logger := s.logger.With(logging.String("request_id", middleware.GetRequestID(r)))
	opts.Logger = logger
	runner, err := simulation.New(net, opts)
	if err != nil {
		respondError(w, loadErrorStatus(err), "Invalid network", errorDetails(err)...)
		return
	}
	sim, err := runner.Run(r.Context())
	if err != nil {
		respondError(w, solveErrorStatus(err), "Simulation failed", err.Error())
		return
	}

	entry := &cacheEntry{key: key, fingerprint: sim.Fingerprint, sim: sim}
	if idx, err := resilience.Series(sim, net, s.cfg.RequiredPressure); err == nil {
		entry.resilience = idx
	} else {
		logger.Debug("resilience index unavailable", logging.Error(err))
	}
	s.cache.put(entry)
	s.export(sim)
	s.respondSimulation(w, entry, false, format(params))
}

// handleResults returns the most recent cached run of a network
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	fp := mux.Vars(r)["fingerprint"]
	entry, ok := s.cache.latest(fp)
	s.metrics.RecordCache(ok)
	if !ok {
		respondError(w, http.StatusNotFound, "No results for network "+fp)
		return
	}
	params, err := parseSolveParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid query", errorDetails(err)...)
		return
	}
	s.respondSimulation(w, entry, true, format(params))
}

func (s *Server) respondSimulation(w http.ResponseWriter, e *cacheEntry, cached bool, f results.Format) {
	w.Header().Set("X-Run-ID", e.sim.RunID.String())
	w.Header().Set("X-Cache", map[bool]string{true: "hit", false: "miss"}[cached])
	if f != results.FormatJSON {
		var buf bytes.Buffer
		if err := results.Encode(&buf, e.sim, f); err != nil {
			respondError(w, http.StatusInternalServerError, "Could not encode results")
			return
		}
		w.Header().Set("Content-Type", f.ContentType())
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}
	respondJSON(w, http.StatusOK, SolveResponse{
		RunID:       e.sim.RunID.String(),
		Fingerprint: e.sim.Fingerprint,
		Cached:      cached,
		Steps:       len(e.sim.Steps),
		Unbalanced:  e.sim.Unbalanced(),
		Resilience:  e.resilience,
		Simulation:  e.sim,
	})
}

// export queues sim on the worker pool
func (s *Server) export(sim *results.Simulation) {
	if s.exporter == nil || s.pool == nil {
		return
	}
	submitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.pool.Submit(submitCtx, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.exporter.Export(ctx, sim); err != nil {
			s.logger.Error("export failed", logging.RunID(sim.RunID.String()), logging.Error(err))
		}
	})
	if err != nil {
		s.logger.Warn("export skipped", logging.RunID(sim.RunID.String()), logging.Error(err))
	}
}

// stepCount is the number of hydraulic steps a run will solve
func stepCount(net *network.Network, opts simulation.Options) int {
	if opts.Steps > 0 {
		return opts.Steps
	}
	duration, step := opts.Duration, opts.Step
	if duration <= 0 {
		duration = net.Times.Duration
	}
	if step <= 0 {
		step = net.Times.HydraulicStep
	}
	if step <= 0 {
		step = time.Hour
	}
	return int(duration/step) + 1
}
