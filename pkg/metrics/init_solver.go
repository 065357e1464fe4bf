package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSolverMetrics() {
	r.SolvesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrosim_solves_total",
			Help: "Total number of steady-state solves by outcome",
		},
		[]string{"status"},
	)

	r.SolveTrials = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrosim_solve_trials",
			Help:    "Newton trials per steady-state solve",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 40, 100, 200},
		},
	)

	r.SolveDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrosim_solve_duration_seconds",
			Help:    "Steady-state solve duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	r.SolveRelativeError = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrosim_solve_relative_error",
			Help:    "Relative flow change of the final trial",
			Buckets: prometheus.ExponentialBuckets(1e-8, 10, 9),
		},
	)

	r.StatusChangesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrosim_status_changes_total",
			Help: "Link status changes made by status checks and controls",
		},
		[]string{"reason"},
	)

	r.IsolatedJunctions = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydrosim_isolated_junctions",
			Help: "Junctions cut off from every source in the last solve",
		},
	)

	r.PumpOverflowsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydrosim_pump_overflows_total",
			Help: "Pumps solved past the end of their head curve",
		},
	)
}
