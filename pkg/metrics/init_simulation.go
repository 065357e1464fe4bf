package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.SimulationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrosim_simulations_total",
			Help: "Total number of extended-period runs by outcome",
		},
		[]string{"status"},
	)

	r.SimulationDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrosim_simulation_duration_seconds",
			Help:    "Extended-period run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 60.0},
		},
	)

	r.SimulationSteps = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrosim_simulation_steps",
			Help:    "Hydraulic time steps per run",
			Buckets: []float64{1, 2, 6, 12, 24, 48, 96, 168, 720},
		},
	)

	r.CacheHitsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydrosim_result_cache_hits_total",
			Help: "Solve requests answered from the result cache",
		},
	)

	r.CacheMissesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "hydrosim_result_cache_misses_total",
			Help: "Solve requests that ran a simulation",
		},
	)
}

func (r *Registry) initPipelineMetrics() {
	r.LoadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrosim_loads_total",
			Help: "Network files loaded by outcome",
		},
		[]string{"status"},
	)

	r.LoadDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydrosim_load_duration_seconds",
			Help:    "Network file parse and validation time in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	r.ExportsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrosim_exports_total",
			Help: "Result exports by exporter and outcome",
		},
		[]string{"exporter", "status"},
	)

	r.ExportDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydrosim_export_duration_seconds",
			Help:    "Result export duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"exporter"},
	)
}
