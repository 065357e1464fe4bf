package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hydrosim"

// requestLabels are set by the API middleware; path is the route template
var requestLabels = []string{"method", "path", "status"}

func (r *Registry) initHTTPMetrics() {
	f := promauto.With(r.registry)
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: "http", Name: name, Help: help}
	}

	r.HTTPRequestsTotal = f.NewCounterVec(prometheus.CounterOpts(opts(
		"requests_total", "HTTP requests served, by route and status")), requestLabels)
	r.HTTPRequestsInFlight = f.NewGauge(prometheus.GaugeOpts(opts(
		"requests_in_flight", "HTTP requests being handled")))

	// solves of large networks run for seconds, so the buckets reach a minute
	r.HTTPRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.ExponentialBucketsRange(0.001, 60, 12),
	}, requestLabels)
	r.HTTPResponseSizeBytes = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response body size in bytes",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 9),
	}, []string{"method", "path"})
}
