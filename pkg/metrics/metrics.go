package metrics

import (
	"runtime"
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordResponseSize observes the size of an HTTP response body
func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

// IncHTTPRequestsInFlight marks a request as started
func (r *Registry) IncHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Inc() }

// DecHTTPRequestsInFlight marks a request as finished
func (r *Registry) DecHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Dec() }

// RecordSolve records one steady-state solve
func (r *Registry) RecordSolve(status string, trials int, relErr float64, duration time.Duration) {
	r.SolvesTotal.WithLabelValues(status).Inc()
	r.SolveTrials.Observe(float64(trials))
	r.SolveRelativeError.Observe(relErr)
	r.SolveDuration.Observe(duration.Seconds())
}

// RecordStatusChange counts a link status change by its reason
func (r *Registry) RecordStatusChange(reason string) {
	r.StatusChangesTotal.WithLabelValues(reason).Inc()
}

// RecordSimulation records an extended-period run
func (r *Registry) RecordSimulation(status string, steps int, duration time.Duration) {
	r.SimulationsTotal.WithLabelValues(status).Inc()
	r.SimulationSteps.Observe(float64(steps))
	r.SimulationDuration.Observe(duration.Seconds())
}

// RecordLoad records a network file load
func (r *Registry) RecordLoad(status string, duration time.Duration) {
	r.LoadsTotal.WithLabelValues(status).Inc()
	r.LoadDuration.Observe(duration.Seconds())
}

// RecordExport records a result export
func (r *Registry) RecordExport(exporter, status string, duration time.Duration) {
	r.ExportsTotal.WithLabelValues(exporter, status).Inc()
	r.ExportDuration.WithLabelValues(exporter).Observe(duration.Seconds())
}

// RecordCache counts a result cache lookup
func (r *Registry) RecordCache(hit bool) {
	if hit {
		r.CacheHitsTotal.Inc()
		return
	}
	r.CacheMissesTotal.Inc()
}

// UpdateSystemMetrics refreshes uptime, goroutine and memory gauges
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}
