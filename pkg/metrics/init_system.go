package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSystemMetrics() {
	gauge := func(name, help string) prometheus.Gauge {
		return promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	r.UptimeSeconds = gauge("uptime_seconds", "Seconds since the process started serving")
	r.GoRoutines = gauge("goroutines", "Number of goroutines")
	r.MemoryAllocBytes = gauge("memory_alloc_bytes", "Bytes of allocated heap objects")
	r.MemorySysBytes = gauge("memory_sys_bytes", "Bytes of memory obtained from the OS")
}
