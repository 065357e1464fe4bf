package health

import (
	"context"
	"runtime"
	"time"
)

// PingCheck probes a backing store such as the results database
func PingCheck(name string, ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{Name: name, Status: StatusHealthy, Message: "Connected"}
		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		}
		return check
	}
}

// SolverCheck runs a reference solve. A solve slower than slow is degraded;
// an error is unhealthy.
func SolverCheck(solve func(ctx context.Context) (trials int, err error), slow time.Duration) CheckFunc {
	return func(ctx context.Context) Check {
		check := Check{Name: "solver", Details: make(map[string]any)}
		start := time.Now()
		trials, err := solve(ctx)
		elapsed := time.Since(start)
		check.Details["trials"] = trials
		check.Details["elapsed_ms"] = elapsed.Milliseconds()

		switch {
		case err != nil:
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		case elapsed > slow:
			check.Status = StatusDegraded
			check.Message = "Reference solve is slow"
		default:
			check.Status = StatusHealthy
			check.Message = "Reference solve converged"
		}
		return check
	}
}

// PoolCheck reports a worker pool. Recovered job panics degrade it.
func PoolCheck(workers int, panics func() int64) CheckFunc {
	return func(context.Context) Check {
		n := panics()
		check := Check{
			Name:    "workers",
			Status:  StatusHealthy,
			Message: "Pool running",
			Details: map[string]any{"workers": workers, "panics": n},
		}
		if n > 0 {
			check.Status = StatusDegraded
			check.Message = "Jobs have panicked"
		}
		return check
	}
}

// MemoryCheck degrades when the heap passes limit bytes
func MemoryCheck(limit uint64) CheckFunc {
	return func(context.Context) Check {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		check := Check{
			Name:    "memory",
			Status:  StatusHealthy,
			Message: "Memory usage normal",
			Details: map[string]any{"alloc_bytes": m.Alloc, "sys_bytes": m.Sys, "goroutines": runtime.NumGoroutine()},
		}
		if limit > 0 && m.Alloc > limit {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		}
		return check
	}
}
