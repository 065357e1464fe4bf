// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"time"
)

// DefaultTimeout bounds one round of probes
const DefaultTimeout = 5 * time.Second

// NewChecker creates a checker with no probes
func NewChecker() *Checker {
	return &Checker{
		started:     time.Now(),
		timeout:     DefaultTimeout,
		readyChecks: make(map[string]CheckFunc),
		liveChecks:  make(map[string]CheckFunc),
	}
}

// SetTimeout changes the deadline given to each round of probes
func (c *Checker) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// RegisterReadinessCheck registers a probe that must pass before traffic
// is sent to the service
func (c *Checker) RegisterReadinessCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyChecks[name] = check
}

// RegisterLivenessCheck registers a probe that fails only when the process
// should be restarted
func (c *Checker) RegisterLivenessCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveChecks[name] = check
}

// CheckReadiness runs the readiness probes
func (c *Checker) CheckReadiness(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run(ctx, c.readyChecks)
}

// CheckLiveness runs the liveness probes
func (c *Checker) CheckLiveness(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run(ctx, c.liveChecks)
}

func (c *Checker) run(ctx context.Context, checks map[string]CheckFunc) Response {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]Check, len(checks)),
		Uptime:    time.Since(c.started).Seconds(),
	}
	for name, fn := range checks {
		start := time.Now()
		check := fn(ctx)
		if check.Name == "" {
			check.Name = name
		}
		check.DurationMS = float64(time.Since(start).Microseconds()) / 1000
		check.LastChecked = start
		resp.Checks[name] = check
		resp.Status = worst(resp.Status, check.Status)
	}
	return resp
}

// worst orders healthy < degraded < unhealthy
func worst(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusHealthy:
			return 0
		case StatusDegraded:
			return 1
		}
		return 2
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
