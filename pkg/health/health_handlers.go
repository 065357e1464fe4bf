package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// ReadinessHandler serves the readiness probes. Degraded counts as not
// ready.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return handler(c.CheckReadiness, func(s Status) bool { return s == StatusHealthy })
}

// LivenessHandler serves the liveness probes. Degraded is still alive.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return handler(c.CheckLiveness, func(s Status) bool { return s != StatusUnhealthy })
}

func handler(run func(context.Context) Response, ok func(Status) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if ok(resp.Status) {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
