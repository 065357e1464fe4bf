package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func healthy(context.Context) Check { return Check{Status: StatusHealthy} }

func TestRegisteredChecksRunByKind(t *testing.T) {
	c := NewChecker()
	var ready, live bool
	c.RegisterReadinessCheck("r", func(context.Context) Check { ready = true; return Check{Status: StatusHealthy} })
	c.RegisterLivenessCheck("l", func(context.Context) Check { live = true; return Check{Status: StatusHealthy} })

	c.CheckLiveness(context.Background())
	if ready || !live {
		t.Fatalf("liveness ran ready=%v live=%v", ready, live)
	}
	resp := c.CheckReadiness(context.Background())
	if !ready {
		t.Fatal("readiness check not run")
	}
	if got := resp.Checks["r"].Name; got != "r" {
		t.Errorf("check name = %q, want r", got)
	}
}

func TestWorstStatusWins(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, s := range tt.statuses {
				s := s
				c.RegisterReadinessCheck(string(rune('a'+i)), func(context.Context) Check { return Check{Status: s} })
			}
			if got := c.CheckReadiness(context.Background()).Status; got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestChecksGetDeadline(t *testing.T) {
	c := NewChecker()
	c.SetTimeout(10 * time.Millisecond)
	c.RegisterReadinessCheck("slow", func(ctx context.Context) Check {
		<-ctx.Done()
		return Check{Status: StatusUnhealthy, Message: ctx.Err().Error()}
	})
	resp := c.CheckReadiness(context.Background())
	if resp.Status != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", resp.Status)
	}
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck("postgres", func(context.Context) error { return nil })(context.Background())
	if ok.Status != StatusHealthy || ok.Name != "postgres" {
		t.Errorf("got %+v", ok)
	}
	bad := PingCheck("postgres", func(context.Context) error { return errors.New("refused") })(context.Background())
	if bad.Status != StatusUnhealthy || bad.Message != "refused" {
		t.Errorf("got %+v", bad)
	}
}

func TestSolverCheck(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		delay time.Duration
		want  Status
	}{
		{"converged", nil, 0, StatusHealthy},
		{"slow", nil, 20 * time.Millisecond, StatusDegraded},
		{"failed", errors.New("singular"), 0, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := SolverCheck(func(context.Context) (int, error) {
				time.Sleep(tt.delay)
				return 3, tt.err
			}, 10*time.Millisecond)(context.Background())
			if check.Status != tt.want {
				t.Errorf("status = %s, want %s", check.Status, tt.want)
			}
			if check.Details["trials"] != 3 {
				t.Errorf("trials = %v", check.Details["trials"])
			}
		})
	}
}

func TestPoolAndMemoryChecks(t *testing.T) {
	if s := PoolCheck(4, func() int64 { return 0 })(context.Background()).Status; s != StatusHealthy {
		t.Errorf("pool status = %s", s)
	}
	if s := PoolCheck(4, func() int64 { return 2 })(context.Background()).Status; s != StatusDegraded {
		t.Errorf("pool status = %s", s)
	}
	if s := MemoryCheck(0)(context.Background()).Status; s != StatusHealthy {
		t.Errorf("memory status = %s", s)
	}
	if s := MemoryCheck(1)(context.Background()).Status; s != StatusDegraded {
		t.Errorf("memory status = %s", s)
	}
}

func TestHandlers(t *testing.T) {
	c := NewChecker()
	c.RegisterLivenessCheck("live", healthy)
	c.RegisterReadinessCheck("degraded", func(context.Context) Check { return Check{Status: StatusDegraded} })

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness code = %d", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("liveness status = %s", resp.Status)
	}

	rec = httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness code = %d, want 503 when degraded", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}
