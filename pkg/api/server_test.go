package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/parallel"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

const secret = "0123456789abcdef0123"

func sampleText(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("../inp/testdata/sample.inp")
	require.NoError(t, err)
	return string(b)
}

func newTestServer(t *testing.T, cfg Config) (*Server, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	nop := logging.NewNopLogger()
	cfg.Load.Logger = nop
	cfg.Simulation.Logger = nop
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 8
	}
	s, err := NewServer(cfg, nop, reg)
	require.NoError(t, err)
	return s, reg
}

func do(s *Server, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeSolve(t *testing.T, rec *httptest.ResponseRecorder) SolveResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SolveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSolveSample(t *testing.T) {
	s, reg := newTestServer(t, Config{RequiredPressure: 20})
	resp := decodeSolve(t, do(s, http.MethodPost, "/v1/solve", sampleText(t)))

	assert.False(t, resp.Cached)
	assert.Equal(t, 1, resp.Steps)
	assert.Zero(t, resp.Unbalanced)
	require.NotNil(t, resp.Simulation)
	assert.InDelta(t, 4931, resp.Simulation.Steps[0].Links["1"].Flow, 1e-2)
	assert.Len(t, resp.Resilience, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheMissesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.LoadsTotal.WithLabelValues("ok")))

	again := decodeSolve(t, do(s, http.MethodPost, "/v1/solve", sampleText(t)))
	assert.True(t, again.Cached)
	assert.Equal(t, resp.RunID, again.RunID)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheHitsTotal))
}

func TestSolveSteps(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxSteps: 5})
	resp := decodeSolve(t, do(s, http.MethodPost, "/v1/solve?steps=3", sampleText(t)))
	assert.Equal(t, 3, resp.Steps)
	assert.Equal(t, 2*time.Hour, resp.Simulation.Steps[2].Time)

	rec := do(s, http.MethodPost, "/v1/solve?steps=6", sampleText(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/v1/solve?steps=-1", sampleText(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/v1/solve?steps=two", sampleText(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheSeparatesReportTimes(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	text := sampleText(t)
	late := strings.Replace(text, "Report Start       \t0:00", "Report Start       \t1:00", 1)
	require.NotEqual(t, text, late)

	all := decodeSolve(t, do(s, http.MethodPost, "/v1/solve?steps=3", text))
	require.Len(t, all.Simulation.Steps, 3)

	rec := do(s, http.MethodPost, "/v1/solve?steps=3", late)
	assert.NotEqual(t, "hit", rec.Header().Get("X-Cache"))
	resp := decodeSolve(t, rec)
	assert.False(t, resp.Cached)
	assert.NotEqual(t, all.Fingerprint, resp.Fingerprint)
	require.Len(t, resp.Simulation.Steps, 2)
	assert.Equal(t, time.Hour, resp.Simulation.Steps[0].Time)
}

func TestSolveFormats(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(s, http.MethodPost, "/v1/solve?format=yaml", sampleText(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, results.FormatYAML.ContentType(), rec.Header().Get("Content-Type"))
	sim, err := results.Decode(rec.Body, results.FormatYAML)
	require.NoError(t, err)
	assert.Len(t, sim.Steps, 1)

	rec = do(s, http.MethodPost, "/v1/solve?format=xml", sampleText(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSolveRejectsBadNetworks(t *testing.T) {
	s, reg := newTestServer(t, Config{})

	rec := do(s, http.MethodPost, "/v1/solve", "[PIPES]\n P1 A B not-a-number 12 100\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	assert.Equal(t, "Invalid network", e.Error)
	assert.NotEmpty(t, e.Details)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.LoadsTotal.WithLabelValues("error")))

	// parses, but the pipe references a node that does not exist
	rec = do(s, http.MethodPost, "/v1/solve", "[RESERVOIRS]\n R 100\n[PIPES]\n P1 R J 1000 12 100\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSolveCompressed(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(s, http.MethodPost, "/v1/solve", sampleText(t), "Accept-Encoding", "gzip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	var resp SolveResponse
	require.NoError(t, json.NewDecoder(zr).Decode(&resp))
	assert.Equal(t, 1, resp.Steps)
}

func TestSolveBodyLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxBodyBytes: 64})
	rec := do(s, http.MethodPost, "/v1/solve", sampleText(t))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request body too large")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestResultsLookup(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	solved := decodeSolve(t, do(s, http.MethodPost, "/v1/solve", sampleText(t)))

	got := decodeSolve(t, do(s, http.MethodGet, "/v1/results/"+solved.Fingerprint, ""))
	assert.Equal(t, solved.RunID, got.RunID)
	assert.True(t, got.Cached)

	rec := do(s, http.MethodGet, "/v1/results/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, Config{JWTSecret: secret})
	body := sampleText(t)

	rec := do(s, http.MethodPost, "/v1/solve", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	token, err := s.Authenticator().Issue("tester", time.Minute)
	require.NoError(t, err)
	decodeSolve(t, do(s, http.MethodPost, "/v1/solve", body, "Authorization", "Bearer "+token))

	expired, err := s.Authenticator().Issue("tester", -time.Minute)
	require.NoError(t, err)
	rec = do(s, http.MethodPost, "/v1/solve", body, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := NewAuthenticator("another-secret-of-length")
	require.NoError(t, err)
	forged, err := other.Issue("tester", time.Minute)
	require.NoError(t, err)
	rec = do(s, http.MethodPost, "/v1/solve", body, "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	rec = do(s, http.MethodPost, "/v1/solve", body, "Authorization", "Bearer "+unsigned)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// health stays open
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/health", "").Code)

	_, err = NewAuthenticator("short")
	assert.ErrorIs(t, err, ErrShortSecret)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := do(s, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"solver"`)

	do(s, http.MethodPost, "/v1/solve", sampleText(t))
	rec = do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "hydrosim_http_requests_total")
	assert.Contains(t, out, `path="/v1/solve"`)
	assert.Contains(t, out, "hydrosim_solves_total")

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/nope", "").Code)
}

type captureExporter struct {
	mu   sync.Mutex
	runs []string
}

func (c *captureExporter) Name() string { return "capture" }
func (c *captureExporter) Export(_ context.Context, sim *results.Simulation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, sim.RunID.String())
	return nil
}
func (c *captureExporter) Close() error { return nil }

func TestFreshRunsAreExported(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	pool, err := parallel.NewPool(1, logging.NewNopLogger())
	require.NoError(t, err)
	exp := &captureExporter{}
	s.SetExporter(exp, pool)

	resp := decodeSolve(t, do(s, http.MethodPost, "/v1/solve", sampleText(t)))
	decodeSolve(t, do(s, http.MethodPost, "/v1/solve", sampleText(t)))
	pool.Close()

	assert.Equal(t, []string{resp.RunID}, exp.runs, "cache hits are not exported again")
}

func TestResultCacheEvicts(t *testing.T) {
	c := newResultCache(2)
	for _, k := range []string{"a", "b", "c"} {
		c.put(&cacheEntry{key: k, fingerprint: "fp-" + k, sim: &results.Simulation{}})
	}
	assert.Equal(t, 2, c.len())
	_, ok := c.get("a")
	assert.False(t, ok)
	_, ok = c.latest("fp-c")
	assert.True(t, ok)

	off := newResultCache(0)
	off.put(&cacheEntry{key: "a"})
	assert.Zero(t, off.len())
}
