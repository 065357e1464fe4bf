package simulation

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// patterned: reservoir R with a falling head pattern feeds J1 and, through
// P2, J2; P2 closes at one hour
const patterned = `
[JUNCTIONS]
 J1   50   2
 J2   40   1
[RESERVOIRS]
 R    150  HP
[PIPES]
 P1   R    J1   1000   12   100   0   Open
 P2   J1   J2   1000   8    100   0   Open
[PATTERNS]
 HP   1.0  0.9  0.8
[CONTROLS]
 LINK P2 CLOSED AT TIME 1
[TIMES]
 Duration            2:00
 Hydraulic Timestep  1:00
 Pattern Timestep    1:00
[OPTIONS]
 Units     CFS
 Headloss  H-W
[END]
`

// filling: reservoir R fills tank T through junction J
const filling = `
[JUNCTIONS]
 J    100   0
[RESERVOIRS]
 R    150
[TANKS]
 T    100   10   0   20   100   0
[PIPES]
 P1   R    J    1000   12   100   0   Open
 P2   J    T    1000   12   100   0   Open
[TIMES]
 Duration            12:00
 Hydraulic Timestep  1:00
[OPTIONS]
 Units     CFS
 Accuracy  0.000001
[END]
`

func load(t *testing.T, text string) *network.Network {
	t.Helper()
	net, err := inp.LoadString(text, inp.LoadOptions{Logger: logging.NewNopLogger()})
	require.NoError(t, err)
	return net
}

func run(t *testing.T, net *network.Network, opts Options) (*Runner, error) {
	t.Helper()
	opts.Logger = logging.NewNopLogger()
	return New(net, opts)
}

func TestReservoirHeadPattern(t *testing.T) {
	r, err := run(t, load(t, patterned), Options{})
	require.NoError(t, err)
	sim, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sim.Steps, 3)
	for i, want := range []float64{150, 135, 120} {
		step := sim.Steps[i]
		assert.Equal(t, time.Duration(i)*time.Hour, step.Time)
		assert.Equal(t, hydraulics.Converged, step.Status)
		assert.InDelta(t, want, step.Nodes["R"].Head, 1e-9, "step %d", i)
	}
	assert.InDelta(t, 3.0, sim.Steps[0].Links["P1"].Flow, 1e-6)
}

func TestTimeControlLogged(t *testing.T) {
	r, err := run(t, load(t, patterned), Options{})
	require.NoError(t, err)
	sim, err := r.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, sim.ControlLog)
	entry := sim.ControlLog[0]
	assert.Equal(t, time.Hour, entry.Time)
	assert.Equal(t, "P2", entry.Link)
	assert.Equal(t, network.Closed, entry.Status)
	assert.True(t, strings.HasPrefix(entry.Reason, "control"), entry.Reason)

	before, after := sim.Steps[0], sim.Steps[1]
	assert.Equal(t, network.Open, before.Links["P2"].Status)
	assert.Equal(t, network.Closed, after.Links["P2"].Status)
	assert.Equal(t, 0.0, after.Links["P2"].Flow)
	assert.True(t, after.Nodes["J2"].Isolated)
	assert.Zero(t, after.Nodes["J2"].Demand)
	assert.InDelta(t, 2.0, after.Links["P1"].Flow, 1e-6)
	assert.NotEmpty(t, after.Warnings)
}

func TestTankLevelCarriedBetweenSteps(t *testing.T) {
	r, err := run(t, load(t, filling), Options{})
	require.NoError(t, err)
	sim, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sim.Steps, 13)

	q0 := sim.Steps[0].Links["P2"].Flow
	require.Greater(t, q0, 0.0)
	area := math.Pi * 100 * 100 / 4
	assert.InDelta(t, 110.0, sim.Steps[0].Nodes["T"].Head, 1e-9)
	assert.InDelta(t, 110+q0*3600/area, sim.Steps[1].Nodes["T"].Head, 1e-6)

	// the tank fills, is held at its maximum level and the inlet closes
	last := sim.Last()
	assert.InDelta(t, 120.0, last.Nodes["T"].Head, 1e-9)
	assert.Equal(t, network.Closed, last.Links["P2"].Status)
	assert.Equal(t, 0.0, last.Links["P2"].Flow)
	for i := 1; i < len(sim.Steps); i++ {
		assert.GreaterOrEqual(t, sim.Steps[i].Nodes["T"].Head, sim.Steps[i-1].Nodes["T"].Head)
	}

	var closed bool
	for _, e := range sim.ControlLog {
		closed = closed || (e.Link == "P2" && e.Reason == "tank full")
	}
	assert.True(t, closed)
}

func TestFailedStepEndsRun(t *testing.T) {
	net := load(t, patterned)
	net.Options.Trials = 1
	net.Options.Unbalanced = network.UnbalancedPolicy{}
	reg := metrics.NewRegistry()

	r, err := run(t, net, Options{Metrics: reg})
	require.NoError(t, err)
	sim, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, hydraulics.ErrNotConverged)
	require.NotNil(t, sim)
	assert.Empty(t, sim.Steps)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.SimulationsTotal.WithLabelValues("failed")))
}

func TestUnbalancedStepsContinue(t *testing.T) {
	net := load(t, patterned)
	net.Options.Trials = 1
	net.Options.Unbalanced = network.UnbalancedPolicy{Continue: true}

	r, err := run(t, net, Options{})
	require.NoError(t, err)
	sim, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sim.Steps, 3)
	assert.Positive(t, sim.Unbalanced())
}

func TestRunCanceled(t *testing.T) {
	r, err := run(t, load(t, patterned), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOnStepAndMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	var seen []time.Duration
	r, err := run(t, load(t, patterned), Options{
		Metrics: reg,
		OnStep:  func(s *results.Step) { seen = append(seen, s.Time) },
	})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{0, time.Hour, 2 * time.Hour}, seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.SimulationsTotal.WithLabelValues("completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.SolvesTotal.WithLabelValues("converged")))
}

func TestShorterDurationOverride(t *testing.T) {
	r, err := run(t, load(t, patterned), Options{Duration: time.Hour, Step: 30 * time.Minute})
	require.NoError(t, err)
	sim, err := r.Run(context.Background())
	require.NoError(t, err)
	// report step of one hour keeps 0 and 1h out of 0, 30m and 1h
	require.Len(t, sim.Steps, 2)
	assert.Equal(t, time.Hour, sim.Steps[1].Time)
}

func TestStepsOverrideDuration(t *testing.T) {
	r, err := run(t, load(t, patterned), Options{Steps: 1})
	require.NoError(t, err)
	sim, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sim.Steps, 1)
	assert.Equal(t, time.Duration(0), sim.Steps[0].Time)
}
