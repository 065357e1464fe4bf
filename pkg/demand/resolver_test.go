package demand

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

func testNet(t *testing.T) *network.Network {
	t.Helper()
	n := network.New()
	require.NoError(t, n.AddNode(&network.Node{ID: "R", Kind: network.Reservoir, Head: 800, HeadPattern: "H"}))
	require.NoError(t, n.AddNode(&network.Node{ID: "J1", Kind: network.Junction, BaseDemand: 100, DemandPattern: "D"}))
	require.NoError(t, n.AddNode(&network.Node{ID: "J2", Kind: network.Junction, BaseDemand: 40}))
	require.NoError(t, n.AddLink(&network.Link{ID: "PU", Kind: network.Pump, From: "R", To: "J1",
		Pump: &network.PumpAttrs{Power: 10, Speed: 1.2}}))
	n.AddPattern("D", 0.5, 1.0, 1.5)
	n.AddPattern("H", 1.0, 0.8)
	n.AddPattern("S", 0.9)
	return n
}

func TestDemandAt(t *testing.T) {
	n := testNet(t)
	n.Options.DemandMultiplier = 2
	r, err := NewResolver(n)
	require.NoError(t, err)

	tests := []struct {
		id     string
		period int
		want   float64
	}{
		{"J1", 0, 100 * 0.5 * 2},
		{"J1", 2, 100 * 1.5 * 2},
		{"J1", 4, 100 * 1.0 * 2}, // wraps
		{"J2", 7, 40 * 2},        // no pattern
	}
	for _, tt := range tests {
		got, err := r.DemandAt(tt.id, tt.period)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12, "%s@%d", tt.id, tt.period)
	}

	_, err = r.DemandAt("R", 0)
	assert.Error(t, err)
	_, err = r.DemandAt("nope", 0)
	assert.True(t, network.IsNotFound(err))
}

func TestMissingPatternIsConfigError(t *testing.T) {
	n := testNet(t)
	j, _ := n.Node("J2")
	j.DemandPattern = "GONE"
	r, err := NewResolver(n)
	require.NoError(t, err)

	_, err = r.DemandAt("J2", 0)
	var ce *network.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "GONE", ce.ID)
	assert.True(t, errors.Is(err, network.ErrMissingReference))

	_, err = r.Demands(0)
	assert.ErrorAs(t, err, &ce)
}

func TestDefaultPatternOption(t *testing.T) {
	n := testNet(t)
	n.Options.Pattern = "D"
	r, err := NewResolver(n)
	require.NoError(t, err)

	d, err := r.DemandAt("J2", 1)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, d, 1e-12)
	d, err = r.DemandAt("J2", 2)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, d, 1e-12)

	n.Options.Pattern = "UNKNOWN"
	_, err = NewResolver(n)
	var ce *network.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestPeriodAt(t *testing.T) {
	n := testNet(t)
	n.Times.PatternStep = 2 * time.Hour
	n.Times.PatternStart = time.Hour
	r, err := NewResolver(n)
	require.NoError(t, err)

	assert.Equal(t, 0, r.PeriodAt(0))
	assert.Equal(t, 1, r.PeriodAt(time.Hour))
	assert.Equal(t, 1, r.PeriodAt(2*time.Hour+59*time.Minute))
	assert.Equal(t, 2, r.PeriodAt(3*time.Hour))
}

func TestReservoirHeadAndPumpSpeed(t *testing.T) {
	r, err := NewResolver(testNet(t))
	require.NoError(t, err)

	h, err := r.ReservoirHeadAt("R", 1)
	require.NoError(t, err)
	assert.InDelta(t, 800*0.8, h, 1e-12)

	s, err := r.PumpSpeedAt("PU", 3)
	require.NoError(t, err)
	assert.Equal(t, 1.2, s)
}

func TestDemandVector(t *testing.T) {
	r, err := NewResolver(testNet(t))
	require.NoError(t, err)
	dst := []float64{9, 9, 9}
	require.NoError(t, r.DemandVector(1, dst))
	assert.Equal(t, []float64{0, 100, 40}, dst)
}
