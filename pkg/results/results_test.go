package results

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-hydraulics/pkg/control"
	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

func solvedSample(t *testing.T) (*network.Network, *Simulation) {
	t.Helper()
	net, err := inp.LoadFile("../inp/testdata/sample.inp", inp.LoadOptions{})
	require.NoError(t, err)
	s, err := hydraulics.New(net, hydraulics.DefaultOptions())
	require.NoError(t, err)
	res, err := s.Steady(context.Background())
	require.NoError(t, err)

	sim := NewSimulation(net)
	sim.Started = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sim.Steps = append(sim.Steps, NewStep(s, 0, res))
	sim.ControlLog = []control.Entry{{Time: time.Hour, Link: "4", Status: network.Closed, Reason: "control 1"}}
	return net, sim
}

func TestNewStepUserUnits(t *testing.T) {
	_, sim := solvedSample(t)
	step := sim.Last()
	require.NotNil(t, step)

	assert.Equal(t, hydraulics.Converged, step.Status)
	assert.Len(t, step.Nodes, 7)
	assert.Len(t, step.Links, 8)

	res := step.Nodes["1"]
	assert.Equal(t, 689.0, res.Head)
	assert.InDelta(t, -4931.0, res.Demand, 1e-3)
	assert.InDelta(t, 4931.0, step.Links["1"].Flow, 1e-3)

	j2 := step.Nodes["2"]
	assert.InDelta(t, 440.0, j2.Demand, 1e-9)
	assert.InDelta(t, (j2.Head-620)*0.4333, j2.Pressure, 1e-3)
	assert.InDelta(t, 689-j2.Head, step.Links["1"].HeadLoss, 1e-9)

	// 4931 gpm through 24 in is about 3.5 ft/s
	assert.InDelta(t, 3.5, step.Links["1"].Velocity, 0.05)
	assert.Equal(t, network.Open, step.Links["1"].Status)
}

func TestSimulationHelpers(t *testing.T) {
	net, sim := solvedSample(t)
	assert.Equal(t, net.Fingerprint(), sim.Fingerprint)
	assert.Equal(t, "Six-junction branched loop fed by one reservoir", sim.Network)
	assert.Equal(t, 0, sim.Unbalanced())

	sim.Steps = append(sim.Steps, &Step{Time: time.Hour, Status: hydraulics.Unbalanced})
	st, ok := sim.StepAt(time.Hour)
	require.True(t, ok)
	assert.Same(t, sim.Steps[1], st)
	_, ok = sim.StepAt(30 * time.Minute)
	assert.False(t, ok)
	assert.Equal(t, 1, sim.Unbalanced())
}

func TestCodecRoundTrip(t *testing.T) {
	_, sim := solvedSample(t)

	for _, f := range []Format{FormatJSON, FormatYAML, FormatArchive} {
		t.Run(string(f), func(t *testing.T) {
			data, err := Marshal(sim, f)
			require.NoError(t, err)

			got, err := Decode(bytes.NewReader(data), f)
			require.NoError(t, err)
			assert.Equal(t, sim.RunID, got.RunID)
			assert.Equal(t, sim.Fingerprint, got.Fingerprint)
			assert.Equal(t, sim.Units, got.Units)
			assert.True(t, sim.Started.Equal(got.Started))
			assert.Equal(t, sim.Steps, got.Steps)
			assert.Equal(t, sim.ControlLog, got.ControlLog)
		})
	}
}

func TestArchiveIsCompressed(t *testing.T) {
	_, sim := solvedSample(t)
	plain, err := Marshal(sim, FormatJSON)
	require.NoError(t, err)
	packed, err := Marshal(sim, FormatArchive)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(plain))
}

func TestEncodeCSV(t *testing.T) {
	_, sim := solvedSample(t)
	data, err := Marshal(sim, FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 1+7+8)
	assert.True(t, strings.HasPrefix(lines[0], "time,kind,id"))
	assert.Contains(t, lines[len(lines)-1], "OPEN")

	_, err = Decode(bytes.NewReader(data), FormatCSV)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{".YML", FormatYAML},
		{"sz", FormatArchive},
		{"csv", FormatCSV},
	}
	for _, tt := range tests {
		f, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, f)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, ".json.sz", FormatArchive.Extension())
}
