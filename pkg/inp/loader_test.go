package inp

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

func quiet() LoadOptions {
	return LoadOptions{Logger: logging.NewNopLogger()}
}

func TestLoadFile_Sample(t *testing.T) {
	net, err := LoadFile(filepath.Join("testdata", "sample.inp"), quiet())
	require.NoError(t, err)

	assert.Equal(t, 7, net.NumNodes())
	assert.Equal(t, 8, net.NumLinks())
	assert.Len(t, net.Junctions(), 6)
	assert.Equal(t, units.GPM, net.Options.Units)
	assert.Equal(t, network.HazenWilliams, net.Options.Headloss)
	assert.Equal(t, 40, net.Options.Trials)
	assert.Equal(t, 0.001, net.Options.Accuracy)
	assert.Equal(t, network.UnbalancedPolicy{Continue: true, ExtraTrials: 10}, net.Options.Unbalanced)
	assert.Equal(t, "None mg/L", net.Options.Extra["QUALITY"])
	assert.Equal(t, time.Duration(0), net.Times.Duration)
	assert.Equal(t, time.Hour, net.Times.HydraulicStep)
	assert.Equal(t, 5*time.Minute, net.Times.QualityStep)

	res, err := net.Node("1")
	require.NoError(t, err)
	assert.Equal(t, network.Reservoir, res.Kind)
	assert.Equal(t, 689.0, res.Head)

	j, err := net.Node("6")
	require.NoError(t, err)
	assert.Equal(t, 1453.0, j.BaseDemand)
	assert.Empty(t, j.DemandPattern)

	pipe, err := net.Link("6")
	require.NoError(t, err)
	assert.Equal(t, "4", pipe.From)
	assert.Equal(t, "6", pipe.To)
	assert.Equal(t, 14.0, pipe.Pipe.Diameter)
	assert.Equal(t, 130.0, pipe.Pipe.Roughness)

	p, err := net.Pattern("1")
	require.NoError(t, err)
	assert.Len(t, p.Multipliers, 12)

	assert.Len(t, net.Reactions, 7)
	assert.Equal(t, 75.0, net.Energy.GlobalEfficiency)
	assert.Equal(t, "No", net.Report["STATUS"])
	assert.Equal(t, []string{"Six-junction branched loop fed by one reservoir", "Used by the solver and loader tests"}, net.Title)

	assert.Len(t, net.Opaque["COORDINATES"], 7)
	assert.Contains(t, net.Opaque, "BACKDROP")
	assert.Contains(t, net.Opaque, "TAGS")
}

func TestLoadFile_Net1(t *testing.T) {
	net, err := LoadFile(filepath.Join("testdata", "net1.inp"), quiet())
	require.NoError(t, err)

	tank, err := net.Node("2")
	require.NoError(t, err)
	assert.Equal(t, network.Tank, tank.Kind)
	assert.Equal(t, 120.0, tank.InitLevel)
	assert.Equal(t, 50.5, tank.Diameter)

	pump, err := net.Link("9")
	require.NoError(t, err)
	assert.Equal(t, network.Pump, pump.Kind)
	assert.Equal(t, "1", pump.Pump.HeadCurve)
	assert.Equal(t, 1.0, pump.Pump.Speed)

	curve, err := net.Curve("1")
	require.NoError(t, err)
	assert.Equal(t, network.CurvePump, curve.Kind)

	require.Len(t, net.Controls, 2)
	assert.Equal(t, network.Control{Link: "9", Status: network.Open, Trigger: network.TriggerBelow, Node: "2", Value: 110}, net.Controls[0])
	assert.Equal(t, network.Closed, net.Controls[1].Status)

	assert.Equal(t, 24*time.Hour, net.Times.Duration)
	assert.Equal(t, 2*time.Hour, net.Times.PatternStep)
	assert.Equal(t, "1", net.Options.Pattern)
	assert.Equal(t, "-.5", net.Reactions[2].Value)
}

const duplicated = `
[JUNCTIONS]
 J1 10 5
[RESERVOIRS]
 R 100
[PIPES]
 P1 R J1 100 12 100
[REACTIONS]
 Global Bulk -0.5
[REACTIONS]
 Global Wall -1
 Order Bulk 1
`

func TestDuplicateSections(t *testing.T) {
	t.Run("merge", func(t *testing.T) {
		net, err := LoadString(duplicated, quiet())
		require.NoError(t, err)
		require.Len(t, net.Reactions, 3)
		assert.Equal(t, []string{"Global", "Bulk"}, net.Reactions[0].Keyword)
	})

	t.Run("last wins", func(t *testing.T) {
		opts := quiet()
		opts.Duplicates = LastWins
		net, err := LoadString(duplicated, opts)
		require.NoError(t, err)
		require.Len(t, net.Reactions, 2)
		assert.Equal(t, "-1", net.Reactions[0].Value)
	})

	t.Run("reject", func(t *testing.T) {
		opts := quiet()
		opts.Duplicates = RejectDuplicates
		_, err := LoadString(duplicated, opts)
		require.Error(t, err)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "REACTIONS", pe.Section)
		assert.Equal(t, 10, pe.Line)
		assert.ErrorIs(t, err, ErrDuplicateSection)
	})
}

func TestParseDuplicatePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{"": MergeDuplicates, "merge": MergeDuplicates, "last-wins": LastWins, "REJECT": RejectDuplicates} {
		got, err := ParseDuplicatePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDuplicatePolicy("maybe")
	assert.Error(t, err)
}

func TestParseErrors_AreCollected(t *testing.T) {
	src := `
[JUNCTIONS]
 J1 abc 5
 J2 10 x
[RESERVOIRS]
 R
[PIPES]
 P1 R J1 100 12 100 0 Sideways
[OPTIONS]
 Units BARRELS
`
	_, err := LoadString(src, quiet())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)

	msg := err.Error()
	for _, want := range []string{
		`line 3 [JUNCTIONS]: invalid elevation "abc"`,
		`line 4 [JUNCTIONS]: invalid demand "x"`,
		`line 6 [RESERVOIRS]: expected at least 2 fields`,
		`invalid pipe status "SIDEWAYS"`,
		`unknown flow units "BARRELS"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestOrphanLine(t *testing.T) {
	_, err := LoadString("J1 10 5\n[JUNCTIONS]\n", quiet())
	assert.ErrorIs(t, err, ErrOrphanLine)
}

func TestValidationErrorsSurfaceBeforeSolve(t *testing.T) {
	src := `
[JUNCTIONS]
 J1 10 5 MISSING
[RESERVOIRS]
 R 100
[PIPES]
 P1 R J9 0 12 100
`
	_, err := LoadString(src, quiet())
	require.Error(t, err)
	var ve *network.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.GreaterOrEqual(t, len(ve.Violations), 3)

	net, err := LoadString(src, LoadOptions{Logger: logging.NewNopLogger(), SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, 2, net.NumNodes())
}

func TestStatusSection(t *testing.T) {
	src := `
[JUNCTIONS]
 A 0 0
 B 0 10
 C 0 0
[RESERVOIRS]
 R 100
[PIPES]
 P1 R A 100 12 100 0 CV
 P2 B C 100 12 100
[PUMPS]
 PU A B POWER 10
[VALVES]
 V1 A C 8 PRV 40
 V2 B C 8 TCV 2
[STATUS]
 PU 1.5
 V1 CLOSED
 V2 5
 P2 CLOSED
`
	net, err := LoadString(src, quiet())
	require.NoError(t, err)

	pu, _ := net.Link("PU")
	assert.Equal(t, 1.5, pu.Pump.Speed)
	assert.Equal(t, 10.0, pu.Pump.Power)

	v1, _ := net.Link("V1")
	assert.Equal(t, network.Closed, v1.Status)

	v2, _ := net.Link("V2")
	assert.Equal(t, network.Active, v2.Status)
	assert.Equal(t, 5.0, v2.Valve.Setting)

	p1, _ := net.Link("P1")
	assert.True(t, p1.HasCheckValve())
	p2, _ := net.Link("P2")
	assert.Equal(t, network.Closed, p2.Status)
}

func TestControlsAndRules(t *testing.T) {
	src := `
[JUNCTIONS]
 J 0 1
[RESERVOIRS]
 R 100
[PIPES]
 P1 R J 100 12 100
[CONTROLS]
 LINK P1 CLOSED AT TIME 5
 Link P1 open at clocktime 6:30 PM
 LINK P1 0.5 IF NODE J ABOVE 20
[RULES]
RULE 1
IF TANK 1 LEVEL ABOVE 19.1
THEN PUMP 335 STATUS IS CLOSED
RULE 2
IF SYSTEM CLOCKTIME >= 8 AM
THEN PUMP 335 STATUS IS OPEN
`
	net, err := LoadString(src, LoadOptions{Logger: logging.NewNopLogger(), SkipValidation: true})
	require.NoError(t, err)

	require.Len(t, net.Controls, 3)
	assert.Equal(t, network.TriggerTime, net.Controls[0].Trigger)
	assert.Equal(t, int64(5*3600), net.Controls[0].Seconds)
	assert.Equal(t, network.TriggerClockTime, net.Controls[1].Trigger)
	assert.Equal(t, int64(18*3600+30*60), net.Controls[1].Seconds)
	assert.True(t, net.Controls[2].HasSetting)
	assert.Equal(t, 0.5, net.Controls[2].Setting)

	require.Len(t, net.Rules, 2)
	assert.Equal(t, "1", net.Rules[0].ID)
	assert.Equal(t, []string{"IF TANK 1 LEVEL ABOVE 19.1", "THEN PUMP 335 STATUS IS CLOSED"}, net.Rules[0].Lines)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"24", 24 * time.Hour},
		{"1:30", 90 * time.Minute},
		{"0:00:30", 30 * time.Second},
		{"2.5", 150 * time.Minute},
		{"30 MIN", 30 * time.Minute},
		{"2 hours", 2 * time.Hour},
		{"1 DAY", 24 * time.Hour},
		{"45 sec", 45 * time.Second},
		{"12 AM", 0},
		{"12 PM", 12 * time.Hour},
		{"6:15 pm", 18*time.Hour + 15*time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(strings.Fields(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"x", "1:2:3:4", "5 FORTNIGHTS", "14 PM", "-1"} {
		_, err := parseDuration(strings.Fields(bad))
		assert.Error(t, err, bad)
	}
}

func TestRegistryOrder(t *testing.T) {
	names := DefaultRegistry().Names()
	index := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		return -1
	}
	assert.Less(t, index("OPTIONS"), index("JUNCTIONS"))
	assert.Less(t, index("CURVES"), index("PUMPS"))
	assert.Less(t, index("VALVES"), index("STATUS"))
	assert.True(t, DefaultRegistry().IsOpaque("coordinates"))
}

func TestCustomRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("JUNCTIONS", 0, parseJunctions)
	r.Register("RESERVOIRS", 1, parseReservoirs)
	r.Register("PIPES", 2, parsePipes)
	var seen int
	r.Register("REACTIONS", 3, func(net *network.Network, lines []Line) error {
		seen = len(lines)
		if len(lines) > 5 {
			return errors.New("too many")
		}
		return nil
	})

	_, err := LoadString(duplicated, LoadOptions{Registry: r, Logger: logging.NewNopLogger()})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)
}
