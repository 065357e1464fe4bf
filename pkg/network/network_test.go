package network

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildNet creates reservoir R -> J1 -> J2 with a dead-end J3 behind a closed pipe.
func buildNet(t *testing.T) *Network {
	t.Helper()
	n := New()
	require.NoError(t, n.AddNode(&Node{ID: "R", Kind: Reservoir, Head: 100, Elevation: 100}))
	require.NoError(t, n.AddNode(&Node{ID: "J1", Kind: Junction, Elevation: 50, BaseDemand: 10}))
	require.NoError(t, n.AddNode(&Node{ID: "J2", Kind: Junction, Elevation: 40, BaseDemand: 5, DemandPattern: "P"}))
	require.NoError(t, n.AddNode(&Node{ID: "J3", Kind: Junction, Elevation: 40}))
	pipe := func(id, from, to string, status LinkStatus) *Link {
		return &Link{ID: id, Kind: Pipe, From: from, To: to, Status: status,
			Pipe: &PipeAttrs{Length: 1000, Diameter: 12, Roughness: 100}}
	}
	require.NoError(t, n.AddLink(pipe("P1", "R", "J1", Open)))
	require.NoError(t, n.AddLink(pipe("P2", "J1", "J2", Open)))
	require.NoError(t, n.AddLink(pipe("P3", "J2", "J3", Closed)))
	n.AddPattern("P", 1.0, 1.5)
	n.AddPattern("P", 0.5)
	return n
}

func TestLookup(t *testing.T) {
	n := buildNet(t)

	node, err := n.Node("J1")
	require.NoError(t, err)
	assert.Equal(t, Junction, node.Kind)

	_, err = n.Node("nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "node", nf.Entity)
	assert.True(t, IsNotFound(err))

	_, err = n.Link("P9")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := n.Pattern("P")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 1.5, 0.5}, p.Multipliers)

	_, err = n.Curve("C1")
	assert.True(t, IsNotFound(err))
}

func TestDuplicateIDs(t *testing.T) {
	n := buildNet(t)
	err := n.AddNode(&Node{ID: "J1", Kind: Tank})
	assert.ErrorIs(t, err, ErrDuplicateID)
	err = n.AddLink(&Link{ID: "P1", Kind: Pipe, From: "J1", To: "J2"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestIncidentLinks(t *testing.T) {
	n := buildNet(t)

	links, err := n.IncidentLinks("J2")
	require.NoError(t, err)
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"P2", "P3"}, ids)

	_, err = n.IncidentLinks("missing")
	assert.True(t, IsNotFound(err))
}

func TestKindFilters(t *testing.T) {
	n := buildNet(t)
	assert.Len(t, n.Junctions(), 3)
	assert.Len(t, n.Reservoirs(), 1)
	assert.Empty(t, n.Tanks())
	assert.Len(t, n.LinksOf(Pipe), 3)
	assert.Equal(t, 4, n.NumNodes())
}

func TestPatternMultiplierWraps(t *testing.T) {
	p := &Pattern{ID: "P", Multipliers: []float64{1, 2, 3}}
	tests := []struct {
		period int
		want   float64
	}{
		{0, 1}, {2, 3}, {3, 1}, {7, 2}, {-1, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Multiplier(tt.period), "period %d", tt.period)
	}
	assert.Equal(t, 1.0, (&Pattern{}).Multiplier(5))
}

func TestCurveInterpolate(t *testing.T) {
	c := &Curve{Points: []Point{{0, 100}, {10, 80}, {20, 40}}}
	tests := []struct {
		x, y, slope float64
	}{
		{0, 100, -2},
		{5, 90, -2},
		{15, 60, -4},
		{25, 20, -4},
		{-5, 110, -2},
	}
	for _, tt := range tests {
		y, s := c.Interpolate(tt.x)
		assert.InDelta(t, tt.y, y, 1e-12, "x=%v", tt.x)
		assert.InDelta(t, tt.slope, s, 1e-12, "x=%v", tt.x)
	}
}

func TestIsolatedJunctions(t *testing.T) {
	n := buildNet(t)
	assert.Equal(t, []string{"J3"}, n.IsolatedJunctions(InitiallyClosed))
	assert.Empty(t, n.IsolatedJunctions(nil))
}

func TestFingerprint(t *testing.T) {
	a := buildNet(t)
	b := buildNet(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	b.Title = []string{"cosmetic"}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	node, _ := b.Node("J1")
	node.BaseDemand = 11
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintCoversReporting(t *testing.T) {
	base := buildNet(t)
	base.Times.Duration = 4 * time.Hour

	for name, edit := range map[string]func(*Times){
		"report start": func(tm *Times) { tm.ReportStart = 3 * time.Hour },
		"report step":  func(tm *Times) { tm.ReportStep = 2 * time.Hour },
	} {
		t.Run(name, func(t *testing.T) {
			other := buildNet(t)
			other.Times.Duration = 4 * time.Hour
			edit(&other.Times)
			assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
		})
	}
}

func TestWithOptionsSharesModel(t *testing.T) {
	n := buildNet(t)
	opts := n.Options
	opts.DemandMultiplier = 2
	view := n.WithOptions(opts)

	assert.Equal(t, 1.0, n.Options.DemandMultiplier)
	assert.Equal(t, 2.0, view.Options.DemandMultiplier)
	a, _ := n.Node("J1")
	b, _ := view.Node("J1")
	assert.Same(t, a, b)
}

func TestParseHelpers(t *testing.T) {
	s, err := ParseStatus("closed")
	require.NoError(t, err)
	assert.Equal(t, Closed, s)

	_, err = ParseValveType("XYZ")
	assert.Error(t, err)

	p, err := ParseUnbalanced([]string{"Continue", "10"})
	require.NoError(t, err)
	assert.Equal(t, UnbalancedPolicy{Continue: true, ExtraTrials: 10}, p)

	p, err = ParseUnbalanced([]string{"CONTINUE"})
	require.NoError(t, err)
	assert.Equal(t, "CONTINUE 0", p.String())

	_, err = ParseUnbalanced([]string{"CONTINUE", "-3"})
	assert.Error(t, err)

	f, err := ParseHeadloss("d-w")
	require.NoError(t, err)
	assert.Equal(t, DarcyWeisbach, f)
}

func TestMissingReferenceErrors(t *testing.T) {
	err := MissingPattern("demand", "junction 7", "P9")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pattern", ce.Entity)
	assert.True(t, errors.Is(err, ErrMissingReference))
	assert.True(t, strings.Contains(err.Error(), "junction 7"))
}
