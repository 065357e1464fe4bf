package headloss

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// testNet has one link of each kind between two reservoirs
func testNet(t *testing.T, formula network.HeadlossFormula) *network.Network {
	t.Helper()
	n := network.New()
	n.Options.Headloss = formula
	require.NoError(t, n.AddNode(&network.Node{ID: "A", Kind: network.Reservoir, Head: 100}))
	require.NoError(t, n.AddNode(&network.Node{ID: "B", Kind: network.Junction}))
	require.NoError(t, n.AddNode(&network.Node{ID: "C", Kind: network.Junction}))

	roughness := 100.0
	switch formula {
	case network.DarcyWeisbach:
		roughness = 0.5
	case network.ChezyManning:
		roughness = 0.012
	}
	require.NoError(t, n.AddLink(&network.Link{ID: "P", Kind: network.Pipe, From: "A", To: "B",
		Pipe: &network.PipeAttrs{Length: 1000, Diameter: 12, Roughness: roughness}}))
	require.NoError(t, n.AddLink(&network.Link{ID: "PU", Kind: network.Pump, From: "B", To: "C",
		Pump: &network.PumpAttrs{HeadCurve: "1", Speed: 1}}))
	require.NoError(t, n.AddLink(&network.Link{ID: "V", Kind: network.Valve, From: "C", To: "A", Status: network.Active,
		Valve: &network.ValveAttrs{Diameter: 12, Type: network.TCV, Setting: 5}}))
	n.AddCurve("1", network.Point{X: 1000, Y: 100})
	return n
}

func newEvaluator(t *testing.T, formula network.HeadlossFormula) *Evaluator {
	t.Helper()
	e, err := New(testNet(t, formula), DefaultOptions())
	require.NoError(t, err)
	return e
}

func TestHazenWilliamsValue(t *testing.T) {
	e := newEvaluator(t, network.HazenWilliams)
	st := e.DefaultState(0)

	// r = 4.727·1000 / 100^1.852 for a 1 ft pipe
	loss := e.At(0, 1.0, st)
	assert.InEpsilon(t, 0.9345, loss.Head, 1e-3)
	assert.InEpsilon(t, 1.852*loss.Head, loss.Gradient, 1e-9)
	assert.False(t, loss.Constrained)

	back := e.At(0, -1.0, st)
	assert.Equal(t, -loss.Head, back.Head)
	assert.Equal(t, loss.Gradient, back.Gradient)
}

func TestSmallFlowZone(t *testing.T) {
	e := newEvaluator(t, network.HazenWilliams)
	st := e.DefaultState(0)
	q2 := e.Options().SmallFlow

	zero := e.At(0, 0, st)
	assert.Equal(t, 0.0, zero.Head)
	assert.Greater(t, zero.Gradient, 0.0)
	assert.NotZero(t, zero.Flags&SmallFlow)

	// value and slope are continuous at both joins
	for _, x := range []float64{q2 / 2, q2} {
		lo := e.At(0, x*(1-1e-9), st)
		hi := e.At(0, x*(1+1e-9), st)
		assert.InEpsilon(t, lo.Head, hi.Head, 1e-6, "value at %g", x)
		assert.InEpsilon(t, lo.Gradient, hi.Gradient, 1e-5, "slope at %g", x)
	}
}

func TestDarcyWeisbachRegimes(t *testing.T) {
	e := newEvaluator(t, network.DarcyWeisbach)
	st := e.DefaultState(0)

	prev := 0.0
	for _, q := range []float64{1e-3, 1e-2, 0.1, 1, 5} {
		loss := e.At(0, q, st)
		assert.Greater(t, loss.Head, prev, "q=%g", q)
		assert.Greater(t, loss.Gradient, 0.0)
		prev = loss.Head
	}

	// analytic derivative agrees with a central difference in turbulent flow
	q, dq := 1.0, 1e-6
	up := e.At(0, q+dq, st).Head
	down := e.At(0, q-dq, st).Head
	assert.InEpsilon(t, (up-down)/(2*dq), e.At(0, q, st).Gradient, 1e-4)
}

func TestChezyManningSquareLaw(t *testing.T) {
	e := newEvaluator(t, network.ChezyManning)
	st := e.DefaultState(0)
	a := e.At(0, 1, st)
	b := e.At(0, 2, st)
	assert.InEpsilon(t, 4*a.Head, b.Head, 1e-9)
}

func TestHeadlossMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, f := range []network.HeadlossFormula{network.HazenWilliams, network.DarcyWeisbach, network.ChezyManning} {
		e := newEvaluator(t, f)
		st := e.DefaultState(0)
		properties.Property(string(f)+" head loss increases with flow", prop.ForAll(
			func(a, b float64) bool {
				if a == b {
					return true
				}
				lo, hi := math.Min(a, b), math.Max(a, b)
				return e.At(0, lo, st).Head < e.At(0, hi, st).Head
			},
			gen.Float64Range(-10, 10),
			gen.Float64Range(-10, 10),
		))
		properties.Property(string(f)+" head loss is odd", prop.ForAll(
			func(q float64) bool {
				return e.At(0, q, st).Head == -e.At(0, -q, st).Head
			},
			gen.Float64Range(0, 10),
		))
	}
	properties.TestingRun(t)
}

func TestPumpSinglePointCurve(t *testing.T) {
	e := newEvaluator(t, network.HazenWilliams)

	// user units: design point 1000 gpm at 100 ft
	loss, err := e.Evaluate("PU", 1000, network.Open)
	require.NoError(t, err)
	assert.InDelta(t, -100, loss.Head, 1e-6)
	assert.Zero(t, loss.Flags&PumpOverflow)

	shutoff := e.PumpShutoff(1, 1)
	assert.InDelta(t, 400.0/3.0, shutoff, 1e-9)

	// past twice the design flow the gain goes negative
	over, err := e.Evaluate("PU", 3000, network.Open)
	require.NoError(t, err)
	assert.Greater(t, over.Head, 0.0)
	assert.NotZero(t, over.Flags&PumpOverflow)
}

func TestPumpSpeed(t *testing.T) {
	e := newEvaluator(t, network.HazenWilliams)
	st := e.DefaultState(1)
	q := e.Converter().FlowIn(500)

	full := e.At(1, q, st)
	st.Setting = 0.5
	half := e.At(1, q*0.5, st)
	// affinity: H(s·Q, s) = s²·H(Q, 1)
	assert.InEpsilon(t, 0.25*full.Head, half.Head, 1e-9)

	st.Setting = 0
	assert.True(t, e.At(1, q, st).Constrained)
}

func TestThreePointCurveFit(t *testing.T) {
	c := &network.Curve{ID: "3", Points: []network.Point{{X: 0, Y: 200}, {X: 1, Y: 150}, {X: 2, Y: 0}}}
	pm := fitPumpCurve(c)
	require.Equal(t, pumpPowerLaw, pm.kind)
	for _, p := range c.Points[1:] {
		g, _ := pm.gain(p.X, 1)
		assert.InDelta(t, p.Y, g, 1e-9)
	}
}

func TestMultipointCurve(t *testing.T) {
	c := &network.Curve{ID: "M", Points: []network.Point{{X: 0, Y: 100}, {X: 1, Y: 90}, {X: 2, Y: 60}, {X: 3, Y: 10}}}
	pm := fitPumpCurve(c)
	require.Equal(t, pumpMultipoint, pm.kind)
	g, dg := pm.gain(1.5, 1)
	assert.InDelta(t, 75, g, 1e-9)
	assert.InDelta(t, -30, dg, 1e-9)
}

func TestConstantPowerPump(t *testing.T) {
	n := testNet(t, network.HazenWilliams)
	pu, err := n.Link("PU")
	require.NoError(t, err)
	pu.Pump.HeadCurve = ""
	pu.Pump.Power = 10

	e, err := New(n, DefaultOptions())
	require.NoError(t, err)
	loss := e.At(1, 1, e.DefaultState(1))
	assert.InDelta(t, -88.14, loss.Head, 1e-9)
	assert.InDelta(t, 88.14, loss.Gradient, 1e-9)
}

func TestClosedAndControlValves(t *testing.T) {
	e := newEvaluator(t, network.HazenWilliams)

	closed := LinkState{Status: network.Closed}
	for i := 0; i < 3; i++ {
		assert.True(t, e.At(i, 1, closed).Constrained, "link %d", i)
	}

	st := e.DefaultState(2)
	require.Equal(t, network.Active, st.Status)
	tcv := e.At(2, 1, st)
	// m = 0.02517·5 for a 1 ft valve
	assert.InEpsilon(t, 0.02517*5, tcv.Head, 1e-9)

	open := e.At(2, 1, LinkState{Status: network.Open})
	assert.Less(t, open.Head, tcv.Head)

	v := e.net.LinkAt(2).Valve
	v.Type = network.PRV
	assert.True(t, e.At(2, 1, st).Constrained)
	v.Type = network.TCV
}

func TestPressureBreakerValve(t *testing.T) {
	n := testNet(t, network.HazenWilliams)
	v, err := n.Link("V")
	require.NoError(t, err)
	v.Valve.Type = network.PBV
	v.Valve.Setting = 10 // psi

	e, err := New(n, DefaultOptions())
	require.NoError(t, err)
	st := e.DefaultState(2)
	assert.InDelta(t, 10/0.4333, st.Setting, 1e-3)

	loss := e.At(2, -0.5, st)
	assert.InDelta(t, -st.Setting, loss.Head, 1e-9)
	assert.Equal(t, 1/BigResistance, loss.Gradient)
}

func TestGeneralPurposeValve(t *testing.T) {
	n := testNet(t, network.HazenWilliams)
	v, err := n.Link("V")
	require.NoError(t, err)
	v.Valve.Type = network.GPV
	v.Valve.Curve = "G"
	n.AddCurve("G", network.Point{X: 0, Y: 0}, network.Point{X: 448.831, Y: 10})

	e, err := New(n, DefaultOptions())
	require.NoError(t, err)
	loss := e.At(2, 0.5, e.DefaultState(2))
	assert.InDelta(t, 5, loss.Head, 1e-3)
}

func TestMissingCurve(t *testing.T) {
	n := testNet(t, network.HazenWilliams)
	pu, err := n.Link("PU")
	require.NoError(t, err)
	pu.Pump.HeadCurve = "nope"

	_, err = New(n, DefaultOptions())
	var cfg *network.ConfigError
	require.ErrorAs(t, err, &cfg)
	assert.Equal(t, "nope", cfg.ID)
	assert.ErrorIs(t, err, network.ErrMissingReference)
}

func TestEvaluateUnknownLink(t *testing.T) {
	e := newEvaluator(t, network.HazenWilliams)
	_, err := e.Evaluate("zz", 1, network.Open)
	assert.True(t, network.IsNotFound(err))
}

func TestEvaluateConvertsUnits(t *testing.T) {
	n := testNet(t, network.HazenWilliams)
	e, err := New(n, DefaultOptions())
	require.NoError(t, err)

	user, err := e.Evaluate("P", 448.831, network.Open)
	require.NoError(t, err)
	internal := e.At(0, 1, e.DefaultState(0))
	assert.InEpsilon(t, internal.Head, user.Head, 1e-4)
	assert.InEpsilon(t, internal.Gradient/448.831, user.Gradient, 1e-4)
}
