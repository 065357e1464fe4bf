// Package headloss evaluates the head loss across a link, and its derivative
// with respect to flow, for pipes, pumps and valves.
//
// Internally everything is in feet and cubic feet per second. Evaluate works
// in the network's user units; At is the internal entry point the solver
// calls every trial.
package headloss

import (
	"fmt"
	"math"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

// BigResistance stands in for an infinite coefficient when a control valve
// fixes a head or a flow.
const BigResistance = 1e8

// Flags mark conditions found while evaluating a link
type Flags uint8

const (
	// PumpOverflow means the pump is run past the end of its curve and the
	// extrapolated head gain is negative
	PumpOverflow Flags = 1 << iota
	// SmallFlow means the flow is inside the linearized zone near zero
	SmallFlow
)

// Loss is the result of one evaluation
type Loss struct {
	Head        float64
	Gradient    float64
	// Constrained means the link does not follow a smooth head-loss curve:
	// it is closed (zero flow) or an active PRV, PSV or FCV that the solver
	// assembles as an equality constraint.
	Constrained bool
	Flags       Flags
}

// Hold records why the status checks overrode a link's own status
type Hold uint8

const (
	HoldNone Hold = iota
	// HoldDirection: check valve closed against reverse flow
	HoldDirection
	// HoldHead: pump closed because it cannot deliver the head across it
	HoldHead
	// HoldTank: closed to stop filling a full tank or draining an empty one
	HoldTank
	// HoldValve: regulating valve moved between OPEN, ACTIVE and CLOSED
	HoldValve
)

func (h Hold) String() string {
	switch h {
	case HoldDirection:
		return "reverse flow"
	case HoldHead:
		return "head above shutoff"
	case HoldTank:
		return "tank limit"
	case HoldValve:
		return "valve regulation"
	default:
		return ""
	}
}

// LinkState is the discrete state the solver carries for a link
type LinkState struct {
	Status  network.LinkStatus
	// Setting is the pump speed or the valve setting in internal units
	// (head in feet for PRV/PSV/PBV, cfs for FCV, loss coefficient for TCV)
	Setting float64
	Hold    Hold
}

// Options tunes the numerical treatment
type Options struct {
	// SmallFlow is the flow, in cfs, below which pipe and valve curves are
	// replaced by a straight line through the origin
	SmallFlow     float64
	// GradientFloor is the smallest derivative ever returned
	GradientFloor float64
}

// DefaultOptions returns the thresholds used by the solver
func DefaultOptions() Options {
	return Options{
		SmallFlow:     1e-3,
		GradientFloor: 1e-7,
	}
}

type coeffs struct {
	kind network.LinkKind

	// pipes and valves, internal units
	diameter float64
	friction curveFn
	minor    float64 // m in m·Q|Q|

	pump  *pumpModel
	valve *network.ValveAttrs
	gpv   *network.Curve
}

// Evaluator holds precomputed coefficients for every link of a network
type Evaluator struct {
	net     *network.Network
	conv    *units.Converter
	formula network.HeadlossFormula
	opts    Options
	links   []coeffs
}

// New precomputes link coefficients. Curves referenced by pumps and GPVs
// must exist; a missing one is a *network.ConfigError.
func New(net *network.Network, opts Options) (*Evaluator, error) {
	if !(opts.SmallFlow > 0) {
		opts.SmallFlow = DefaultOptions().SmallFlow
	}
	if !(opts.GradientFloor > 0) {
		opts.GradientFloor = DefaultOptions().GradientFloor
	}
	e := &Evaluator{
		net:     net,
		conv:    net.Converter(),
		formula: net.Options.Headloss,
		opts:    opts,
		links:   make([]coeffs, net.NumLinks()),
	}
	viscosity := units.WaterViscosity * validViscosity(net.Options.Viscosity)

	for i, link := range net.Links() {
		c := coeffs{kind: link.Kind}
		switch link.Kind {
		case network.Pipe:
			p := link.Pipe
			d := e.conv.DiameterIn(p.Diameter)
			c.diameter = d
			c.friction = e.pipeFriction(e.conv.LengthIn(p.Length), d, p.Roughness, viscosity)
			c.minor = minorLossCoeff(p.MinorLoss, d)
		case network.Pump:
			pm, err := e.newPump(link)
			if err != nil {
				return nil, err
			}
			c.pump = pm
		case network.Valve:
			v := link.Valve
			c.valve = v
			c.diameter = e.conv.DiameterIn(v.Diameter)
			c.minor = minorLossCoeff(v.MinorLoss, c.diameter)
			if v.Type == network.GPV {
				curve, err := net.Curve(v.Curve)
				if err != nil {
					return nil, network.MissingCurve("headloss", "valve "+link.ID, v.Curve)
				}
				c.gpv = e.internalCurve(curve)
			}
		default:
			return nil, fmt.Errorf("headloss: link %q has unknown kind %d", link.ID, link.Kind)
		}
		e.links[i] = c
	}
	return e, nil
}

func validViscosity(v float64) float64 {
	if v > 0 {
		return v
	}
	return 1
}

// Converter exposes the unit converter the evaluator was built with
func (e *Evaluator) Converter() *units.Converter { return e.conv }

// Options returns the numerical options in effect
func (e *Evaluator) Options() Options { return e.opts }

// Diameter returns a pipe or valve diameter in feet, zero for pumps
func (e *Evaluator) Diameter(i int) float64 { return e.links[i].diameter }

// DefaultState returns the state a link starts a run in
func (e *Evaluator) DefaultState(i int) LinkState {
	link := e.net.LinkAt(i)
	st := LinkState{Status: link.Status}
	switch link.Kind {
	case network.Pump:
		st.Setting = link.Pump.Speed
		if st.Setting == 0 {
			st.Status = network.Closed
		}
	case network.Valve:
		st.Setting = e.ValveSettingIn(link.Valve.Type, link.Valve.Setting)
	}
	return st
}

// ValveSettingIn converts a user valve setting to internal units. PRV and
// PSV settings stay pressures here; the solver adds the node elevation.
func (e *Evaluator) ValveSettingIn(t network.ValveType, v float64) float64 {
	switch t {
	case network.PRV, network.PSV, network.PBV:
		return e.conv.PressureIn(v)
	case network.FCV:
		return e.conv.FlowIn(v)
	default:
		return v
	}
}

// ValveSettingOut converts an internal valve setting back to user units
func (e *Evaluator) ValveSettingOut(t network.ValveType, v float64) float64 {
	switch t {
	case network.PRV, network.PSV, network.PBV:
		return e.conv.PressureOut(v)
	case network.FCV:
		return e.conv.FlowOut(v)
	default:
		return v
	}
}

// InitialFlow is the cfs a link starts an iteration from when there is no
// previous solution: 1 ft/s through pipes and valves, mid-curve for pumps.
func (e *Evaluator) InitialFlow(i int, st LinkState) float64 {
	c := &e.links[i]
	if st.Status == network.Closed {
		return 0
	}
	switch c.kind {
	case network.Pump:
		if pm := c.pump; pm != nil && !math.IsInf(pm.maxFlow, 1) && pm.maxFlow > 0 {
			return pm.maxFlow / 2 * math.Max(st.Setting, 0)
		}
		return 1
	case network.Valve:
		if c.valve.Type == network.FCV && st.Status == network.Active {
			return st.Setting
		}
	}
	return math.Pi * c.diameter * c.diameter / 4
}

// At evaluates link i at flow q (cfs) in state st. Heads are in feet.
func (e *Evaluator) At(i int, q float64, st LinkState) Loss {
	c := &e.links[i]
	if st.Status == network.Closed {
		return Loss{Constrained: true}
	}
	switch c.kind {
	case network.Pipe:
		return e.smooth(q, c.friction, c.minor)
	case network.Pump:
		return e.pumpLoss(c.pump, q, st.Setting)
	default:
		return e.valveLoss(c, q, st)
	}
}

// Evaluate returns the head loss and gradient of a link in user units.
// Pump speed and valve setting are taken from the network.
func (e *Evaluator) Evaluate(linkID string, flow float64, status network.LinkStatus) (Loss, error) {
	i, ok := e.net.LinkIndex(linkID)
	if !ok {
		return Loss{}, &network.NotFoundError{Entity: "link", ID: linkID}
	}
	st := e.DefaultState(i)
	st.Status = status
	loss := e.At(i, e.conv.FlowIn(flow), st)
	loss.Head = e.conv.LengthOut(loss.Head)
	loss.Gradient = e.conv.LengthOut(loss.Gradient) / e.conv.FlowOut(1)
	return loss, nil
}

// smooth evaluates an odd head-loss law h(Q) = sign(Q)·φ(|Q|) where
// φ(q) = friction(q) + m·q². Below SmallFlow/2 φ is the line through the
// origin and φ(SmallFlow); between SmallFlow/2 and SmallFlow a cubic Hermite
// segment joins the line to the full law, matching value and slope at both
// ends, so h is continuously differentiable and strictly increasing.
func (e *Evaluator) smooth(q float64, friction curveFn, m float64) Loss {
	phi := func(x float64) (float64, float64) {
		var h, g float64
		if friction != nil {
			h, g = friction(x)
		}
		return h + m*x*x, g + 2*m*x
	}

	q2 := e.opts.SmallFlow
	q1 := q2 / 2
	aq := math.Abs(q)

	var h, g float64
	var flags Flags
	switch {
	case aq >= q2:
		h, g = phi(aq)
	default:
		flags = SmallFlow
		h2, g2 := phi(q2)
		if h2 <= 0 {
			// zero-resistance link; keep a tiny linear law
			h, g = e.opts.GradientFloor*aq, e.opts.GradientFloor
			break
		}
		s := h2 / q2
		if aq <= q1 {
			h, g = s*aq, s
			break
		}
		h, g = hermite(aq, q1, s*q1, s, q2, h2, g2)
	}

	if g < e.opts.GradientFloor {
		g = e.opts.GradientFloor
	}
	if q < 0 {
		h = -h
	}
	return Loss{Head: h, Gradient: g, Flags: flags}
}

// hermite evaluates the cubic through (x1,y1) with slope m1 and (x2,y2) with
// slope m2 at x, returning value and derivative.
func hermite(x, x1, y1, m1, x2, y2, m2 float64) (float64, float64) {
	w := x2 - x1
	t := (x - x1) / w
	t2, t3 := t*t, t*t*t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	y := h00*y1 + h10*w*m1 + h01*y2 + h11*w*m2

	d00 := 6*t2 - 6*t
	d10 := 3*t2 - 4*t + 1
	d01 := -6*t2 + 6*t
	d11 := 3*t2 - 2*t
	dy := (d00*y1+d01*y2)/w + d10*m1 + d11*m2
	return y, dy
}

// internalCurve converts a flow/head curve to cfs and feet
func (e *Evaluator) internalCurve(c *network.Curve) *network.Curve {
	out := &network.Curve{ID: c.ID, Kind: c.Kind, Points: make([]network.Point, len(c.Points))}
	for i, p := range c.Points {
		out.Points[i] = network.Point{X: e.conv.FlowIn(p.X), Y: e.conv.LengthIn(p.Y)}
	}
	return out
}
