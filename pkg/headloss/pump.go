package headloss

import (
	"math"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

type pumpKind int

const (
	pumpPowerLaw pumpKind = iota
	pumpMultipoint
	pumpConstantPower
)

// horsepower to feet·cfs: H = 550·P / (62.4·Q)
const powerHeadCoeff = 8.814

// tinyFlow keeps pump laws finite at zero flow
const tinyFlow = 1e-6

// pumpModel describes head gain as a function of flow at full speed:
// gain = a - b·Q^c for power-law curves, a piecewise-linear curve, or
// constant power.
type pumpModel struct {
	kind    pumpKind
	a, b, c float64
	curve   *network.Curve
	power   float64 // hp
	// shutoff and maxFlow bound the curve at full speed
	shutoff float64
	maxFlow float64
}

func (e *Evaluator) newPump(link *network.Link) (*pumpModel, error) {
	p := link.Pump
	if p.HeadCurve == "" {
		hp := e.conv.PowerIn(p.Power)
		return &pumpModel{kind: pumpConstantPower, power: hp, shutoff: math.Inf(1), maxFlow: math.Inf(1)}, nil
	}
	c, err := e.net.Curve(p.HeadCurve)
	if err != nil {
		return nil, network.MissingCurve("headloss", "pump "+link.ID, p.HeadCurve)
	}
	return fitPumpCurve(e.internalCurve(c)), nil
}

// fitPumpCurve chooses the pump law for a curve already in cfs and feet.
//
// One point (Q1, H1) gives a = 4/3·H1, b = H1/(3·Q1²), c = 2, so shutoff head
// is 133 % of design head and the curve reaches zero at twice design flow.
// Three points starting at zero flow give a = H1 and fit c and b through the
// other two. Anything else is used as a piecewise-linear curve.
func fitPumpCurve(c *network.Curve) *pumpModel {
	pts := c.Points
	if len(pts) == 1 {
		q1, h1 := pts[0].X, pts[0].Y
		a := 4.0 / 3.0 * h1
		b := h1 / (3 * q1 * q1)
		return &pumpModel{kind: pumpPowerLaw, a: a, b: b, c: 2, shutoff: a, maxFlow: math.Sqrt(a / b)}
	}
	if len(pts) == 3 && pts[0].X == 0 {
		h1, h2, h3 := pts[0].Y, pts[1].Y, pts[2].Y
		q2, q3 := pts[1].X, pts[2].X
		if h1 > h2 && h2 > h3 && q2 > 0 && q3 > q2 {
			exp := math.Log((h1-h2)/(h1-h3)) / math.Log(q2/q3)
			if exp > 0 && exp <= 20 {
				b := (h1 - h2) / math.Pow(q2, exp)
				return &pumpModel{kind: pumpPowerLaw, a: h1, b: b, c: exp,
					shutoff: h1, maxFlow: math.Pow(h1/b, 1/exp)}
			}
		}
	}
	last := pts[len(pts)-1]
	shutoff, _ := c.Interpolate(0)
	return &pumpModel{kind: pumpMultipoint, curve: c, shutoff: shutoff, maxFlow: last.X}
}

// Shutoff returns the head gain at zero flow and the given speed, in feet
func (pm *pumpModel) Shutoff(speed float64) float64 {
	return speed * speed * pm.shutoff
}

// gain returns the head gain at flow q >= 0 and speed s, and d(gain)/dq
func (pm *pumpModel) gain(q, s float64) (float64, float64) {
	switch pm.kind {
	case pumpPowerLaw:
		q = math.Max(q, tinyFlow)
		k := pm.b * math.Pow(s, 2-pm.c)
		g := s*s*pm.a - k*math.Pow(q, pm.c)
		return g, -pm.c * k * math.Pow(q, pm.c-1)
	case pumpMultipoint:
		q = math.Max(q, tinyFlow)
		y, slope := pm.curve.Interpolate(q / s)
		return s * s * y, s * slope
	default:
		p := pm.power * s * s * s
		g := powerHeadCoeff * p / q
		return g, -g / q
	}
}

func (e *Evaluator) pumpLoss(pm *pumpModel, q, speed float64) Loss {
	if !(speed > 0) {
		return Loss{Constrained: true}
	}
	aq := math.Abs(q)
	if pm.kind == pumpConstantPower {
		aq = math.Max(aq, e.opts.SmallFlow)
	}
	g, dg := pm.gain(aq, speed)

	loss := Loss{Head: -g, Gradient: -dg}
	if g < 0 {
		loss.Flags |= PumpOverflow
	}
	if loss.Gradient < e.opts.GradientFloor {
		loss.Gradient = e.opts.GradientFloor
	}
	return loss
}

// PumpShutoff returns the shutoff head in feet of pump link i at a speed,
// or +Inf for constant-power pumps.
func (e *Evaluator) PumpShutoff(i int, speed float64) float64 {
	pm := e.links[i].pump
	if pm == nil {
		return 0
	}
	return pm.Shutoff(speed)
}

// PumpGain returns the head gain in feet of pump link i at q cfs
func (e *Evaluator) PumpGain(i int, q, speed float64) float64 {
	pm := e.links[i].pump
	if pm == nil || !(speed > 0) {
		return 0
	}
	aq := math.Abs(q)
	if pm.kind == pumpConstantPower {
		aq = math.Max(aq, e.opts.SmallFlow)
	}
	g, _ := pm.gain(aq, speed)
	return g
}
