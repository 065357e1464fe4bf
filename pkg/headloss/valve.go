package headloss

import (
	"math"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// valveLoss handles open, throttled and fixed-loss valves. Active PRV, PSV
// and FCV are constraints the solver assembles itself.
func (e *Evaluator) valveLoss(c *coeffs, q float64, st LinkState) Loss {
	if st.Status == network.Open {
		return e.smooth(q, nil, c.minor)
	}

	switch c.valve.Type {
	case network.PRV, network.PSV, network.FCV:
		return Loss{Constrained: true}
	case network.TCV:
		m := minorLossCoeff(st.Setting, c.diameter)
		if m < c.minor {
			m = c.minor
		}
		return e.smooth(q, nil, m)
	case network.PBV:
		open := e.smooth(q, nil, c.minor)
		if st.Setting <= 0 || math.Abs(open.Head) >= st.Setting {
			return open
		}
		h := st.Setting
		if q < 0 {
			h = -h
		}
		return Loss{Head: h, Gradient: 1 / BigResistance}
	case network.GPV:
		aq := math.Max(math.Abs(q), tinyFlow)
		h, slope := c.gpv.Interpolate(aq)
		if slope < e.opts.GradientFloor {
			slope = e.opts.GradientFloor
		}
		if q < 0 {
			h = -h
		}
		return Loss{Head: h, Gradient: slope}
	}
	return e.smooth(q, nil, c.minor)
}

// OpenValveLoss evaluates valve i as fully open, used by the status logic
// to decide whether a regulating valve should open.
func (e *Evaluator) OpenValveLoss(i int, q float64) Loss {
	return e.smooth(q, nil, e.links[i].minor)
}
