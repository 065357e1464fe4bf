package headloss

import (
	"math"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

// curveFn returns the friction head loss and its derivative for q >= 0
type curveFn func(q float64) (h, dh float64)

const (
	hazenExponent = 1.852
	// US-unit constants for feet and cfs
	hazenCoeff   = 4.727
	manningCoeff = 4.66
	darcyCoeff   = 0.0252 // 8 / (g·π²)
	minorCoeff   = 0.02517

	laminarRe   = 2000.0
	turbulentRe = 4000.0
)

func minorLossCoeff(k, d float64) float64 {
	if !(k > 0) || !(d > 0) {
		return 0
	}
	return minorCoeff * k / math.Pow(d, 4)
}

// pipeFriction builds the friction law for a pipe of length l and
// diameter d in feet.
func (e *Evaluator) pipeFriction(l, d, roughness, viscosity float64) curveFn {
	switch e.formula {
	case network.DarcyWeisbach:
		eps := roughness * 0.001 // millifeet
		if e.conv.System() == units.SI {
			eps = roughness / 304.8 // millimetres
		}
		return darcyWeisbach(darcyCoeff*l/math.Pow(d, 5), eps/d, d, viscosity)
	case network.ChezyManning:
		r := manningCoeff * roughness * roughness * l / math.Pow(d, 5.33)
		return func(q float64) (float64, float64) {
			return r * q * q, 2 * r * q
		}
	default:
		r := hazenCoeff * l / (math.Pow(roughness, hazenExponent) * math.Pow(d, 4.871))
		return func(q float64) (float64, float64) {
			if q <= 0 {
				return 0, 0
			}
			h := r * math.Pow(q, hazenExponent)
			return h, hazenExponent * h / q
		}
	}
}

// darcyWeisbach returns h = r·f(Re)·q² with f from Hagen-Poiseuille below
// Re 2000, Swamee-Jain above Re 4000, and linear in Re between.
func darcyWeisbach(r, relRough, d, viscosity float64) curveFn {
	reFactor := 4 / (math.Pi * d * viscosity)
	f2000 := 64 / laminarRe
	f4000, _ := swameeJain(turbulentRe, relRough)
	transSlope := (f4000 - f2000) / (turbulentRe - laminarRe)

	return func(q float64) (float64, float64) {
		if q <= 0 {
			return 0, 0
		}
		re := reFactor * q
		var f, reDf float64 // friction factor and Re·df/dRe
		switch {
		case re < laminarRe:
			f = 64 / re
			reDf = -f
		case re < turbulentRe:
			f = f2000 + transSlope*(re-laminarRe)
			reDf = re * transSlope
		default:
			var df float64
			f, df = swameeJain(re, relRough)
			reDf = re * df
		}
		h := r * f * q * q
		return h, r * q * (2*f + reDf)
	}
}

// swameeJain returns the turbulent friction factor and df/dRe
func swameeJain(re, relRough float64) (float64, float64) {
	a := relRough / 3.7
	b := 5.74 * math.Pow(re, -0.9)
	lg := math.Log10(a + b)
	f := 0.25 / (lg * lg)
	dLg := (-0.9 * b / re) / ((a + b) * math.Ln10)
	return f, -0.5 / (lg * lg * lg) * dLg
}
