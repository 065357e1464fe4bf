// Package units converts between the user units named in a network file and
// the US customary basis (feet, cubic feet per second) the solver works in.
package units

import (
	"fmt"
	"strings"
)

// FlowUnits is the FLOW UNITS option of a network file
type FlowUnits string

const (
	CFS  FlowUnits = "CFS"
	GPM  FlowUnits = "GPM"
	MGD  FlowUnits = "MGD"
	IMGD FlowUnits = "IMGD"
	AFD  FlowUnits = "AFD"
	LPS  FlowUnits = "LPS"
	LPM  FlowUnits = "LPM"
	MLD  FlowUnits = "MLD"
	CMH  FlowUnits = "CMH"
	CMD  FlowUnits = "CMD"
)

// System is the unit system implied by the flow units
type System int

const (
	US System = iota
	SI
)

func (s System) String() string {
	if s == SI {
		return "SI"
	}
	return "US"
}

const (
	FeetPerMeter    = 1 / 0.3048
	PSIPerFoot      = 0.4333
	KPaPerMeter     = 9.807
	HPPerKW         = 1 / 0.7457
	Gravity         = 32.2   // ft/s²
	WaterViscosity  = 1.1e-5 // ft²/s at 20 °C
	SpecificWeight  = 62.4   // lbf/ft³
	ftPerInch       = 1.0 / 12.0
	ftPerMillimetre = 1.0 / 304.8
)

// per-cfs conversion factors
var flowPerCFS = map[FlowUnits]float64{
	CFS:  1.0,
	GPM:  448.831,
	MGD:  0.64632,
	IMGD: 0.5382,
	AFD:  1.9837,
	LPS:  28.317,
	LPM:  1699.0,
	MLD:  2.4466,
	CMH:  101.94,
	CMD:  2446.6,
}

// ParseFlowUnits parses a FLOW UNITS value, case-insensitively.
func ParseFlowUnits(s string) (FlowUnits, error) {
	u := FlowUnits(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := flowPerCFS[u]; !ok {
		return "", fmt.Errorf("unknown flow units %q", s)
	}
	return u, nil
}

// AllFlowUnits lists every supported flow unit
func AllFlowUnits() []FlowUnits {
	return []FlowUnits{CFS, GPM, MGD, IMGD, AFD, LPS, LPM, MLD, CMH, CMD}
}

// System reports whether lengths are in feet or metres
func (u FlowUnits) System() System {
	switch u {
	case LPS, LPM, MLD, CMH, CMD:
		return SI
	default:
		return US
	}
}

// Converter turns user values into internal values and back
type Converter struct {
	Flow   FlowUnits
	system System
	qcf    float64
}

// NewConverter returns a converter for the given flow units; empty means GPM.
func NewConverter(u FlowUnits) (*Converter, error) {
	if u == "" {
		u = GPM
	}
	f, ok := flowPerCFS[u]
	if !ok {
		return nil, fmt.Errorf("unknown flow units %q", u)
	}
	return &Converter{Flow: u, system: u.System(), qcf: f}, nil
}

// MustConverter is NewConverter for known-good units
func MustConverter(u FlowUnits) *Converter {
	c, err := NewConverter(u)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Converter) System() System { return c.system }

// FlowIn converts a user flow to cfs
func (c *Converter) FlowIn(q float64) float64 { return q / c.qcf }

// FlowOut converts cfs to user flow
func (c *Converter) FlowOut(q float64) float64 { return q * c.qcf }

// LengthIn converts an elevation, head, level or pipe length to feet
func (c *Converter) LengthIn(v float64) float64 {
	if c.system == SI {
		return v * FeetPerMeter
	}
	return v
}

// LengthOut converts feet to user length
func (c *Converter) LengthOut(v float64) float64 {
	if c.system == SI {
		return v / FeetPerMeter
	}
	return v
}

// DiameterIn converts a pipe or valve diameter (inches or millimetres) to feet
func (c *Converter) DiameterIn(v float64) float64 {
	if c.system == SI {
		return v * ftPerMillimetre
	}
	return v * ftPerInch
}

// DiameterOut converts feet to the user diameter unit
func (c *Converter) DiameterOut(v float64) float64 {
	if c.system == SI {
		return v / ftPerMillimetre
	}
	return v / ftPerInch
}

// TankDiameterIn converts a tank diameter (feet or metres) to feet
func (c *Converter) TankDiameterIn(v float64) float64 { return c.LengthIn(v) }

// VolumeIn converts ft³ or m³ to ft³
func (c *Converter) VolumeIn(v float64) float64 {
	if c.system == SI {
		return v * FeetPerMeter * FeetPerMeter * FeetPerMeter
	}
	return v
}

// PressureOut converts a pressure head in feet to psi or metres
func (c *Converter) PressureOut(ft float64) float64 {
	if c.system == SI {
		return ft / FeetPerMeter
	}
	return ft * PSIPerFoot
}

// PressureIn converts psi or metres of pressure to feet of head
func (c *Converter) PressureIn(p float64) float64 {
	if c.system == SI {
		return p * FeetPerMeter
	}
	return p / PSIPerFoot
}

// VelocityOut converts ft/s to ft/s or m/s
func (c *Converter) VelocityOut(v float64) float64 {
	if c.system == SI {
		return v / FeetPerMeter
	}
	return v
}

// PowerIn converts pump power (hp or kW) to hp
func (c *Converter) PowerIn(p float64) float64 {
	if c.system == SI {
		return p * HPPerKW
	}
	return p
}

// PowerOut converts hp to hp or kW
func (c *Converter) PowerOut(p float64) float64 {
	if c.system == SI {
		return p / HPPerKW
	}
	return p
}

// PressureLabel is the unit name used in reports
func (c *Converter) PressureLabel() string {
	if c.system == SI {
		return "m"
	}
	return "psi"
}

// LengthLabel is the unit name used in reports
func (c *Converter) LengthLabel() string {
	if c.system == SI {
		return "m"
	}
	return "ft"
}
