package network

import (
	"fmt"
	"sort"
	"strings"
)

// NodeKind distinguishes junctions, reservoirs and tanks
type NodeKind int

const (
	Junction NodeKind = iota
	Reservoir
	Tank
)

func (k NodeKind) String() string {
	switch k {
	case Junction:
		return "junction"
	case Reservoir:
		return "reservoir"
	case Tank:
		return "tank"
	default:
		return "unknown"
	}
}

// FixedHead reports whether the solver treats the node head as known
func (k NodeKind) FixedHead() bool {
	return k == Reservoir || k == Tank
}

// LinkKind distinguishes pipes, pumps and valves
type LinkKind int

const (
	Pipe LinkKind = iota
	Pump
	Valve
)

func (k LinkKind) String() string {
	switch k {
	case Pipe:
		return "pipe"
	case Pump:
		return "pump"
	case Valve:
		return "valve"
	default:
		return "unknown"
	}
}

// LinkStatus is the discrete state of a link
type LinkStatus int

const (
	Open LinkStatus = iota
	Closed
	// Active means a control valve is enforcing its setting
	Active
)

func (s LinkStatus) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	case Active:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus parses OPEN, CLOSED or ACTIVE.
func ParseStatus(s string) (LinkStatus, error) {
	switch strings.ToUpper(s) {
	case "OPEN":
		return Open, nil
	case "CLOSED":
		return Closed, nil
	case "ACTIVE":
		return Active, nil
	default:
		return Open, fmt.Errorf("unknown link status %q", s)
	}
}

// MarshalText encodes the status for JSON and YAML results
func (s LinkStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *LinkStatus) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ValveType is one of the six control valve kinds
type ValveType string

const (
	PRV ValveType = "PRV" // pressure reducing
	PSV ValveType = "PSV" // pressure sustaining
	PBV ValveType = "PBV" // pressure breaker
	FCV ValveType = "FCV" // flow control
	TCV ValveType = "TCV" // throttle control
	GPV ValveType = "GPV" // general purpose
)

// ParseValveType parses a valve type, case-insensitively.
func ParseValveType(s string) (ValveType, error) {
	t := ValveType(strings.ToUpper(s))
	switch t {
	case PRV, PSV, PBV, FCV, TCV, GPV:
		return t, nil
	}
	return "", fmt.Errorf("unknown valve type %q", s)
}

// PressureControl reports whether the valve regulates a node pressure
func (t ValveType) PressureControl() bool {
	return t == PRV || t == PSV
}

// Node is a junction, reservoir or tank. Values are in the network's user units.
type Node struct {
	ID        string
	Kind      NodeKind
	Elevation float64

	// Junction
	BaseDemand    float64
	DemandPattern string

	// Reservoir
	Head        float64
	HeadPattern string

	// Tank
	InitLevel   float64
	MinLevel    float64
	MaxLevel    float64
	Diameter    float64
	MinVolume   float64
	VolumeCurve string
}

// PipeAttrs holds the geometry of a pipe
type PipeAttrs struct {
	Length     float64
	Diameter   float64
	Roughness  float64
	MinorLoss  float64
	CheckValve bool
}

// PumpAttrs holds either a head curve or a constant power rating
type PumpAttrs struct {
	HeadCurve    string
	Power        float64
	Speed        float64
	SpeedPattern string
}

// ValveAttrs holds a control valve's type and setting
type ValveAttrs struct {
	Diameter  float64
	Type      ValveType
	Setting   float64
	MinorLoss float64
	// Curve is the head-loss curve of a GPV
	Curve     string
}

// Link joins From to To. Positive flow runs From to To.
// Exactly one of Pipe, Pump and Valve is set, matching Kind.
type Link struct {
	ID     string
	Kind   LinkKind
	From   string
	To     string
	Status LinkStatus

	Pipe  *PipeAttrs
	Pump  *PumpAttrs
	Valve *ValveAttrs
}

// HasCheckValve reports whether flow may only run From to To
func (l *Link) HasCheckValve() bool {
	return l.Kind == Pipe && l.Pipe != nil && l.Pipe.CheckValve
}

// Diameter returns the pipe or valve diameter, zero for pumps
func (l *Link) Diameter() float64 {
	switch {
	case l.Pipe != nil:
		return l.Pipe.Diameter
	case l.Valve != nil:
		return l.Valve.Diameter
	}
	return 0
}

// Pattern is a repeating sequence of multipliers
type Pattern struct {
	ID          string
	Multipliers []float64
}

// Multiplier returns the factor for a period, wrapping modulo the length.
func (p *Pattern) Multiplier(period int) float64 {
	n := len(p.Multipliers)
	if n == 0 {
		return 1
	}
	i := period % n
	if i < 0 {
		i += n
	}
	return p.Multipliers[i]
}

// CurveKind records how a curve is used
type CurveKind int

const (
	CurveUnknown CurveKind = iota
	CurvePump
	CurveEfficiency
	CurveVolume
	CurveHeadLoss
)

func (k CurveKind) String() string {
	switch k {
	case CurvePump:
		return "pump"
	case CurveEfficiency:
		return "efficiency"
	case CurveVolume:
		return "volume"
	case CurveHeadLoss:
		return "headloss"
	default:
		return "unknown"
	}
}

// Point is an (x, y) pair of a curve
type Point struct {
	X float64
	Y float64
}

// Curve is an ordered list of points
type Curve struct {
	ID     string
	Kind   CurveKind
	Points []Point
}

// Interpolate returns y and dy/dx at x on the piecewise-linear curve,
// extending the end segments beyond the first and last points.
func (c *Curve) Interpolate(x float64) (y, slope float64) {
	pts := c.Points
	switch len(pts) {
	case 0:
		return 0, 0
	case 1:
		return pts[0].Y, 0
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].X >= x })
	switch {
	case i == 0:
		i = 1
	case i >= len(pts):
		i = len(pts) - 1
	}
	a, b := pts[i-1], pts[i]
	dx := b.X - a.X
	if dx == 0 {
		return b.Y, 0
	}
	slope = (b.Y - a.Y) / dx
	return a.Y + slope*(x-a.X), slope
}

// TriggerKind is the condition of a simple control
type TriggerKind int

const (
	TriggerAbove TriggerKind = iota
	TriggerBelow
	TriggerTime
	TriggerClockTime
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerAbove:
		return "ABOVE"
	case TriggerBelow:
		return "BELOW"
	case TriggerTime:
		return "TIME"
	case TriggerClockTime:
		return "CLOCKTIME"
	default:
		return "UNKNOWN"
	}
}

// Control is a simple control line:
//
//	LINK id OPEN|CLOSED|setting IF NODE id ABOVE|BELOW value
//	LINK id OPEN|CLOSED|setting AT TIME t
//	LINK id OPEN|CLOSED|setting AT CLOCKTIME t
type Control struct {
	Link       string
	Status     LinkStatus
	HasSetting bool
	Setting    float64

	Trigger TriggerKind
	Node    string
	// Value is a tank level or junction pressure in user units
	Value   float64
	// Seconds is elapsed time for TIME or seconds past midnight for CLOCKTIME
	Seconds int64
}

func (c Control) String() string {
	action := c.Status.String()
	if c.HasSetting {
		action = fmt.Sprintf("%g", c.Setting)
	}
	switch c.Trigger {
	case TriggerAbove, TriggerBelow:
		return fmt.Sprintf("LINK %s %s IF NODE %s %s %g", c.Link, action, c.Node, c.Trigger, c.Value)
	default:
		return fmt.Sprintf("LINK %s %s AT %s %ds", c.Link, action, c.Trigger, c.Seconds)
	}
}

// Rule is a rule-based control kept verbatim; it is never evaluated.
type Rule struct {
	ID    string
	Lines []string
}

// Reaction is one line of a REACTIONS section
type Reaction struct {
	Keyword []string
	Value   string
}
