// Package control decides discrete link states between solver trials and
// between time steps: check valves, pumps that cannot lift the head,
// regulating valves, full and empty tanks, and the simple controls of a
// network file.
package control

import (
	"fmt"
	"math"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// Tolerances used when comparing heads and flows
const (
	HeadTolerance = 0.0005 // ft
	FlowTolerance = 0.0001 // cfs
)

// Snapshot is the hydraulic state the checks look at. Checks update Links in
// place and report what they changed.
type Snapshot struct {
	Heads []float64 // ft, by node index
	Flows []float64 // cfs, by link index
	Links []headloss.LinkState
}

// Change is one status or setting change of a link
type Change struct {
	Time   time.Duration
	Index  int
	Link   string
	Before headloss.LinkState
	After  headloss.LinkState
	Reason string
}

func (c Change) String() string {
	return fmt.Sprintf("%s: link %s %s -> %s (%s)", c.Time, c.Link, c.Before.Status, c.After.Status, c.Reason)
}

// Checker evaluates the status rules of one network. It holds no per-run
// state and may be shared by solvers running the same network.
type Checker struct {
	net  *network.Network
	eval *headloss.Evaluator

	from, to []int
	elev     []float64 // ft
	tankMin  []float64 // ft of head, NaN for non-tanks
	tankMax  []float64

	switches []bound // controls on junction pressure
}

// bound is a control resolved to dense indices
type bound struct {
	ctrl network.Control
	link int
	node int
}

// NewChecker resolves link endpoints and pressure controls against the network
func NewChecker(net *network.Network, eval *headloss.Evaluator) (*Checker, error) {
	conv := eval.Converter()
	c := &Checker{
		net:     net,
		eval:    eval,
		from:    make([]int, net.NumLinks()),
		to:      make([]int, net.NumLinks()),
		elev:    make([]float64, net.NumNodes()),
		tankMin: make([]float64, net.NumNodes()),
		tankMax: make([]float64, net.NumNodes()),
	}
	for i, node := range net.Nodes() {
		c.elev[i] = conv.LengthIn(node.Elevation)
		c.tankMin[i], c.tankMax[i] = math.NaN(), math.NaN()
		if node.Kind == network.Tank {
			c.tankMin[i] = conv.LengthIn(node.Elevation + node.MinLevel)
			c.tankMax[i] = conv.LengthIn(node.Elevation + node.MaxLevel)
		}
	}
	for i, link := range net.Links() {
		f, ok := net.NodeIndex(link.From)
		if !ok {
			return nil, &network.NotFoundError{Entity: "node", ID: link.From}
		}
		t, ok := net.NodeIndex(link.To)
		if !ok {
			return nil, &network.NotFoundError{Entity: "node", ID: link.To}
		}
		c.from[i], c.to[i] = f, t
	}

	for _, ctrl := range net.Controls {
		if ctrl.Trigger != network.TriggerAbove && ctrl.Trigger != network.TriggerBelow {
			continue
		}
		b, err := resolve(net, ctrl)
		if err != nil {
			return nil, err
		}
		switch net.NodeAt(b.node).Kind {
		case network.Junction:
			c.switches = append(c.switches, b)
		case network.Reservoir:
			return nil, fmt.Errorf("%w: control %q tests reservoir %s", network.ErrInvalidNetwork, ctrl, ctrl.Node)
		}
	}
	return c, nil
}

func resolve(net *network.Network, ctrl network.Control) (bound, error) {
	b := bound{ctrl: ctrl, node: -1}
	li, ok := net.LinkIndex(ctrl.Link)
	if !ok {
		return b, &network.NotFoundError{Entity: "link", ID: ctrl.Link}
	}
	b.link = li
	if ctrl.Node != "" {
		ni, ok := net.NodeIndex(ctrl.Node)
		if !ok {
			return b, &network.NotFoundError{Entity: "node", ID: ctrl.Node}
		}
		b.node = ni
	}
	return b, nil
}

// Endpoints returns the dense node indices of link i
func (c *Checker) Endpoints(i int) (from, to int) { return c.from[i], c.to[i] }

// regulating reports whether a valve is under its own PRV/PSV/FCV logic
// rather than fixed OPEN or CLOSED by the user or a control
func regulating(st headloss.LinkState) bool {
	return st.Status == network.Active || st.Hold == headloss.HoldValve
}

// CheckStatus runs the valve and link checks
func (c *Checker) CheckStatus(s Snapshot) []Change {
	changes := c.Valves(s)
	return append(changes, c.Links(s)...)
}

// Valves switches active PRVs and PSVs between ACTIVE, OPEN and CLOSED
func (c *Checker) Valves(s Snapshot) []Change {
	var changes []Change
	for i, link := range c.net.Links() {
		if link.Kind != network.Valve || !link.Valve.Type.PressureControl() {
			continue
		}
		st := s.Links[i]
		if !regulating(st) {
			continue
		}
		h1, h2, q := s.Heads[c.from[i]], s.Heads[c.to[i]], s.Flows[i]
		hml := c.eval.OpenValveLoss(i, q).Head

		var next network.LinkStatus
		if link.Valve.Type == network.PRV {
			next = prvStatus(st.Status, h1, h2, q, hml, c.elev[c.to[i]]+st.Setting)
		} else {
			next = psvStatus(st.Status, h1, h2, q, hml, c.elev[c.from[i]]+st.Setting)
		}
		if next != st.Status {
			changes = append(changes, c.set(s, i, next, headloss.HoldValve, "valve "+next.String()))
		}
	}
	return changes
}

func prvStatus(cur network.LinkStatus, h1, h2, q, hml, hset float64) network.LinkStatus {
	switch cur {
	case network.Active:
		if q < -FlowTolerance {
			return network.Closed
		}
		if h1-hml < hset-HeadTolerance {
			return network.Open
		}
	case network.Open:
		if q < -FlowTolerance {
			return network.Closed
		}
		if h2 >= hset+HeadTolerance {
			return network.Active
		}
	case network.Closed:
		if h1 >= hset+HeadTolerance && h2 < hset-HeadTolerance {
			return network.Active
		}
		if h1 < hset-HeadTolerance && h1 > h2+HeadTolerance {
			return network.Open
		}
	}
	return cur
}

func psvStatus(cur network.LinkStatus, h1, h2, q, hml, hset float64) network.LinkStatus {
	switch cur {
	case network.Active:
		if q < -FlowTolerance {
			return network.Closed
		}
		if h2+hml > hset+HeadTolerance {
			return network.Open
		}
	case network.Open:
		if q < -FlowTolerance {
			return network.Closed
		}
		if h1 < hset-HeadTolerance {
			return network.Active
		}
	case network.Closed:
		if h2+hml > hset+HeadTolerance && h1 > h2+HeadTolerance {
			return network.Open
		}
		if h1 >= hset+HeadTolerance && h1 > h2+HeadTolerance {
			return network.Active
		}
	}
	return cur
}

// Links checks check valves, pumps, flow control valves and links at full
// or empty tanks.
func (c *Checker) Links(s Snapshot) []Change {
	var changes []Change
	for i, link := range c.net.Links() {
		st := s.Links[i]
		h1, h2, q := s.Heads[c.from[i]], s.Heads[c.to[i]], s.Flows[i]

		switch {
		case link.HasCheckValve() && (st.Status == network.Open || st.Hold == headloss.HoldDirection):
			if next := cvStatus(st.Status, h1-h2, q); next != st.Status {
				hold := headloss.HoldNone
				if next == network.Closed {
					hold = headloss.HoldDirection
				}
				changes = append(changes, c.set(s, i, next, hold, "check valve"))
			}
		case link.Kind == network.Pump && st.Setting > 0:
			shutoff := c.eval.PumpShutoff(i, st.Setting)
			switch {
			case st.Status == network.Open && h2-h1 > shutoff+HeadTolerance:
				changes = append(changes, c.set(s, i, network.Closed, headloss.HoldHead, "pump cannot deliver head"))
			case st.Status == network.Closed && st.Hold == headloss.HoldHead && h2-h1 < shutoff-HeadTolerance:
				changes = append(changes, c.set(s, i, network.Open, headloss.HoldNone, "pump reopened"))
			}
		case link.Kind == network.Valve && link.Valve.Type == network.FCV && regulating(st):
			switch {
			case st.Status == network.Active && (h1-h2 < -HeadTolerance || q < -FlowTolerance):
				changes = append(changes, c.set(s, i, network.Open, headloss.HoldValve, "flow control cannot be met"))
			case st.Status == network.Open && q >= st.Setting:
				changes = append(changes, c.set(s, i, network.Active, headloss.HoldNone, "flow control active"))
			}
		}

		if ch, ok := c.tankLimit(s, i); ok {
			changes = append(changes, ch)
		}
	}
	return changes
}

func cvStatus(cur network.LinkStatus, dh, q float64) network.LinkStatus {
	if math.Abs(dh) > HeadTolerance {
		if dh < -HeadTolerance || q < -FlowTolerance {
			return network.Closed
		}
		return network.Open
	}
	if q < -FlowTolerance {
		return network.Closed
	}
	return cur
}

// tankLimit closes a link that fills a full tank or drains an empty one and
// reopens it once the tank is off its limit or the head would reverse the flow.
func (c *Checker) tankLimit(s Snapshot, i int) (Change, bool) {
	st := s.Links[i]
	for _, end := range [2]struct {
		tank, other int
		sign        float64
	}{{c.from[i], c.to[i], 1}, {c.to[i], c.from[i], -1}} {
		if math.IsNaN(c.tankMax[end.tank]) {
			continue
		}
		ht, ho := s.Heads[end.tank], s.Heads[end.other]
		full := ht >= c.tankMax[end.tank]-HeadTolerance
		empty := ht <= c.tankMin[end.tank]+HeadTolerance
		out := end.sign * s.Flows[i]

		if st.Status == network.Closed && st.Hold == headloss.HoldTank {
			pipeLike := c.net.LinkAt(i).Kind != network.Pump
			switch {
			case !full && !empty,
				full && pipeLike && ho < ht-HeadTolerance,
				empty && pipeLike && ho > ht+HeadTolerance:
				return c.set(s, i, network.Open, headloss.HoldNone, "tank off limit"), true
			}
			return Change{}, false
		}
		if st.Status == network.Closed {
			continue
		}
		switch {
		case full && out < -FlowTolerance:
			return c.set(s, i, network.Closed, headloss.HoldTank, "tank full"), true
		case empty && out > FlowTolerance:
			return c.set(s, i, network.Closed, headloss.HoldTank, "tank empty"), true
		}
	}
	return Change{}, false
}

// PressureSwitches fires controls on junction pressure. Tank and time
// controls are applied between time steps by a Controller.
func (c *Checker) PressureSwitches(s Snapshot) []Change {
	conv := c.eval.Converter()
	var changes []Change
	for _, b := range c.switches {
		pressure := s.Heads[b.node] - c.elev[b.node]
		limit := conv.PressureIn(b.ctrl.Value)
		if !triggered(b.ctrl.Trigger, pressure, limit) {
			continue
		}
		if ch, ok := c.apply(s.Links, b, 0); ok {
			changes = append(changes, ch)
		}
	}
	return changes
}

func triggered(kind network.TriggerKind, v, limit float64) bool {
	switch kind {
	case network.TriggerAbove:
		return v > limit
	case network.TriggerBelow:
		return v < limit
	}
	return false
}

// apply moves a link to the state a control asks for
func (c *Checker) apply(links []headloss.LinkState, b bound, t time.Duration) (Change, bool) {
	cur := links[b.link]
	next, ok := c.target(b.link, b.ctrl, cur)
	if !ok || next == cur {
		return Change{}, false
	}
	links[b.link] = next
	return Change{
		Time:   t,
		Index:  b.link,
		Link:   b.ctrl.Link,
		Before: cur,
		After:  next,
		Reason: "control: " + b.ctrl.String(),
	}, true
}

func (c *Checker) target(i int, ctrl network.Control, cur headloss.LinkState) (headloss.LinkState, bool) {
	link := c.net.LinkAt(i)
	next := cur
	next.Hold = headloss.HoldNone
	if !ctrl.HasSetting {
		next.Status = ctrl.Status
		if link.Kind == network.Pump && next.Status == network.Open && !(next.Setting > 0) {
			next.Setting = 1
		}
		return next, true
	}
	switch link.Kind {
	case network.Pump:
		next.Setting = ctrl.Setting
		next.Status = network.Open
		if !(ctrl.Setting > 0) {
			next.Status = network.Closed
		}
	case network.Valve:
		next.Setting = c.eval.ValveSettingIn(link.Valve.Type, ctrl.Setting)
		next.Status = network.Active
	default:
		return cur, false
	}
	return next, true
}

func (c *Checker) set(s Snapshot, i int, status network.LinkStatus, hold headloss.Hold, reason string) Change {
	before := s.Links[i]
	after := before
	after.Status = status
	after.Hold = hold
	if status == network.Active {
		after.Hold = headloss.HoldNone
	}
	s.Links[i] = after
	return Change{Index: i, Link: c.net.LinkAt(i).ID, Before: before, After: after, Reason: reason}
}
