package control

import (
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

const day = 24 * time.Hour

// Controller applies the time and tank-level controls of a network at the
// start of each time step. It remembers the last time it ran, so each timed
// control fires once when the clock crosses it. One Controller per run.
type Controller struct {
	checker *Checker
	timed   []bound
	levels  []bound
	start   time.Duration // clock time at t = 0
	last    time.Duration
	ran     bool
}

// NewController binds the network's simple controls to a checker
func NewController(c *Checker) (*Controller, error) {
	ctl := &Controller{checker: c, start: c.net.Times.StartClock}
	for _, ctrl := range c.net.Controls {
		b, err := resolve(c.net, ctrl)
		if err != nil {
			return nil, err
		}
		switch ctrl.Trigger {
		case network.TriggerTime, network.TriggerClockTime:
			ctl.timed = append(ctl.timed, b)
		default:
			if c.net.NodeAt(b.node).Kind == network.Tank {
				ctl.levels = append(ctl.levels, b)
			}
		}
	}
	return ctl, nil
}

// ApplyControls fires the controls due at elapsed time t: timed controls whose
// time falls after the previous call and up to t, and tank-level controls
// whose condition holds for the given heads. Links is updated in place.
func (ctl *Controller) ApplyControls(t time.Duration, heads []float64, links []headloss.LinkState) []Change {
	var changes []Change
	for _, b := range ctl.timed {
		if !ctl.due(b.ctrl, t) {
			continue
		}
		if ch, ok := ctl.checker.apply(links, b, t); ok {
			changes = append(changes, ch)
		}
	}

	conv := ctl.checker.eval.Converter()
	for _, b := range ctl.levels {
		node := ctl.checker.net.NodeAt(b.node)
		level := heads[b.node] - ctl.checker.elev[b.node]
		if !triggered(b.ctrl.Trigger, level, conv.LengthIn(b.ctrl.Value)) {
			continue
		}
		if ch, ok := ctl.checker.apply(links, b, t); ok {
			ch.Reason += " (" + node.ID + ")"
			changes = append(changes, ch)
		}
	}

	ctl.last, ctl.ran = t, true
	return changes
}

// due reports whether a timed control falls in (last, t], or [0, t] on the
// first call
func (ctl *Controller) due(ctrl network.Control, t time.Duration) bool {
	at := time.Duration(ctrl.Seconds) * time.Second
	after := func(x time.Duration) bool {
		if !ctl.ran {
			return x >= 0
		}
		return x > ctl.last
	}

	if ctrl.Trigger == network.TriggerTime {
		return after(at) && at <= t
	}
	// clock time: the first elapsed time at which the clock reads at
	first := (at - ctl.start) % day
	if first < 0 {
		first += day
	}
	for x := first; x <= t; x += day {
		if after(x) {
			return true
		}
	}
	return false
}
