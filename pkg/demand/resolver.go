// Package demand resolves time-varying junction demands, reservoir heads and
// pump speeds from base values and multiplier patterns.
package demand

import (
	"fmt"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// Resolver computes per-period values for one network. It is read-only and
// safe for concurrent use.
type Resolver struct {
	net      *network.Network
	// fallback applies to junctions without their own pattern, when the
	// PATTERN option names one
	fallback *network.Pattern
}

// NewResolver binds a resolver to a network. A PATTERN option naming a
// pattern that does not exist is a *network.ConfigError.
func NewResolver(net *network.Network) (*Resolver, error) {
	r := &Resolver{net: net}
	if id := net.Options.Pattern; id != "" {
		p, err := net.Pattern(id)
		if err != nil {
			return nil, network.MissingPattern("demand", "options", id)
		}
		r.fallback = p
	}
	return r, nil
}

// PeriodAt converts elapsed simulation time to a pattern period:
// floor((t + PatternStart) / PatternStep).
func (r *Resolver) PeriodAt(t time.Duration) int {
	step := r.net.Times.PatternStep
	if step <= 0 {
		return 0
	}
	return int((t + r.net.Times.PatternStart) / step)
}

// Multiplier returns the factor of pattern id for a period. An empty id
// means no pattern and yields 1.
func (r *Resolver) Multiplier(op, owner, id string, period int) (float64, error) {
	if id == "" {
		return 1, nil
	}
	p, err := r.net.Pattern(id)
	if err != nil {
		return 0, network.MissingPattern(op, owner, id)
	}
	return p.Multiplier(period), nil
}

// DemandAt returns base × pattern(period) × demand multiplier for a junction.
func (r *Resolver) DemandAt(junctionID string, period int) (float64, error) {
	node, err := r.net.Node(junctionID)
	if err != nil {
		return 0, err
	}
	if node.Kind != network.Junction {
		return 0, fmt.Errorf("demand: %s %q is not a junction", node.Kind, junctionID)
	}
	return r.demandOf(node, period)
}

func (r *Resolver) demandOf(node *network.Node, period int) (float64, error) {
	var mult float64
	switch {
	case node.DemandPattern != "":
		m, err := r.Multiplier("demand", "junction "+node.ID, node.DemandPattern, period)
		if err != nil {
			return 0, err
		}
		mult = m
	case r.fallback != nil:
		mult = r.fallback.Multiplier(period)
	default:
		mult = 1
	}
	return node.BaseDemand * mult * r.net.Options.DemandMultiplier, nil
}

// Demands returns the demand of every junction for a period, in user units.
func (r *Resolver) Demands(period int) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, node := range r.net.Nodes() {
		if node.Kind != network.Junction {
			continue
		}
		d, err := r.demandOf(node, period)
		if err != nil {
			return nil, err
		}
		out[node.ID] = d
	}
	return out, nil
}

// DemandVector fills dst, indexed like the network's nodes, with junction
// demands for a period; other nodes get zero.
func (r *Resolver) DemandVector(period int, dst []float64) error {
	for i, node := range r.net.Nodes() {
		dst[i] = 0
		if node.Kind != network.Junction {
			continue
		}
		d, err := r.demandOf(node, period)
		if err != nil {
			return err
		}
		dst[i] = d
	}
	return nil
}

// ReservoirHeadAt returns the reservoir head scaled by its head pattern.
func (r *Resolver) ReservoirHeadAt(id string, period int) (float64, error) {
	node, err := r.net.Node(id)
	if err != nil {
		return 0, err
	}
	if node.Kind != network.Reservoir {
		return 0, fmt.Errorf("head: %s %q is not a reservoir", node.Kind, id)
	}
	m, err := r.Multiplier("head", "reservoir "+id, node.HeadPattern, period)
	if err != nil {
		return 0, err
	}
	return node.Head * m, nil
}

// PumpSpeedAt returns the relative speed of a pump for a period. A speed
// pattern replaces the base speed.
func (r *Resolver) PumpSpeedAt(id string, period int) (float64, error) {
	link, err := r.net.Link(id)
	if err != nil {
		return 0, err
	}
	if link.Kind != network.Pump {
		return 0, fmt.Errorf("speed: %s %q is not a pump", link.Kind, id)
	}
	if link.Pump.SpeedPattern == "" {
		return link.Pump.Speed, nil
	}
	return r.Multiplier("speed", "pump "+id, link.Pump.SpeedPattern, period)
}
