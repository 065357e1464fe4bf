// Package resilience computes network resilience indices from solved steps.
package resilience

import (
	"errors"
	"fmt"
	"math"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// ErrNoSurplus is returned when the network has no power to dissipate
// above the required heads, so the index is undefined.
var ErrNoSurplus = errors.New("no surplus power above required head")

// Todini returns the Todini resilience index of a step: the surplus power
// delivered at junctions over the largest surplus the sources could
// deliver. requiredPressure is in the network's pressure units.
//
// Sources are reservoirs and pumps. Isolated junctions are skipped.
func Todini(step *results.Step, net *network.Network, requiredPressure float64) (float64, error) {
	if step == nil {
		return 0, errors.New("todini: nil step")
	}
	conv := net.Converter()
	required := conv.LengthOut(conv.PressureIn(requiredPressure))

	var delivered, minimum, supplied float64
	for _, node := range net.Nodes() {
		nr, ok := step.Nodes[node.ID]
		if !ok {
			return 0, &network.NotFoundError{Entity: "node", ID: node.ID}
		}
		switch node.Kind {
		case network.Junction:
			if nr.Isolated {
				continue
			}
			delivered += nr.Demand * nr.Head
			minimum += nr.Demand * (node.Elevation + required)
		case network.Reservoir:
			// net inflow, so supply is negative
			supplied += -nr.Demand * nr.Head
		}
	}
	for _, link := range net.LinksOf(network.Pump) {
		lr, ok := step.Links[link.ID]
		if !ok {
			return 0, &network.NotFoundError{Entity: "link", ID: link.ID}
		}
		if lr.Status != network.Closed && lr.Flow > 0 {
			supplied += lr.Flow * -lr.HeadLoss
		}
	}

	denom := supplied - minimum
	if math.Abs(denom) < 1e-12 {
		return 0, fmt.Errorf("todini at %s: %w", step.Time, ErrNoSurplus)
	}
	return (delivered - minimum) / denom, nil
}

// Series returns the index of every step of a simulation
func Series(sim *results.Simulation, net *network.Network, requiredPressure float64) ([]float64, error) {
	out := make([]float64, len(sim.Steps))
	for i, step := range sim.Steps {
		v, err := Todini(step, net, requiredPressure)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
