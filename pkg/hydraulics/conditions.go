package hydraulics

import (
	"context"

	"github.com/dd0wney/cluso-hydraulics/pkg/demand"
	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// Conditions builds the boundary values of one pattern period: junction
// demands, reservoir heads scaled by their patterns, and tank heads. tankHeads
// holds tank heads in ft by node index; nil starts every tank at its
// initial level.
func (s *Solver) Conditions(res *demand.Resolver, period int, tankHeads []float64) (Conditions, error) {
	conv := s.eval.Converter()
	nn := s.net.NumNodes()
	cond := Conditions{
		Demands: make([]float64, nn),
		Heads:   make([]float64, nn),
	}
	if err := res.DemandVector(period, cond.Demands); err != nil {
		return Conditions{}, err
	}
	for i, node := range s.net.Nodes() {
		cond.Demands[i] = conv.FlowIn(cond.Demands[i])
		switch node.Kind {
		case network.Reservoir:
			h, err := res.ReservoirHeadAt(node.ID, period)
			if err != nil {
				return Conditions{}, err
			}
			cond.Heads[i] = conv.LengthIn(h)
		case network.Tank:
			if tankHeads != nil {
				cond.Heads[i] = tankHeads[i]
			} else {
				cond.Heads[i] = conv.LengthIn(node.Elevation + node.InitLevel)
			}
		}
	}
	return cond, nil
}

// ApplySpeeds sets the speed of every pump with a speed pattern for a
// period. A zero speed closes the pump; a pump closed by the user or a
// control at a nonzero speed stays closed.
func (s *Solver) ApplySpeeds(res *demand.Resolver, period int, links []headloss.LinkState) error {
	for k, link := range s.net.Links() {
		if link.Kind != network.Pump || link.Pump.SpeedPattern == "" {
			continue
		}
		speed, err := res.PumpSpeedAt(link.ID, period)
		if err != nil {
			return err
		}
		st := &links[k]
		prev := st.Setting
		st.Setting = speed
		switch {
		case speed <= 0:
			st.Status, st.Hold = network.Closed, headloss.HoldNone
		case st.Status == network.Closed && st.Hold == headloss.HoldNone && prev > 0:
			// closed by the user or a control
		default:
			st.Status, st.Hold = network.Open, headloss.HoldNone
		}
	}
	return nil
}

// Steady solves the network at time zero with its initial tank levels
func (s *Solver) Steady(ctx context.Context) (*Result, error) {
	res, err := demand.NewResolver(s.net)
	if err != nil {
		return nil, err
	}
	period := res.PeriodAt(0)
	cond, err := s.Conditions(res, period, nil)
	if err != nil {
		return nil, err
	}
	cond.Links = make([]headloss.LinkState, s.net.NumLinks())
	for k := range cond.Links {
		cond.Links[k] = s.eval.DefaultState(k)
	}
	if err := s.ApplySpeeds(res, period, cond.Links); err != nil {
		return nil, err
	}
	return s.Solve(ctx, cond)
}
