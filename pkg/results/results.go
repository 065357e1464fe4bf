// Package results holds solved time steps in user units and the archive
// formats they are written in.
package results

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-hydraulics/pkg/control"
	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

// powerCoeff converts cfs × ft of lift to horsepower for water
const powerCoeff = 8.814

// NodeResult is the solved state of a node. Demand at a reservoir or tank
// is its net inflow, so supply is negative.
type NodeResult struct {
	Head     float64 `json:"head" yaml:"head"`
	Pressure float64 `json:"pressure" yaml:"pressure"`
	Demand   float64 `json:"demand" yaml:"demand"`
	Isolated bool    `json:"isolated,omitempty" yaml:"isolated,omitempty"`
}

// LinkResult is the solved state of a link. HeadLoss is the head at the
// start node minus the head at the end node; pumps report a negative loss.
type LinkResult struct {
	Flow     float64            `json:"flow" yaml:"flow"`
	Velocity float64            `json:"velocity" yaml:"velocity"`
	HeadLoss float64            `json:"headloss" yaml:"headloss"`
	Status   network.LinkStatus `json:"status" yaml:"status"`
	Setting  float64            `json:"setting,omitempty" yaml:"setting,omitempty"`
	Power    float64            `json:"power,omitempty" yaml:"power,omitempty"`
}

// Step is one solved hydraulic time step
type Step struct {
	Time          time.Duration         `json:"time" yaml:"time"`
	Status        hydraulics.Status     `json:"status" yaml:"status"`
	Trials        int                   `json:"trials" yaml:"trials"`
	RelativeError float64               `json:"relative_error" yaml:"relative_error"`
	Nodes         map[string]NodeResult `json:"nodes" yaml:"nodes"`
	Links         map[string]LinkResult `json:"links" yaml:"links"`
	Warnings      []string              `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Simulation is the result set of one run
type Simulation struct {
	RunID       uuid.UUID       `json:"run_id" yaml:"run_id"`
	Network     string          `json:"network" yaml:"network"`
	Fingerprint string          `json:"fingerprint" yaml:"fingerprint"`
	Units       units.FlowUnits `json:"units" yaml:"units"`
	Started     time.Time       `json:"started" yaml:"started"`
	Steps       []*Step         `json:"steps" yaml:"steps"`
	ControlLog  []control.Entry `json:"control_log,omitempty" yaml:"control_log,omitempty"`
}

// NewSimulation starts an empty result set for a network
func NewSimulation(net *network.Network) *Simulation {
	title := ""
	if len(net.Title) > 0 {
		title = net.Title[0]
	}
	return &Simulation{
		RunID:       uuid.New(),
		Network:     title,
		Fingerprint: net.Fingerprint(),
		Units:       net.Options.Units,
		Started:     time.Now().UTC(),
	}
}

// Last returns the final step, or nil when there is none
func (s *Simulation) Last() *Step {
	if len(s.Steps) == 0 {
		return nil
	}
	return s.Steps[len(s.Steps)-1]
}

// StepAt returns the step recorded at time t
func (s *Simulation) StepAt(t time.Duration) (*Step, bool) {
	i := sort.Search(len(s.Steps), func(i int) bool { return s.Steps[i].Time >= t })
	if i < len(s.Steps) && s.Steps[i].Time == t {
		return s.Steps[i], true
	}
	return nil, false
}

// Unbalanced counts the steps that ended unbalanced
func (s *Simulation) Unbalanced() int {
	n := 0
	for _, st := range s.Steps {
		if st.Status == hydraulics.Unbalanced {
			n++
		}
	}
	return n
}

// NewStep converts a solver result at time t to user units
func NewStep(s *hydraulics.Solver, t time.Duration, res *hydraulics.Result) *Step {
	net := s.Network()
	eval := s.Evaluator()
	conv := eval.Converter()
	state := res.State

	step := &Step{
		Time:          t,
		Status:        res.Status,
		Trials:        res.Trials,
		RelativeError: res.RelativeError,
		Nodes:         make(map[string]NodeResult, net.NumNodes()),
		Links:         make(map[string]LinkResult, net.NumLinks()),
		Warnings:      res.Warnings,
	}

	inflow := make([]float64, net.NumNodes())
	for k, link := range net.Links() {
		i, j := s.Checker().Endpoints(k)
		q := state.Flows[k]
		inflow[i] -= q
		inflow[j] += q

		dh := state.Heads[i] - state.Heads[j]
		lr := LinkResult{
			Flow:     conv.FlowOut(q),
			HeadLoss: conv.LengthOut(dh),
			Status:   state.Links[k].Status,
		}
		if d := eval.Diameter(k); d > 0 {
			lr.Velocity = conv.VelocityOut(math.Abs(q) / (math.Pi * d * d / 4))
		}
		switch link.Kind {
		case network.Pump:
			lr.Setting = state.Links[k].Setting
			if lr.Status != network.Closed && q > 0 {
				lr.Power = conv.PowerOut(q * -dh * net.Options.SpecificGravity / powerCoeff)
			}
		case network.Valve:
			lr.Setting = eval.ValveSettingOut(link.Valve.Type, state.Links[k].Setting)
		}
		step.Links[link.ID] = lr
	}

	for i, node := range net.Nodes() {
		elev := conv.LengthIn(node.Elevation)
		nr := NodeResult{
			Head:     conv.LengthOut(state.Heads[i]),
			Pressure: conv.PressureOut(state.Heads[i] - elev),
			Isolated: res.Isolated[i],
		}
		if node.Kind == network.Junction {
			nr.Demand = conv.FlowOut(res.Demands[i])
		} else {
			nr.Demand = conv.FlowOut(inflow[i])
		}
		step.Nodes[node.ID] = nr
	}
	return step
}
