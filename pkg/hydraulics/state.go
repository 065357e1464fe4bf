package hydraulics

import (
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-hydraulics/pkg/control"
	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
)

// Status is the state of a solve: Initializing, then Iterating, ending in
// Converged, Unbalanced or Failed
type Status int

const (
	Initializing Status = iota
	Iterating
	Converged
	Unbalanced
	Failed
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Unbalanced:
		return "unbalanced"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status for JSON and YAML results
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for _, v := range []Status{Initializing, Iterating, Converged, Unbalanced, Failed} {
		if strings.EqualFold(v.String(), string(b)) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown solve status %q", b)
}

// State is a solution in internal units. It can seed the next solve.
type State struct {
	Heads []float64 // ft, by node index
	Flows []float64 // cfs, by link index
	Links []headloss.LinkState
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return &State{
		Heads: append([]float64(nil), s.Heads...),
		Flows: append([]float64(nil), s.Flows...),
		Links: append([]headloss.LinkState(nil), s.Links...),
	}
}

// Conditions are the boundary values of one solve, in internal units
type Conditions struct {
	// Demands in cfs by node index; entries of reservoirs and tanks are ignored
	Demands []float64
	// Heads in ft by node index; only reservoir and tank entries are used
	Heads []float64
	// Links is the starting link state; nil takes it from Warm or the network
	Links []headloss.LinkState
	// Warm is a previous solution to start from
	Warm *State
}

// Result is the outcome of a solve that did not fail
type Result struct {
	Status        Status
	Trials        int
	RelativeError float64
	State         *State

	// Demands actually applied in cfs; zero at isolated junctions
	Demands  []float64
	Isolated []bool
	Flags    []headloss.Flags
	Changes  []control.Change
	Warnings []string
}
