package network

import (
	"fmt"
	"strings"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

// HeadlossFormula selects the pipe friction model
type HeadlossFormula string

const (
	HazenWilliams HeadlossFormula = "H-W"
	DarcyWeisbach HeadlossFormula = "D-W"
	ChezyManning  HeadlossFormula = "C-M"
)

// ParseHeadloss parses H-W, D-W or C-M.
func ParseHeadloss(s string) (HeadlossFormula, error) {
	f := HeadlossFormula(strings.ToUpper(s))
	switch f {
	case HazenWilliams, DarcyWeisbach, ChezyManning:
		return f, nil
	}
	return "", fmt.Errorf("unknown headloss formula %q", s)
}

// UnbalancedPolicy says what to do when Trials is exhausted.
// STOP fails the solve; CONTINUE runs ExtraTrials more with link statuses
// frozen and returns the best iterate tagged as unbalanced.
type UnbalancedPolicy struct {
	Continue    bool
	ExtraTrials int
}

func (p UnbalancedPolicy) String() string {
	if !p.Continue {
		return "STOP"
	}
	return fmt.Sprintf("CONTINUE %d", p.ExtraTrials)
}

// ParseUnbalanced parses "STOP", "CONTINUE" or "CONTINUE n".
func ParseUnbalanced(fields []string) (UnbalancedPolicy, error) {
	if len(fields) == 0 {
		return UnbalancedPolicy{}, fmt.Errorf("missing unbalanced policy")
	}
	switch strings.ToUpper(fields[0]) {
	case "STOP":
		return UnbalancedPolicy{}, nil
	case "CONTINUE":
		p := UnbalancedPolicy{Continue: true}
		if len(fields) > 1 {
			if _, err := fmt.Sscanf(fields[1], "%d", &p.ExtraTrials); err != nil || p.ExtraTrials < 0 {
				return UnbalancedPolicy{}, fmt.Errorf("invalid CONTINUE trial count %q", fields[1])
			}
		}
		return p, nil
	}
	return UnbalancedPolicy{}, fmt.Errorf("unknown unbalanced policy %q", fields[0])
}

// Options is the process-wide hydraulic configuration of one run
type Options struct {
	Units            units.FlowUnits
	Headloss         HeadlossFormula
	SpecificGravity  float64
	Viscosity        float64 // relative to water at 20 °C
	Trials           int
	Accuracy         float64
	Unbalanced       UnbalancedPolicy
	Pattern          string // default demand pattern
	DemandMultiplier float64
	CheckFreq        int
	MaxCheck         int
	DampLimit        float64
	// Extra keeps options the hydraulic core does not interpret (QUALITY, DIFFUSIVITY, ...)
	Extra map[string]string
}

// DefaultOptions returns the defaults used when a file omits an option
func DefaultOptions() Options {
	return Options{
		Units:            units.GPM,
		Headloss:         HazenWilliams,
		SpecificGravity:  1.0,
		Viscosity:        1.0,
		Trials:           40,
		Accuracy:         0.001,
		Unbalanced:       UnbalancedPolicy{},
		Pattern:          "",
		DemandMultiplier: 1.0,
		CheckFreq:        2,
		MaxCheck:         10,
		DampLimit:        0,
		Extra:            map[string]string{},
	}
}

// Times holds the TIMES section
type Times struct {
	Duration      time.Duration
	HydraulicStep time.Duration
	QualityStep   time.Duration
	PatternStep   time.Duration
	PatternStart  time.Duration
	ReportStep    time.Duration
	ReportStart   time.Duration
	StartClock    time.Duration
	Statistic     string
}

// DefaultTimes returns a single-period run with hourly steps
func DefaultTimes() Times {
	return Times{
		HydraulicStep: time.Hour,
		QualityStep:   5 * time.Minute,
		PatternStep:   time.Hour,
		ReportStep:    time.Hour,
		Statistic:     "NONE",
	}
}

// Energy holds the ENERGY section
type Energy struct {
	GlobalEfficiency float64 // percent
	GlobalPrice      float64
	GlobalPattern    string
	DemandCharge     float64
	Pumps            map[string]PumpEnergy
}

// PumpEnergy overrides the global energy settings for one pump
type PumpEnergy struct {
	Efficiency      float64
	EfficiencyCurve string
	Price           float64
	PricePattern    string
}

// DefaultEnergy returns 75 % efficiency and no pricing
func DefaultEnergy() Energy {
	return Energy{GlobalEfficiency: 75, Pumps: map[string]PumpEnergy{}}
}
