package hydraulics

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConverged is wrapped by a ConvergenceError when the trial limit
	// is reached and the unbalanced policy is STOP
	ErrNotConverged = errors.New("solution did not converge")

	// ErrTrialBudget is wrapped by a ConvergenceError when the total trial
	// budget across status changes runs out
	ErrTrialBudget = errors.New("total trial budget exhausted")

	// ErrStatusOscillation means a link kept changing status between trials
	ErrStatusOscillation = errors.New("link status oscillation")

	// ErrSingularSystem means the linear system could not be factorized
	ErrSingularSystem = errors.New("singular hydraulic system")
)

// ConvergenceError reports a solve that stopped without meeting the accuracy
type ConvergenceError struct {
	Trials        int
	RelativeError float64

	// Link is the link with the largest flow correction in the last trial
	Link  string
	Cause error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("hydraulics: %v after %d trials (relative error %.3g", e.Cause, e.Trials, e.RelativeError)
	if e.Link != "" {
		msg += ", largest change at link " + e.Link
	}
	return msg + ")"
}

func (e *ConvergenceError) Unwrap() error {
	return e.Cause
}
