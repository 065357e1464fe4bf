package api

import (
	"context"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/health"
	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
)

// referenceNetwork is solved by the readiness probe
const referenceNetwork = `
[TITLE]
readiness probe
[JUNCTIONS]
 J1  50  2
 J2  40  1
[RESERVOIRS]
 R   150
[PIPES]
 P1  R   J1  1000  12  100  0  Open
 P2  J1  J2  1000  8   100  0  Open
[OPTIONS]
 Units  CFS
[END]
`

func (s *Server) registerChecks() {
	s.health.RegisterLivenessCheck("memory", health.MemoryCheck(0))
	s.health.RegisterReadinessCheck("solver", health.SolverCheck(referenceSolve, time.Second))
}

func referenceSolve(ctx context.Context) (int, error) {
	nop := logging.NewNopLogger()
	net, err := inp.LoadString(referenceNetwork, inp.LoadOptions{Logger: nop})
	if err != nil {
		return 0, err
	}
	opts := hydraulics.DefaultOptions()
	opts.Logger = nop
	solver, err := hydraulics.New(net, opts)
	if err != nil {
		return 0, err
	}
	res, err := solver.Steady(ctx)
	if err != nil {
		return 0, err
	}
	return res.Trials, nil
}
