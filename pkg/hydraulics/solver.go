// Package hydraulics computes steady-state flows and heads with the global
// gradient method: every trial linearizes the head-loss laws around the
// current flows, solves the node-head system and corrects the flows.
// Discrete link states are checked between trials until the solution and
// the statuses agree.
package hydraulics

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/dd0wney/cluso-hydraulics/pkg/control"
	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
	"github.com/dd0wney/cluso-hydraulics/pkg/metrics"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// Options tunes a Solver. Trials, accuracy, CHECKFREQ, MAXCHECK and the
// unbalanced policy come from the network options.
type Options struct {
	Headloss headloss.Options

	// MaxStatusFlips is how many times one link may change status in a
	// solve before it is an oscillation
	MaxStatusFlips int

	// MaxTotalTrials bounds the trials of a solve across all status
	// configurations; 0 derives it from the network options
	MaxTotalTrials int

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		Headloss:       headloss.DefaultOptions(),
		MaxStatusFlips: 20,
	}
}

// dampFactor relaxes flow corrections once the error is below DAMPLIMIT
const dampFactor = 0.6

// Solver solves one network. It is safe for concurrent use; each Solve owns
// its working state.
type Solver struct {
	net     *network.Network
	eval    *headloss.Evaluator
	checker *control.Checker
	opts    Options
	logger  logging.Logger

	from, to []int
	elev     []float64 // ft
	fixed    []bool
}

// New precomputes the head-loss coefficients and the status checker
func New(net *network.Network, opts Options) (*Solver, error) {
	if opts.MaxStatusFlips <= 0 {
		opts.MaxStatusFlips = DefaultOptions().MaxStatusFlips
	}
	if opts.Headloss == (headloss.Options{}) {
		opts.Headloss = headloss.DefaultOptions()
	}
	eval, err := headloss.New(net, opts.Headloss)
	if err != nil {
		return nil, err
	}
	checker, err := control.NewChecker(net, eval)
	if err != nil {
		return nil, err
	}

	s := &Solver{
		net:     net,
		eval:    eval,
		checker: checker,
		opts:    opts,
		logger:  logging.OrDefault(opts.Logger).With(logging.Component("hydraulics")),
		from:    make([]int, net.NumLinks()),
		to:      make([]int, net.NumLinks()),
		elev:    make([]float64, net.NumNodes()),
		fixed:   make([]bool, net.NumNodes()),
	}
	conv := eval.Converter()
	for i, node := range net.Nodes() {
		s.elev[i] = conv.LengthIn(node.Elevation)
		s.fixed[i] = node.Kind.FixedHead()
	}
	for i := range net.Links() {
		s.from[i], s.to[i] = checker.Endpoints(i)
	}
	return s, nil
}

// Network returns the network being solved
func (s *Solver) Network() *network.Network { return s.net }

// Evaluator returns the head-loss evaluator the solver uses
func (s *Solver) Evaluator() *headloss.Evaluator { return s.eval }

// Checker returns the status checker the solver uses
func (s *Solver) Checker() *control.Checker { return s.checker }

// Solve iterates until the flows converge and no status check changes a
// link. A solve that runs out of trials is returned as Unbalanced when the
// policy is CONTINUE and fails with a *ConvergenceError when it is STOP.
func (s *Solver) Solve(ctx context.Context, cond Conditions) (*Result, error) {
	timer := logging.StartTimer(s.logger, "hydraulic solve")
	r, err := s.newRun(cond)
	if err != nil {
		timer.EndError(err)
		return nil, err
	}

	res, err := r.iterate(ctx)
	if m := s.opts.Metrics; m != nil {
		status, trials, relErr := Failed, r.total, r.relErr
		if res != nil {
			status = res.Status
		}
		m.RecordSolve(status.String(), trials, relErr, timer.Elapsed())
		for _, ch := range r.changes {
			m.RecordStatusChange(changeClass(ch))
		}
		if res != nil {
			m.IsolatedJunctions.Set(float64(countTrue(res.Isolated)))
			for _, f := range res.Flags {
				if f&headloss.PumpOverflow != 0 {
					m.PumpOverflowsTotal.Inc()
				}
			}
		}
	}
	if err != nil {
		timer.EndError(err, logging.Trial(r.total))
		return nil, err
	}
	if res.Status == Unbalanced {
		timer.EndWarn("hydraulic solve unbalanced", logging.Trial(res.Trials), logging.RelativeError(res.RelativeError))
	} else {
		timer.End(logging.Trial(res.Trials), logging.RelativeError(res.RelativeError))
	}
	return res, nil
}

func changeClass(ch control.Change) string {
	switch {
	case strings.HasPrefix(ch.Reason, "control"):
		return "control"
	case ch.After.Hold != headloss.HoldNone:
		return ch.After.Hold.String()
	case ch.Before.Hold != headloss.HoldNone:
		return ch.Before.Hold.String()
	}
	return "valve regulation"
}

func countTrue(v []bool) int {
	n := 0
	for _, b := range v {
		if b {
			n++
		}
	}
	return n
}

// role is how a link enters the linear system in a given configuration
type role uint8

const (
	roleOff role = iota // zero flow
	roleLoss            // follows its head-loss law
	rolePRV             // fixes the head downstream
	rolePSV             // fixes the head upstream
	roleFCV             // fixes the flow
)

// run is the working state of one Solve
type run struct {
	s      *Solver
	status Status

	heads  []float64
	flows  []float64
	links  []headloss.LinkState
	demand []float64 // as given
	used   []float64 // applied: zero at fixed and isolated nodes

	isolated []bool
	row      []int // matrix row of each node, -1 when the head is known
	roles    []role
	flips    []int

	a      *mat.SymDense
	rhs    []float64
	p      []float64
	c      []float64
	hset   []float64 // controlled head of active PRV/PSV, ft
	trials int       // in the current status configuration
	total  int
	relErr float64
	worst  int // link with the largest correction

	changes  []control.Change
	warnings []string
}

func (s *Solver) newRun(cond Conditions) (*run, error) {
	nn, nl := s.net.NumNodes(), s.net.NumLinks()
	if len(cond.Demands) != nn || len(cond.Heads) != nn {
		return nil, fmt.Errorf("hydraulics: conditions sized for %d/%d nodes, network has %d",
			len(cond.Demands), len(cond.Heads), nn)
	}
	r := &run{
		s:        s,
		heads:    make([]float64, nn),
		flows:    make([]float64, nl),
		links:    make([]headloss.LinkState, nl),
		demand:   cond.Demands,
		used:     make([]float64, nn),
		isolated: make([]bool, nn),
		row:      make([]int, nn),
		roles:    make([]role, nl),
		flips:    make([]int, nl),
		p:        make([]float64, nl),
		c:        make([]float64, nl),
		hset:     make([]float64, nl),
		worst:    -1,
	}

	warm := cond.Warm
	if warm != nil && (len(warm.Heads) != nn || len(warm.Flows) != nl || len(warm.Links) != nl) {
		warm = nil
	}
	switch {
	case cond.Links != nil:
		if len(cond.Links) != nl {
			return nil, fmt.Errorf("hydraulics: %d link states for %d links", len(cond.Links), nl)
		}
		copy(r.links, cond.Links)
	case warm != nil:
		copy(r.links, warm.Links)
	default:
		for i := range r.links {
			r.links[i] = s.eval.DefaultState(i)
		}
	}

	for i := range r.heads {
		switch {
		case s.fixed[i]:
			r.heads[i] = cond.Heads[i]
		case warm != nil:
			r.heads[i] = warm.Heads[i]
		default:
			r.heads[i] = s.elev[i]
		}
	}
	for k := range r.flows {
		// links reopened since the warm solution start from scratch
		reopened := warm != nil && warm.Links[k].Status == network.Closed && r.links[k].Status != network.Closed
		if warm != nil && !reopened {
			r.flows[k] = warm.Flows[k]
		} else {
			r.flows[k] = s.eval.InitialFlow(k, r.links[k])
		}
	}
	return r, nil
}

func (r *run) iterate(ctx context.Context) (*Result, error) {
	s := r.s
	opts := s.net.Options
	maxTrials := max(opts.Trials, 1)
	checkFreq := max(opts.CheckFreq, 1)
	maxCheck := max(opts.MaxCheck, 0)
	maxTotal := s.opts.MaxTotalTrials
	if maxTotal <= 0 {
		maxTotal = maxTrials*(maxCheck+2) + opts.Unbalanced.ExtraTrials
	}

	r.status = Iterating
	r.configure()

	var best *State
	bestErr := math.Inf(1)
	extra := -1 // trials left once the policy allows continuing
	rounds := 0 // status rounds after convergence

	for {
		if err := ctx.Err(); err != nil {
			r.status = Failed
			return nil, fmt.Errorf("hydraulics: solve canceled after %d trials: %w", r.total, err)
		}
		if r.total >= maxTotal {
			r.status = Failed
			return nil, r.convergenceError(ErrTrialBudget)
		}

		if err := r.trial(); err != nil {
			r.status = Failed
			return nil, err
		}
		if s.logger.GetLevel() <= logging.DebugLevel {
			s.logger.Debug("trial", logging.Trial(r.total), logging.RelativeError(r.relErr))
		}
		converged := r.relErr <= opts.Accuracy

		if extra >= 0 {
			extra--
			if r.relErr < bestErr {
				best, bestErr = r.snapshot(), r.relErr
			}
			if converged || extra <= 0 {
				r.status = Unbalanced
				return r.result(best, bestErr), nil
			}
			continue
		}

		if converged {
			snap := r.view()
			changes := s.checker.CheckStatus(snap)
			changes = append(changes, s.checker.PressureSwitches(snap)...)
			if len(changes) == 0 {
				r.status = Converged
				return r.result(nil, r.relErr), nil
			}
			rounds++
			if rounds > maxCheck {
				r.status = Failed
				return nil, fmt.Errorf("%w: statuses still changing after %d checks at convergence",
					ErrStatusOscillation, rounds-1)
			}
			if err := r.accept(changes); err != nil {
				return nil, err
			}
			continue
		}

		if r.trials >= maxTrials {
			if !opts.Unbalanced.Continue {
				r.status = Failed
				return nil, r.convergenceError(ErrNotConverged)
			}
			s.logger.Warn("trial limit reached, continuing with statuses frozen",
				logging.Trial(r.total), logging.RelativeError(r.relErr),
				logging.Int("extra_trials", opts.Unbalanced.ExtraTrials))
			best, bestErr = r.snapshot(), r.relErr
			extra = opts.Unbalanced.ExtraTrials
			if extra <= 0 {
				r.status = Unbalanced
				return r.result(best, bestErr), nil
			}
			continue
		}

		snap := r.view()
		changes := s.checker.Valves(snap)
		if r.trials%checkFreq == 0 && r.trials <= maxCheck {
			changes = append(changes, s.checker.Links(snap)...)
		}
		if len(changes) > 0 {
			if err := r.accept(changes); err != nil {
				return nil, err
			}
		}
	}
}

func (r *run) view() control.Snapshot {
	return control.Snapshot{Heads: r.heads, Flows: r.flows, Links: r.links}
}

func (r *run) snapshot() *State {
	return (&State{Heads: r.heads, Flows: r.flows, Links: r.links}).Clone()
}

// accept records status changes made by the checks, guards against links
// that keep flipping and starts a new status configuration
func (r *run) accept(changes []control.Change) error {
	for _, ch := range changes {
		r.flips[ch.Index]++
		r.s.logger.Debug("status change", logging.LinkID(ch.Link),
			logging.String("status", ch.After.Status.String()), logging.String("reason", ch.Reason))
		if r.flips[ch.Index] > r.s.opts.MaxStatusFlips {
			r.status = Failed
			return fmt.Errorf("%w: link %s changed status %d times", ErrStatusOscillation, ch.Link, r.flips[ch.Index])
		}
	}
	r.changes = append(r.changes, changes...)
	r.trials = 0
	r.configure()
	for _, ch := range changes {
		if ch.Before.Status == network.Closed && r.roles[ch.Index] != roleOff {
			r.flows[ch.Index] = r.s.eval.InitialFlow(ch.Index, r.links[ch.Index])
		}
	}
	return nil
}

func (r *run) result(best *State, relErr float64) *Result {
	s := r.s
	state := best
	if state == nil {
		state = r.snapshot()
	}
	res := &Result{
		Status:        r.status,
		Trials:        r.total,
		RelativeError: relErr,
		State:         state,
		Demands:       append([]float64(nil), r.used...),
		Isolated:      append([]bool(nil), r.isolated...),
		Flags:         make([]headloss.Flags, len(r.flows)),
		Changes:       r.changes,
	}

	for i, iso := range r.isolated {
		if iso && !s.fixed[i] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("junction %s is isolated", s.net.NodeAt(i).ID))
		}
	}
	for k, ro := range r.roles {
		if ro != roleLoss {
			continue
		}
		res.Flags[k] = s.eval.At(k, state.Flows[k], r.lossState(k)).Flags
		if res.Flags[k]&headloss.PumpOverflow != 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("pump %s is running past the end of its curve", s.net.LinkAt(k).ID))
		}
	}
	switch {
	case r.status == Unbalanced && relErr <= s.net.Options.Accuracy:
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"system unbalanced: accuracy reached after the trial limit with statuses frozen (%d trials, relative error %.3g)",
			r.total, relErr))
	case r.status == Unbalanced:
		res.Warnings = append(res.Warnings, fmt.Sprintf("system unbalanced after %d trials (relative error %.3g)", r.total, relErr))
	}
	return res
}

func (r *run) convergenceError(cause error) error {
	e := &ConvergenceError{Trials: r.total, RelativeError: r.relErr, Cause: cause}
	if r.worst >= 0 {
		e.Link = r.s.net.LinkAt(r.worst).ID
	}
	return e
}

// usable reports whether link k can carry flow in the current configuration
func (r *run) usable(k int) bool {
	st := r.links[k]
	if st.Status == network.Closed {
		return false
	}
	return r.s.net.LinkAt(k).Kind != network.Pump || st.Setting > 0
}

// configure finds isolated junctions, numbers the unknown heads and assigns
// each link its role for the current statuses
func (r *run) configure() {
	s := r.s
	for i := range r.isolated {
		r.isolated[i] = false
	}
	for _, i := range s.net.IsolatedNodes(r.usable) {
		r.isolated[i] = true
		r.heads[i] = s.elev[i]
	}

	n := 0
	for i := range r.row {
		r.used[i] = 0
		if s.fixed[i] || r.isolated[i] {
			r.row[i] = -1
			continue
		}
		r.row[i] = n
		r.used[i] = r.demand[i]
		n++
	}

	for k := range r.roles {
		i, j := s.from[k], s.to[k]
		switch {
		case r.isolated[i] || r.isolated[j] || !r.usable(k):
			r.roles[k] = roleOff
		default:
			r.roles[k] = r.activeRole(k)
		}
		if r.roles[k] == roleOff {
			r.flows[k] = 0
		}
	}

	if r.a == nil || r.a.SymmetricDim() != n {
		if n > 0 {
			r.a = mat.NewSymDense(n, nil)
		} else {
			r.a = nil
		}
		r.rhs = make([]float64, n)
	}
}

func (r *run) activeRole(k int) role {
	link := r.s.net.LinkAt(k)
	st := r.links[k]
	if link.Kind != network.Valve || st.Status != network.Active {
		return roleLoss
	}
	i, j := r.s.from[k], r.s.to[k]
	switch link.Valve.Type {
	case network.PRV:
		if r.row[j] >= 0 {
			r.hset[k] = r.s.elev[j] + st.Setting
			return rolePRV
		}
	case network.PSV:
		if r.row[i] >= 0 {
			r.hset[k] = r.s.elev[i] + st.Setting
			return rolePSV
		}
	case network.FCV:
		return roleFCV
	}
	return roleLoss
}

// lossState is the state a link is evaluated in when it follows its
// head-loss law; active pressure valves that cannot regulate act as open
func (r *run) lossState(k int) headloss.LinkState {
	st := r.links[k]
	if st.Status == network.Active {
		link := r.s.net.LinkAt(k)
		if link.Kind == network.Valve {
			switch link.Valve.Type {
			case network.PRV, network.PSV, network.FCV:
				st.Status = network.Open
			}
		}
	}
	return st
}
