package hydraulics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
)

// trial runs one Newton step: assemble A·H = F, solve for the unknown
// heads, then correct every flow. For a link following its head-loss law
// with p = 1/h'(Q) and y = p·h(Q) the new flow is Q − y + p·(Hfrom − Hto),
// which satisfies continuity at every unknown node exactly.
func (r *run) trial() error {
	r.total++
	r.trials++
	r.assemble()
	if err := r.solveHeads(); err != nil {
		return err
	}
	r.updateFlows()
	return nil
}

func (r *run) assemble() {
	s := r.s
	for i := range r.rhs {
		r.rhs[i] = 0
	}
	if r.a != nil {
		r.a.Zero()
	}
	for i, row := range r.row {
		if row >= 0 {
			r.rhs[row] = -r.used[i]
		}
	}

	for k, ro := range r.roles {
		switch ro {
		case roleOff:
			continue
		case roleLoss:
			loss := s.eval.At(k, r.flows[k], r.lossState(k))
			if loss.Constrained {
				r.roles[k] = roleOff
				r.flows[k] = 0
				continue
			}
			p := 1 / loss.Gradient
			r.p[k] = p
			r.c[k] = r.flows[k] - p*loss.Head
		case roleFCV:
			r.p[k] = 1 / headloss.BigResistance
			r.c[k] = r.links[k].Setting
		case rolePRV, rolePSV:
			r.p[k] = 1 / headloss.BigResistance
			r.c[k] = r.flows[k]
			node := s.to[k]
			if ro == rolePSV {
				node = s.from[k]
			}
			row := r.row[node]
			r.a.SetSym(row, row, r.a.At(row, row)+headloss.BigResistance)
			r.rhs[row] += headloss.BigResistance * r.hset[k]
		}
		r.stamp(k)
	}
}

// stamp adds link k to the node equations
// (Σp)·Hi − Σ p·Hj = −Di + Σin c − Σout c
func (r *run) stamp(k int) {
	i, j := r.s.from[k], r.s.to[k]
	ri, rj := r.row[i], r.row[j]
	p, c := r.p[k], r.c[k]
	if ri >= 0 {
		r.a.SetSym(ri, ri, r.a.At(ri, ri)+p)
		r.rhs[ri] -= c
	}
	if rj >= 0 {
		r.a.SetSym(rj, rj, r.a.At(rj, rj)+p)
		r.rhs[rj] += c
	}
	switch {
	case ri >= 0 && rj >= 0:
		r.a.SetSym(ri, rj, r.a.At(ri, rj)-p)
	case ri >= 0:
		r.rhs[ri] += p * r.heads[j]
	case rj >= 0:
		r.rhs[rj] += p * r.heads[i]
	}
}

func (r *run) solveHeads() error {
	n := len(r.rhs)
	if n == 0 {
		return nil
	}
	var ch mat.Cholesky
	if ok := ch.Factorize(r.a); !ok {
		return fmt.Errorf("%w at trial %d: matrix is not positive definite", ErrSingularSystem, r.total)
	}
	x := mat.NewVecDense(n, nil)
	if err := ch.SolveVecTo(x, mat.NewVecDense(n, r.rhs)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return fmt.Errorf("%w at trial %d: %v", ErrSingularSystem, r.total, err)
		}
		r.s.logger.Debug("ill-conditioned system", logging.Trial(r.total), logging.Float64("condition", float64(cond)))
	}
	for i, row := range r.row {
		if row >= 0 {
			r.heads[i] = x.AtVec(row)
		}
	}
	return nil
}

// updateFlows applies the flow corrections and measures the relative change
// as the larger of Σ|ΔQ|/Σ|Q| and max|ΔQ|/max|Q|.
func (r *run) updateFlows() {
	s := r.s
	next := make([]float64, len(r.flows))
	// net inflow at each node through links that are not pressure valves
	inflow := make([]float64, len(r.heads))
	regulated := make([]int, len(r.heads))

	for k, ro := range r.roles {
		i, j := s.from[k], s.to[k]
		switch ro {
		case roleLoss, roleFCV:
			// an active FCV passes setting + p·ΔH, matching its stamp
			next[k] = r.c[k] + r.p[k]*(r.heads[i]-r.heads[j])
		case rolePRV:
			regulated[j]++
			continue
		case rolePSV:
			regulated[i]++
			continue
		default:
			continue
		}
		inflow[i] -= next[k]
		inflow[j] += next[k]
	}

	// pressure valves carry whatever balances their controlled node
	for k, ro := range r.roles {
		switch ro {
		case rolePRV:
			j := s.to[k]
			next[k] = (r.used[j] - inflow[j]) / float64(regulated[j])
		case rolePSV:
			i := s.from[k]
			next[k] = (inflow[i] - r.used[i]) / float64(regulated[i])
		}
	}

	damp := s.net.Options.DampLimit > 0 && r.relErr > 0 && r.relErr < s.net.Options.DampLimit
	var sumDQ, sumQ, maxDQ, maxQ float64
	r.worst = -1
	for k := range r.flows {
		dq := next[k] - r.flows[k]
		if damp && r.roles[k] != roleOff {
			dq *= dampFactor
		}
		q := r.flows[k] + dq
		r.flows[k] = q

		adq := math.Abs(dq)
		sumDQ += adq
		sumQ += math.Abs(q)
		if adq > maxDQ {
			maxDQ, r.worst = adq, k
		}
		maxQ = math.Max(maxQ, math.Abs(q))
	}
	r.relErr = math.Max(ratio(sumDQ, sumQ), ratio(maxDQ, maxQ))
}

func ratio(num, den float64) float64 {
	switch {
	case den > 0:
		return num / den
	case num > 0:
		return math.Inf(1)
	}
	return 0
}
