package marlin

import "math"

// convergenceState is the ephemeral per-solve state shared by the iterative
// solvers. It exists only for the duration of one solve and is discarded.
type convergenceState struct {
	estimate float64
	iter     int
	residual float64
	step     float64
}

// ExerciseBoundary returns the critical underlying price at which immediate
// exercise of an American option becomes optimal. A call on a zero-dividend
// underlying is never exercised early, so its boundary is reported as +Inf
// rather than a large finite sentinel. A put when the rate is zero (which,
// under the q <= r precondition, forces q = 0) is likewise never exercised
// early; its boundary is reported as 0.
func (e *MarlinEngine) ExerciseBoundary(right OptionRight, p ContractParams) (float64, error) {
	if err := e.validateContract(ModelAmerican, p, true); err != nil {
		return 0, err
	}
	if right == Call && p.Dividend == 0 {
		return math.Inf(1), nil
	}
	if right == Put && p.Rate == 0 {
		return 0, nil
	}

	boundary, st := solveBoundary(right, p, e.solver)
	if st.iter >= e.solver.MaxIterations {
		return 0, &ConvergenceError{Op: "exercise_boundary", Iterations: st.iter, Residual: st.residual}
	}
	if math.IsNaN(boundary) || math.IsInf(boundary, 0) || boundary <= 0 {
		return 0, &NumericalError{Op: "exercise_boundary", Detail: "boundary is not a finite positive price"}
	}
	if right == Put && boundary >= p.Strike {
		return 0, &NumericalError{Op: "exercise_boundary", Detail: "put boundary not below strike"}
	}
	return boundary, nil
}

// Fixed-point damping for the value-matching iteration. Undamped iteration can
// ring around the boundary for long maturities.
const boundaryDamping = 0.5

// solveBoundary runs a damped fixed-point iteration on the value-matching
// equation of the critical price, seeded with the closed-form trigger price.
// Both roots of the characteristic quadratic appear: the positive root governs
// the call boundary above strike, the negative root the put boundary below it.
func solveBoundary(right OptionRight, p ContractParams, cfg SolverConfig) (float64, convergenceState) {
	k, t, r, q, sigma := p.Strike, p.Time, p.Rate, p.Dividend, p.Vol
	b := r - q
	sigma2 := sigma * sigma
	m := 2 * r / sigma2
	n := 2 * b / sigma2
	kk := 1 - math.Exp(-r*t)
	disc := math.Sqrt((n-1)*(n-1) + 4*m/kk)

	var root, seed float64
	if right == Call {
		root = ((1 - n) + disc) / 2
		beta := (0.5 - b/sigma2) + math.Sqrt(math.Pow(b/sigma2-0.5, 2)+2*r/sigma2)
		seed = bjerksundTrigger(k, t, r, b, sigma, beta)
	} else {
		root = ((1 - n) - disc) / 2
		// boundary duality: the put boundary is K² over the call trigger of
		// the rate/dividend-swapped problem
		bSwap := q - r
		betaSwap := (0.5 - bSwap/sigma2) + math.Sqrt(math.Pow(bSwap/sigma2-0.5, 2)+2*q/sigma2)
		seed = k * k / bjerksundTrigger(k, t, q, bSwap, sigma, betaSwap)
	}

	matched := func(s float64) float64 {
		d1, _ := d1d2(s, k, b, sigma, t)
		if right == Call {
			eur := europeanPrice(Call, s, k, t, r, q, sigma)
			return k + eur + (1-math.Exp(-q*t)*normCDF(d1))*s/root
		}
		eur := europeanPrice(Put, s, k, t, r, q, sigma)
		return k - eur + (1-math.Exp(-q*t)*normCDF(-d1))*s/root
	}

	st := convergenceState{estimate: seed}
	var prevS, prevH float64
	for st.iter = 0; st.iter < cfg.MaxIterations; st.iter++ {
		h := matched(st.estimate) - st.estimate
		st.residual = h
		if math.Abs(h) <= cfg.BoundaryTolerance*k {
			return st.estimate, st
		}
		next := st.estimate + boundaryDamping*h
		if st.iter > 0 && h != prevH {
			// secant acceleration of the fixed point; fall back to the damped
			// step whenever the secant leaves the admissible half-line
			secant := st.estimate - h*(st.estimate-prevS)/(h-prevH)
			if !math.IsNaN(secant) && !math.IsInf(secant, 0) && secant > 0 {
				next = secant
			}
		}
		prevS, prevH = st.estimate, h
		st.step = next - st.estimate
		st.estimate = next
	}
	return st.estimate, st
}

// ExerciseBoundaryBatch evaluates the boundary element-wise over broadcastable
// parameter arrays; see BatchParams for the broadcasting contract.
func (e *MarlinEngine) ExerciseBoundaryBatch(right OptionRight, bp BatchParams, policy FailurePolicy) (*BatchResult, error) {
	n, err := bp.broadcast(true, false)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{Values: make([]float64, n)}
	mark := func(i int) { res.Values[i] = math.NaN() }
	res.Errors, err = e.runBatch(n, policy, mark, func(i int) error {
		v, err := e.ExerciseBoundary(right, bp.at(i))
		if err != nil {
			return err
		}
		res.Values[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
