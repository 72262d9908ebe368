package marlin

import (
	"fmt"
	"math"
)

// Outcome of the Newton phase. Fallback is an explicit second phase, not an
// exception path: Newton reports what happened and the caller decides.
type newtonOutcome int

const (
	newtonConverged newtonOutcome = iota
	newtonNeedsFallback
)

// Consecutive non-shrinking residuals tolerated before Newton gives up.
const newtonStallLimit = 3

// ImpliedVolatility inverts the model price for the volatility that reproduces
// marketPrice. p.Vol, when positive and finite, is used as the starting guess;
// otherwise the configured default applies. The solve is Newton-Raphson with
// the iterate clamped into [VolMin, VolMax] after every step, handing off to a
// bracketed search when vega collapses or the residual stalls. Failure is
// always explicit: an unconverged estimate is never returned as an answer.
func (e *MarlinEngine) ImpliedVolatility(model Model, right OptionRight, p ContractParams, marketPrice float64) (float64, error) {
	if err := e.validateContract(model, p, false); err != nil {
		return 0, err
	}
	if err := checkPositiveFinite("market_price", marketPrice); err != nil {
		return 0, err
	}
	lo, hi := e.priceBounds(model, right, p)
	if marketPrice < lo-e.solver.PriceTolerance {
		return 0, &ValidationError{Param: "market_price", Value: marketPrice, Reason: fmt.Sprintf("below intrinsic value %g", lo)}
	}
	if marketPrice > hi+e.solver.PriceTolerance {
		return 0, &ValidationError{Param: "market_price", Value: marketPrice, Reason: fmt.Sprintf("above maximum model price %g", hi)}
	}

	guess := p.Vol
	if math.IsNaN(guess) || math.IsInf(guess, 0) || guess <= 0 {
		guess = e.solver.DefaultVolGuess
	}
	guess = clampVol(guess, e.solver)

	tol := solveTolerance(e.solver.PriceTolerance, marketPrice, lo)
	sigma, st, outcome := e.newtonIV(model, right, p, marketPrice, guess, tol)
	if outcome == newtonConverged {
		return sigma, nil
	}
	return e.bracketIV(model, right, p, marketPrice, tol, st)
}

// solveTolerance scales the configured absolute tolerance down for quotes with
// little extrinsic value. A deep-OTM contract prices far below any fixed
// absolute band, so judging the residual against that band would accept
// whole flat stretches of the volatility axis as converged.
func solveTolerance(base, target, intrinsic float64) float64 {
	ext := target - intrinsic
	if ext < 1 {
		return base * math.Max(ext, 0)
	}
	return base
}

// priceBounds returns the no-arbitrage [min, max] for the target price: the
// zero-volatility (intrinsic) value below and the value of the undiscounted
// leg above. American prices are additionally floored by immediate exercise.
func (e *MarlinEngine) priceBounds(model Model, right OptionRight, p ContractParams) (float64, float64) {
	div := p.Dividend
	switch model {
	case ModelBlackScholes:
		div = 0
	case ModelBlack76:
		div = p.Rate
	}
	lo := deterministicLimit(right, p.Spot, p.Strike, p.Time, p.Rate, div)
	var hi float64
	if right == Call {
		hi = p.Spot * math.Exp(-div*p.Time)
	} else {
		hi = p.Strike * math.Exp(-p.Rate*p.Time)
	}
	if model == ModelAmerican {
		if right == Call {
			lo = math.Max(lo, p.Spot-p.Strike)
			hi = p.Spot
		} else {
			lo = math.Max(lo, p.Strike-p.Spot)
			hi = p.Strike
		}
	}
	return math.Max(lo, 0), hi
}

func clampVol(v float64, cfg SolverConfig) float64 {
	return math.Min(math.Max(v, cfg.VolMin), cfg.VolMax)
}

// newtonIV runs the Newton-Raphson phase: σ <- σ - (price(σ)-target)/vega(σ).
func (e *MarlinEngine) newtonIV(model Model, right OptionRight, p ContractParams, target, guess, tol float64) (float64, convergenceState, newtonOutcome) {
	cfg := e.solver
	st := convergenceState{estimate: guess}
	prevAbs := math.Inf(1)
	stall := 0
	for st.iter = 0; st.iter < cfg.MaxIterations; st.iter++ {
		st.residual = priceAt(model, right, p, st.estimate) - target
		if math.Abs(st.residual) < tol {
			return st.estimate, st, newtonConverged
		}
		vega := e.vegaAt(model, right, p, st.estimate)
		if math.Abs(vega) < cfg.VegaFloor {
			return st.estimate, st, newtonNeedsFallback
		}
		if math.Abs(st.residual) >= prevAbs {
			stall++
			if stall >= newtonStallLimit {
				return st.estimate, st, newtonNeedsFallback
			}
		} else {
			stall = 0
		}
		prevAbs = math.Abs(st.residual)

		next := clampVol(st.estimate-st.residual/vega, cfg)
		st.step = next - st.estimate
		st.estimate = next
	}
	return st.estimate, st, newtonNeedsFallback
}

// vegaAt is the price derivative with respect to volatility at a candidate σ.
// The European family has it in closed form; the American approximation is
// differentiated centrally.
func (e *MarlinEngine) vegaAt(model Model, right OptionRight, p ContractParams, vol float64) float64 {
	switch model {
	case ModelBlackScholes:
		return europeanGreeks(right, p.Spot, p.Strike, p.Time, p.Rate, 0, vol).Vega
	case ModelBlack76:
		return europeanGreeks(right, p.Spot, p.Strike, p.Time, p.Rate, p.Rate, vol).Vega
	case ModelMerton:
		return europeanGreeks(right, p.Spot, p.Strike, p.Time, p.Rate, p.Dividend, vol).Vega
	}
	dv := math.Max(americanBump, vol*americanBump)
	return (priceAt(model, right, p, vol+dv) - priceAt(model, right, p, vol-dv)) / (2 * dv)
}

// bracketIV is the fallback phase: a safeguarded bracketing search over the
// full admissible volatility range, leaning on the monotonicity of price in
// volatility for the sign change. Bisection guarantees progress; a secant
// candidate inside the bracket accelerates it.
func (e *MarlinEngine) bracketIV(model Model, right OptionRight, p ContractParams, target, tol float64, newton convergenceState) (float64, error) {
	cfg := e.solver
	lo, hi := cfg.VolMin, cfg.VolMax
	fLo := priceAt(model, right, p, lo) - target
	fHi := priceAt(model, right, p, hi) - target
	if math.Abs(fLo) < tol {
		return lo, nil
	}
	if math.Abs(fHi) < tol {
		return hi, nil
	}
	if fLo > 0 || fHi < 0 {
		return 0, &ConvergenceError{Op: "implied_volatility", Iterations: newton.iter, Residual: newton.residual}
	}

	st := convergenceState{}
	for st.iter = 0; st.iter < cfg.MaxIterations; st.iter++ {
		mid := 0.5 * (lo + hi)
		if fHi != fLo {
			// secant candidate, accepted only away from the endpoints so the
			// bracket keeps shrinking geometrically
			secant := lo - fLo*(hi-lo)/(fHi-fLo)
			if secant > lo+0.01*(hi-lo) && secant < hi-0.01*(hi-lo) {
				mid = secant
			}
		}
		st.estimate = mid
		st.residual = priceAt(model, right, p, mid) - target
		if math.Abs(st.residual) < tol {
			return mid, nil
		}
		if hi-lo < 1e-14 {
			// vol is pinned to machine precision; the price cannot be
			// matched any closer, so either this is the answer or no
			// volatility reproduces the quote to the scaled tolerance
			if math.Abs(st.residual) < cfg.PriceTolerance {
				return mid, nil
			}
			return 0, &ConvergenceError{Op: "implied_volatility", Iterations: st.iter, Residual: st.residual}
		}
		if st.residual < 0 {
			lo, fLo = mid, st.residual
		} else {
			hi, fHi = mid, st.residual
		}
	}
	return 0, &ConvergenceError{Op: "implied_volatility", Iterations: st.iter, Residual: st.residual}
}
