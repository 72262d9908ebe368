package marlin

import "math"

// validateContract enforces every input precondition before any pricing logic
// runs. Violations are rejected, never silently clamped. needVol is false for
// implied-volatility solves, where Vol is only an optional starting guess.
func (e *MarlinEngine) validateContract(model Model, p ContractParams, needVol bool) error {
	spotName := "spot"
	if model == ModelBlack76 {
		spotName = "forward"
	}
	if err := checkPositiveFinite(spotName, p.Spot); err != nil {
		return err
	}
	if err := checkPositiveFinite("strike", p.Strike); err != nil {
		return err
	}
	if err := checkPositiveFinite("time", p.Time); err != nil {
		return err
	}
	if needVol {
		if err := checkPositiveFinite("vol", p.Vol); err != nil {
			return err
		}
		if p.Vol < e.solver.VolMin || p.Vol > e.solver.VolMax {
			return &ValidationError{Param: "vol", Value: p.Vol, Reason: "outside admissible volatility range"}
		}
	}
	if err := checkBounded("rate", p.Rate, e.solver.RateBound); err != nil {
		return err
	}
	if err := checkBounded("dividend", p.Dividend, e.solver.RateBound); err != nil {
		return err
	}

	switch model {
	case ModelBlackScholes:
		if p.Dividend != 0 {
			return &ValidationError{Param: "dividend", Value: p.Dividend, Reason: "black_scholes has no dividend yield; use merton"}
		}
	case ModelBlack76:
		if p.Dividend != 0 {
			return &ValidationError{Param: "dividend", Value: p.Dividend, Reason: "black76 prices a forward; dividend must be zero"}
		}
	case ModelAmerican:
		if p.Dividend < 0 {
			return &ValidationError{Param: "dividend", Value: p.Dividend, Reason: "must be non-negative for american options"}
		}
		// no-arbitrage precondition for the quasi-analytic approximation
		if p.Dividend > p.Rate {
			return &ValidationError{Param: "dividend", Value: p.Dividend, Reason: "dividend yield exceeds risk-free rate"}
		}
	}
	return nil
}

func checkPositiveFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Param: name, Value: v, Reason: "must be finite"}
	}
	if v <= 0 {
		return &ValidationError{Param: name, Value: v, Reason: "must be positive"}
	}
	return nil
}

func checkBounded(name string, v, bound float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Param: name, Value: v, Reason: "must be finite"}
	}
	if math.Abs(v) > bound {
		return &ValidationError{Param: name, Value: v, Reason: "outside admissible range"}
	}
	return nil
}
