package marlin

import "math"

// Below this total volatility σ√T the d1/d2 quotient loses all meaning, so the
// kernels route to the deterministic limit (discounted intrinsic value) rather
// than divide by a vanishing denominator. Exact zero or negative time and
// volatility never reach the kernels; the validator rejects them first.
const minTotalVol = 1e-10

func d1d2(spot, strike, drift, vol, t float64) (float64, float64) {
	sigmaRootT := vol * math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (drift+0.5*vol*vol)*t) / sigmaRootT
	return d1, d1 - sigmaRootT
}

// europeanPrice is the carry-form European kernel shared by the three
// closed-form models: Black-Scholes is div=0, Merton is the general case, and
// Black-76 is spot=forward with div=rate so the spot leg discounts to Fe^(-rT).
func europeanPrice(right OptionRight, spot, strike, t, rate, div, vol float64) float64 {
	if vol*math.Sqrt(t) < minTotalVol {
		return deterministicLimit(right, spot, strike, t, rate, div)
	}
	d1, d2 := d1d2(spot, strike, rate-div, vol, t)
	sLeg := spot * math.Exp(-div*t)
	kLeg := strike * math.Exp(-rate*t)
	if right == Call {
		return sLeg*normCDF(d1) - kLeg*normCDF(d2)
	}
	return kLeg*normCDF(-d2) - sLeg*normCDF(-d1)
}

// deterministicLimit is the σ√T→0 value: both legs are certain, the option is
// worth the positive part of their difference.
func deterministicLimit(right OptionRight, spot, strike, t, rate, div float64) float64 {
	sLeg := spot * math.Exp(-div*t)
	kLeg := strike * math.Exp(-rate*t)
	if right == Call {
		return math.Max(sLeg-kLeg, 0)
	}
	return math.Max(kLeg-sLeg, 0)
}

// europeanGreeks returns the full analytic sensitivity record, dividend rho
// included; model wrappers drop fields their model does not carry. Theta is
// ∂price/∂t (calendar decay, negative of the maturity derivative) and call and
// put thetas are assembled term by term, never by negating one another.
func europeanGreeks(right OptionRight, spot, strike, t, rate, div, vol float64) GreeksResult {
	sqrtT := math.Sqrt(t)
	sLeg := spot * math.Exp(-div*t)
	kLeg := strike * math.Exp(-rate*t)
	if vol*sqrtT < minTotalVol {
		return deterministicLimitGreeks(right, t, rate, div, sLeg, kLeg)
	}
	d1, d2 := d1d2(spot, strike, rate-div, vol, t)
	pdf := normPDF(d1)

	g := GreeksResult{
		Gamma:          sLeg * pdf / (spot * spot * vol * sqrtT),
		Vega:           sLeg * pdf * sqrtT,
		HasDividendRho: true,
	}
	decay := -sLeg * pdf * vol / (2 * sqrtT)
	if right == Call {
		cnd1, cnd2 := normCDF(d1), normCDF(d2)
		g.Delta = math.Exp(-div*t) * cnd1
		g.Theta = decay - rate*kLeg*cnd2 + div*sLeg*cnd1
		g.Rho = strike * t * math.Exp(-rate*t) * cnd2
		g.DividendRho = -t * sLeg * cnd1
	} else {
		cnd1, cnd2 := normCDF(-d1), normCDF(-d2)
		g.Delta = math.Exp(-div*t) * (normCDF(d1) - 1)
		g.Theta = decay + rate*kLeg*cnd2 - div*sLeg*cnd1
		g.Rho = -strike * t * math.Exp(-rate*t) * cnd2
		g.DividendRho = t * sLeg * cnd1
	}
	return g
}

// deterministicLimitGreeks differentiates the σ√T→0 value directly. In the
// limit the option is either a certain two-leg position (in the money) or
// worthless, so curvature and vega vanish.
func deterministicLimitGreeks(right OptionRight, t, rate, div, sLeg, kLeg float64) GreeksResult {
	g := GreeksResult{HasDividendRho: true}
	switch {
	case right == Call && sLeg > kLeg:
		g.Delta = math.Exp(-div * t)
		g.Theta = div*sLeg - rate*kLeg
		g.Rho = t * kLeg
		g.DividendRho = -t * sLeg
	case right == Put && kLeg > sLeg:
		g.Delta = -math.Exp(-div * t)
		g.Theta = rate*kLeg - div*sLeg
		g.Rho = -t * kLeg
		g.DividendRho = t * sLeg
	}
	return g
}
