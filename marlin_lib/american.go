package marlin

import "math"

// americanPrice values an American option with the Bjerksund-Stensland
// quasi-analytic approximation. The put is priced through the transformation
// P(S,K,T,r,q,σ) = C(K,S,T,q,r,σ), so a single call kernel covers both rights.
func americanPrice(right OptionRight, p ContractParams) float64 {
	if right == Put {
		return bjerksundCall(ContractParams{
			Spot:     p.Strike,
			Strike:   p.Spot,
			Time:     p.Time,
			Rate:     p.Dividend,
			Dividend: p.Rate,
			Vol:      p.Vol,
		})
	}
	return bjerksundCall(p)
}

// bjerksundCall is the flat-boundary approximation for an American call with
// cost of carry b = r - q. With b >= r (q <= 0) early exercise is never
// optimal and the value IS the European value; that branch is what makes a
// zero-dividend American call equal the European call exactly.
func bjerksundCall(p ContractParams) float64 {
	s, k, t, r, q, sigma := p.Spot, p.Strike, p.Time, p.Rate, p.Dividend, p.Vol
	b := r - q
	if b >= r {
		return europeanPrice(Call, s, k, t, r, q, sigma)
	}

	european := europeanPrice(Call, s, k, t, r, q, sigma)
	if sigma*math.Sqrt(t) < minTotalVol {
		// deterministic: hold value vs immediate exercise
		return math.Max(european, math.Max(s-k, 0))
	}

	sigma2 := sigma * sigma
	beta := (0.5 - b/sigma2) + math.Sqrt(math.Pow(b/sigma2-0.5, 2)+2*r/sigma2)
	trigger := bjerksundTrigger(k, t, r, b, sigma, beta)
	if s >= trigger {
		// The approximate trigger can sit below the true boundary (it can
		// even drop below the spot when the interpolation exponent h turns
		// positive), and inside the exercise region the holder still owns
		// the hold alternative. Bare intrinsic alone may undershoot it.
		return math.Max(s-k, european)
	}

	alpha := (trigger - k) * math.Pow(trigger, -beta)
	v := alpha*math.Pow(s, beta) -
		alpha*bjerksundPhi(s, t, beta, trigger, trigger, r, b, sigma) +
		bjerksundPhi(s, t, 1, trigger, trigger, r, b, sigma) -
		bjerksundPhi(s, t, 1, k, trigger, r, b, sigma) -
		k*bjerksundPhi(s, t, 0, trigger, trigger, r, b, sigma) +
		k*bjerksundPhi(s, t, 0, k, trigger, r, b, sigma)

	// The approximation is a lower bound on the true American value but can
	// undershoot the European value by a few ulps in flat corners; the option
	// holder always keeps both the hold and the exercise alternatives.
	return math.Max(v, math.Max(european, math.Max(s-k, 0)))
}

// bjerksundTrigger is the closed-form early-exercise trigger price I: the flat
// boundary interpolates between B0 at expiry and B∞ for perpetual maturity.
func bjerksundTrigger(k, t, r, b, sigma, beta float64) float64 {
	bInf := beta / (beta - 1) * k
	b0 := math.Max(k, r/(r-b)*k)
	h := -(b*t + 2*sigma*math.Sqrt(t)) * (b0 / (bInf - b0))
	return b0 + (bInf-b0)*(1-math.Exp(h))
}

// bjerksundPhi is the auxiliary φ(S,T | γ, H, I) function of the
// Bjerksund-Stensland formula.
func bjerksundPhi(s, t, gamma, h, i, r, b, sigma float64) float64 {
	sigma2 := sigma * sigma
	sigmaRootT := sigma * math.Sqrt(t)
	lambda := (-r + gamma*b + 0.5*gamma*(gamma-1)*sigma2) * t
	d := -(math.Log(s/h) + (b+(gamma-0.5)*sigma2)*t) / sigmaRootT
	kappa := 2*b/sigma2 + 2*gamma - 1
	return math.Exp(lambda) * math.Pow(s, gamma) *
		(normCDF(d) - math.Pow(i/s, kappa)*normCDF(d-2*math.Log(i/s)/sigmaRootT))
}

// Relative bump for the finite-difference American Greeks. The quasi-analytic
// approximation has no tractable closed-form derivatives, so sensitivities come
// from central differences of the pricing kernel itself.
const americanBump = 1e-4

func americanGreeks(right OptionRight, p ContractParams) GreeksResult {
	base := americanPrice(right, p)

	ds := p.Spot * americanBump
	up, down := p, p
	up.Spot += ds
	down.Spot -= ds
	pUp, pDown := americanPrice(right, up), americanPrice(right, down)

	dv := math.Max(americanBump, p.Vol*americanBump)
	vUp, vDown := p, p
	vUp.Vol += dv
	vDown.Vol -= dv

	dt := math.Min(americanBump, p.Time/2)
	tUp, tDown := p, p
	tUp.Time += dt
	tDown.Time -= dt

	dr := americanBump
	rUp, rDown := p, p
	rUp.Rate += dr
	rDown.Rate -= dr

	dq := americanBump
	qUp, qDown := p, p
	qUp.Dividend += dq
	qDown.Dividend -= dq

	return GreeksResult{
		Delta: (pUp - pDown) / (2 * ds),
		Gamma: (pUp - 2*base + pDown) / (ds * ds),
		Vega:  (americanPrice(right, vUp) - americanPrice(right, vDown)) / (2 * dv),
		// theta is the calendar derivative ∂price/∂t = -∂price/∂T
		Theta:          (americanPrice(right, tDown) - americanPrice(right, tUp)) / (2 * dt),
		Rho:            (americanPrice(right, rUp) - americanPrice(right, rDown)) / (2 * dr),
		DividendRho:    (americanPrice(right, qUp) - americanPrice(right, qDown)) / (2 * dq),
		HasDividendRho: true,
	}
}
