package marlin

// Black-Scholes: no dividend yield, spot drifts at the risk-free rate.
//
//	d1 = (ln(S/K) + (r + σ²/2)T) / (σ√T),  d2 = d1 - σ√T
//	call = SΦ(d1) - Ke^(-rT)Φ(d2),  put via Φ(-d1), Φ(-d2)
func bsPrice(right OptionRight, p ContractParams) float64 {
	return europeanPrice(right, p.Spot, p.Strike, p.Time, p.Rate, 0, p.Vol)
}

func bsGreeks(right OptionRight, p ContractParams) GreeksResult {
	g := europeanGreeks(right, p.Spot, p.Strike, p.Time, p.Rate, 0, p.Vol)
	// no dividend yield, no dividend rho in the record
	g.DividendRho = 0
	g.HasDividendRho = false
	return g
}
