package marlin

// Merton: continuous dividend yield q, drift r-q.
//
//	call = Se^(-qT)Φ(d1) - Ke^(-rT)Φ(d2)
func mertonPrice(right OptionRight, p ContractParams) float64 {
	return europeanPrice(right, p.Spot, p.Strike, p.Time, p.Rate, p.Dividend, p.Vol)
}

func mertonGreeks(right OptionRight, p ContractParams) GreeksResult {
	return europeanGreeks(right, p.Spot, p.Strike, p.Time, p.Rate, p.Dividend, p.Vol)
}
