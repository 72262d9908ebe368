package marlin

// Black-76 prices off the forward: d1/d2 carry no drift beyond σ²/2 and the
// whole payoff is discounted by e^(-rT). That is exactly the carry-form kernel
// with div=rate, which turns the spot leg into Fe^(-rT).
func black76Price(right OptionRight, p ContractParams) float64 {
	return europeanPrice(right, p.Spot, p.Strike, p.Time, p.Rate, p.Rate, p.Vol)
}

func black76Greeks(right OptionRight, p ContractParams) GreeksResult {
	g := europeanGreeks(right, p.Spot, p.Strike, p.Time, p.Rate, p.Rate, p.Vol)
	// The rate enters only through the discount factor, so rho is -T times the
	// price; the carry-form rho (which holds the forward's carry fixed) does
	// not apply here.
	g.Rho = -p.Time * black76Price(right, p)
	g.DividendRho = 0
	g.HasDividendRho = false
	return g
}
