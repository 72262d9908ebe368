package marlin

import "gonum.org/v1/gonum/stat/distuv"

// Beyond this argument Φ is 0 or 1 to the last float64 bit; saturating early
// keeps the deep tails exact and NaN-free.
const normTailCutoff = 40.0

var unitNormal = distuv.UnitNormal

// normCDF is the standard normal cumulative distribution Φ, evaluated through
// the error function. The pricing formulas subtract near-equal Φ(d1), Φ(d2)
// terms, so a coarse polynomial fit is not acceptable here. Negative arguments
// go through the same erf path as positive ones; the only asymmetry is the
// identity Φ(-x) = 1 - Φ(x) inside erf itself.
func normCDF(x float64) float64 {
	if x <= -normTailCutoff {
		return 0
	}
	if x >= normTailCutoff {
		return 1
	}
	return unitNormal.CDF(x)
}

// normPDF is the standard normal density φ.
func normPDF(x float64) float64 {
	return unitNormal.Prob(x)
}
