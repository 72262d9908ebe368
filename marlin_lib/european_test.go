package marlin

import (
	"errors"
	"math"
	"testing"
)

// Classic textbook contract: S=100, K=100, T=1, r=5%, sigma=20%.
var refParams = ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Vol: 0.2}

func TestBlackScholesReferencePrices(t *testing.T) {
	e := NewMarlinEngine()

	call, err := e.CallPrice(ModelBlackScholes, refParams)
	if err != nil {
		t.Fatalf("CallPrice failed: %v", err)
	}
	if want := 10.450583572185565; math.Abs(call-want) > 1e-9 {
		t.Errorf("call = %.15f, want %.15f", call, want)
	}

	put, err := e.PutPrice(ModelBlackScholes, refParams)
	if err != nil {
		t.Fatalf("PutPrice failed: %v", err)
	}
	if want := 5.573526022256971; math.Abs(put-want) > 1e-9 {
		t.Errorf("put = %.15f, want %.15f", put, want)
	}
	t.Logf("✅ ATM reference: call=%.6f put=%.6f", call, put)
}

func TestPutCallParity(t *testing.T) {
	e := NewMarlinEngine()
	grid := []ContractParams{
		{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Vol: 0.2},
		{Spot: 80, Strike: 100, Time: 0.25, Rate: 0.01, Vol: 0.45},
		{Spot: 130, Strike: 90, Time: 2.5, Rate: 0.08, Vol: 0.1},
		{Spot: 55, Strike: 60, Time: 0.04, Rate: 0, Vol: 0.9},
	}

	for _, p := range grid {
		call, err := e.CallPrice(ModelBlackScholes, p)
		if err != nil {
			t.Fatalf("CallPrice(%+v) failed: %v", p, err)
		}
		put, err := e.PutPrice(ModelBlackScholes, p)
		if err != nil {
			t.Fatalf("PutPrice(%+v) failed: %v", p, err)
		}
		want := p.Spot - p.Strike*math.Exp(-p.Rate*p.Time)
		if got := call - put; math.Abs(got-want) > 1e-7 {
			t.Errorf("parity violated for %+v: c-p=%.12f, want %.12f", p, got, want)
		}
	}

	// Merton parity: c - p = S e^{-qT} - K e^{-rT}.
	mp := ContractParams{Spot: 110, Strike: 95, Time: 0.75, Rate: 0.04, Dividend: 0.02, Vol: 0.3}
	mc, _ := e.CallPrice(ModelMerton, mp)
	mput, _ := e.PutPrice(ModelMerton, mp)
	mwant := mp.Spot*math.Exp(-mp.Dividend*mp.Time) - mp.Strike*math.Exp(-mp.Rate*mp.Time)
	if got := mc - mput; math.Abs(got-mwant) > 1e-7 {
		t.Errorf("merton parity violated: c-p=%.12f, want %.12f", got, mwant)
	}

	// Black-76 parity: c - p = e^{-rT} (F - K).
	fp := ContractParams{Spot: 104, Strike: 100, Time: 0.5, Rate: 0.03, Vol: 0.25}
	fc, _ := e.CallPrice(ModelBlack76, fp)
	fput, _ := e.PutPrice(ModelBlack76, fp)
	fwant := math.Exp(-fp.Rate*fp.Time) * (fp.Spot - fp.Strike)
	if got := fc - fput; math.Abs(got-fwant) > 1e-7 {
		t.Errorf("black76 parity violated: c-p=%.12f, want %.12f", got, fwant)
	}
}

func TestBlack76MatchesSpotFormOnForward(t *testing.T) {
	// Pricing the forward F = S e^{rT} under Black-76 must reproduce the
	// spot Black-Scholes price of the same contract.
	e := NewMarlinEngine()
	spot := ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Vol: 0.2}
	fwd := spot
	fwd.Spot = spot.Spot * math.Exp(spot.Rate*spot.Time)

	for _, right := range []OptionRight{Call, Put} {
		var bs, b76 float64
		var err error
		if right == Call {
			bs, err = e.CallPrice(ModelBlackScholes, spot)
		} else {
			bs, err = e.PutPrice(ModelBlackScholes, spot)
		}
		if err != nil {
			t.Fatalf("spot price failed: %v", err)
		}
		if right == Call {
			b76, err = e.CallPrice(ModelBlack76, fwd)
		} else {
			b76, err = e.PutPrice(ModelBlack76, fwd)
		}
		if err != nil {
			t.Fatalf("forward price failed: %v", err)
		}
		if math.Abs(bs-b76) > 1e-9 {
			t.Errorf("right %c: black76 on forward = %.12f, spot form = %.12f", right, b76, bs)
		}
	}
}

func TestPriceBounds(t *testing.T) {
	e := NewMarlinEngine()
	spots := []float64{50, 80, 100, 120, 200}
	vols := []float64{0.05, 0.2, 0.6, 1.5}
	for _, s := range spots {
		for _, v := range vols {
			p := ContractParams{Spot: s, Strike: 100, Time: 0.5, Rate: 0.03, Vol: v}
			call, err := e.CallPrice(ModelBlackScholes, p)
			if err != nil {
				t.Fatalf("CallPrice failed: %v", err)
			}
			lo := math.Max(s-100*math.Exp(-0.03*0.5), 0)
			if call < lo-1e-12 || call > s {
				t.Errorf("S=%v vol=%v: call %.12f outside [%.12f, %v]", s, v, call, lo, s)
			}
		}
	}
}

func TestNearZeroVolDeterministicLimit(t *testing.T) {
	// With total volatility below the deterministic cutoff the price is the
	// discounted intrinsic value, with no NaN from the degenerate d1/d2.
	cfg := DefaultSolverConfig()
	cfg.VolMin = 1e-12
	e := NewMarlinEngineWithConfig(cfg, DefaultBatchConfig())

	p := ContractParams{Spot: 110, Strike: 100, Time: 1, Rate: 0.05, Vol: 1e-11}
	call, err := e.CallPrice(ModelBlackScholes, p)
	if err != nil {
		t.Fatalf("CallPrice failed: %v", err)
	}
	want := math.Max(110-100*math.Exp(-0.05), 0)
	if math.Abs(call-want) > 1e-12 {
		t.Errorf("near-zero vol call = %.15f, want %.15f", call, want)
	}

	put, err := e.PutPrice(ModelBlackScholes, p)
	if err != nil {
		t.Fatalf("PutPrice failed: %v", err)
	}
	if put != 0 {
		t.Errorf("near-zero vol OTM put = %v, want 0", put)
	}

	g, err := e.Greeks(ModelBlackScholes, Call, p)
	if err != nil {
		t.Fatalf("Greeks failed: %v", err)
	}
	if g.Delta != 1 || g.Gamma != 0 || g.Vega != 0 {
		t.Errorf("deterministic ITM call greeks = %+v, want delta 1, gamma 0, vega 0", g)
	}
}

func TestMertonEqualRatesATMSymmetry(t *testing.T) {
	// q = r makes the forward equal the spot, so an ATM call and put
	// have identical value.
	e := NewMarlinEngine()
	p := ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.04, Dividend: 0.04, Vol: 0.3}
	call, err := e.CallPrice(ModelMerton, p)
	if err != nil {
		t.Fatalf("CallPrice failed: %v", err)
	}
	put, err := e.PutPrice(ModelMerton, p)
	if err != nil {
		t.Fatalf("PutPrice failed: %v", err)
	}
	if math.Abs(call-put) > 1e-12 {
		t.Errorf("ATM q=r: call %.15f != put %.15f", call, put)
	}
}

func TestGreeksIdentities(t *testing.T) {
	e := NewMarlinEngine()
	p := ContractParams{Spot: 105, Strike: 100, Time: 0.5, Rate: 0.05, Dividend: 0.02, Vol: 0.25}

	gc, err := e.Greeks(ModelMerton, Call, p)
	if err != nil {
		t.Fatalf("call greeks failed: %v", err)
	}
	gp, err := e.Greeks(ModelMerton, Put, p)
	if err != nil {
		t.Fatalf("put greeks failed: %v", err)
	}

	if want := math.Exp(-p.Dividend * p.Time); math.Abs(gc.Delta-gp.Delta-want) > 1e-12 {
		t.Errorf("delta parity: %.15f, want %.15f", gc.Delta-gp.Delta, want)
	}
	if gc.Gamma != gp.Gamma {
		t.Errorf("gamma differs across rights: %v vs %v", gc.Gamma, gp.Gamma)
	}
	if gc.Vega != gp.Vega {
		t.Errorf("vega differs across rights: %v vs %v", gc.Vega, gp.Vega)
	}
	if !gc.HasDividendRho || !gp.HasDividendRho {
		t.Errorf("merton greeks missing dividend rho")
	}

	// Vega and gamma against a central finite difference.
	h := 1e-5
	up, _ := e.CallPrice(ModelMerton, bump(p, func(q *ContractParams) { q.Vol += h }))
	dn, _ := e.CallPrice(ModelMerton, bump(p, func(q *ContractParams) { q.Vol -= h }))
	if fd := (up - dn) / (2 * h); math.Abs(gc.Vega-fd) > 1e-5 {
		t.Errorf("vega %.10f vs finite difference %.10f", gc.Vega, fd)
	}
	su, _ := e.CallPrice(ModelMerton, bump(p, func(q *ContractParams) { q.Spot += h }))
	sd, _ := e.CallPrice(ModelMerton, bump(p, func(q *ContractParams) { q.Spot -= h }))
	sm, _ := e.CallPrice(ModelMerton, p)
	if fd := (su - 2*sm + sd) / (h * h); math.Abs(gc.Gamma-fd) > 1e-4 {
		t.Errorf("gamma %.10f vs finite difference %.10f", gc.Gamma, fd)
	}
}

func TestBlack76RhoIsDiscountingOnly(t *testing.T) {
	e := NewMarlinEngine()
	p := ContractParams{Spot: 100, Strike: 95, Time: 0.5, Rate: 0.04, Vol: 0.3}
	price, err := e.CallPrice(ModelBlack76, p)
	if err != nil {
		t.Fatalf("CallPrice failed: %v", err)
	}
	g, err := e.Greeks(ModelBlack76, Call, p)
	if err != nil {
		t.Fatalf("Greeks failed: %v", err)
	}
	if want := -p.Time * price; math.Abs(g.Rho-want) > 1e-12 {
		t.Errorf("black76 rho = %.15f, want -T*price = %.15f", g.Rho, want)
	}
	if g.HasDividendRho {
		t.Errorf("black76 should not report a dividend rho")
	}
}

func TestValidationRejections(t *testing.T) {
	e := NewMarlinEngine()
	bad := []struct {
		name  string
		model Model
		p     ContractParams
	}{
		{"negative spot", ModelBlackScholes, ContractParams{Spot: -1, Strike: 100, Time: 1, Rate: 0.05, Vol: 0.2}},
		{"zero strike", ModelBlackScholes, ContractParams{Spot: 100, Strike: 0, Time: 1, Rate: 0.05, Vol: 0.2}},
		{"zero time", ModelBlackScholes, ContractParams{Spot: 100, Strike: 100, Time: 0, Rate: 0.05, Vol: 0.2}},
		{"NaN vol", ModelBlackScholes, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Vol: math.NaN()}},
		{"vol below floor", ModelBlackScholes, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Vol: 1e-6}},
		{"rate out of range", ModelBlackScholes, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 3, Vol: 0.2}},
		{"blackscholes dividend", ModelBlackScholes, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Dividend: 0.01, Vol: 0.2}},
		{"black76 dividend", ModelBlack76, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Dividend: 0.01, Vol: 0.2}},
		{"american negative dividend", ModelAmerican, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Dividend: -0.01, Vol: 0.2}},
		{"american dividend above rate", ModelAmerican, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Dividend: 0.06, Vol: 0.2}},
	}
	for _, c := range bad {
		_, err := e.CallPrice(c.model, c.p)
		if err == nil {
			t.Errorf("%s: expected an error", c.name)
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: got %T (%v), want *ValidationError", c.name, err, err)
		}
	}
}

func bump(p ContractParams, f func(*ContractParams)) ContractParams {
	f(&p)
	return p
}
