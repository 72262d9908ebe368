package marlin

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func randomBatch(n int, seed int64) BatchParams {
	rng := rand.New(rand.NewSource(seed))
	bp := BatchParams{
		Spot:   make([]float64, n),
		Strike: make([]float64, n),
		Time:   make([]float64, n),
		Rate:   make([]float64, n),
		Vol:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		bp.Spot[i] = 50 + 100*rng.Float64()
		bp.Strike[i] = 50 + 100*rng.Float64()
		bp.Time[i] = 0.05 + 2*rng.Float64()
		bp.Rate[i] = 0.1 * rng.Float64()
		bp.Vol[i] = 0.05 + 0.95*rng.Float64()
	}
	return bp
}

func TestBatchMatchesScalarBitForBit(t *testing.T) {
	e := NewMarlinEngine()
	bp := randomBatch(1000, 42)

	res, err := e.CallPriceBatch(ModelBlackScholes, bp, FailStrict)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(res.Values) != 1000 {
		t.Fatalf("got %d values, want 1000", len(res.Values))
	}
	for i := range res.Values {
		want, err := e.CallPrice(ModelBlackScholes, bp.at(i))
		if err != nil {
			t.Fatalf("scalar price failed at %d: %v", i, err)
		}
		if res.Values[i] != want {
			t.Fatalf("index %d: batch %v != scalar %v", i, res.Values[i], want)
		}
	}
}

func TestBatchParallelPathMatchesSerial(t *testing.T) {
	serial := NewMarlinEngine()
	parallel := NewMarlinEngineWithConfig(DefaultSolverConfig(), BatchConfig{ParallelThreshold: 1, Workers: 4})
	bp := randomBatch(500, 7)

	a, err := serial.PutPriceBatch(ModelBlackScholes, bp, FailStrict)
	if err != nil {
		t.Fatalf("serial batch failed: %v", err)
	}
	b, err := parallel.PutPriceBatch(ModelBlackScholes, bp, FailStrict)
	if err != nil {
		t.Fatalf("parallel batch failed: %v", err)
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			t.Fatalf("index %d: serial %v != parallel %v", i, a.Values[i], b.Values[i])
		}
	}
}

func TestBatchBroadcasting(t *testing.T) {
	e := NewMarlinEngine()
	bp := BatchParams{
		Spot:   []float64{90, 100, 110, 120},
		Strike: []float64{100},
		Time:   []float64{1},
		Rate:   []float64{0.05},
		Vol:    []float64{0.2},
	}
	res, err := e.CallPriceBatch(ModelBlackScholes, bp, FailStrict)
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(res.Values) != 4 {
		t.Fatalf("got %d values, want 4", len(res.Values))
	}
	for i, s := range bp.Spot {
		want, _ := e.CallPrice(ModelBlackScholes, ContractParams{Spot: s, Strike: 100, Time: 1, Rate: 0.05, Vol: 0.2})
		if res.Values[i] != want {
			t.Errorf("index %d: %v != %v", i, res.Values[i], want)
		}
	}
}

func TestBatchShapeMismatchRejectedUpfront(t *testing.T) {
	e := NewMarlinEngine()
	bp := BatchParams{
		Spot:   []float64{90, 100, 110, 120},
		Strike: []float64{100, 105, 110}, // neither 1 nor 4
		Time:   []float64{1},
		Rate:   []float64{0.05},
		Vol:    []float64{0.2},
	}
	_, err := e.CallPriceBatch(ModelBlackScholes, bp, FailStrict)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want *ValidationError", err)
	}

	// Missing a required field is also a shape error.
	bp.Strike = nil
	_, err = e.CallPriceBatch(ModelBlackScholes, bp, FailStrict)
	if !errors.As(err, &ve) {
		t.Fatalf("missing field: got %v, want *ValidationError", err)
	}
}

func TestBatchFailStrict(t *testing.T) {
	e := NewMarlinEngine()
	bp := BatchParams{
		Spot:   []float64{100, 100, -5, 100},
		Strike: []float64{100},
		Time:   []float64{1},
		Rate:   []float64{0.05},
		Vol:    []float64{0.2},
	}
	res, err := e.CallPriceBatch(ModelBlackScholes, bp, FailStrict)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if res != nil {
		t.Errorf("strict failure should not return partial results")
	}
	var be *BatchElementError
	if !errors.As(err, &be) {
		t.Fatalf("got %T (%v), want *BatchElementError", err, err)
	}
	if be.Index != 2 {
		t.Errorf("failing index = %d, want 2", be.Index)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("element error should unwrap to the validation cause, got %v", err)
	}
}

func TestBatchFailStrictParallelReportsLowestIndex(t *testing.T) {
	e := NewMarlinEngineWithConfig(DefaultSolverConfig(), BatchConfig{ParallelThreshold: 1, Workers: 8})
	bp := randomBatch(400, 11)
	bp.Spot[37] = -1
	bp.Spot[203] = math.NaN()

	_, err := e.CallPriceBatch(ModelBlackScholes, bp, FailStrict)
	var be *BatchElementError
	if !errors.As(err, &be) {
		t.Fatalf("got %v, want *BatchElementError", err)
	}
	if be.Index != 37 {
		t.Errorf("failing index = %d, want the lowest (37)", be.Index)
	}
}

func TestBatchFailTolerant(t *testing.T) {
	e := NewMarlinEngine()
	bp := BatchParams{
		Spot:   []float64{100, -5, 110, math.NaN()},
		Strike: []float64{100},
		Time:   []float64{1},
		Rate:   []float64{0.05},
		Vol:    []float64{0.2},
	}
	res, err := e.CallPriceBatch(ModelBlackScholes, bp, FailTolerant)
	if err != nil {
		t.Fatalf("tolerant batch failed: %v", err)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("got %d element errors, want 2: %v", len(res.Errors), res.Errors)
	}
	if res.Errors[0].Index != 1 || res.Errors[1].Index != 3 {
		t.Errorf("error indexes = %d,%d, want 1,3", res.Errors[0].Index, res.Errors[1].Index)
	}
	if !math.IsNaN(res.Values[1]) || !math.IsNaN(res.Values[3]) {
		t.Errorf("failed slots should hold NaN sentinels: %v", res.Values)
	}
	for _, i := range []int{0, 2} {
		if math.IsNaN(res.Values[i]) {
			t.Errorf("healthy slot %d poisoned: %v", i, res.Values)
		}
	}
}

func TestGreeksBatchMatchesScalar(t *testing.T) {
	e := NewMarlinEngine()
	bp := randomBatch(50, 3)
	bp.Dividend = []float64{0.02}

	res, err := e.GreeksBatch(ModelMerton, Call, bp, FailStrict)
	if err != nil {
		t.Fatalf("greeks batch failed: %v", err)
	}
	if !res.HasDividendRho {
		t.Errorf("merton greeks batch should carry dividend rho")
	}
	for i := 0; i < 50; i++ {
		want, err := e.Greeks(ModelMerton, Call, bp.at(i))
		if err != nil {
			t.Fatalf("scalar greeks failed at %d: %v", i, err)
		}
		if res.Delta[i] != want.Delta || res.Gamma[i] != want.Gamma ||
			res.Vega[i] != want.Vega || res.Theta[i] != want.Theta ||
			res.Rho[i] != want.Rho || res.DividendRho[i] != want.DividendRho {
			t.Fatalf("index %d: batch greeks diverge from scalar", i)
		}
	}
}

func TestImpliedVolatilityBatch(t *testing.T) {
	e := NewMarlinEngine()
	vols := []float64{0.1, 0.25, 0.6}
	prices := make([]float64, len(vols))
	for i, v := range vols {
		p, err := e.CallPrice(ModelBlackScholes, ContractParams{Spot: 100, Strike: 100, Time: 1, Rate: 0.05, Vol: v})
		if err != nil {
			t.Fatalf("price failed: %v", err)
		}
		prices[i] = p
	}
	bp := BatchParams{
		Spot:   []float64{100},
		Strike: []float64{100},
		Time:   []float64{1},
		Rate:   []float64{0.05},
		Price:  prices,
	}
	res, err := e.ImpliedVolatilityBatch(ModelBlackScholes, Call, bp, FailStrict)
	if err != nil {
		t.Fatalf("iv batch failed: %v", err)
	}
	for i, v := range vols {
		if math.Abs(res.Values[i]-v) > 1e-5 {
			t.Errorf("index %d: recovered %.8f, want %.8f", i, res.Values[i], v)
		}
	}

	// Tolerant mode flags an arbitrage-violating quote without sinking the batch.
	bp.Price = []float64{prices[0], 150, prices[2]}
	res, err = e.ImpliedVolatilityBatch(ModelBlackScholes, Call, bp, FailTolerant)
	if err != nil {
		t.Fatalf("tolerant iv batch failed: %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].Index != 1 {
		t.Fatalf("got errors %v, want a single failure at index 1", res.Errors)
	}
	if !math.IsNaN(res.Values[1]) {
		t.Errorf("failed slot should hold NaN, got %v", res.Values[1])
	}
}

func TestExerciseBoundaryBatch(t *testing.T) {
	e := NewMarlinEngine()
	bp := BatchParams{
		Spot:   []float64{100},
		Strike: []float64{90, 100, 110},
		Time:   []float64{1},
		Rate:   []float64{0.05},
		Vol:    []float64{0.2},
	}
	res, err := e.ExerciseBoundaryBatch(Put, bp, FailStrict)
	if err != nil {
		t.Fatalf("boundary batch failed: %v", err)
	}
	for i, k := range bp.Strike {
		want, err := e.ExerciseBoundary(Put, bp.at(i))
		if err != nil {
			t.Fatalf("scalar boundary failed: %v", err)
		}
		if res.Values[i] != want {
			t.Errorf("strike %v: batch %v != scalar %v", k, res.Values[i], want)
		}
	}
}
