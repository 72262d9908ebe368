package marlin

import (
	"math"
	"runtime"
	"sync"
)

// FailurePolicy selects how a batch reacts to a failing element. Both modes
// are explicit configuration: strict is the conventional choice for price and
// Greeks batches, tolerant for diagnostic implied-volatility sweeps.
type FailurePolicy int

const (
	// FailStrict aborts the whole batch on the first failing element, with
	// the offending index identified.
	FailStrict FailurePolicy = iota
	// FailTolerant marks failing elements NaN, records their errors, and
	// lets the rest of the batch complete.
	FailTolerant
)

// BatchParams carries one value slice per contract parameter. A slice of
// length 1 broadcasts across the batch; all longer slices must share one
// common length. Whatever container the caller held originally, kernels only
// ever see the canonical float64 element built by at(). Price is the target
// market price and is consulted only by implied-volatility batches.
type BatchParams struct {
	Spot     []float64
	Strike   []float64
	Time     []float64
	Rate     []float64
	Dividend []float64
	Vol      []float64
	Price    []float64
}

// BatchResult is an index-aligned value vector plus, in tolerant mode, the
// errors of the elements that failed (NaN in Values at the same index).
type BatchResult struct {
	Values []float64
	Errors []BatchElementError
}

// GreeksBatchResult holds one index-aligned vector per Greek field.
type GreeksBatchResult struct {
	Delta          []float64
	Gamma          []float64
	Vega           []float64
	Theta          []float64
	Rho            []float64
	DividendRho    []float64
	HasDividendRho bool
	Errors         []BatchElementError
}

// broadcast validates the shape contract and returns the batch length. Any
// length combination other than {1, n} is rejected here, before any element
// is processed.
func (bp *BatchParams) broadcast(needVol, needPrice bool) (int, error) {
	type field struct {
		name     string
		values   []float64
		required bool
	}
	fields := []field{
		{"spot", bp.Spot, true},
		{"strike", bp.Strike, true},
		{"time", bp.Time, true},
		{"rate", bp.Rate, true},
		{"dividend", bp.Dividend, false},
		{"vol", bp.Vol, needVol},
		{"price", bp.Price, needPrice},
	}
	n := 1
	for _, f := range fields {
		if len(f.values) == 0 {
			if f.required {
				return 0, &ValidationError{Param: f.name, Reason: "missing batch parameter"}
			}
			continue
		}
		if len(f.values) > 1 {
			if n == 1 {
				n = len(f.values)
			} else if len(f.values) != n {
				return 0, &ValidationError{
					Param:  f.name,
					Value:  float64(len(f.values)),
					Reason: "length does not broadcast against the batch",
				}
			}
		}
	}
	return n, nil
}

func pickAt(values []float64, i int) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	}
	return values[i]
}

// at materializes element i as a plain scalar contract.
func (bp *BatchParams) at(i int) ContractParams {
	return ContractParams{
		Spot:     pickAt(bp.Spot, i),
		Strike:   pickAt(bp.Strike, i),
		Time:     pickAt(bp.Time, i),
		Rate:     pickAt(bp.Rate, i),
		Dividend: pickAt(bp.Dividend, i),
		Vol:      pickAt(bp.Vol, i),
	}
}

// runBatch dispatches fn over every index, serially below the parallel
// threshold and across chunked workers above it. Elements share no state, so
// the only ordering guarantee is that results land at their input index.
// mark flags an element failed in tolerant mode (typically by writing NaN).
func (e *MarlinEngine) runBatch(n int, policy FailurePolicy, mark func(i int), fn func(i int) error) ([]BatchElementError, error) {
	if n < e.batch.ParallelThreshold {
		var elemErrs []BatchElementError
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				if policy == FailStrict {
					return nil, &BatchElementError{Index: i, Err: err}
				}
				mark(i)
				elemErrs = append(elemErrs, BatchElementError{Index: i, Err: err})
			}
		}
		return elemErrs, nil
	}

	workers := e.batch.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	errs := make([]error, n)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if err := fn(i); err != nil {
					errs[i] = err
					if policy == FailStrict {
						// chunk stops; remaining chunks finish on their own
						return
					}
					mark(i)
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	var elemErrs []BatchElementError
	for i, err := range errs {
		if err == nil {
			continue
		}
		if policy == FailStrict {
			return nil, &BatchElementError{Index: i, Err: err}
		}
		elemErrs = append(elemErrs, BatchElementError{Index: i, Err: err})
	}
	return elemErrs, nil
}

// CallPriceBatch prices calls element-wise; output is identical to calling
// CallPrice on each element in isolation.
func (e *MarlinEngine) CallPriceBatch(model Model, bp BatchParams, policy FailurePolicy) (*BatchResult, error) {
	return e.priceBatch(model, Call, bp, policy)
}

// PutPriceBatch prices puts element-wise.
func (e *MarlinEngine) PutPriceBatch(model Model, bp BatchParams, policy FailurePolicy) (*BatchResult, error) {
	return e.priceBatch(model, Put, bp, policy)
}

func (e *MarlinEngine) priceBatch(model Model, right OptionRight, bp BatchParams, policy FailurePolicy) (*BatchResult, error) {
	n, err := bp.broadcast(true, false)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{Values: make([]float64, n)}
	mark := func(i int) { res.Values[i] = math.NaN() }
	res.Errors, err = e.runBatch(n, policy, mark, func(i int) error {
		v, err := e.price(model, right, bp.at(i))
		if err != nil {
			return err
		}
		res.Values[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GreeksBatch computes the Greeks record element-wise as per-field arrays.
func (e *MarlinEngine) GreeksBatch(model Model, right OptionRight, bp BatchParams, policy FailurePolicy) (*GreeksBatchResult, error) {
	n, err := bp.broadcast(true, false)
	if err != nil {
		return nil, err
	}
	res := &GreeksBatchResult{
		Delta:          make([]float64, n),
		Gamma:          make([]float64, n),
		Vega:           make([]float64, n),
		Theta:          make([]float64, n),
		Rho:            make([]float64, n),
		DividendRho:    make([]float64, n),
		HasDividendRho: model == ModelMerton || model == ModelAmerican,
	}
	mark := func(i int) {
		nan := math.NaN()
		res.Delta[i], res.Gamma[i], res.Vega[i] = nan, nan, nan
		res.Theta[i], res.Rho[i], res.DividendRho[i] = nan, nan, nan
	}
	res.Errors, err = e.runBatch(n, policy, mark, func(i int) error {
		g, err := e.Greeks(model, right, bp.at(i))
		if err != nil {
			return err
		}
		res.Delta[i] = g.Delta
		res.Gamma[i] = g.Gamma
		res.Vega[i] = g.Vega
		res.Theta[i] = g.Theta
		res.Rho[i] = g.Rho
		res.DividendRho[i] = g.DividendRho
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ImpliedVolatilityBatch inverts the model price element-wise. The target
// prices come from bp.Price; bp.Vol, when present, seeds each solve.
func (e *MarlinEngine) ImpliedVolatilityBatch(model Model, right OptionRight, bp BatchParams, policy FailurePolicy) (*BatchResult, error) {
	n, err := bp.broadcast(false, true)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{Values: make([]float64, n)}
	mark := func(i int) { res.Values[i] = math.NaN() }
	res.Errors, err = e.runBatch(n, policy, mark, func(i int) error {
		v, err := e.ImpliedVolatility(model, right, bp.at(i), pickAt(bp.Price, i))
		if err != nil {
			return err
		}
		res.Values[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
