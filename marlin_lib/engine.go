package marlin

import (
	"fmt"
	"math"
	"strings"
)

// Model selects the pricing kernel. The set is closed: one case per supported
// model, dispatching to pure functions. There is no runtime registry.
type Model int

const (
	ModelBlackScholes Model = iota
	ModelBlack76
	ModelMerton
	ModelAmerican
)

func (m Model) String() string {
	switch m {
	case ModelBlackScholes:
		return "black_scholes"
	case ModelBlack76:
		return "black76"
	case ModelMerton:
		return "merton"
	case ModelAmerican:
		return "american"
	}
	return fmt.Sprintf("model(%d)", int(m))
}

// ParseModel maps a wire name onto a Model.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black_scholes", "blackscholes", "bs":
		return ModelBlackScholes, nil
	case "black76", "black_76", "b76":
		return ModelBlack76, nil
	case "merton":
		return ModelMerton, nil
	case "american":
		return ModelAmerican, nil
	}
	return 0, fmt.Errorf("unknown model %q", s)
}

// OptionRight is the call/put flag.
type OptionRight byte

const (
	Call OptionRight = 'C'
	Put  OptionRight = 'P'
)

func ParseRight(s string) (OptionRight, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "call":
		return Call, nil
	case "p", "put":
		return Put, nil
	}
	return 0, fmt.Errorf("unknown option right %q", s)
}

// ContractParams is the immutable value set describing one contract. It has no
// identity beyond its values and is created fresh per call. Spot carries the
// forward price when the model is Black-76.
type ContractParams struct {
	Spot     float64
	Strike   float64
	Time     float64
	Rate     float64
	Dividend float64
	Vol      float64
}

// GreeksResult is the fixed record of analytic sensitivities. DividendRho is
// populated only for dividend-aware models (Merton, American); HasDividendRho
// reports whether it is meaningful for the model that produced the record.
type GreeksResult struct {
	Delta          float64
	Gamma          float64
	Vega           float64
	Theta          float64
	Rho            float64
	DividendRho    float64
	HasDividendRho bool
}

// SolverConfig bounds every iterative solve in the engine. The iteration caps
// are mandatory: no solver loops unboundedly.
type SolverConfig struct {
	PriceTolerance    float64 // absolute price residual for IV convergence
	MaxIterations     int     // per solve phase
	VegaFloor         float64 // below this |vega| Newton hands off to bracketing
	VolMin            float64 // admissible volatility range
	VolMax            float64
	RateBound         float64 // |rate| and |dividend| must not exceed this
	DefaultVolGuess   float64 // Newton start when the caller supplies none
	BoundaryTolerance float64 // boundary fixed-point step tolerance, relative to strike
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		PriceTolerance:    1e-9,
		MaxIterations:     100,
		VegaFloor:         1e-10,
		VolMin:            1e-4,
		VolMax:            5.0,
		RateBound:         1.0,
		DefaultVolGuess:   0.2,
		BoundaryTolerance: 1e-9,
	}
}

// BatchConfig controls batch dispatch. Batches below ParallelThreshold run on
// the calling goroutine; larger ones fan out across Workers chunks.
type BatchConfig struct {
	ParallelThreshold int
	Workers           int // 0 means GOMAXPROCS
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{ParallelThreshold: 256}
}

// MarlinEngine evaluates option prices, Greeks, implied volatilities and
// early-exercise boundaries. It is stateless across calls: every method is a
// pure function of its inputs plus the fixed configuration.
type MarlinEngine struct {
	solver SolverConfig
	batch  BatchConfig
}

// NewMarlinEngine creates an engine with default solver and batch settings.
func NewMarlinEngine() *MarlinEngine {
	return NewMarlinEngineWithConfig(DefaultSolverConfig(), DefaultBatchConfig())
}

// NewMarlinEngineWithConfig creates an engine with explicit settings. Zero
// values fall back to the defaults so partial configs stay usable.
func NewMarlinEngineWithConfig(solver SolverConfig, batch BatchConfig) *MarlinEngine {
	def := DefaultSolverConfig()
	if solver.PriceTolerance <= 0 {
		solver.PriceTolerance = def.PriceTolerance
	}
	if solver.MaxIterations <= 0 {
		solver.MaxIterations = def.MaxIterations
	}
	if solver.VegaFloor <= 0 {
		solver.VegaFloor = def.VegaFloor
	}
	if solver.VolMin <= 0 {
		solver.VolMin = def.VolMin
	}
	if solver.VolMax <= solver.VolMin {
		solver.VolMax = def.VolMax
	}
	if solver.RateBound <= 0 {
		solver.RateBound = def.RateBound
	}
	if solver.DefaultVolGuess <= 0 {
		solver.DefaultVolGuess = def.DefaultVolGuess
	}
	if solver.BoundaryTolerance <= 0 {
		solver.BoundaryTolerance = def.BoundaryTolerance
	}
	if batch.ParallelThreshold <= 0 {
		batch.ParallelThreshold = DefaultBatchConfig().ParallelThreshold
	}
	return &MarlinEngine{solver: solver, batch: batch}
}

// CallPrice prices a single call contract under the given model.
func (e *MarlinEngine) CallPrice(model Model, p ContractParams) (float64, error) {
	return e.price(model, Call, p)
}

// PutPrice prices a single put contract under the given model.
func (e *MarlinEngine) PutPrice(model Model, p ContractParams) (float64, error) {
	return e.price(model, Put, p)
}

func (e *MarlinEngine) price(model Model, right OptionRight, p ContractParams) (float64, error) {
	if err := e.validateContract(model, p, true); err != nil {
		return 0, err
	}
	var v float64
	switch model {
	case ModelBlackScholes:
		v = bsPrice(right, p)
	case ModelBlack76:
		v = black76Price(right, p)
	case ModelMerton:
		v = mertonPrice(right, p)
	case ModelAmerican:
		v = americanPrice(right, p)
	default:
		return 0, &ValidationError{Param: "model", Value: float64(model), Reason: "unknown model"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &NumericalError{Op: model.String() + " price", Detail: fmt.Sprintf("value %g", v)}
	}
	return v, nil
}

// Greeks computes the analytic sensitivity record for one contract.
func (e *MarlinEngine) Greeks(model Model, right OptionRight, p ContractParams) (GreeksResult, error) {
	if err := e.validateContract(model, p, true); err != nil {
		return GreeksResult{}, err
	}
	var g GreeksResult
	switch model {
	case ModelBlackScholes:
		g = bsGreeks(right, p)
	case ModelBlack76:
		g = black76Greeks(right, p)
	case ModelMerton:
		g = mertonGreeks(right, p)
	case ModelAmerican:
		g = americanGreeks(right, p)
	default:
		return GreeksResult{}, &ValidationError{Param: "model", Value: float64(model), Reason: "unknown model"}
	}
	for _, f := range [...]float64{g.Delta, g.Gamma, g.Vega, g.Theta, g.Rho, g.DividendRho} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return GreeksResult{}, &NumericalError{Op: model.String() + " greeks", Detail: fmt.Sprintf("value %g", f)}
		}
	}
	return g, nil
}

// priceAt evaluates the already-validated contract at an overridden volatility.
// Solver internals use it so the clamped Newton iterate never re-validates.
func priceAt(model Model, right OptionRight, p ContractParams, vol float64) float64 {
	p.Vol = vol
	switch model {
	case ModelBlack76:
		return black76Price(right, p)
	case ModelMerton:
		return mertonPrice(right, p)
	case ModelAmerican:
		return americanPrice(right, p)
	}
	return bsPrice(right, p)
}
