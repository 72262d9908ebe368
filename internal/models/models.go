package models

// ContractRequest carries one option contract over the wire. NaN is not valid
// JSON, so absent optional fields arrive as zero and the engine's validation
// decides whether zero is acceptable for the chosen model.
type ContractRequest struct {
	Model    string  `json:"model"`              // black_scholes, black76, merton, american
	Right    string  `json:"right"`              // call or put
	Spot     float64 `json:"spot"`               // forward price under black76
	Strike   float64 `json:"strike"`
	Time     float64 `json:"time"`               // years to expiry
	Rate     float64 `json:"rate"`               // continuously compounded
	Dividend float64 `json:"dividend,omitempty"` // continuous yield
	Vol      float64 `json:"vol,omitempty"`
}

// PriceResponse is the scalar pricing result
type PriceResponse struct {
	Model string  `json:"model"`
	Right string  `json:"right"`
	Price float64 `json:"price"`
}

// GreeksResponse holds the sensitivity record. DividendRho is present only
// for dividend-aware models.
type GreeksResponse struct {
	Model       string   `json:"model"`
	Right       string   `json:"right"`
	Delta       float64  `json:"delta"`
	Gamma       float64  `json:"gamma"`
	Vega        float64  `json:"vega"`
	Theta       float64  `json:"theta"`
	Rho         float64  `json:"rho"`
	DividendRho *float64 `json:"dividend_rho,omitempty"`
}

// ImpliedVolRequest inverts a market quote. Vol, when set, seeds the solver.
type ImpliedVolRequest struct {
	ContractRequest
	Price float64 `json:"price"` // observed market price
}

type ImpliedVolResponse struct {
	Model      string  `json:"model"`
	Right      string  `json:"right"`
	ImpliedVol float64 `json:"implied_vol"`
}

// BoundaryResponse reports the early-exercise boundary of an American option.
// Infinite boundaries (a never-exercised call) are flagged rather than encoded
// as a float, since JSON has no Inf.
type BoundaryResponse struct {
	Right        string  `json:"right"`
	Boundary     float64 `json:"boundary"`
	NeverOptimal bool    `json:"never_optimal,omitempty"`
}

// BatchRequest carries per-field value arrays. A length-1 array broadcasts
// across the batch.
type BatchRequest struct {
	Model    string    `json:"model"`
	Right    string    `json:"right"`
	Policy   string    `json:"policy,omitempty"` // strict (default) or tolerant
	Spot     []float64 `json:"spot"`
	Strike   []float64 `json:"strike"`
	Time     []float64 `json:"time"`
	Rate     []float64 `json:"rate"`
	Dividend []float64 `json:"dividend,omitempty"`
	Vol      []float64 `json:"vol,omitempty"`
	Price    []float64 `json:"price,omitempty"` // implied vol targets
}

// BatchElement mirrors one failed element in a tolerant batch
type BatchElement struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResponse returns index-aligned values. Failed tolerant elements hold
// null (JSON cannot carry NaN) and appear in Errors.
type BatchResponse struct {
	Model  string         `json:"model,omitempty"`
	Right  string         `json:"right"`
	Count  int            `json:"count"`
	Values []*float64     `json:"values"`
	Errors []BatchElement `json:"errors,omitempty"`
}

// GreeksBatchResponse returns one index-aligned array per Greek
type GreeksBatchResponse struct {
	Model       string         `json:"model"`
	Right       string         `json:"right"`
	Count       int            `json:"count"`
	Delta       []*float64     `json:"delta"`
	Gamma       []*float64     `json:"gamma"`
	Vega        []*float64     `json:"vega"`
	Theta       []*float64     `json:"theta"`
	Rho         []*float64     `json:"rho"`
	DividendRho []*float64     `json:"dividend_rho,omitempty"`
	Errors      []BatchElement `json:"errors,omitempty"`
}

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"` // validation, convergence, numerical
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
