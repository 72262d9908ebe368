package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/quantfish/marlin/internal/logger"
	"github.com/quantfish/marlin/internal/models"
	marlin "github.com/quantfish/marlin/marlin_lib"
)

// OptionsHandler is the HTTP face of the pricing engine. It decodes requests,
// delegates to the engine, and encodes results; no pricing logic lives here.
type OptionsHandler struct {
	engine *marlin.MarlinEngine
}

func NewOptionsHandler(engine *marlin.MarlinEngine) *OptionsHandler {
	return &OptionsHandler{engine: engine}
}

// HandleHealth handles GET /health
func (h *OptionsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Service: "marlin"})
}

// HandlePrice handles POST /api/v1/price
func (h *OptionsHandler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	var req models.ContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	model, right, params, err := h.resolve(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var price float64
	if right == marlin.Call {
		price, err = h.engine.CallPrice(model, params)
	} else {
		price, err = h.engine.PutPrice(model, params)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	logger.Debug.Printf("💵 priced %s %s: %.6f", model, req.Right, price)
	writeJSON(w, http.StatusOK, models.PriceResponse{
		Model: model.String(),
		Right: rightName(right),
		Price: price,
	})
}

// HandleGreeks handles POST /api/v1/greeks
func (h *OptionsHandler) HandleGreeks(w http.ResponseWriter, r *http.Request) {
	var req models.ContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	model, right, params, err := h.resolve(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	g, err := h.engine.Greeks(model, right, params)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := models.GreeksResponse{
		Model: model.String(),
		Right: rightName(right),
		Delta: g.Delta,
		Gamma: g.Gamma,
		Vega:  g.Vega,
		Theta: g.Theta,
		Rho:   g.Rho,
	}
	if g.HasDividendRho {
		dr := g.DividendRho
		resp.DividendRho = &dr
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleImpliedVol handles POST /api/v1/implied-vol
func (h *OptionsHandler) HandleImpliedVol(w http.ResponseWriter, r *http.Request) {
	var req models.ImpliedVolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	model, right, params, err := h.resolve(req.ContractRequest)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	iv, err := h.engine.ImpliedVolatility(model, right, params, req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	logger.Debug.Printf("🎯 implied vol %s %s: %.6f", model, req.Right, iv)
	writeJSON(w, http.StatusOK, models.ImpliedVolResponse{
		Model:      model.String(),
		Right:      rightName(right),
		ImpliedVol: iv,
	})
}

// HandleBoundary handles POST /api/v1/boundary
func (h *OptionsHandler) HandleBoundary(w http.ResponseWriter, r *http.Request) {
	var req models.ContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	right, err := marlin.ParseRight(req.Right)
	if err != nil {
		writeEngineError(w, &marlin.ValidationError{Param: "right", Reason: err.Error()})
		return
	}

	b, err := h.engine.ExerciseBoundary(right, contractParams(req))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := models.BoundaryResponse{Right: rightName(right)}
	if math.IsInf(b, 1) {
		resp.NeverOptimal = true
	} else {
		resp.Boundary = b
		resp.NeverOptimal = b == 0
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePriceBatch handles POST /api/v1/batch/price
func (h *OptionsHandler) HandlePriceBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	model, right, bp, policy, err := h.resolveBatch(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var res *marlin.BatchResult
	if right == marlin.Call {
		res, err = h.engine.CallPriceBatch(model, bp, policy)
	} else {
		res, err = h.engine.PutPriceBatch(model, bp, policy)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}

	logger.Info.Printf("📊 priced batch of %d (%s %s)", len(res.Values), model, req.Right)
	writeJSON(w, http.StatusOK, models.BatchResponse{
		Model:  model.String(),
		Right:  rightName(right),
		Count:  len(res.Values),
		Values: nullableValues(res.Values),
		Errors: batchElements(res.Errors),
	})
}

// HandleGreeksBatch handles POST /api/v1/batch/greeks
func (h *OptionsHandler) HandleGreeksBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	model, right, bp, policy, err := h.resolveBatch(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := h.engine.GreeksBatch(model, right, bp, policy)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := models.GreeksBatchResponse{
		Model:  model.String(),
		Right:  rightName(right),
		Count:  len(res.Delta),
		Delta:  nullableValues(res.Delta),
		Gamma:  nullableValues(res.Gamma),
		Vega:   nullableValues(res.Vega),
		Theta:  nullableValues(res.Theta),
		Rho:    nullableValues(res.Rho),
		Errors: batchElements(res.Errors),
	}
	if res.HasDividendRho {
		resp.DividendRho = nullableValues(res.DividendRho)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleImpliedVolBatch handles POST /api/v1/batch/implied-vol
func (h *OptionsHandler) HandleImpliedVolBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	model, right, bp, policy, err := h.resolveBatch(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := h.engine.ImpliedVolatilityBatch(model, right, bp, policy)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	logger.Info.Printf("🎯 solved %d implied vols, %d failed", len(res.Values), len(res.Errors))
	writeJSON(w, http.StatusOK, models.BatchResponse{
		Model:  model.String(),
		Right:  rightName(right),
		Count:  len(res.Values),
		Values: nullableValues(res.Values),
		Errors: batchElements(res.Errors),
	})
}

// HandleBoundaryBatch handles POST /api/v1/batch/boundary
func (h *OptionsHandler) HandleBoundaryBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDecodeError(w, err)
		return
	}

	right, err := marlin.ParseRight(req.Right)
	if err != nil {
		writeEngineError(w, &marlin.ValidationError{Param: "right", Reason: err.Error()})
		return
	}
	policy, err := parsePolicy(req.Policy)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := h.engine.ExerciseBoundaryBatch(right, batchParams(req), policy)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.BatchResponse{
		Right:  rightName(right),
		Count:  len(res.Values),
		Values: nullableValues(res.Values),
		Errors: batchElements(res.Errors),
	})
}

func (h *OptionsHandler) resolve(req models.ContractRequest) (marlin.Model, marlin.OptionRight, marlin.ContractParams, error) {
	model, err := marlin.ParseModel(req.Model)
	if err != nil {
		return 0, 0, marlin.ContractParams{}, &marlin.ValidationError{Param: "model", Reason: err.Error()}
	}
	right, err := marlin.ParseRight(req.Right)
	if err != nil {
		return 0, 0, marlin.ContractParams{}, &marlin.ValidationError{Param: "right", Reason: err.Error()}
	}
	return model, right, contractParams(req), nil
}

func (h *OptionsHandler) resolveBatch(req models.BatchRequest) (marlin.Model, marlin.OptionRight, marlin.BatchParams, marlin.FailurePolicy, error) {
	model, err := marlin.ParseModel(req.Model)
	if err != nil {
		return 0, 0, marlin.BatchParams{}, 0, &marlin.ValidationError{Param: "model", Reason: err.Error()}
	}
	right, err := marlin.ParseRight(req.Right)
	if err != nil {
		return 0, 0, marlin.BatchParams{}, 0, &marlin.ValidationError{Param: "right", Reason: err.Error()}
	}
	policy, err := parsePolicy(req.Policy)
	if err != nil {
		return 0, 0, marlin.BatchParams{}, 0, err
	}
	return model, right, batchParams(req), policy, nil
}

func contractParams(req models.ContractRequest) marlin.ContractParams {
	return marlin.ContractParams{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Time:     req.Time,
		Rate:     req.Rate,
		Dividend: req.Dividend,
		Vol:      req.Vol,
	}
}

func batchParams(req models.BatchRequest) marlin.BatchParams {
	return marlin.BatchParams{
		Spot:     req.Spot,
		Strike:   req.Strike,
		Time:     req.Time,
		Rate:     req.Rate,
		Dividend: req.Dividend,
		Vol:      req.Vol,
		Price:    req.Price,
	}
}

func parsePolicy(s string) (marlin.FailurePolicy, error) {
	switch s {
	case "", "strict":
		return marlin.FailStrict, nil
	case "tolerant":
		return marlin.FailTolerant, nil
	}
	return 0, &marlin.ValidationError{Param: "policy", Reason: "must be strict or tolerant"}
}

func rightName(r marlin.OptionRight) string {
	if r == marlin.Call {
		return "call"
	}
	return "put"
}

// nullableValues converts NaN sentinels into JSON nulls
func nullableValues(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) {
			continue
		}
		v := values[i]
		out[i] = &v
	}
	return out
}

func batchElements(errs []marlin.BatchElementError) []models.BatchElement {
	if len(errs) == 0 {
		return nil
	}
	out := make([]models.BatchElement, len(errs))
	for i, e := range errs {
		out[i] = models.BatchElement{Index: e.Index, Error: e.Err.Error()}
	}
	return out
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes:
// bad inputs are the client's fault, a solver that ran out of iterations is
// an unprocessable request, anything else is on us.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		ve *marlin.ValidationError
		ce *marlin.ConvergenceError
		ne *marlin.NumericalError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Kind: "validation"})
	case errors.As(err, &ce):
		logger.Warn.Printf("solver did not converge: %v", err)
		writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error(), Kind: "convergence"})
	case errors.As(err, &ne):
		logger.Error.Printf("numerical failure: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error(), Kind: "numerical"})
	default:
		logger.Error.Printf("unexpected failure: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + err.Error(), Kind: "validation"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}
