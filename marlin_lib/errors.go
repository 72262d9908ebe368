package marlin

import "fmt"

// ValidationError reports a malformed or out-of-range input parameter. It is
// always raised before any pricing computation runs; inputs are never clamped.
type ValidationError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s=%g: %s", e.Param, e.Value, e.Reason)
}

// ConvergenceError reports an iterative solve that exhausted its iteration
// budget or lost its bracket. The solver never returns an unconverged estimate
// as if it were a valid answer.
type ConvergenceError struct {
	Op         string
	Iterations int
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s did not converge after %d iterations (residual %g)", e.Op, e.Iterations, e.Residual)
}

// NumericalError reports an intermediate result that became non-finite.
type NumericalError struct {
	Op     string
	Detail string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%s produced a non-finite result: %s", e.Op, e.Detail)
}

// BatchElementError identifies the batch index at which an element failed.
type BatchElementError struct {
	Index int
	Err   error
}

func (e *BatchElementError) Error() string {
	return fmt.Sprintf("batch element %d: %v", e.Index, e.Err)
}

func (e *BatchElementError) Unwrap() error {
	return e.Err
}
