package pso

// Oracle is a pretrained forecasting model treated as a black box: given a
// window it predicts one scalar for the next step.
type Oracle interface {
	Predict(w Window) (float64, error)
}

// BatchOracle is implemented by oracles that can score many windows in one
// call. Predictions must be returned in input order.
type BatchOracle interface {
	Oracle
	PredictBatch(ws []Window) ([]float64, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(w Window) (float64, error)

// Predict calls f(w).
func (f OracleFunc) Predict(w Window) (float64, error) { return f(w) }

// SimpleOracle adapts an infallible function to the Oracle interface.
type SimpleOracle func(w Window) float64

// Predict calls f(w).
func (f SimpleOracle) Predict(w Window) (float64, error) { return f(w), nil }
