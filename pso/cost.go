package pso

import (
	"fmt"
	"math"
	"sync"
)

const (
	oracleEnergy      = "energy"
	oracleTemperature = "temperature"
)

// Evaluation is the outcome of scoring one window.
type Evaluation struct {
	Cost        float64
	Energy      float64
	Temperature float64
}

// Penalties returns the comfort penalties for a (scaled) temperature. Both are
// zero inside [LowBound, HighBound]. Outside the band the distance is scaled
// by the coefficient before being raised to the exponent. Far outside the band
// the power can overflow to +Inf; such a cost never replaces a best.
func (c CostConfig) Penalties(temp float64) (low, high float64) {
	low = math.Pow(c.CoeffLow*math.Max(0, c.LowBound-temp), c.ExponentLow)
	high = math.Pow(c.CoeffHigh*math.Max(0, temp-c.HighBound), c.ExponentHigh)
	return low, high
}

// Evaluate combines an energy and a temperature prediction into a cost.
func (c CostConfig) Evaluate(energy, temp float64) Evaluation {
	low, high := c.Penalties(temp)
	return Evaluation{
		Cost:        energy + low + high,
		Energy:      energy,
		Temperature: temp,
	}
}

// Evaluator scores windows with the energy and temperature oracles.
type Evaluator struct {
	Energy      Oracle
	Temperature Oracle
	Cost        CostConfig
	// Workers bounds concurrent Predict calls for oracles without batch
	// support. Values below 2 evaluate serially.
	Workers int
}

// NewEvaluator returns an evaluator for the given oracles and cost shape.
func NewEvaluator(energy, temp Oracle, cost CostConfig) (*Evaluator, error) {
	if energy == nil || temp == nil {
		return nil, configErrorf("both energy and temperature oracles are required")
	}
	return &Evaluator{Energy: energy, Temperature: temp, Cost: cost}, nil
}

// Evaluate scores a single window.
func (e *Evaluator) Evaluate(w Window) (Evaluation, error) {
	evals, err := e.EvaluateAll([]Window{w})
	if err != nil {
		return Evaluation{}, err
	}
	return evals[0], nil
}

// EvaluateAll scores windows in order. The energy oracle runs over every
// window before the temperature oracle. A failing or non-finite prediction
// aborts with an *OracleError naming the lowest failing index.
func (e *Evaluator) EvaluateAll(ws []Window) ([]Evaluation, error) {
	energy, err := predictAll(oracleEnergy, e.Energy, ws, e.Workers)
	if err != nil {
		return nil, err
	}
	temp, err := predictAll(oracleTemperature, e.Temperature, ws, e.Workers)
	if err != nil {
		return nil, err
	}
	out := make([]Evaluation, len(ws))
	for i := range ws {
		out[i] = e.Cost.Evaluate(energy[i], temp[i])
	}
	return out, nil
}

func predictAll(name string, o Oracle, ws []Window, workers int) ([]float64, error) {
	if bo, ok := o.(BatchOracle); ok {
		preds, err := bo.PredictBatch(ws)
		if err != nil {
			return nil, &OracleError{Oracle: name, Particle: -1, Err: err}
		}
		if len(preds) != len(ws) {
			return nil, &OracleError{Oracle: name, Particle: -1,
				Err: fmt.Errorf("batch returned %d predictions for %d windows", len(preds), len(ws))}
		}
		for i, v := range preds {
			if !finite(v) {
				return nil, &OracleError{Oracle: name, Particle: i, Value: v}
			}
		}
		return preds, nil
	}

	preds := make([]float64, len(ws))
	if workers < 2 || len(ws) < 2 {
		for i, w := range ws {
			v, err := o.Predict(w)
			if err != nil {
				return nil, &OracleError{Oracle: name, Particle: i, Err: err}
			}
			if !finite(v) {
				return nil, &OracleError{Oracle: name, Particle: i, Value: v}
			}
			preds[i] = v
		}
		return preds, nil
	}

	if workers > len(ws) {
		workers = len(ws)
	}
	errs := make([]error, len(ws))
	jobs := make(chan int, len(ws))
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range jobs {
				v, err := o.Predict(ws[i])
				switch {
				case err != nil:
					errs[i] = &OracleError{Oracle: name, Particle: i, Err: err}
				case !finite(v):
					errs[i] = &OracleError{Oracle: name, Particle: i, Value: v}
				default:
					preds[i] = v
				}
			}
		}()
	}
	for i := range ws {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return preds, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
