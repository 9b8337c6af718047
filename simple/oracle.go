package simple

import (
	"fmt"

	"github.com/Noofbiz/setpointSwarm/pso"
)

// Oracle serves a trained model to the optimizer. The model's first output
// is the prediction.
type Oracle struct {
	Model *Model
}

var _ pso.BatchOracle = Oracle{}

func flatten(w pso.Window) []float32 {
	out := make([]float32, 0, len(w)*w.Width())
	for _, fv := range w {
		for _, v := range fv {
			out = append(out, float32(v))
		}
	}
	return out
}

// Predict scores a single window.
func (o Oracle) Predict(w pso.Window) (float64, error) {
	preds, err := o.PredictBatch([]pso.Window{w})
	if err != nil {
		return 0, err
	}
	return preds[0], nil
}

// PredictBatch scores windows in order.
func (o Oracle) PredictBatch(ws []pso.Window) ([]float64, error) {
	if o.Model == nil {
		return nil, fmt.Errorf("oracle has no model")
	}
	inputs := make([][]float32, len(ws))
	for i, w := range ws {
		inputs[i] = flatten(w)
	}
	outs, err := o.Model.PredictBatch(inputs)
	if err != nil {
		return nil, err
	}
	preds := make([]float64, len(outs))
	for i, out := range outs {
		preds[i] = float64(out[0])
	}
	return preds, nil
}
