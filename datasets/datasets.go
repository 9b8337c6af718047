// Package datasets loads building telemetry from CSV, derives time features,
// scales columns and cuts the series into forecasting windows.
//
// Windows are kept as float64 [window][step][feature] slices for the
// optimizer. For model training they are flattened into float32 examples
// and, when needed, converted to gomlx tensors.
package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// Dataset is the training view of a set of windows. It follows the shape of
// gomlx's train.Dataset so the same value can feed a gomlx training loop.
type Dataset interface {
	Len() int
	Example(i int) (inputs []float32, labels []float32, err error)
	Batch(indices []int) (inputs [][]float32, labels [][]float32, err error)
	Shuffle(seed int64)

	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
}
