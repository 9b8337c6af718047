package datasets

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// WindowDataset exposes windows and their targets as flattened float32
// examples: inputs are the window steps laid end to end, labels have length 1.
type WindowDataset struct {
	// BatchSize for Yield.
	BatchSize int

	x     [][][]float64
	y     []float64
	order []int
	pos   int
}

// NewWindowDataset wraps x and y without copying.
func NewWindowDataset(x [][][]float64, y []float64) (*WindowDataset, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("windows and targets sizes don't match: %d != %d", len(x), len(y))
	}
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	return &WindowDataset{BatchSize: 32, x: x, y: y, order: order}, nil
}

// Len returns the number of windows.
func (d *WindowDataset) Len() int { return len(d.x) }

// InputDim returns the flattened window length, or 0 when empty.
func (d *WindowDataset) InputDim() int {
	if len(d.x) == 0 || len(d.x[0]) == 0 {
		return 0
	}
	return len(d.x[0]) * len(d.x[0][0])
}

// Example returns one flattened window and its target.
func (d *WindowDataset) Example(i int) ([]float32, []float32, error) {
	if i < 0 || i >= len(d.x) {
		return nil, nil, fmt.Errorf("index %d out of range [0, %d)", i, len(d.x))
	}
	return Flatten(d.x[i]), []float32{float32(d.y[i])}, nil
}

// Batch returns the examples at indices, in order.
func (d *WindowDataset) Batch(indices []int) ([][]float32, [][]float32, error) {
	inputs := make([][]float32, len(indices))
	labels := make([][]float32, len(indices))
	for b, idx := range indices {
		in, lab, err := d.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		inputs[b] = in
		labels[b] = lab
	}
	return inputs, labels, nil
}

// Shuffle permutes the order Yield walks through and restarts the epoch.
func (d *WindowDataset) Shuffle(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
	d.pos = 0
}

// Tensors reads a batch and returns it as gomlx tensors of shapes
// [batch, inputDim] and [batch, 1].
func (d *WindowDataset) Tensors(indices []int) (*tensors.Tensor, *tensors.Tensor, error) {
	in, lab, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	flat, err := MakeBatchFlat(in, lab)
	if err != nil {
		return nil, nil, err
	}
	if flat.BatchSize == 0 {
		flat.InputDim, flat.LabelDim = d.InputDim(), 1
	}
	return flat.ToGomlxTensors()
}

// Name returns the name of the dataset.
func (d *WindowDataset) Name() string { return "WindowDataset" }

// Yield returns the next BatchSize examples of the current epoch. The last
// batch may be shorter; after it Yield returns io.EOF until Restart.
func (d *WindowDataset) Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error) {
	if d.pos >= len(d.order) {
		return nil, nil, nil, io.EOF
	}
	size := d.BatchSize
	if size <= 0 {
		size = 32
	}
	end := min(d.pos+size, len(d.order))
	in, lab, err := d.Tensors(d.order[d.pos:end])
	if err != nil {
		return nil, nil, nil, err
	}
	d.pos = end
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{lab}, nil
}

// Restart resets the dataset for a new epoch.
func (d *WindowDataset) Restart() error {
	d.pos = 0
	return nil
}

// Flatten lays the steps of a window end to end as float32.
func Flatten(w [][]float64) []float32 {
	n := 0
	for _, fv := range w {
		n += len(fv)
	}
	out := make([]float32, 0, n)
	for _, fv := range w {
		for _, v := range fv {
			out = append(out, float32(v))
		}
	}
	return out
}

// BatchFlat stores a batch in flat contiguous buffers.
type BatchFlat struct {
	Inputs    []float32
	Labels    []float32
	BatchSize int
	InputDim  int
	LabelDim  int
}

// MakeBatchFlat flattens a batch into contiguous buffers.
func MakeBatchFlat(inputs, labels [][]float32) (*BatchFlat, error) {
	if len(inputs) != len(labels) {
		return nil, fmt.Errorf("inputs and labels batch sizes don't match: %d != %d", len(inputs), len(labels))
	}
	if len(inputs) == 0 {
		return &BatchFlat{}, nil
	}

	batchSize := len(inputs)
	inputDim := len(inputs[0])
	labelDim := len(labels[0])
	flatInputs := make([]float32, batchSize*inputDim)
	flatLabels := make([]float32, batchSize*labelDim)
	for i := range batchSize {
		if len(inputs[i]) != inputDim {
			return nil, fmt.Errorf("inconsistent input dimensions at example %d: expected %d, got %d",
				i, inputDim, len(inputs[i]))
		}
		if len(labels[i]) != labelDim {
			return nil, fmt.Errorf("inconsistent label dimensions at example %d: expected %d, got %d",
				i, labelDim, len(labels[i]))
		}
		copy(flatInputs[i*inputDim:], inputs[i])
		copy(flatLabels[i*labelDim:], labels[i])
	}
	return &BatchFlat{
		Inputs:    flatInputs,
		Labels:    flatLabels,
		BatchSize: batchSize,
		InputDim:  inputDim,
		LabelDim:  labelDim,
	}, nil
}

// ToGomlxTensors converts the batch to [BatchSize, InputDim] and
// [BatchSize, LabelDim] gomlx tensors. An empty batch yields tensors with a
// zero leading dimension.
func (b *BatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if len(b.Inputs) != b.BatchSize*b.InputDim || len(b.Labels) != b.BatchSize*b.LabelDim {
		return nil, nil, fmt.Errorf("flat batch buffers do not match shape [%d,%d]/[%d,%d]",
			b.BatchSize, b.InputDim, b.BatchSize, b.LabelDim)
	}
	inputs := tensors.FromFlatDataAndDimensions(b.Inputs, b.BatchSize, b.InputDim)
	labels := tensors.FromFlatDataAndDimensions(b.Labels, b.BatchSize, b.LabelDim)
	return inputs, labels, nil
}
