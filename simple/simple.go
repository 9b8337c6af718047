// Package simple implements a small pure-Go multilayer perceptron used as a
// forecasting oracle: it reads a flattened window and predicts the target
// one step ahead.
package simple

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int `json:"hidden_sizes"`

	// InputDim is the flattened window length, seq_len * features.
	InputDim int `json:"input_dim"`

	// OutputDim defaults to 1.
	OutputDim int `json:"output_dim"`

	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64 `json:"seed"`

	// Optimizer selects the optimizer to use: "adam" or "sgd". Default: "adam".
	Optimizer string `json:"optimizer"`

	// Adam hyperparameters (defaults below if zero).
	Beta1   float64 `json:"adam_beta1"`
	Beta2   float64 `json:"adam_beta2"`
	Epsilon float64 `json:"adam_eps"`

	// ClipNorm bounds the global L2 norm of every minibatch gradient.
	ClipNorm float32 `json:"clip_norm"`
}

// Dataset is the minimal interface the trainer requires. The datasets
// package's WindowDataset satisfies it.
type Dataset interface {
	Len() int
	Batch(indices []int) ([][]float32, [][]float32, error)
}

// Model is a fully connected network with ReLU hidden layers and a linear
// output. Training is plain minibatch gradient descent on the MSE loss.
type Model struct {
	Config Config

	// Logger receives per-epoch training loss at debug level.
	Logger *zap.Logger

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32

	rng *rand.Rand

	// Adam moments, allocated on first use.
	mW, vW [][][]float32
	mB, vB [][]float32
	step   int
}

func (c *Config) applyDefaults() {
	if len(c.HiddenSizes) == 0 {
		c.HiddenSizes = []int{64}
	}
	if c.OutputDim == 0 {
		c.OutputDim = 1
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.001
	}
	if c.Epochs == 0 {
		c.Epochs = 10
	}
	if c.BatchSize == 0 {
		c.BatchSize = 8
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Optimizer == "" {
		c.Optimizer = "adam"
	}
	if c.Beta1 == 0 {
		c.Beta1 = 0.9
	}
	if c.Beta2 == 0 {
		c.Beta2 = 0.999
	}
	if c.Epsilon == 0 {
		c.Epsilon = 1e-8
	}
	if c.ClipNorm == 0 {
		c.ClipNorm = 5
	}
}

// NewModel creates a new Model instance with the provided configuration.
// It initializes weights (small random values) and is ready to train.
func NewModel(cfg Config) (*Model, error) {
	cfg.applyDefaults()
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("input dimension must be positive, got %d", cfg.InputDim)
	}
	if cfg.Optimizer != "adam" && cfg.Optimizer != "sgd" {
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
	for _, h := range cfg.HiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("hidden layer sizes must be positive, got %v", cfg.HiddenSizes)
		}
	}

	m := &Model{
		Config: cfg,
		Logger: zap.NewNop(),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, cfg.OutputDim)
	m.layerSizes = sizes

	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in, out := sizes[l], sizes[l+1]
		// Xavier/Glorot uniform, halved
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := range mat {
			row := make([]float32, in)
			for i := range row {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}
	return m, nil
}

// InputDim returns the expected input length.
func (m *Model) InputDim() int { return m.layerSizes[0] }

func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// forwardSingle returns the pre-activations of every layer and the
// activations, acts[0] being the input itself.
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, fmt.Errorf("input has dimension %d, model expects %d", len(input), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = append([]float32(nil), input...)

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		W, b := m.weights[l], m.biases[l]
		pre := make([]float32, len(b))
		for j := range pre {
			sum := b[j]
			for i, w := range W[j] {
				sum += w * inVec[i]
			}
			pre[j] = sum
		}
		preActs[l] = pre

		act := append([]float32(nil), pre...)
		if l < L-1 {
			activationReLU(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// PredictBatch returns model predictions, shape [batch][OutputDim].
func (m *Model) PredictBatch(inputs [][]float32) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		_, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, err
		}
		out[i] = acts[len(acts)-1]
	}
	return out, nil
}

func (m *Model) zeroLike() ([][][]float32, [][]float32) {
	gw := make([][][]float32, len(m.weights))
	gb := make([][]float32, len(m.biases))
	for l := range m.weights {
		gw[l] = make([][]float32, len(m.weights[l]))
		for j := range gw[l] {
			gw[l][j] = make([]float32, len(m.weights[l][j]))
		}
		gb[l] = make([]float32, len(m.biases[l]))
	}
	return gw, gb
}

// backprop accumulates the MSE gradient of one example into gw/gb and
// returns its squared error.
func (m *Model) backprop(in, label []float32, gw [][][]float32, gb [][]float32) (float64, error) {
	preacts, acts, err := m.forwardSingle(in)
	if err != nil {
		return 0, err
	}
	out := acts[len(acts)-1]
	if len(label) != len(out) {
		return 0, fmt.Errorf("label has dimension %d, model outputs %d", len(label), len(out))
	}
	var sq float64
	delta := make([]float32, len(out))
	for j := range out {
		d := out[j] - label[j]
		sq += float64(d) * float64(d)
		delta[j] = 2 * d
	}

	for l := len(m.weights) - 1; l >= 0; l-- {
		inAct := acts[l]
		for j, dj := range delta {
			gb[l][j] += dj
			row := gw[l][j]
			for i, a := range inAct {
				row[i] += dj * a
			}
		}
		if l == 0 {
			break
		}
		prev := make([]float32, len(inAct))
		for i := range prev {
			if preacts[l-1][i] <= 0 {
				continue
			}
			var sum float32
			for j, dj := range delta {
				sum += m.weights[l][j][i] * dj
			}
			prev[i] = sum
		}
		delta = prev
	}
	return sq, nil
}

func clipGlobal(gw [][][]float32, gb [][]float32, maxNorm float32) {
	if maxNorm <= 0 {
		return
	}
	var sq float64
	for l := range gw {
		for _, row := range gw[l] {
			for _, g := range row {
				sq += float64(g) * float64(g)
			}
		}
		for _, g := range gb[l] {
			sq += float64(g) * float64(g)
		}
	}
	norm := math.Sqrt(sq)
	if norm <= float64(maxNorm) {
		return
	}
	scale := float32(float64(maxNorm) / norm)
	for l := range gw {
		for _, row := range gw[l] {
			for i := range row {
				row[i] *= scale
			}
		}
		for i := range gb[l] {
			gb[l][i] *= scale
		}
	}
}

func (m *Model) apply(gw [][][]float32, gb [][]float32) {
	lr := float32(m.Config.LearningRate)
	if m.Config.Optimizer == "sgd" {
		for l := range m.weights {
			for j, row := range m.weights[l] {
				for i := range row {
					row[i] -= lr * gw[l][j][i]
				}
				m.biases[l][j] -= lr * gb[l][j]
			}
		}
		return
	}

	if m.mW == nil {
		m.mW, m.mB = m.zeroLike()
		m.vW, m.vB = m.zeroLike()
	}
	m.step++
	b1, b2 := m.Config.Beta1, m.Config.Beta2
	c1 := float32(1 - math.Pow(b1, float64(m.step)))
	c2 := float32(1 - math.Pow(b2, float64(m.step)))
	eps := float32(m.Config.Epsilon)
	fb1, fb2 := float32(b1), float32(b2)
	update := func(p *float32, g float32, mo, ve *float32) {
		*mo = fb1*(*mo) + (1-fb1)*g
		*ve = fb2*(*ve) + (1-fb2)*g*g
		mHat := *mo / c1
		vHat := *ve / c2
		*p -= lr * mHat / (float32(math.Sqrt(float64(vHat))) + eps)
	}
	for l := range m.weights {
		for j, row := range m.weights[l] {
			for i := range row {
				update(&row[i], gw[l][j][i], &m.mW[l][j][i], &m.vW[l][j][i])
			}
			update(&m.biases[l][j], gb[l][j], &m.mB[l][j], &m.vB[l][j])
		}
	}
}

// TrainWithDataset runs Config.Epochs epochs of shuffled minibatch updates
// and returns the mean squared error of each epoch.
func (m *Model) TrainWithDataset(ds Dataset) ([]float64, error) {
	if ds == nil {
		return nil, errors.New("dataset is nil")
	}
	n := ds.Len()
	if n == 0 {
		return nil, errors.New("dataset has no examples")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	history := make([]float64, 0, m.Config.Epochs)
	for ep := 0; ep < m.Config.Epochs; ep++ {
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		var total float64
		var count int
		for bstart := 0; bstart < n; bstart += m.Config.BatchSize {
			bend := min(bstart+m.Config.BatchSize, n)
			inputs, labels, err := ds.Batch(indices[bstart:bend])
			if err != nil {
				return history, err
			}
			if len(inputs) == 0 {
				continue
			}

			gw, gb := m.zeroLike()
			for ex := range inputs {
				sq, err := m.backprop(inputs[ex], labels[ex], gw, gb)
				if err != nil {
					return history, err
				}
				total += sq
				count += len(labels[ex])
			}
			inv := float32(1.0 / float64(len(inputs)))
			for l := range gw {
				for _, row := range gw[l] {
					for i := range row {
						row[i] *= inv
					}
				}
				for i := range gb[l] {
					gb[l][i] *= inv
				}
			}
			clipGlobal(gw, gb, m.Config.ClipNorm)
			m.apply(gw, gb)
		}

		loss := total / float64(max(count, 1))
		history = append(history, loss)
		m.Logger.Debug("epoch finished", zap.Int("epoch", ep), zap.Float64("mse", loss))
	}
	return history, nil
}
