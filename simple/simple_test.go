package simple

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/setpointSwarm/datasets"
	"github.com/Noofbiz/setpointSwarm/pso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDataset implements the minimal Dataset interface required by the trainer.
type mockDataset struct {
	inputs [][]float32
	labels [][]float32
}

func (m *mockDataset) Len() int { return len(m.inputs) }

func (m *mockDataset) Batch(indices []int) ([][]float32, [][]float32, error) {
	in := make([][]float32, len(indices))
	la := make([][]float32, len(indices))
	for i, idx := range indices {
		in[i] = m.inputs[idx]
		la[i] = m.labels[idx]
	}
	return in, la, nil
}

func mse(preds, labels [][]float32) float64 {
	var sum float64
	var n int
	for i := range preds {
		for j := range preds[i] {
			d := float64(preds[i][j] - labels[i][j])
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// linearData builds examples whose label is a linear function of the first
// two of four inputs, all scaled to [0,1].
func linearData(n int) *mockDataset {
	ds := &mockDataset{}
	for i := 0; i < n; i++ {
		x := float32(i%10) / 9
		y := float32((i/10)%10) / 9
		ds.inputs = append(ds.inputs, []float32{x, y, 0.5, 0})
		ds.labels = append(ds.labels, []float32{0.6*x + 0.3*y})
	}
	return ds
}

func TestModel_TrainReducesError(t *testing.T) {
	for _, opt := range []string{"adam", "sgd"} {
		t.Run(opt, func(t *testing.T) {
			ds := linearData(120)
			lr := 0.01
			if opt == "sgd" {
				lr = 0.05
			}
			model, err := NewModel(Config{
				HiddenSizes:  []int{16},
				InputDim:     4,
				LearningRate: lr,
				Epochs:       40,
				BatchSize:    16,
				Seed:         42,
				Optimizer:    opt,
			})
			require.NoError(t, err)

			before, err := model.PredictBatch(ds.inputs)
			require.NoError(t, err)
			history, err := model.TrainWithDataset(ds)
			require.NoError(t, err)
			require.Len(t, history, 40)
			after, err := model.PredictBatch(ds.inputs)
			require.NoError(t, err)

			mseBefore, mseAfter := mse(before, ds.labels), mse(after, ds.labels)
			t.Logf("mse before=%.6f after=%.6f", mseBefore, mseAfter)
			assert.Less(t, mseAfter, mseBefore)
			for _, p := range after {
				require.Len(t, p, 1)
				assert.False(t, math.IsNaN(float64(p[0])) || math.IsInf(float64(p[0]), 0))
			}
		})
	}
}

func TestNewModel_Validation(t *testing.T) {
	_, err := NewModel(Config{})
	assert.Error(t, err, "input dimension is required")

	_, err = NewModel(Config{InputDim: 3, Optimizer: "rmsprop"})
	assert.Error(t, err)

	_, err = NewModel(Config{InputDim: 3, HiddenSizes: []int{4, 0}})
	assert.Error(t, err)

	m, err := NewModel(Config{InputDim: 3, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, m.InputDim())
	assert.Equal(t, 1, m.Config.OutputDim)

	_, err = m.PredictBatch([][]float32{{1, 2}})
	assert.Error(t, err)
}

func TestModel_SaveLoad(t *testing.T) {
	m, err := NewModel(Config{InputDim: 4, HiddenSizes: []int{8, 4}, Seed: 7, Epochs: 2})
	require.NoError(t, err)
	_, err = m.TrainWithDataset(linearData(30))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "energy.gob")
	meta := map[string]string{"features": "a,b,c,d"}
	require.NoError(t, m.Save(path, meta))

	loaded, gotMeta, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, meta, gotMeta)
	assert.Equal(t, m.Config, loaded.Config)

	in := [][]float32{{0.1, 0.2, 0.3, 0.4}, {1, 0, 1, 0}}
	want, err := m.PredictBatch(in)
	require.NoError(t, err)
	got, err := loaded.PredictBatch(in)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestOracle_MatchesModel(t *testing.T) {
	m, err := NewModel(Config{InputDim: 6, Seed: 3})
	require.NoError(t, err)
	o := Oracle{Model: m}

	ws := []pso.Window{
		{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}},
		{{1, 0, 1}, {0, 1, 0}},
	}
	preds, err := o.PredictBatch(ws)
	require.NoError(t, err)
	require.Len(t, preds, 2)

	for i, w := range ws {
		one, err := o.Predict(w)
		require.NoError(t, err)
		assert.Equal(t, preds[i], one)

		raw, err := m.PredictBatch([][]float32{datasets.Flatten([][]float64{w[0], w[1]})})
		require.NoError(t, err)
		assert.Equal(t, float64(raw[0][0]), one)
	}

	_, err = o.Predict(pso.Window{{1, 2}})
	assert.Error(t, err)
	_, err = Oracle{}.Predict(ws[0])
	assert.Error(t, err)
}

func TestTrainWithWindowDataset(t *testing.T) {
	x := make([][][]float64, 24)
	y := make([]float64, 24)
	for i := range x {
		v := float64(i) / 23
		x[i] = [][]float64{{v, 1 - v}, {v, v}}
		y[i] = v
	}
	ds, err := datasets.NewWindowDataset(x, y)
	require.NoError(t, err)

	m, err := NewModel(Config{InputDim: ds.InputDim(), Epochs: 3, Seed: 9})
	require.NoError(t, err)
	history, err := m.TrainWithDataset(ds)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	_, err = m.TrainWithDataset(&mockDataset{})
	assert.Error(t, err)
}
