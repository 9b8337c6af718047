package datasets

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallWindows() ([][][]float64, []float64) {
	x := [][][]float64{
		{{1, 2}, {3, 4}},
		{{5, 6}, {7, 8}},
		{{9, 10}, {11, 12}},
	}
	return x, []float64{0.1, 0.2, 0.3}
}

func TestWindowDataset_ExampleAndBatch(t *testing.T) {
	x, y := smallWindows()
	ds, err := NewWindowDataset(x, y)
	require.NoError(t, err)
	var _ Dataset = ds

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 4, ds.InputDim())

	in, lab, err := ds.Example(1)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 6, 7, 8}, in)
	assert.Equal(t, []float32{0.2}, lab)

	_, _, err = ds.Example(3)
	assert.Error(t, err)

	ins, labs, err := ds.Batch([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{9, 10, 11, 12}, {1, 2, 3, 4}}, ins)
	assert.Equal(t, [][]float32{{0.3}, {0.1}}, labs)

	_, err = NewWindowDataset(x, y[:2])
	assert.Error(t, err)
}

func TestWindowDataset_YieldEpoch(t *testing.T) {
	x, y := smallWindows()
	ds, err := NewWindowDataset(x, y)
	require.NoError(t, err)
	ds.BatchSize = 2

	_, in, lab, err := ds.Yield()
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Len(t, lab, 1)
	assert.Equal(t, []int{2, 4}, in[0].Shape().Dimensions)
	assert.Equal(t, []int{2, 1}, lab[0].Shape().Dimensions)

	_, in, _, err = ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, in[0].Shape().Dimensions)

	_, _, _, err = ds.Yield()
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, ds.Restart())
	_, _, _, err = ds.Yield()
	assert.NoError(t, err)
}

func TestWindowDataset_ShuffleDeterministic(t *testing.T) {
	x := make([][][]float64, 20)
	y := make([]float64, 20)
	for i := range x {
		x[i] = [][]float64{{float64(i)}}
		y[i] = float64(i)
	}
	a, err := NewWindowDataset(x, y)
	require.NoError(t, err)
	b, err := NewWindowDataset(x, y)
	require.NoError(t, err)

	a.Shuffle(5)
	b.Shuffle(5)
	assert.Equal(t, a.order, b.order)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, a.order)
}

func TestMakeBatchFlat(t *testing.T) {
	flat, err := MakeBatchFlat([][]float32{{1, 2}, {3, 4}}, [][]float32{{5}, {6}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, flat.Inputs)
	assert.Equal(t, []float32{5, 6}, flat.Labels)
	assert.Equal(t, 2, flat.InputDim)

	_, err = MakeBatchFlat([][]float32{{1, 2}, {3}}, [][]float32{{5}, {6}})
	assert.Error(t, err)

	in, lab, err := flat.ToGomlxTensors()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, in.Shape().Dimensions)
	assert.Equal(t, []int{2, 1}, lab.Shape().Dimensions)

	empty, err := MakeBatchFlat(nil, nil)
	require.NoError(t, err)
	in, lab, err = empty.ToGomlxTensors()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, in.Shape().Dimensions)
	assert.Equal(t, []int{0, 0}, lab.Shape().Dimensions)

	bad := &BatchFlat{Inputs: []float32{1, 2, 3}, Labels: []float32{1}, BatchSize: 1, InputDim: 2, LabelDim: 1}
	_, _, err = bad.ToGomlxTensors()
	assert.Error(t, err)
}

func TestWindowDataset_EmptyTensors(t *testing.T) {
	x, y := smallWindows()
	ds, err := NewWindowDataset(x, y)
	require.NoError(t, err)

	in, lab, err := ds.Tensors(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, ds.InputDim()}, in.Shape().Dimensions)
	assert.Equal(t, []int{0, 1}, lab.Shape().Dimensions)
}

func TestWriteResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	rows := []ResultRow{
		{Round: 0, EnergyOptimized: 1.5, EnergyMeasured: 2, TempOptimized: 21.5, TempMeasured: 21, Controls: []float64{0.25, 1}},
		{Round: 1, EnergyOptimized: 1, EnergyMeasured: 2.5, TempOptimized: 22, TempMeasured: 22.5, Controls: []float64{0, 0.5},
			HasInterval: true, TempLow: 21.5, TempHigh: 22.5},
	}
	require.NoError(t, WriteResults(path, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"round", "energy_optimized", "energy_measured", "temp_optimized", "temp_measured",
		"control_0", "control_1", "temp_low", "temp_high"}, recs[0])
	assert.Equal(t, []string{"0", "1.5", "2", "21.5", "21", "0.25", "1", "", ""}, recs[1])
	assert.Equal(t, []string{"1", "1", "2.5", "22", "22.5", "0", "0.5", "21.5", "22.5"}, recs[2])

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp.*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files left behind")
}
