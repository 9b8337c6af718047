package datasets

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampTable writes n hourly rows with a = r, c = 2r and target = 10 + r.
func rampTable(t *testing.T, n int) *Table {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]string, n)
	for r := range rows {
		ts := start.Add(time.Duration(r) * time.Hour).Format("2006-01-02 15:04:05")
		rows[r] = fmt.Sprintf("%s,%d,%d,%d", ts, r, 2*r, 10+r)
	}
	path := filepath.Join(t.TempDir(), "ramp.csv")
	writeCSV(t, path, "time,a,c,target", rows)
	tab, err := LoadTable(path)
	require.NoError(t, err)
	return tab
}

func rampPreprocessor() Preprocessor {
	return Preprocessor{
		Exogenous:   []string{"a"},
		Controls:    []string{"c"},
		Target:      "target",
		SeqLen:      3,
		ValFraction: 0.25,
	}
}

func TestPreprocessor_Process(t *testing.T) {
	split, err := rampPreprocessor().Process(rampTable(t, 20))
	require.NoError(t, err)

	// 15 training rows; windows whose target row is < 15 train
	require.Len(t, split.XTrain, 13)
	require.Len(t, split.YTrain, 13)
	require.Len(t, split.XVal, 5)
	require.Len(t, split.YVal, 5)
	assert.Equal(t, []string{"a", "c"}, split.Features)
	assert.Equal(t, 1, split.Controls)

	w := split.XTrain[0]
	require.Len(t, w, 3)
	assert.InDelta(t, 2.0/14, w[2][0], 1e-12)
	assert.InDelta(t, 4.0/28, w[2][1], 1e-12)
	assert.InDelta(t, 2.0/14, split.YTrain[0], 1e-12)

	// validation windows continue where training stops
	assert.InDelta(t, 13.0/14, split.XVal[0][0][0], 1e-12)
	assert.InDelta(t, 19.0/14, split.YVal[4], 1e-12, "scaler is fitted on training rows only")

	phys, err := split.Scaler.InverseTarget(split.YVal)
	require.NoError(t, err)
	for i, v := range phys {
		assert.InDelta(t, float64(25+i), v, 1e-9)
	}
}

func TestPreprocessor_Horizon(t *testing.T) {
	p := rampPreprocessor()
	p.Horizon = 1
	split, err := p.Process(rampTable(t, 20))
	require.NoError(t, err)
	assert.Len(t, split.XTrain, 12)
	assert.Len(t, split.XVal, 5)
	// window 0 covers rows 0..2 and predicts row 3
	assert.InDelta(t, 3.0/14, split.YTrain[0], 1e-12)
}

func TestPreprocessor_Errors(t *testing.T) {
	_, err := rampPreprocessor().Process(rampTable(t, 3))
	assert.ErrorIs(t, err, ErrNotEnoughRows)

	p := rampPreprocessor()
	p.Controls = []string{"missing"}
	_, err = p.Process(rampTable(t, 20))
	assert.ErrorIs(t, err, ErrMissingColumn)

	p = rampPreprocessor()
	p.ValFraction = 1
	_, err = p.Process(rampTable(t, 20))
	assert.Error(t, err)
}

func TestAddCyclicalTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ts.csv")
	writeCSV(t, path, "time", []string{
		"2024-01-01 00:00:00",  // Monday
		"2024-01-07T06:00:00Z", // Sunday
	})
	tab, err := LoadTable(path)
	require.NoError(t, err)
	require.NoError(t, AddCyclicalTime(tab, "time"))

	get := func(col string) []float64 {
		v, err := tab.Floats(col)
		require.NoError(t, err)
		return v
	}
	hs, hc := get(ColHoursSin), get(ColHoursCos)
	ws, wc := get(ColWeekdaySin), get(ColWeekdayCos)

	assert.InDelta(t, 0, hs[0], 1e-12)
	assert.InDelta(t, 1, hc[0], 1e-12)
	assert.InDelta(t, 0, ws[0], 1e-12)
	assert.InDelta(t, 1, wc[0], 1e-12)

	assert.InDelta(t, 1, hs[1], 1e-12)
	assert.InDelta(t, 0, hc[1], 1e-12)
	assert.InDelta(t, math.Sin(2*math.Pi*6/7), ws[1], 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*6/7), wc[1], 1e-12)
}

func TestAddCyclicalTime_BadTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ts.csv")
	writeCSV(t, path, "time", []string{"yesterday"})
	tab, err := LoadTable(path)
	require.NoError(t, err)
	assert.Error(t, AddCyclicalTime(tab, "time"))
}

func TestScaler(t *testing.T) {
	s := &Scaler{Target: "t"}
	require.NoError(t, s.Fit([]string{"x", "t", "k"}, [][]float64{{2, 4, 6}, {20, 25, 30}, {5, 5, 5}}))

	v, err := s.TransformValue("x", 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, v, 1e-12)

	v, err = s.TransformValue("k", 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "constant columns scale to 0")

	vals := []float64{20, 22.5, 30}
	require.NoError(t, s.Transform("T", vals))
	assert.InDeltaSlice(t, []float64{0, 0.25, 1}, vals, 1e-12)
	require.NoError(t, s.InverseTransform("t", vals))
	assert.InDeltaSlice(t, []float64{20, 22.5, 30}, vals, 1e-12)

	back, err := s.InverseValue("x", 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 4, back, 1e-12)

	_, err = s.TransformValue("nope", 1)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
