package pso

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bandConfig() CostConfig {
	return CostConfig{
		LowBound:     0.3,
		HighBound:    0.7,
		ExponentLow:  3,
		ExponentHigh: 3,
		CoeffLow:     10,
		CoeffHigh:    10,
	}
}

func TestCostConfig_Evaluate(t *testing.T) {
	c := bandConfig()
	cases := []struct {
		name      string
		temp      float64
		low, high float64
		cost      float64
	}{
		{"at lower bound", 0.3, 0, 0, 5},
		{"inside band", 0.5, 0, 0, 5},
		{"at upper bound", 0.7, 0, 0, 5},
		{"below band", 0.2, 1, 0, 6},
		{"above band", 0.9, 0, 8, 13},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			low, high := c.Penalties(tc.temp)
			assert.InDelta(t, tc.low, low, 1e-9)
			assert.InDelta(t, tc.high, high, 1e-9)

			ev := c.Evaluate(5, tc.temp)
			assert.InDelta(t, tc.cost, ev.Cost, 1e-9)
			assert.Equal(t, 5.0, ev.Energy)
			assert.Equal(t, tc.temp, ev.Temperature)
		})
	}
}

func TestCostConfig_FarOutsideBandOverflows(t *testing.T) {
	c := bandConfig()
	_, high := c.Penalties(1e200)
	assert.True(t, math.IsInf(high, 1))

	far := c.Evaluate(5, 1e200)
	assert.True(t, math.IsInf(far.Cost, 1))
	assert.Less(t, c.Evaluate(5, 0.9).Cost, far.Cost)
	assert.False(t, far.Cost < far.Cost, "an overflowed cost never beats another")
}

func TestCostConfig_Validate(t *testing.T) {
	c := bandConfig()
	require.NoError(t, c.Validate())

	c.LowBound, c.HighBound = 0.8, 0.2
	assert.ErrorIs(t, c.Validate(), ErrConfiguration)

	c = bandConfig()
	c.CoeffHigh = math.NaN()
	assert.ErrorIs(t, c.Validate(), ErrConfiguration)
}

func lastControl(w Window) float64 {
	fv := w[len(w)-1]
	return fv[len(fv)-1]
}

func TestEvaluator_SerialAndWorkersAgree(t *testing.T) {
	ws := make([]Window, 9)
	for i := range ws {
		ws[i] = Window{{1, float64(i) / 10}}
	}
	energy := SimpleOracle(lastControl)
	temp := SimpleOracle(func(w Window) float64 { return lastControl(w) * 2 })

	serial, err := NewEvaluator(energy, temp, bandConfig())
	require.NoError(t, err)
	want, err := serial.EvaluateAll(ws)
	require.NoError(t, err)

	pooled, err := NewEvaluator(energy, temp, bandConfig())
	require.NoError(t, err)
	pooled.Workers = 4
	got, err := pooled.EvaluateAll(ws)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	ev, err := serial.Evaluate(ws[3])
	require.NoError(t, err)
	assert.Equal(t, want[3], ev)
}

type batchStub struct {
	calls atomic.Int32
	fn    func(Window) float64
}

func (b *batchStub) Predict(w Window) (float64, error) {
	return b.fn(w), nil
}

func (b *batchStub) PredictBatch(ws []Window) ([]float64, error) {
	b.calls.Add(1)
	out := make([]float64, len(ws))
	for i, w := range ws {
		out[i] = b.fn(w)
	}
	return out, nil
}

func TestEvaluator_UsesBatchOracle(t *testing.T) {
	energy := &batchStub{fn: lastControl}
	temp := &batchStub{fn: func(Window) float64 { return 0.5 }}
	e, err := NewEvaluator(energy, temp, bandConfig())
	require.NoError(t, err)

	ws := []Window{{{0, 0.4}}, {{0, 0.2}}, {{0, 0.9}}}
	evals, err := e.EvaluateAll(ws)
	require.NoError(t, err)
	require.Len(t, evals, 3)
	assert.Equal(t, 0.4, evals[0].Cost)
	assert.Equal(t, 0.2, evals[1].Cost)
	assert.Equal(t, 0.9, evals[2].Cost)
	assert.EqualValues(t, 1, energy.calls.Load())
	assert.EqualValues(t, 1, temp.calls.Load())
}

func TestEvaluator_OracleFailures(t *testing.T) {
	boom := errors.New("model exploded")
	ws := []Window{{{0, 0.1}}, {{0, 0.2}}, {{0, 0.3}}}
	ok := SimpleOracle(func(Window) float64 { return 0.5 })

	cases := []struct {
		name     string
		energy   Oracle
		temp     Oracle
		workers  int
		oracle   string
		particle int
	}{
		{
			name:     "energy error",
			energy:   OracleFunc(func(w Window) (float64, error) { return 0, boom }),
			temp:     ok,
			oracle:   "energy",
			particle: 0,
		},
		{
			name:   "temperature NaN",
			energy: ok,
			temp: SimpleOracle(func(w Window) float64 {
				if lastControl(w) == 0.2 {
					return math.NaN()
				}
				return 0.5
			}),
			oracle:   "temperature",
			particle: 1,
		},
		{
			name: "infinite energy with workers",
			energy: SimpleOracle(func(w Window) float64 {
				if lastControl(w) < 0.25 {
					return math.Inf(1)
				}
				return 1
			}),
			temp: ok,
			// particles 0 and 1 both fail, the lowest index is reported
			workers:  3,
			oracle:   "energy",
			particle: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := NewEvaluator(tc.energy, tc.temp, bandConfig())
			require.NoError(t, err)
			e.Workers = tc.workers

			_, err = e.EvaluateAll(ws)
			require.ErrorIs(t, err, ErrOracleFailure)
			var oe *OracleError
			require.ErrorAs(t, err, &oe)
			assert.Equal(t, tc.oracle, oe.Oracle)
			assert.Equal(t, tc.particle, oe.Particle)
		})
	}
}

func TestEvaluator_WrapsCause(t *testing.T) {
	boom := errors.New("model exploded")
	e, err := NewEvaluator(OracleFunc(func(Window) (float64, error) { return 0, boom }), SimpleOracle(lastControl), bandConfig())
	require.NoError(t, err)
	_, err = e.Evaluate(Window{{0, 0.5}})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrOracleFailure)
}

func TestNewEvaluator_RequiresOracles(t *testing.T) {
	_, err := NewEvaluator(nil, SimpleOracle(lastControl), bandConfig())
	assert.ErrorIs(t, err, ErrConfiguration)
}
