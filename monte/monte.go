// Package monte estimates prediction intervals for a forecasting model by
// bootstrapping the residuals of similar historical windows.
package monte

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Dataset is the reference set: flattened windows and their measured
// targets. datasets.WindowDataset satisfies it.
type Dataset interface {
	Len() int
	Example(idx int) (inputs []float32, labels []float32, err error)
}

// Predictor is the model whose errors are bootstrapped. simple.Model
// satisfies it; only the first output is used.
type Predictor interface {
	PredictBatch(inputs [][]float32) ([][]float32, error)
}

// Interval is the bootstrap distribution of one prediction.
type Interval struct {
	Prediction float64
	Low        float64
	High       float64
	Mean       float64
	// Samples holds the simulated outcomes in ascending order.
	Samples []float64
	// Neighbors lists the reference indices used, nearest first.
	Neighbors []int
}

// Monte draws simulated outcomes as prediction + residual, where residuals
// (measured - predicted) come from the K reference windows nearest to the
// query, sampled with inverse-distance weights.
type Monte struct {
	DS    Dataset
	Model Predictor
	K     int

	// Workers bounds the goroutines used for the neighbor scan and the
	// simulations. Zero means runtime.NumCPU().
	Workers int

	Logger *zap.Logger

	rng *rand.Rand

	once      sync.Once
	prepErr   error
	inputs    [][]float32
	residuals []float64
}

// NewMonte creates a new Monte object. k must be >= 1.
func NewMonte(ds Dataset, model Predictor, k int) (*Monte, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if model == nil {
		return nil, errors.New("model cannot be nil")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	return &Monte{
		DS:     ds,
		Model:  model,
		K:      k,
		Logger: zap.NewNop(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Seed resets the generator that hands out per-simulation seeds.
func (m *Monte) Seed(seed int64) {
	m.rng = rand.New(rand.NewSource(seed))
}

func (m *Monte) workers(n int) int {
	w := m.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	return max(1, min(w, n))
}

// prepare reads the reference set once and scores it with the model.
func (m *Monte) prepare() error {
	m.once.Do(func() {
		n := m.DS.Len()
		if n == 0 {
			m.prepErr = errors.New("reference dataset is empty")
			return
		}
		inputs := make([][]float32, n)
		measured := make([]float64, n)
		for i := range n {
			in, lab, err := m.DS.Example(i)
			if err != nil {
				m.prepErr = fmt.Errorf("read reference %d: %w", i, err)
				return
			}
			if len(lab) == 0 {
				m.prepErr = fmt.Errorf("reference %d has no label", i)
				return
			}
			inputs[i] = in
			measured[i] = float64(lab[0])
		}
		preds, err := m.Model.PredictBatch(inputs)
		if err != nil {
			m.prepErr = fmt.Errorf("score reference set: %w", err)
			return
		}
		residuals := make([]float64, n)
		for i, p := range preds {
			residuals[i] = measured[i] - float64(p[0])
		}
		m.inputs, m.residuals = inputs, residuals
		m.Logger.Debug("reference residuals ready",
			zap.Int("references", n),
			zap.Float64("residual_mean", stat.Mean(residuals, nil)),
			zap.Float64("residual_std", stat.StdDev(residuals, nil)),
		)
	})
	return m.prepErr
}

// Interval simulates sims outcomes for the flattened window and returns the
// lowQ and highQ empirical quantiles, e.g. 0.05 and 0.95.
func (m *Monte) Interval(window []float32, sims int, lowQ, highQ float64) (Interval, error) {
	if m == nil {
		return Interval{}, errors.New("Monte object is nil")
	}
	if sims <= 0 {
		return Interval{}, fmt.Errorf("sims must be > 0")
	}
	if lowQ < 0 || highQ > 1 || lowQ > highQ {
		return Interval{}, fmt.Errorf("quantiles must satisfy 0 <= low <= high <= 1, got %v and %v", lowQ, highQ)
	}
	if err := m.prepare(); err != nil {
		return Interval{}, err
	}

	preds, err := m.Model.PredictBatch([][]float32{window})
	if err != nil {
		return Interval{}, fmt.Errorf("predict window: %w", err)
	}
	pred := float64(preds[0][0])

	neighbors, err := m.knnNeighbors(window, m.K)
	if err != nil {
		return Interval{}, err
	}

	const eps = 1e-6
	weights := make([]float64, len(neighbors))
	var totalWeight float64
	for i, nb := range neighbors {
		weights[i] = 1.0 / (nb.distance + eps)
		totalWeight += weights[i]
	}

	// Seeds are drawn serially so results do not depend on scheduling.
	seeds := make([]int64, sims)
	for i := range seeds {
		seeds[i] = m.rng.Int63()
	}

	samples := make([]float64, sims)
	jobs := make(chan int, sims)
	var wg sync.WaitGroup
	workerCount := m.workers(sims)
	wg.Add(workerCount)
	for range workerCount {
		go func() {
			defer wg.Done()
			for sim := range jobs {
				rng := rand.New(rand.NewSource(seeds[sim]))
				target := rng.Float64() * totalWeight
				acc := 0.0
				choice := len(weights) - 1
				for i, w := range weights {
					acc += w
					if target <= acc {
						choice = i
						break
					}
				}
				samples[sim] = pred + m.residuals[neighbors[choice].idx]
			}
		}()
	}
	for i := range sims {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.Float64s(samples)
	idx := make([]int, len(neighbors))
	for i, nb := range neighbors {
		idx[i] = nb.idx
	}
	return Interval{
		Prediction: pred,
		Low:        stat.Quantile(lowQ, stat.Empirical, samples, nil),
		High:       stat.Quantile(highQ, stat.Empirical, samples, nil),
		Mean:       stat.Mean(samples, nil),
		Samples:    samples,
		Neighbors:  idx,
	}, nil
}

type neighbor struct {
	idx      int
	distance float64
}

// knnNeighbors scans the reference set with a worker pool and returns up to
// k neighbors sorted by increasing distance, ties broken by index.
func (m *Monte) knnNeighbors(query []float32, k int) ([]neighbor, error) {
	n := len(m.inputs)
	candidates := make([]neighbor, n)
	valid := make([]bool, n)

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	workerCount := m.workers(n)
	wg.Add(workerCount)
	for range workerCount {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if len(m.inputs[i]) != len(query) {
					continue
				}
				candidates[i] = neighbor{idx: i, distance: math.Sqrt(euclideanDistanceSquared(query, m.inputs[i]))}
				valid[i] = true
			}
		}()
	}
	for i := range n {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := candidates[:0]
	for i, ok := range valid {
		if ok {
			out = append(out, candidates[i])
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no reference windows with dimension %d", len(query))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].distance < out[j].distance
	})
	return out[:min(k, len(out))], nil
}

func euclideanDistanceSquared(a, b []float32) float64 {
	sum := 0.0
	for i := 0; i < len(a) && i < len(b); i++ {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
