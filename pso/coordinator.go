package pso

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Round is the outcome of optimizing one validation point.
type Round struct {
	Index       int
	Controls    []float64
	Cost        float64
	Energy      float64
	Temperature float64
}

// Coordinator runs one swarm per validation window and threads each winning
// control vector into the history of the following windows before they are
// optimized.
type Coordinator struct {
	cfg  Config
	eval *Evaluator
	opts *options
}

// NewCoordinator returns a coordinator scoring candidates with the given
// oracles.
func NewCoordinator(cfg Config, energy, temp Oracle, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eval, err := NewEvaluator(energy, temp, cfg.Cost)
	if err != nil {
		return nil, err
	}
	eval.Workers = cfg.Workers
	return &Coordinator{cfg: cfg, eval: eval, opts: newOptions(cfg, opts)}, nil
}

// Run optimizes the first cfg.Rounds windows in order. windows is never
// modified: the coordinator works on a deep copy, which it returns with all
// propagated controls applied.
//
// On an oracle failure the rounds completed so far are returned together
// with the error. Configuration errors are reported before any round runs.
func (c *Coordinator) Run(ctx context.Context, windows []Window) ([]Round, []Window, error) {
	if err := c.cfg.ValidateData(windows); err != nil {
		return nil, nil, err
	}
	work := make([]Window, len(windows))
	for i, w := range windows {
		work[i] = w.Clone()
	}

	log := c.opts.logger
	rounds := make([]Round, 0, c.cfg.Rounds)
	for t := 0; t < c.cfg.Rounds; t++ {
		if err := ctx.Err(); err != nil {
			return rounds, work, err
		}
		start := time.Now()
		log.Info("optimizing round", zap.Int("round", t), zap.Int("particles", c.cfg.Particles), zap.Int("iterations", c.cfg.Iterations))

		s := newSwarm(c.cfg, c.eval, c.opts, t)
		best, err := s.Run(ctx, work[t])
		if err != nil {
			return rounds, work, fmt.Errorf("round %d: %w", t, err)
		}
		rounds = append(rounds, Round{
			Index:       t,
			Controls:    best.Position,
			Cost:        best.Cost,
			Energy:      best.Energy,
			Temperature: best.Temperature,
		})

		applied := Propagate(work, t, best.Position, c.cfg.SeqLen)
		log.Info("round optimized",
			zap.Int("round", t),
			zap.Float64("cost", best.Cost),
			zap.Float64("energy", best.Energy),
			zap.Float64("temperature", best.Temperature),
			zap.Float64s("controls", best.Position),
			zap.Int("propagated", applied),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return rounds, work, nil
}

// Propagate writes controls, decided at round t, into the history of the
// next seqLen-1 windows: window t+i+1 receives them at slot seqLen-i-2. Only
// the controllable suffix of each slot changes. Offsets beyond the last
// window are skipped. It returns the number of windows updated.
func Propagate(windows []Window, t int, controls []float64, seqLen int) int {
	applied := 0
	for i := 0; i < seqLen-1; i++ {
		r := t + i + 1
		if r >= len(windows) {
			break
		}
		slot := seqLen - i - 2
		windows[r][slot] = spliceControls(windows[r][slot], controls)
		applied++
	}
	return applied
}
