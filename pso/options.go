package pso

import (
	"math/rand"

	"go.uber.org/zap"
)

// Snapshot describes the swarm after its initial evaluation (Iteration -1)
// and after every iteration. Slices are copies owned by the receiver.
type Snapshot struct {
	Round     int
	Iteration int
	// Positions holds each particle's position at the end of the step,
	// i.e. after the move and clamp for iterations.
	Positions [][]float64
	// Costs holds the costs evaluated during the step.
	Costs []float64
	// BestCosts holds each particle's personal best cost.
	BestCosts []float64
	// WindowLens holds the length of every window passed to the oracles.
	WindowLens []int
	Best       Result
}

// Observer receives swarm snapshots. It runs synchronously on the
// optimizing goroutine.
type Observer func(Snapshot)

// Option configures a Swarm or a Coordinator.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	rng       *rand.Rand
	observers []Observer
}

func newOptions(cfg Config, opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRand sets the random stream used for initial positions, velocities
// and the per-particle r1/r2 draws. The default is seeded from Config.Seed.
// A *rand.Rand is not safe for concurrent use; do not share it.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rng = r
	}
}

// WithObserver registers an observer for swarm snapshots.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}
