package pso

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Particle is one candidate control vector and its search state. Positions
// are normalized controls and always lie in [0,1].
type Particle struct {
	ID       int
	Position []float64
	Velocity []float64

	BestPosition    []float64
	BestCost        float64
	BestEnergy      float64
	BestTemperature float64

	// Window is the oracle input built for the most recent evaluation.
	Window Window
}

// Result is the best position found by a swarm and its evaluation.
type Result struct {
	Position    []float64
	Cost        float64
	Energy      float64
	Temperature float64
}

func (r Result) clone() Result {
	r.Position = append([]float64(nil), r.Position...)
	return r
}

// Swarm runs one round of particle swarm optimization: Init, a fixed number
// of Step calls, then Best.
type Swarm struct {
	Particles []*Particle

	cfg       Config
	eval      *Evaluator
	rng       *rand.Rand
	logger    *zap.Logger
	observers []Observer

	round int
	iter  int
	best  Result
	ready bool
}

// NewSwarm returns a swarm for cfg that scores particles with eval.
func NewSwarm(cfg Config, eval *Evaluator, opts ...Option) (*Swarm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eval == nil {
		return nil, configErrorf("evaluator is nil")
	}
	return newSwarm(cfg, eval, newOptions(cfg, opts), 0), nil
}

func newSwarm(cfg Config, eval *Evaluator, o *options, round int) *Swarm {
	return &Swarm{
		cfg:       cfg,
		eval:      eval,
		rng:       o.rng,
		logger:    o.logger,
		observers: o.observers,
		round:     round,
	}
}

// Init creates fresh particles around base and evaluates them. Positions are
// drawn uniformly in [0,1] for every particle first, then velocities in
// [-InitVelocity, InitVelocity]. The global best is the first particle with
// the lowest cost.
func (s *Swarm) Init(base Window) error {
	if len(base) != s.cfg.SeqLen {
		return configErrorf("base window has %d steps, seq_len is %d", len(base), s.cfg.SeqLen)
	}
	if s.cfg.Controls >= base.Width() {
		return configErrorf("controls %d leave no exogenous features in width %d", s.cfg.Controls, base.Width())
	}

	n, dims := s.cfg.Particles, s.cfg.Controls
	s.Particles = make([]*Particle, n)
	for i := range s.Particles {
		pos := make([]float64, dims)
		for d := range pos {
			pos[d] = s.rng.Float64()
		}
		s.Particles[i] = &Particle{ID: i, Position: pos}
	}
	v0 := s.cfg.InitVelocity
	for _, p := range s.Particles {
		p.Velocity = make([]float64, dims)
		for d := range p.Velocity {
			p.Velocity[d] = -v0 + 2*v0*s.rng.Float64()
		}
	}

	windows := make([]Window, n)
	for i, p := range s.Particles {
		windows[i] = BuildWindow(base, p.Position)
	}
	evals, err := s.evaluate(windows, -1)
	if err != nil {
		return err
	}

	costs := make([]float64, n)
	for i, p := range s.Particles {
		p.Window = windows[i]
		p.BestPosition = append([]float64(nil), p.Position...)
		p.BestCost = evals[i].Cost
		p.BestEnergy = evals[i].Energy
		p.BestTemperature = evals[i].Temperature
		costs[i] = evals[i].Cost
	}
	g := s.Particles[floats.MinIdx(costs)]
	s.best = Result{
		Position:    append([]float64(nil), g.BestPosition...),
		Cost:        g.BestCost,
		Energy:      g.BestEnergy,
		Temperature: g.BestTemperature,
	}
	s.iter = 0
	s.ready = true

	s.observe(-1, windows, costs)
	return nil
}

// Step runs one iteration: rebuild every particle's window from its current
// position, evaluate, update personal and global bests on strict
// improvement, then move and clamp. r1 and r2 are drawn once per particle.
func (s *Swarm) Step() error {
	if !s.ready {
		return errors.New("pso: Step called before Init")
	}
	iter := s.iter

	windows := make([]Window, len(s.Particles))
	for i, p := range s.Particles {
		windows[i] = BuildWindow(p.Window, p.Position)
	}
	evals, err := s.evaluate(windows, iter)
	if err != nil {
		return err
	}

	costs := make([]float64, len(s.Particles))
	bestCosts := make([]float64, len(s.Particles))
	for i, p := range s.Particles {
		p.Window = windows[i]
		ev := evals[i]
		costs[i] = ev.Cost
		if ev.Cost < p.BestCost {
			p.BestPosition = append(p.BestPosition[:0], p.Position...)
			p.BestCost = ev.Cost
			p.BestEnergy = ev.Energy
			p.BestTemperature = ev.Temperature
		}
		bestCosts[i] = p.BestCost
	}

	if g := s.Particles[floats.MinIdx(bestCosts)]; g.BestCost < s.best.Cost {
		s.best = Result{
			Position:    append([]float64(nil), g.BestPosition...),
			Cost:        g.BestCost,
			Energy:      g.BestEnergy,
			Temperature: g.BestTemperature,
		}
	}

	w, c1, c2 := s.cfg.Inertia, s.cfg.Cognitive, s.cfg.Social
	for _, p := range s.Particles {
		r1 := s.rng.Float64()
		r2 := s.rng.Float64()
		for d, v := range p.Velocity {
			p.Velocity[d] = w*v +
				c1*r1*(p.BestPosition[d]-p.Position[d]) +
				c2*r2*(s.best.Position[d]-p.Position[d])
		}
		for d := range p.Position {
			p.Position[d] = clampUnit(p.Position[d] + p.Velocity[d])
		}
	}

	s.iter++
	s.logger.Debug("swarm iteration",
		zap.Int("round", s.round),
		zap.Int("iteration", iter),
		zap.Float64("best_cost", s.best.Cost),
		zap.Float64("best_energy", s.best.Energy),
		zap.Float64("best_temperature", s.best.Temperature),
	)
	s.observe(iter, windows, costs)
	return nil
}

// Run initializes the swarm on base and iterates cfg.Iterations times. The
// context is checked between iterations.
func (s *Swarm) Run(ctx context.Context, base Window) (Result, error) {
	if err := s.Init(base); err != nil {
		return Result{}, err
	}
	for i := 0; i < s.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := s.Step(); err != nil {
			return Result{}, err
		}
	}
	return s.Best(), nil
}

// Best returns a copy of the global best found so far.
func (s *Swarm) Best() Result {
	return s.best.clone()
}

func (s *Swarm) evaluate(windows []Window, iter int) ([]Evaluation, error) {
	evals, err := s.eval.EvaluateAll(windows)
	if err != nil {
		var oe *OracleError
		if errors.As(err, &oe) {
			oe.Round = s.round
			oe.Iteration = iter
		}
		return nil, err
	}
	return evals, nil
}

func (s *Swarm) observe(iter int, windows []Window, costs []float64) {
	if len(s.observers) == 0 {
		return
	}
	snap := Snapshot{
		Round:      s.round,
		Iteration:  iter,
		Positions:  make([][]float64, len(s.Particles)),
		Costs:      append([]float64(nil), costs...),
		BestCosts:  make([]float64, len(s.Particles)),
		WindowLens: make([]int, len(windows)),
		Best:       s.best.clone(),
	}
	for i, p := range s.Particles {
		snap.Positions[i] = append([]float64(nil), p.Position...)
		snap.BestCosts[i] = p.BestCost
	}
	for i, w := range windows {
		snap.WindowLens[i] = len(w)
	}
	for _, obs := range s.observers {
		obs(snap)
	}
}

func clampUnit(x float64) float64 {
	return math.Min(1, math.Max(0, x))
}
