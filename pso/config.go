package pso

import "math"

// Defaults taken from the reference optimization runs.
const (
	DefaultSeqLen       = 12
	DefaultControls     = 4
	DefaultRounds       = 2
	DefaultParticles    = 50
	DefaultIterations   = 10
	DefaultInertia      = 0.5
	DefaultCognition    = 0.3
	DefaultSocial       = 0.3
	DefaultInitVelocity = 0.1
	DefaultExponent     = 3
	DefaultCoefficient  = 10
)

// CostConfig holds the comfort band (in scaled target units) and the shape
// of the penalties applied outside it.
type CostConfig struct {
	LowBound     float64 `json:"low_bound_scaled"`
	HighBound    float64 `json:"high_bound_scaled"`
	ExponentLow  float64 `json:"exponent_low"`
	ExponentHigh float64 `json:"exponent_high"`
	CoeffLow     float64 `json:"coeff_low"`
	CoeffHigh    float64 `json:"coeff_high"`
}

// DefaultCostConfig returns the default penalty shape. The band itself has
// no sensible default and is left at [0, 0]; callers derive it from the
// target scaler.
func DefaultCostConfig() CostConfig {
	return CostConfig{
		ExponentLow:  DefaultExponent,
		ExponentHigh: DefaultExponent,
		CoeffLow:     DefaultCoefficient,
		CoeffHigh:    DefaultCoefficient,
	}
}

// Validate checks the band ordering and that all parameters are finite.
func (c CostConfig) Validate() error {
	params := []struct {
		name string
		v    float64
	}{
		{"low_bound_scaled", c.LowBound},
		{"high_bound_scaled", c.HighBound},
		{"exponent_low", c.ExponentLow},
		{"exponent_high", c.ExponentHigh},
		{"coeff_low", c.CoeffLow},
		{"coeff_high", c.CoeffHigh},
	}
	for _, p := range params {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) {
			return configErrorf("%s must be finite, got %v", p.name, p.v)
		}
	}
	if c.LowBound > c.HighBound {
		return configErrorf("low_bound_scaled %v above high_bound_scaled %v", c.LowBound, c.HighBound)
	}
	return nil
}

// Config is the full configuration surface consumed by the optimizer.
type Config struct {
	// SeqLen is the oracle window length.
	SeqLen int `json:"seq_len"`
	// Controls is the number of decision variables N, i.e. the trailing
	// entries of every feature vector.
	Controls int `json:"controls"`
	// Rounds is the number of validation points to optimize.
	Rounds int `json:"opt_rounds"`
	// Particles is the swarm size n.
	Particles int `json:"particles"`
	// Iterations is the number of ITERATE steps per round.
	Iterations int `json:"iters"`

	Inertia   float64 `json:"w"`
	Cognitive float64 `json:"c1"`
	Social    float64 `json:"c2"`

	// InitVelocity bounds the initial velocities to [-InitVelocity, InitVelocity].
	InitVelocity float64 `json:"init_velocity"`

	Cost CostConfig `json:"cost"`

	// Seed feeds the swarm RNG when no generator is supplied with WithRand.
	Seed int64 `json:"seed"`
	// Workers bounds concurrent per-particle oracle calls. Values below 2
	// evaluate serially. Ignored when both oracles support batching.
	Workers int `json:"workers"`
}

// DefaultConfig returns the configuration used by the reference runs.
func DefaultConfig() Config {
	return Config{
		SeqLen:       DefaultSeqLen,
		Controls:     DefaultControls,
		Rounds:       DefaultRounds,
		Particles:    DefaultParticles,
		Iterations:   DefaultIterations,
		Inertia:      DefaultInertia,
		Cognitive:    DefaultCognition,
		Social:       DefaultSocial,
		InitVelocity: DefaultInitVelocity,
		Cost:         DefaultCostConfig(),
		Seed:         1,
	}
}

// Validate checks the parameters that do not depend on data.
func (c Config) Validate() error {
	if c.SeqLen < 1 {
		return configErrorf("seq_len must be >= 1, got %d", c.SeqLen)
	}
	if c.Controls < 1 {
		return configErrorf("controls must be >= 1, got %d", c.Controls)
	}
	if c.Rounds < 0 {
		return configErrorf("opt_rounds must be >= 0, got %d", c.Rounds)
	}
	if c.Particles < 1 {
		return configErrorf("particles must be >= 1, got %d", c.Particles)
	}
	if c.Iterations < 0 {
		return configErrorf("iters must be >= 0, got %d", c.Iterations)
	}
	if c.InitVelocity < 0 {
		return configErrorf("init_velocity must be >= 0, got %v", c.InitVelocity)
	}
	return c.Cost.Validate()
}

// ValidateData checks the configuration against the validation windows.
func (c Config) ValidateData(windows []Window) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Rounds > len(windows) {
		return configErrorf("opt_rounds %d exceeds %d validation windows", c.Rounds, len(windows))
	}
	for i, w := range windows {
		if len(w) != c.SeqLen {
			return configErrorf("window %d has %d steps, seq_len is %d", i, len(w), c.SeqLen)
		}
		for j, fv := range w {
			if c.Controls >= len(fv) {
				return configErrorf("controls %d leave no exogenous features in width %d (window %d step %d)", c.Controls, len(fv), i, j)
			}
		}
	}
	return nil
}
