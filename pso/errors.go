package pso

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports a configuration that cannot be run. It is
	// detected before the first round starts.
	ErrConfiguration = errors.New("pso: invalid configuration")
	// ErrOracleFailure reports an oracle that returned an error or a
	// non-finite prediction.
	ErrOracleFailure = errors.New("pso: oracle failure")
)

// OracleError carries the context of a failed oracle call. It unwraps to
// ErrOracleFailure and, when present, to the oracle's own error.
type OracleError struct {
	// Oracle names the failing oracle ("energy" or "temperature").
	Oracle string
	// Round, Iteration and Particle locate the call. Iteration is -1 for the
	// initial evaluation of a round. Particle is -1 for batched calls.
	Round     int
	Iteration int
	Particle  int
	// Value is the offending prediction when the oracle returned a
	// non-finite number.
	Value float64
	Err   error
}

func (e *OracleError) Error() string {
	loc := fmt.Sprintf("round %d, iteration %d, particle %d", e.Round, e.Iteration, e.Particle)
	if e.Err != nil {
		return fmt.Sprintf("%v: %s oracle (%s): %v", ErrOracleFailure, e.Oracle, loc, e.Err)
	}
	return fmt.Sprintf("%v: %s oracle (%s) returned non-finite value %v", ErrOracleFailure, e.Oracle, loc, e.Value)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *OracleError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrOracleFailure, e.Err}
	}
	return []error{ErrOracleFailure}
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
