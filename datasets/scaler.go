package datasets

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Scaler maps every column onto [0,1] using the extrema seen during Fit.
// Constant columns map to 0.
type Scaler struct {
	Columns []string
	Min     []float64
	Max     []float64
	// Target names the column InverseTarget undoes.
	Target string
}

// Fit records per-column extrema. cols holds one slice of values per name.
func (s *Scaler) Fit(names []string, cols [][]float64) error {
	if len(names) != len(cols) {
		return fmt.Errorf("scaler: %d names for %d columns", len(names), len(cols))
	}
	s.Columns = append([]string(nil), names...)
	s.Min = make([]float64, len(cols))
	s.Max = make([]float64, len(cols))
	for i, c := range cols {
		if len(c) == 0 {
			return fmt.Errorf("scaler: column %q is empty", names[i])
		}
		s.Min[i] = floats.Min(c)
		s.Max[i] = floats.Max(c)
	}
	return nil
}

func (s *Scaler) index(name string) (int, error) {
	name = normalizeColumn(name)
	for i, c := range s.Columns {
		if normalizeColumn(c) == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: scaler has no column %q", ErrMissingColumn, name)
}

func (s *Scaler) scale(i int, v float64) float64 {
	span := s.Max[i] - s.Min[i]
	if span == 0 {
		return 0
	}
	return (v - s.Min[i]) / span
}

func (s *Scaler) unscale(i int, v float64) float64 {
	return s.Min[i] + v*(s.Max[i]-s.Min[i])
}

// TransformValue scales one physical value of the named column.
func (s *Scaler) TransformValue(name string, v float64) (float64, error) {
	i, err := s.index(name)
	if err != nil {
		return 0, err
	}
	return s.scale(i, v), nil
}

// InverseValue maps a scaled value of the named column back to physical units.
func (s *Scaler) InverseValue(name string, v float64) (float64, error) {
	i, err := s.index(name)
	if err != nil {
		return 0, err
	}
	return s.unscale(i, v), nil
}

// Transform scales a column in place.
func (s *Scaler) Transform(name string, vals []float64) error {
	i, err := s.index(name)
	if err != nil {
		return err
	}
	for j, v := range vals {
		vals[j] = s.scale(i, v)
	}
	return nil
}

// InverseTransform maps a scaled column back to physical units in place.
func (s *Scaler) InverseTransform(name string, vals []float64) error {
	i, err := s.index(name)
	if err != nil {
		return err
	}
	for j, v := range vals {
		vals[j] = s.unscale(i, v)
	}
	return nil
}

// InverseTarget returns a physical-unit copy of scaled target values.
func (s *Scaler) InverseTarget(vals []float64) ([]float64, error) {
	out := append([]float64(nil), vals...)
	if err := s.InverseTransform(s.Target, out); err != nil {
		return nil, err
	}
	return out, nil
}
