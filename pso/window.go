package pso

// FeatureVector is one time step of model input. The last N entries are the
// controllable decision variables, everything before them is exogenous.
type FeatureVector []float64

// Window is a fixed-length lookback history fed to an oracle.
type Window []FeatureVector

// Clone returns a deep copy of w.
func (w Window) Clone() Window {
	if w == nil {
		return nil
	}
	out := make(Window, len(w))
	for i, fv := range w {
		out[i] = append(FeatureVector(nil), fv...)
	}
	return out
}

// Width returns the number of features per time step, or 0 for an empty
// window.
func (w Window) Width() int {
	if len(w) == 0 {
		return 0
	}
	return len(w[len(w)-1])
}

// WindowsFrom converts nested slices (as produced by the datasets package)
// into windows. The data is copied.
func WindowsFrom(x [][][]float64) []Window {
	out := make([]Window, len(x))
	for i, steps := range x {
		w := make(Window, len(steps))
		for j, fv := range steps {
			w[j] = append(FeatureVector(nil), fv...)
		}
		out[i] = w
	}
	return out
}

// BuildWindow returns the oracle input for evaluating candidate on top of
// base. The newest time step keeps its exogenous prefix and takes candidate
// as its controllable suffix; every older step is copied unchanged. The
// result never shares memory with base, so repeated calls with the same
// arguments yield identical windows.
//
// candidate must have exactly the number of controllable entries and is
// expected to be clamped already.
func BuildWindow(base Window, candidate []float64) Window {
	out := make(Window, len(base))
	last := len(base) - 1
	for i := 0; i < last; i++ {
		out[i] = append(FeatureVector(nil), base[i]...)
	}
	if last >= 0 {
		out[last] = spliceControls(base[last], candidate)
	}
	return out
}

// spliceControls returns a copy of fv whose last len(controls) entries are
// replaced by controls.
func spliceControls(fv FeatureVector, controls []float64) FeatureVector {
	exo := len(fv) - len(controls)
	next := make(FeatureVector, 0, len(fv))
	next = append(next, fv[:exo]...)
	next = append(next, controls...)
	return next
}
