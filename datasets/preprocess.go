package datasets

import (
	"fmt"
)

// Preprocessor turns a time-ordered table into scaled sliding windows for a
// one-step-ahead forecaster.
//
// Features are ordered exogenous first, then controls, so the trailing
// len(Controls) entries of every feature vector are the decision variables.
type Preprocessor struct {
	Exogenous []string
	Controls  []string
	Target    string

	SeqLen int
	// Horizon shifts the target past the last window step. 0 predicts the
	// value at the last step.
	Horizon int
	// ValFraction is the trailing share of rows held out for validation.
	ValFraction float64
}

// Split is the output of Preprocessor.Process. X windows are
// [window][step][feature]; Y holds the matching scaled targets.
type Split struct {
	XTrain [][][]float64
	YTrain []float64
	XVal   [][][]float64
	YVal   []float64

	Scaler   *Scaler
	Features []string
	Controls int
}

// Features returns the ordered feature column names.
func (p Preprocessor) Features() []string {
	out := make([]string, 0, len(p.Exogenous)+len(p.Controls))
	out = append(out, p.Exogenous...)
	return append(out, p.Controls...)
}

func (p Preprocessor) validate() error {
	if p.SeqLen < 1 {
		return fmt.Errorf("seq_len must be >= 1, got %d", p.SeqLen)
	}
	if p.Horizon < 0 {
		return fmt.Errorf("horizon must be >= 0, got %d", p.Horizon)
	}
	if p.ValFraction <= 0 || p.ValFraction >= 1 {
		return fmt.Errorf("val_fraction must be in (0,1), got %v", p.ValFraction)
	}
	if len(p.Controls) == 0 {
		return fmt.Errorf("at least one control column is required")
	}
	if p.Target == "" {
		return fmt.Errorf("target column is required")
	}
	return nil
}

// Process scales the table and builds windows X[i] = rows[i:i+SeqLen] with
// target y[i] = target[i+SeqLen-1+Horizon]. The scaler is fitted on the
// leading (1-ValFraction) rows only. A window belongs to the training set
// when its target row lies in that range, otherwise to validation, so both
// sets stay in chronological order.
func (p Preprocessor) Process(t *Table) (*Split, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	features := p.Features()
	if err := t.Require(append(features, p.Target)...); err != nil {
		return nil, err
	}

	rows := t.Len()
	trainRows := int(float64(rows) * (1 - p.ValFraction))
	span := p.SeqLen + p.Horizon
	if trainRows < span || rows-trainRows < 1 {
		return nil, fmt.Errorf("%w: %d rows for seq_len %d, horizon %d, val_fraction %v",
			ErrNotEnoughRows, rows, p.SeqLen, p.Horizon, p.ValFraction)
	}

	names := append(append([]string(nil), features...), p.Target)
	cols := make([][]float64, len(names))
	fit := make([][]float64, len(names))
	for i, n := range names {
		c, err := t.Floats(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
		fit[i] = c[:trainRows]
	}
	scaler := &Scaler{Target: p.Target}
	if err := scaler.Fit(names, fit); err != nil {
		return nil, err
	}
	for i, c := range cols {
		for r, v := range c {
			c[r] = scaler.scale(i, v)
		}
	}
	target := cols[len(cols)-1]

	width := len(features)
	step := func(r int) []float64 {
		fv := make([]float64, width)
		for f := range fv {
			fv[f] = cols[f][r]
		}
		return fv
	}

	s := &Split{Scaler: scaler, Features: features, Controls: len(p.Controls)}
	for i := 0; i+span-1 < rows; i++ {
		w := make([][]float64, p.SeqLen)
		for k := range w {
			w[k] = step(i + k)
		}
		ti := i + p.SeqLen - 1 + p.Horizon
		if ti < trainRows {
			s.XTrain = append(s.XTrain, w)
			s.YTrain = append(s.YTrain, target[ti])
		} else {
			s.XVal = append(s.XVal, w)
			s.YVal = append(s.YVal, target[ti])
		}
	}
	return s, nil
}
