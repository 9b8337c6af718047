package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Noofbiz/setpointSwarm/pso"
)

// traceWriter records every particle of every swarm snapshot as one CSV
// row. The first write error is kept and reported by Close.
type traceWriter struct {
	f        *os.File
	buf      *bufio.Writer
	w        *csv.Writer
	controls int
	header   bool
	err      error
}

func newTraceWriter(path string, controls int) (*traceWriter, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	return &traceWriter{f: f, buf: buf, w: csv.NewWriter(buf), controls: controls}, nil
}

// Observe is a pso.Observer.
func (t *traceWriter) Observe(s pso.Snapshot) {
	if t.err != nil {
		return
	}
	if !t.header {
		h := []string{"round", "iteration", "particle", "cost", "best_cost", "global_best"}
		for i := range t.controls {
			h = append(h, fmt.Sprintf("position_%d", i))
		}
		t.err = t.w.Write(h)
		t.header = true
	}
	for i, pos := range s.Positions {
		rec := []string{
			strconv.Itoa(s.Round),
			strconv.Itoa(s.Iteration),
			strconv.Itoa(i),
			ftoa(at(s.Costs, i)),
			ftoa(at(s.BestCosts, i)),
			ftoa(s.Best.Cost),
		}
		for _, v := range pos {
			rec = append(rec, ftoa(v))
		}
		if t.err = t.w.Write(rec); t.err != nil {
			return
		}
	}
}

func (t *traceWriter) Close() error {
	t.w.Flush()
	if t.err == nil {
		t.err = t.w.Error()
	}
	if err := t.buf.Flush(); t.err == nil {
		t.err = err
	}
	if err := t.f.Close(); t.err == nil {
		t.err = err
	}
	return t.err
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
