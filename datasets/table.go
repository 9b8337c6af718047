package datasets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("datasets: missing column")
	// ErrNotEnoughRows is returned when a table is too short to build
	// training and validation windows.
	ErrNotEnoughRows = errors.New("datasets: not enough rows")
)

// Table is a time-ordered CSV table. Column names are matched
// case-insensitively. Values are parsed on access; columns derived in memory
// (see AddCyclicalTime) shadow raw ones.
type Table struct {
	Header []string

	colIndex map[string]int
	records  [][]string
	derived  map[string][]float64
}

// LoadTable reads a CSV file with a header row.
func LoadTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()
	t, err := readTable(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// LoadTableGlob reads every file matching pattern, in lexical order, and
// concatenates their rows. All files must share the first file's header.
func LoadTableGlob(pattern string) (*Table, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}
	sort.Strings(paths)

	var out *Table
	for _, p := range paths {
		t, err := LoadTable(p)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = t
			continue
		}
		if len(t.Header) != len(out.Header) {
			return nil, fmt.Errorf("%s: header has %d columns, expected %d", p, len(t.Header), len(out.Header))
		}
		for i, col := range t.Header {
			if normalizeColumn(col) != normalizeColumn(out.Header[i]) {
				return nil, fmt.Errorf("%s: column %d is %q, expected %q", p, i, col, out.Header[i])
			}
		}
		out.records = append(out.records, t.records...)
	}
	return out, nil
}

func readTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	t := &Table{
		Header:   header,
		colIndex: make(map[string]int, len(header)),
		derived:  make(map[string][]float64),
	}
	for i, col := range header {
		t.colIndex[normalizeColumn(col)] = i
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.records), err)
		}
		t.records = append(t.records, record)
	}
	return t, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.records) }

// Has reports whether the table has the named column.
func (t *Table) Has(name string) bool {
	name = normalizeColumn(name)
	if _, ok := t.derived[name]; ok {
		return true
	}
	_, ok := t.colIndex[name]
	return ok
}

// Require checks that every named column exists.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if !t.Has(n) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, n)
		}
	}
	return nil
}

// Strings returns the raw values of a column.
func (t *Table) Strings(name string) ([]string, error) {
	i, ok := t.colIndex[normalizeColumn(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	out := make([]string, len(t.records))
	for r, rec := range t.records {
		if i >= len(rec) {
			return nil, fmt.Errorf("row %d has no column %q", r, name)
		}
		out[r] = rec[i]
	}
	return out, nil
}

// Floats parses a column as float64.
func (t *Table) Floats(name string) ([]float64, error) {
	if vals, ok := t.derived[normalizeColumn(name)]; ok {
		return append([]float64(nil), vals...), nil
	}
	raw, err := t.Strings(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for r, s := range raw {
		v, err := parseFloat(s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s at row %d: %w", name, r, err)
		}
		out[r] = v
	}
	return out, nil
}

// SetFloats adds or replaces a derived numeric column.
func (t *Table) SetFloats(name string, vals []float64) error {
	if len(vals) != t.Len() {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(vals), t.Len())
	}
	t.derived[normalizeColumn(name)] = append([]float64(nil), vals...)
	return nil
}
