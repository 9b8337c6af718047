package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ResultRow is one optimized validation point in physical units.
type ResultRow struct {
	Round           int
	EnergyOptimized float64
	EnergyMeasured  float64
	TempOptimized   float64
	TempMeasured    float64
	Controls        []float64

	// TempLow and TempHigh bound the optimized temperature when
	// HasInterval is set.
	HasInterval bool
	TempLow     float64
	TempHigh    float64
}

// ResultsHeader returns the CSV header for rows with the given number of
// controls.
func ResultsHeader(controls int, intervals bool) []string {
	h := []string{"round", "energy_optimized", "energy_measured", "temp_optimized", "temp_measured"}
	for i := range controls {
		h = append(h, fmt.Sprintf("control_%d", i))
	}
	if intervals {
		h = append(h, "temp_low", "temp_high")
	}
	return h
}

// WriteResults writes rows to path as CSV. The file is replaced atomically.
// Interval columns are written when any row carries an interval.
func WriteResults(path string, rows []ResultRow) error {
	controls, intervals := 0, false
	for _, r := range rows {
		controls = max(controls, len(r.Controls))
		intervals = intervals || r.HasInterval
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(ResultsHeader(controls, intervals)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, r := range rows {
			rec := []string{
				strconv.Itoa(r.Round),
				formatFloat(r.EnergyOptimized),
				formatFloat(r.EnergyMeasured),
				formatFloat(r.TempOptimized),
				formatFloat(r.TempMeasured),
			}
			for i := range controls {
				if i < len(r.Controls) {
					rec = append(rec, formatFloat(r.Controls[i]))
				} else {
					rec = append(rec, "")
				}
			}
			if intervals {
				if r.HasInterval {
					rec = append(rec, formatFloat(r.TempLow), formatFloat(r.TempHigh))
				} else {
					rec = append(rec, "", "")
				}
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write round %d: %w", r.Round, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
