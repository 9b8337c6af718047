package datasets

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Names of the columns added by AddCyclicalTime.
const (
	ColHoursSin   = "hours_sin"
	ColHoursCos   = "hours_cos"
	ColWeekdaySin = "weekday_sin"
	ColWeekdayCos = "weekday_cos"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// AddCyclicalTime encodes the time of day and the day of week of a timestamp
// column as sine/cosine pairs, so 23:00 lies next to 00:00 and Sunday next to
// Monday. Weekdays count from Monday = 0.
func AddCyclicalTime(t *Table, column string) error {
	raw, err := t.Strings(column)
	if err != nil {
		return err
	}
	n := len(raw)
	hs, hc := make([]float64, n), make([]float64, n)
	ws, wc := make([]float64, n), make([]float64, n)
	for i, s := range raw {
		ts, err := parseTime(s)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		hour := float64(ts.Hour()) + float64(ts.Minute())/60
		day := float64((int(ts.Weekday()) + 6) % 7)
		hs[i], hc[i] = math.Sincos(2 * math.Pi * hour / 24)
		ws[i], wc[i] = math.Sincos(2 * math.Pi * day / 7)
	}

	for name, vals := range map[string][]float64{
		ColHoursSin:   hs,
		ColHoursCos:   hc,
		ColWeekdaySin: ws,
		ColWeekdayCos: wc,
	} {
		if err := t.SetFloats(name, vals); err != nil {
			return err
		}
	}
	return nil
}
