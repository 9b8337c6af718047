package main

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/Noofbiz/setpointSwarm/datasets"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	measuredColor  = color.RGBA{R: 120, G: 120, B: 120, A: 220}
	optimizedColor = color.RGBA{R: 20, G: 80, B: 200, A: 230}
	bandColor      = color.RGBA{R: 200, G: 30, B: 30, A: 160}
	intervalColor  = color.RGBA{R: 20, G: 80, B: 200, A: 90}
)

// series is one line on a comparison plot.
type series struct {
	name   string
	xys    plotter.XYs
	color  color.Color
	dashed bool
	points bool
}

// plotResults writes energy.png and temperature.png comparing optimized and
// measured values per round. The temperature plot also shows the comfort
// band and, when present, the prediction interval.
func plotResults(outDir string, rows []datasets.ResultRow, comfort comfortConfig) ([]string, error) {
	if outDir == "" || len(rows) == 0 {
		return nil, nil
	}
	if err := ensureDir(outDir); err != nil {
		return nil, err
	}

	n := len(rows)
	energyMeas, energyOpt := make(plotter.XYs, n), make(plotter.XYs, n)
	tempMeas, tempOpt := make(plotter.XYs, n), make(plotter.XYs, n)
	var low, high plotter.XYs
	for i, r := range rows {
		x := float64(r.Round)
		energyMeas[i] = plotter.XY{X: x, Y: r.EnergyMeasured}
		energyOpt[i] = plotter.XY{X: x, Y: r.EnergyOptimized}
		tempMeas[i] = plotter.XY{X: x, Y: r.TempMeasured}
		tempOpt[i] = plotter.XY{X: x, Y: r.TempOptimized}
		if r.HasInterval {
			low = append(low, plotter.XY{X: x, Y: r.TempLow})
			high = append(high, plotter.XY{X: x, Y: r.TempHigh})
		}
	}

	var written []string
	energyPath := filepath.Join(outDir, "energy.png")
	err := plotSeries(energyPath, "Energy consumption: optimized vs measured", "energy", []series{
		{name: "measured", xys: energyMeas, color: measuredColor, points: true},
		{name: "optimized", xys: energyOpt, color: optimizedColor, points: true},
	})
	if err != nil {
		return written, fmt.Errorf("plot energy: %w", err)
	}
	written = append(written, energyPath)

	first, last := float64(rows[0].Round), float64(rows[n-1].Round)
	temp := []series{
		{name: "measured", xys: tempMeas, color: measuredColor, points: true},
		{name: "optimized", xys: tempOpt, color: optimizedColor, points: true},
		{name: "comfort band", xys: plotter.XYs{{X: first, Y: comfort.LowTemp}, {X: last, Y: comfort.LowTemp}}, color: bandColor, dashed: true},
		{xys: plotter.XYs{{X: first, Y: comfort.HighTemp}, {X: last, Y: comfort.HighTemp}}, color: bandColor, dashed: true},
	}
	if len(low) > 0 {
		temp = append(temp,
			series{name: "interval", xys: low, color: intervalColor, dashed: true},
			series{xys: high, color: intervalColor, dashed: true},
		)
	}
	tempPath := filepath.Join(outDir, "temperature.png")
	if err := plotSeries(tempPath, "Inside temperature: optimized vs measured", "temperature", temp); err != nil {
		return written, fmt.Errorf("plot temperature: %w", err)
	}
	return append(written, tempPath), nil
}

func plotSeries(path, title, ylabel string, lines []series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "round"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	var all plotter.XYs
	for _, s := range lines {
		if len(s.xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.xys)
		if err != nil {
			return err
		}
		line.Color = s.color
		line.Width = vg.Points(1.2)
		if s.dashed {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		}
		p.Add(line)
		if s.points {
			sc, err := plotter.NewScatter(s.xys)
			if err != nil {
				return err
			}
			sc.GlyphStyle.Color = s.color
			sc.GlyphStyle.Radius = vg.Points(2.2)
			p.Add(sc)
		}
		if s.name != "" {
			p.Legend.Add(s.name, line)
		}
		all = append(all, s.xys...)
	}

	xmin, xmax, ymin, ymax := autoRange(all)
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return -1, 1, -1, 1
	}
	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, p := range xs {
		xmin, xmax = math.Min(xmin, p.X), math.Max(xmax, p.X)
		ymin, ymax = math.Min(ymin, p.Y), math.Max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
