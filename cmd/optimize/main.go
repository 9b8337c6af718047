// Command optimize searches supply setpoints for a building heating system.
// It trains (or loads) an energy and an inside temperature forecaster on
// historical telemetry, then runs a particle swarm per validation point to
// find the controls that minimize energy while keeping the predicted
// temperature in the comfort band.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Noofbiz/setpointSwarm/datasets"
	"github.com/Noofbiz/setpointSwarm/monte"
	"github.com/Noofbiz/setpointSwarm/pso"
	"github.com/Noofbiz/setpointSwarm/simple"
	"go.uber.org/zap"
)

func main() {
	cfg, printOnly, err := parseConfig(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if printOnly {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("optimization failed", zap.Error(err), zap.Duration("runtime", time.Since(start)))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("done", zap.Duration("runtime", time.Since(start)))
}

func loadTable(src string) (*datasets.Table, error) {
	if strings.ContainsAny(src, "*?[") {
		return datasets.LoadTableGlob(src)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("data source %s: %w", src, err)
	}
	if info.IsDir() {
		path, err := datasets.FindCSV(src)
		if err != nil {
			return nil, err
		}
		src = path
	}
	return datasets.LoadTable(src)
}

// target bundles everything derived for one forecast target.
type target struct {
	name   string
	column string
	path   string
	split  *datasets.Split
	model  *simple.Model
}

func run(ctx context.Context, cfg runConfig, logger *zap.Logger) error {
	cfg.Optimizer.Controls = len(cfg.Data.Controls)
	if err := cfg.Optimizer.Validate(); err != nil {
		return err
	}
	if cfg.Comfort.LowTemp > cfg.Comfort.HighTemp {
		return fmt.Errorf("%w: low_temp %v above high_temp %v", pso.ErrConfiguration, cfg.Comfort.LowTemp, cfg.Comfort.HighTemp)
	}

	table, err := loadTable(cfg.Data.CSV)
	if err != nil {
		return err
	}
	if cfg.Data.TimeColumn != "" {
		if err := datasets.AddCyclicalTime(table, cfg.Data.TimeColumn); err != nil {
			return err
		}
	}
	logger.Info("telemetry loaded", zap.String("source", cfg.Data.CSV), zap.Int("rows", table.Len()))

	energy := &target{name: "energy", column: cfg.Data.EnergyTarget, path: cfg.Model.EnergyPath}
	temp := &target{name: "temperature", column: cfg.Data.TempTarget, path: cfg.Model.TempPath}
	for _, tg := range []*target{energy, temp} {
		pre := datasets.Preprocessor{
			Exogenous:   cfg.Data.Exogenous,
			Controls:    cfg.Data.Controls,
			Target:      tg.column,
			SeqLen:      cfg.Optimizer.SeqLen,
			Horizon:     cfg.Data.Horizon,
			ValFraction: cfg.Data.ValFraction,
		}
		if tg.split, err = pre.Process(table); err != nil {
			return fmt.Errorf("preprocess %s: %w", tg.name, err)
		}
	}
	logger.Info("windows built",
		zap.Int("train", len(energy.split.XTrain)),
		zap.Int("validation", len(energy.split.XVal)),
		zap.Strings("features", energy.split.Features),
	)

	windows := pso.WindowsFrom(energy.split.XVal)
	if err := cfg.Optimizer.ValidateData(windows); err != nil {
		return err
	}

	low, err := temp.split.Scaler.TransformValue(temp.column, cfg.Comfort.LowTemp)
	if err != nil {
		return err
	}
	high, err := temp.split.Scaler.TransformValue(temp.column, cfg.Comfort.HighTemp)
	if err != nil {
		return err
	}
	cfg.Optimizer.Cost.LowBound, cfg.Optimizer.Cost.HighBound = low, high
	logger.Info("comfort band",
		zap.Float64("low", cfg.Comfort.LowTemp), zap.Float64("high", cfg.Comfort.HighTemp),
		zap.Float64("low_scaled", low), zap.Float64("high_scaled", high),
	)

	for _, tg := range []*target{energy, temp} {
		if tg.model, err = obtainModel(cfg, tg, logger); err != nil {
			return err
		}
	}

	opts := []pso.Option{pso.WithLogger(logger)}
	var trace *traceWriter
	if cfg.Output.Trace != "" {
		if trace, err = newTraceWriter(cfg.Output.Trace, cfg.Optimizer.Controls); err != nil {
			return err
		}
		opts = append(opts, pso.WithObserver(trace.Observe))
	}

	coord, err := pso.NewCoordinator(cfg.Optimizer, simple.Oracle{Model: energy.model}, simple.Oracle{Model: temp.model}, opts...)
	if err != nil {
		return err
	}
	rounds, work, runErr := coord.Run(ctx, windows)
	if trace != nil {
		if err := trace.Close(); err != nil {
			logger.Warn("write trace", zap.Error(err))
		}
	}
	if runErr != nil && len(rounds) == 0 {
		return runErr
	}
	if runErr != nil {
		logger.Warn("optimization stopped early, writing partial results", zap.Int("rounds", len(rounds)), zap.Error(runErr))
	}

	rows, err := buildRows(rounds, energy, temp)
	if err != nil {
		return errors.Join(runErr, err)
	}
	if cfg.Intervals.Enabled {
		if err := addIntervals(cfg, rows, rounds, work, temp, logger); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if err := datasets.WriteResults(cfg.Output.Results, rows); err != nil {
		return errors.Join(runErr, err)
	}
	logger.Info("results written", zap.String("path", cfg.Output.Results), zap.Int("rounds", len(rows)))

	plots, err := plotResults(cfg.Output.PlotDir, rows, cfg.Comfort)
	if err != nil {
		logger.Warn("plot results", zap.Error(err))
	}
	for _, p := range plots {
		logger.Info("plot written", zap.String("path", p))
	}
	return runErr
}

// obtainModel loads the target's model from disk, or trains and saves one
// when the file is missing or training is forced.
func obtainModel(cfg runConfig, tg *target, logger *zap.Logger) (*simple.Model, error) {
	log := logger.With(zap.String("target", tg.name))
	features := strings.Join(tg.split.Features, ",")

	if !cfg.Model.Train {
		m, meta, err := simple.Load(tg.path)
		switch {
		case err == nil:
			if err := checkMeta(meta, features, tg, cfg.Optimizer.SeqLen); err != nil {
				return nil, err
			}
			if want := cfg.Optimizer.SeqLen * len(tg.split.Features); m.InputDim() != want {
				return nil, fmt.Errorf("%w: %s model at %s expects %d inputs, windows have %d",
					pso.ErrConfiguration, tg.name, tg.path, m.InputDim(), want)
			}
			m.Logger = log
			log.Info("model loaded", zap.String("path", tg.path))
			return m, nil
		case errors.Is(err, os.ErrNotExist):
			log.Info("no saved model, training", zap.String("path", tg.path))
		default:
			return nil, err
		}
	}

	ds, err := datasets.NewWindowDataset(tg.split.XTrain, tg.split.YTrain)
	if err != nil {
		return nil, fmt.Errorf("%s training set: %w", tg.name, err)
	}
	mc := cfg.Model.Training
	mc.InputDim = ds.InputDim()
	mc.OutputDim = 1
	if mc.Seed == 0 {
		mc.Seed = cfg.Optimizer.Seed
	}
	m, err := simple.NewModel(mc)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", tg.name, err)
	}
	m.Logger = log

	start := time.Now()
	history, err := m.TrainWithDataset(ds)
	if err != nil {
		return nil, fmt.Errorf("train %s model: %w", tg.name, err)
	}
	fields := []zap.Field{zap.Int("examples", ds.Len()), zap.Duration("elapsed", time.Since(start))}
	if len(history) > 0 {
		fields = append(fields, zap.Float64("final_mse", history[len(history)-1]))
	}
	log.Info("model trained", fields...)

	meta := map[string]string{
		"target":   tg.column,
		"features": features,
		"seq_len":  strconv.Itoa(cfg.Optimizer.SeqLen),
	}
	if err := m.Save(tg.path, meta); err != nil {
		return nil, err
	}
	log.Info("model saved", zap.String("path", tg.path))
	return m, nil
}

func checkMeta(meta map[string]string, features string, tg *target, seqLen int) error {
	if got := meta["features"]; got != "" && got != features {
		return fmt.Errorf("%w: %s model at %s was trained on features %q, data has %q",
			pso.ErrConfiguration, tg.name, tg.path, got, features)
	}
	if got := meta["seq_len"]; got != "" && got != strconv.Itoa(seqLen) {
		return fmt.Errorf("%w: %s model at %s was trained with seq_len %s, configured %d",
			pso.ErrConfiguration, tg.name, tg.path, got, seqLen)
	}
	return nil
}

// buildRows converts optimized and measured values back to physical units.
func buildRows(rounds []pso.Round, energy, temp *target) ([]datasets.ResultRow, error) {
	n := len(rounds)
	eOpt, tOpt := make([]float64, n), make([]float64, n)
	eMeas, tMeas := make([]float64, n), make([]float64, n)
	for i, r := range rounds {
		eOpt[i], tOpt[i] = r.Energy, r.Temperature
		eMeas[i], tMeas[i] = energy.split.YVal[r.Index], temp.split.YVal[r.Index]
	}
	for _, conv := range []struct {
		s    *datasets.Scaler
		vals *[]float64
	}{
		{energy.split.Scaler, &eOpt},
		{energy.split.Scaler, &eMeas},
		{temp.split.Scaler, &tOpt},
		{temp.split.Scaler, &tMeas},
	} {
		out, err := conv.s.InverseTarget(*conv.vals)
		if err != nil {
			return nil, err
		}
		*conv.vals = out
	}

	controls := energy.split.Features[len(energy.split.Features)-energy.split.Controls:]
	rows := make([]datasets.ResultRow, n)
	for i, r := range rounds {
		phys := make([]float64, len(r.Controls))
		for j, v := range r.Controls {
			pv, err := energy.split.Scaler.InverseValue(controls[j], v)
			if err != nil {
				return nil, err
			}
			phys[j] = pv
		}
		rows[i] = datasets.ResultRow{
			Round:           r.Index,
			EnergyOptimized: eOpt[i],
			EnergyMeasured:  eMeas[i],
			TempOptimized:   tOpt[i],
			TempMeasured:    tMeas[i],
			Controls:        phys,
		}
	}
	return rows, nil
}

// addIntervals bootstraps temperature intervals for the optimized windows
// from the residuals of the temperature model on its training windows.
func addIntervals(cfg runConfig, rows []datasets.ResultRow, rounds []pso.Round, work []pso.Window, temp *target, logger *zap.Logger) error {
	ref, err := datasets.NewWindowDataset(temp.split.XTrain, temp.split.YTrain)
	if err != nil {
		return err
	}
	m, err := monte.NewMonte(ref, temp.model, cfg.Intervals.K)
	if err != nil {
		return err
	}
	m.Seed(cfg.Optimizer.Seed)
	m.Logger = logger.With(zap.String("target", temp.name))

	for i, r := range rounds {
		w := pso.BuildWindow(work[r.Index], r.Controls)
		iv, err := m.Interval(flattenWindow(w), cfg.Intervals.Sims, cfg.Intervals.LowQ, cfg.Intervals.HighQ)
		if err != nil {
			return fmt.Errorf("interval for round %d: %w", r.Index, err)
		}
		lo, err := temp.split.Scaler.InverseValue(temp.column, iv.Low)
		if err != nil {
			return err
		}
		hi, err := temp.split.Scaler.InverseValue(temp.column, iv.High)
		if err != nil {
			return err
		}
		rows[i].HasInterval, rows[i].TempLow, rows[i].TempHigh = true, lo, hi
		logger.Debug("temperature interval", zap.Int("round", r.Index), zap.Float64("low", lo), zap.Float64("high", hi))
	}
	return nil
}

func flattenWindow(w pso.Window) []float32 {
	steps := make([][]float64, len(w))
	for i, fv := range w {
		steps[i] = fv
	}
	return datasets.Flatten(steps)
}
