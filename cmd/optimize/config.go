package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Noofbiz/setpointSwarm/pso"
	"github.com/Noofbiz/setpointSwarm/simple"
)

// dataConfig describes where the telemetry lives and how to cut it.
type dataConfig struct {
	CSV          string   `json:"csv"`
	TimeColumn   string   `json:"time_column"`
	Exogenous    []string `json:"exogenous"`
	Controls     []string `json:"controls"`
	EnergyTarget string   `json:"energy_target"`
	TempTarget   string   `json:"temp_target"`
	Horizon      int      `json:"horizon"`
	ValFraction  float64  `json:"val_fraction"`
}

// comfortConfig is the comfort band in physical units.
type comfortConfig struct {
	LowTemp  float64 `json:"low_temp"`
	HighTemp float64 `json:"high_temp"`
}

type modelConfig struct {
	EnergyPath string        `json:"energy_path"`
	TempPath   string        `json:"temp_path"`
	Train      bool          `json:"train"`
	Training   simple.Config `json:"training"`
}

type intervalConfig struct {
	Enabled bool    `json:"enabled"`
	K       int     `json:"k"`
	Sims    int     `json:"sims"`
	LowQ    float64 `json:"low_q"`
	HighQ   float64 `json:"high_q"`
}

type outputConfig struct {
	Results string `json:"results"`
	PlotDir string `json:"plot_dir"`
	Trace   string `json:"trace"`
}

type logConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Verbose    bool   `json:"verbose"`
}

// runConfig is the effective configuration: defaults, overlaid by the JSON
// file, overlaid by explicitly set flags.
type runConfig struct {
	Data      dataConfig     `json:"data"`
	Optimizer pso.Config     `json:"optimizer"`
	Comfort   comfortConfig  `json:"comfort"`
	Model     modelConfig    `json:"model"`
	Intervals intervalConfig `json:"intervals"`
	Output    outputConfig   `json:"output"`
	Log       logConfig      `json:"log"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		Data: dataConfig{
			CSV:        "data_example.csv",
			TimeColumn: "Time",
			Exogenous: []string{
				"Outside_humidity",
				"Solar_irradiance",
				"CO2_concentration",
				"hours_sin",
				"hours_cos",
				"weekday_sin",
				"weekday_cos",
				"Domestic_water_network_1_primary_valve",
				"Domestic_water_network_2_primary_valve",
				"District_heat_temperature",
				"Outside_temperature_average",
			},
			Controls: []string{
				"Ventilation_network_1_temperature",
				"Ventilation_network_2_temperature",
				"Radiator_network_1_temperature",
				"Radiator_network_2_temperature",
			},
			EnergyTarget: "Energy_consumption",
			TempTarget:   "Inside_temperature",
			ValFraction:  0.2,
		},
		Optimizer: pso.DefaultConfig(),
		Comfort:   comfortConfig{LowTemp: 21, HighTemp: 22},
		Model: modelConfig{
			EnergyPath: "models/energy.gob",
			TempPath:   "models/temperature.gob",
			Training: simple.Config{
				HiddenSizes:  []int{64, 32},
				LearningRate: 0.005,
				Epochs:       8,
				BatchSize:    32,
				Optimizer:    "adam",
				Beta1:        0.9,
				Beta2:        0.999,
				Epsilon:      1e-8,
				ClipNorm:     5,
			},
		},
		Intervals: intervalConfig{K: 8, Sims: 200, LowQ: 0.05, HighQ: 0.95},
		Output: outputConfig{
			Results: "output/opt_results.csv",
			PlotDir: "plots",
		},
		Log: logConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// listFlag binds a comma-separated flag to a string slice.
type listFlag struct{ dst *[]string }

func (l listFlag) String() string {
	if l.dst == nil {
		return ""
	}
	return strings.Join(*l.dst, ",")
}

func (l listFlag) Set(s string) error {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	*l.dst = out
	return nil
}

// intsFlag binds a comma-separated flag to an int slice.
type intsFlag struct{ dst *[]int }

func (l intsFlag) String() string {
	if l.dst == nil {
		return ""
	}
	parts := make([]string, len(*l.dst))
	for i, v := range *l.dst {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

func (l intsFlag) Set(s string) error {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(tok, "%d", &v); err != nil {
			return fmt.Errorf("invalid integer %q", tok)
		}
		out = append(out, v)
	}
	*l.dst = out
	return nil
}

// float32Flag binds a flag to a float32 field.
type float32Flag struct{ dst *float32 }

func (f float32Flag) String() string {
	if f.dst == nil {
		return ""
	}
	return fmt.Sprint(*f.dst)
}

func (f float32Flag) Set(s string) error {
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f.dst = float32(v)
	return nil
}

// bindFlags registers every tunable on fs, writing straight into cfg.
func bindFlags(fs *flag.FlagSet, cfg *runConfig) {
	d := &cfg.Data
	fs.StringVar(&d.CSV, "csv", d.CSV, "telemetry CSV file, glob pattern or directory")
	fs.StringVar(&d.TimeColumn, "time-column", d.TimeColumn, "timestamp column used for the cyclical time features (empty to skip)")
	fs.Var(listFlag{&d.Exogenous}, "exogenous", "comma-separated exogenous feature columns")
	fs.Var(listFlag{&d.Controls}, "controls", "comma-separated control columns (the decision variables)")
	fs.StringVar(&d.EnergyTarget, "energy-target", d.EnergyTarget, "energy consumption column")
	fs.StringVar(&d.TempTarget, "temp-target", d.TempTarget, "inside temperature column")
	fs.IntVar(&d.Horizon, "horizon", d.Horizon, "steps between the last window step and the predicted value")
	fs.Float64Var(&d.ValFraction, "val-fraction", d.ValFraction, "trailing share of rows used for validation")

	o := &cfg.Optimizer
	fs.IntVar(&o.SeqLen, "seq-len", o.SeqLen, "window length")
	fs.IntVar(&o.Rounds, "rounds", o.Rounds, "number of validation points to optimize")
	fs.IntVar(&o.Particles, "particles", o.Particles, "swarm size")
	fs.IntVar(&o.Iterations, "iters", o.Iterations, "iterations per round")
	fs.Float64Var(&o.Inertia, "w", o.Inertia, "inertia weight")
	fs.Float64Var(&o.Cognitive, "c1", o.Cognitive, "cognitive coefficient")
	fs.Float64Var(&o.Social, "c2", o.Social, "social coefficient")
	fs.Float64Var(&o.InitVelocity, "init-velocity", o.InitVelocity, "initial velocity bound")
	fs.Float64Var(&o.Cost.ExponentLow, "p1", o.Cost.ExponentLow, "exponent of the below-band penalty")
	fs.Float64Var(&o.Cost.ExponentHigh, "p2", o.Cost.ExponentHigh, "exponent of the above-band penalty")
	fs.Float64Var(&o.Cost.CoeffLow, "cost1", o.Cost.CoeffLow, "coefficient of the below-band penalty")
	fs.Float64Var(&o.Cost.CoeffHigh, "cost2", o.Cost.CoeffHigh, "coefficient of the above-band penalty")
	fs.Int64Var(&o.Seed, "seed", o.Seed, "random seed")
	fs.IntVar(&o.Workers, "workers", o.Workers, "concurrent oracle calls for non-batch oracles (0 = serial)")

	fs.Float64Var(&cfg.Comfort.LowTemp, "low-temp", cfg.Comfort.LowTemp, "comfort band lower bound, physical units")
	fs.Float64Var(&cfg.Comfort.HighTemp, "high-temp", cfg.Comfort.HighTemp, "comfort band upper bound, physical units")

	m := &cfg.Model
	fs.StringVar(&m.EnergyPath, "energy-model", m.EnergyPath, "energy model file (gob)")
	fs.StringVar(&m.TempPath, "temp-model", m.TempPath, "temperature model file (gob)")
	fs.BoolVar(&m.Train, "train", m.Train, "train models even when model files exist")
	t := &m.Training
	fs.Var(intsFlag{&t.HiddenSizes}, "hidden", "comma-separated hidden layer sizes")
	fs.StringVar(&t.Optimizer, "optimizer", t.Optimizer, "training optimizer: 'adam' or 'sgd'")
	fs.Float64Var(&t.LearningRate, "learning-rate", t.LearningRate, "learning rate")
	fs.IntVar(&t.Epochs, "epochs", t.Epochs, "training epochs")
	fs.IntVar(&t.BatchSize, "batch-size", t.BatchSize, "training batch size")
	fs.Float64Var(&t.Beta1, "adam-beta1", t.Beta1, "Adam beta1")
	fs.Float64Var(&t.Beta2, "adam-beta2", t.Beta2, "Adam beta2")
	fs.Float64Var(&t.Epsilon, "adam-eps", t.Epsilon, "Adam epsilon")
	fs.Var(float32Flag{&t.ClipNorm}, "clip-norm", "gradient clipping norm")

	iv := &cfg.Intervals
	fs.BoolVar(&iv.Enabled, "intervals", iv.Enabled, "estimate temperature prediction intervals")
	fs.IntVar(&iv.K, "interval-k", iv.K, "nearest reference windows used for the intervals")
	fs.IntVar(&iv.Sims, "interval-sims", iv.Sims, "bootstrap draws per interval")
	fs.Float64Var(&iv.LowQ, "interval-low", iv.LowQ, "lower interval quantile")
	fs.Float64Var(&iv.HighQ, "interval-high", iv.HighQ, "upper interval quantile")

	out := &cfg.Output
	fs.StringVar(&out.Results, "out-csv", out.Results, "results CSV path")
	fs.StringVar(&out.PlotDir, "out", out.PlotDir, "output directory for plots (empty to skip)")
	fs.StringVar(&out.Trace, "trace", out.Trace, "write a per-iteration swarm trace CSV to this path")

	l := &cfg.Log
	fs.StringVar(&l.File, "log-file", l.File, "also write JSON logs to this rotated file")
	fs.IntVar(&l.MaxSizeMB, "log-max-size-mb", l.MaxSizeMB, "log file size before rotation")
	fs.IntVar(&l.MaxBackups, "log-max-backups", l.MaxBackups, "rotated log files kept")
	fs.IntVar(&l.MaxAgeDays, "log-max-age-days", l.MaxAgeDays, "days rotated log files are kept")
	fs.BoolVar(&l.Verbose, "verbose", l.Verbose, "log swarm iterations at debug level")
}

// parseConfig builds the effective configuration from args. Values from the
// JSON file named by -config replace defaults; flags given on the command
// line win over both.
func parseConfig(name string, args []string) (cfg runConfig, printOnly bool, err error) {
	cfg = defaultRunConfig()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON configuration file")
	printEffective := fs.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")
	bindFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}

	if *configPath == "" {
		return cfg, *printEffective, nil
	}

	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	data, err := os.ReadFile(*configPath)
	if err != nil {
		return cfg, false, fmt.Errorf("read config %s: %w", *configPath, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, false, fmt.Errorf("parse config %s: %w", *configPath, err)
	}
	for n, v := range explicit {
		if err := fs.Set(n, v); err != nil {
			return cfg, false, fmt.Errorf("re-apply flag -%s: %w", n, err)
		}
	}
	return cfg, *printEffective, nil
}
