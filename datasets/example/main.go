package main

// Example command that loads a telemetry CSV, derives the cyclical time
// features, cuts scaled windows and walks one shuffled epoch of gomlx
// tensor batches.
//
// Usage:
//   go run ./datasets/example -csv data_example.csv -time Time

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/Noofbiz/setpointSwarm/datasets"
)

func main() {
	csvPath := flag.String("csv", "data_example.csv", "telemetry CSV file or directory holding one")
	timeCol := flag.String("time", "time", "timestamp column")
	exog := flag.String("exogenous", "Outside_humidity,Solar_irradiance,CO2_concentration", "comma-separated exogenous columns")
	controls := flag.String("controls", "Ventilation_network_1_temperature,Ventilation_network_2_temperature,Radiator_network_1_temperature,Radiator_network_2_temperature", "comma-separated control columns")
	target := flag.String("target", "Inside_temperature", "target column")
	seqLen := flag.Int("seq-len", 12, "window length")
	batch := flag.Int("batch-size", 32, "examples per yielded batch")
	seed := flag.Int64("seed", 1, "shuffle seed")
	flag.Parse()

	path := *csvPath
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		found, err := datasets.FindCSV(path)
		if err != nil {
			log.Fatalf("failed to find CSV: %v", err)
		}
		path = found
	}

	tab, err := datasets.LoadTable(path)
	if err != nil {
		log.Fatalf("failed to load table: %v", err)
	}
	fmt.Printf("Loaded %s: %d rows, %d columns\n", path, tab.Len(), len(tab.Header))

	if err := datasets.AddCyclicalTime(tab, *timeCol); err != nil {
		log.Fatalf("failed to derive time features: %v", err)
	}

	p := datasets.Preprocessor{
		Exogenous: append(strings.Split(*exog, ","),
			datasets.ColHoursSin, datasets.ColHoursCos, datasets.ColWeekdaySin, datasets.ColWeekdayCos),
		Controls:    strings.Split(*controls, ","),
		Target:      *target,
		SeqLen:      *seqLen,
		ValFraction: 0.2,
	}
	split, err := p.Process(tab)
	if err != nil {
		log.Fatalf("failed to preprocess: %v", err)
	}
	fmt.Printf("Features (%d, last %d are controls): %v\n", len(split.Features), split.Controls, split.Features)
	fmt.Printf("Training windows: %d, validation windows: %d\n", len(split.XTrain), len(split.XVal))

	ds, err := datasets.NewWindowDataset(split.XTrain, split.YTrain)
	if err != nil {
		log.Fatalf("failed to build window dataset: %v", err)
	}
	// Walk one shuffled epoch the way a gomlx training loop would.
	ds.Shuffle(*seed)
	ds.BatchSize = *batch
	batches, examples := 0, 0
	for {
		_, inT, laT, err := ds.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("failed to yield batch from %s: %v", ds.Name(), err)
		}
		if batches == 0 {
			fmt.Printf("First batch tensors: input=%v label=%v\n", inT[0].Shape(), laT[0].Shape())
		}
		batches++
		examples += inT[0].Shape().Dimensions[0]
	}
	fmt.Printf("%s epoch: %d batches, %d examples\n", ds.Name(), batches, examples)
}
