package gait

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/arytontediarjo/mpower-analysis/internal/constants"
	"github.com/arytontediarjo/mpower-analysis/internal/sensor"
	"github.com/arytontediarjo/mpower-analysis/internal/types"
)

// Pipeline turns one recording into its gait feature record. It is a
// pure function of the input stream: no state survives between calls and
// identical input always produces an identical record. Window- and
// bout-level failures are absorbed inside the step counter; only
// structural input violations surface as errors.
type Pipeline struct {
	axis     sensor.Axis
	rotation *RotationSegmenter
	bouts    *BoutSegmenter
	steps    *StepCounter
}

// NewPipeline builds a pipeline reading the given axis from both sensor
// streams.
func NewPipeline(axis sensor.Axis) (*Pipeline, error) {
	if !axis.Valid() {
		return nil, fmt.Errorf("gait: unknown axis %q", axis)
	}
	rot, err := NewRotationSegmenter()
	if err != nil {
		return nil, err
	}
	steps, err := NewStepCounter()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		axis:     axis,
		rotation: rot,
		bouts:    NewBoutSegmenter(),
		steps:    steps,
	}, nil
}

// Process resolves a tagged recording input and extracts its features.
// The missing-source sentinel and recordings with zero usable samples
// pass through as a missing result without any computation. File and
// stream inputs that fail to parse or clean abort with an error, leaving
// other recordings in a batch unaffected.
func (p *Pipeline) Process(input types.RecordingInput) (types.FeatureResult, error) {
	var (
		rec sensor.Recording
		err error
	)
	switch input.Kind {
	case types.MissingSource:
		return types.FeatureResult{Missing: true}, nil
	case types.FileReference:
		rec, err = sensor.ParseFile(input.Path)
	case types.LoadedStream:
		rec, err = sensor.Clean(input.Samples)
	default:
		return types.FeatureResult{}, fmt.Errorf("gait: unknown input kind %d", input.Kind)
	}
	if err != nil {
		return types.FeatureResult{}, err
	}
	if rec.Empty() {
		return types.FeatureResult{Missing: true}, nil
	}
	return types.FeatureResult{Features: p.Extract(rec)}, nil
}

// Extract computes the feature record of a cleaned recording. The
// rotation stream drives turn segmentation; the acceleration timeline is
// the reference for bout partitioning and step counting.
func (p *Pipeline) Extract(rec sensor.Recording) types.GaitFeatures {
	accel := rec.ByKind(sensor.UserAcceleration)
	rotation := rec.ByKind(sensor.RotationRate)

	events := p.rotation.Segment(sensor.TDSeries(rotation), sensor.AxisSeries(rotation, p.axis))

	td := sensor.TDSeries(accel)
	values := sensor.AxisSeries(accel, p.axis)
	bouts, _ := p.bouts.Segment(p.bouts.MergeTimeline(td, events))

	var windowed, unwindowed []float64
	for _, b := range bouts {
		lo, hi := b.Start, b.End+1
		windowed = append(windowed, p.steps.WindowedRate(values[lo:hi]))
		unwindowed = append(unwindowed, p.steps.UnwindowedRate(td[lo:hi], values[lo:hi]))
	}

	features := types.GaitFeatures{
		WindowedMeanStepsPerSec:   meanOrZero(windowed),
		UnwindowedMeanStepsPerSec: meanOrZero(unwindowed),
	}

	var durations []float64
	for _, ev := range events {
		if ev.AUCxT > constants.TurnThreshold {
			durations = append(durations, ev.Duration)
		}
	}
	if len(durations) > 0 {
		features.NumberOfTurns = len(durations)
		features.MeanTurnDuration = stat.Mean(durations, nil)
		features.MinTurnDuration = floats.Min(durations)
		features.MaxTurnDuration = floats.Max(durations)
	}
	return features
}

func meanOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
