// Package sensor parses and cleans raw tri-axial motion recordings.
package sensor

import (
	"errors"
	"math"
)

// Kind identifies the sensor stream a sample belongs to. Recordings may
// carry kinds beyond the two used here (gravity, attitude); they survive
// cleaning but are ignored by the feature pipeline.
type Kind string

const (
	UserAcceleration Kind = "userAcceleration"
	RotationRate     Kind = "rotationRate"
)

// ErrUnsortedStream is returned when a recording's time index is not
// monotonically non-decreasing after cleaning. Ordering-dependent
// derivations (turn durations, bout spans) cannot be trusted past this
// point, so the recording is abandoned.
var ErrUnsortedStream = errors.New("time series file is not sorted")

// Sample is one cleaned sensor observation.
type Sample struct {
	Timestamp float64 // device clock, epoch seconds
	TD        float64 // seconds since the first kept sample of the recording
	Kind      Kind
	X         float64
	Y         float64
	Z         float64
	AA        float64 // magnitude sqrt(x^2+y^2+z^2)
}

// Axis selects which scalar series of a stream feeds the estimators.
type Axis string

const (
	AxisX  Axis = "x"
	AxisY  Axis = "y"
	AxisZ  Axis = "z"
	AxisAA Axis = "AA"
)

// Valid reports whether a is one of the selectable axes.
func (a Axis) Valid() bool {
	switch a {
	case AxisX, AxisY, AxisZ, AxisAA:
		return true
	}
	return false
}

// Value returns the sample's reading on the chosen axis.
func (a Axis) Value(s Sample) float64 {
	switch a {
	case AxisX:
		return s.X
	case AxisY:
		return s.Y
	case AxisZ:
		return s.Z
	default:
		return s.AA
	}
}

// Recording is a cleaned recording: td and AA populated, rows with
// non-finite axis readings dropped, time index verified non-decreasing.
// All kinds share one time base (td is relative to the first kept sample
// of the whole recording, not of each stream).
type Recording struct {
	Samples []Sample
}

// Empty reports whether the recording holds no usable samples.
func (r Recording) Empty() bool {
	return len(r.Samples) == 0
}

// ByKind returns the sub-stream of one sensor kind, in recording order.
func (r Recording) ByKind(k Kind) []Sample {
	var out []Sample
	for _, s := range r.Samples {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

// TDSeries extracts the elapsed-time series of a sample slice.
func TDSeries(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.TD
	}
	return out
}

// AxisSeries extracts the chosen-axis values of a sample slice.
func AxisSeries(samples []Sample, axis Axis) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = axis.Value(s)
	}
	return out
}

// Clean drops samples with non-finite axis readings, derives td relative
// to the first kept sample and the AA magnitude, and verifies that the
// time index is non-decreasing.
func Clean(samples []Sample) (Recording, error) {
	kept := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if !finite(s.X) || !finite(s.Y) || !finite(s.Z) {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return Recording{}, nil
	}

	base := kept[0].Timestamp
	prev := math.Inf(-1)
	for i := range kept {
		if kept[i].Timestamp < prev {
			return Recording{}, ErrUnsortedStream
		}
		prev = kept[i].Timestamp
		kept[i].TD = kept[i].Timestamp - base
		kept[i].AA = math.Sqrt(kept[i].X*kept[i].X + kept[i].Y*kept[i].Y + kept[i].Z*kept[i].Z)
	}
	return Recording{Samples: kept}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

var nan = math.NaN()
