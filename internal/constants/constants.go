// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "2.0-" + runtime.GOOS + "/" + runtime.GOARCH

// Sensor sampling and windowing parameters. Recordings from the mobile
// test battery are captured at 100 Hz; step counting slides a 256-sample
// window (2.56 s) in 50-sample strides.
const (
	SampleRate   = 100.0
	WindowSize   = 256
	WindowStride = 50
)

// Filter configurations. Acceleration windows and heel-strike smoothing
// use a 5 Hz order-4 low-pass; the rotation-rate signal uses 2 Hz order 2.
const (
	AccelCutoffHz       = 5.0
	AccelFilterOrder    = 4
	RotationCutoffHz    = 2.0
	RotationFilterOrder = 2
)

// Gait classification thresholds.
const (
	// TurnThreshold splits the merged timeline: aucXt at or above it is
	// turning, below it is candidate walking. Turn events qualify for the
	// rotation feature block only strictly above it.
	TurnThreshold = 2.0

	// VarianceFloor gates windows: filtered-window variance below this is
	// treated as stationary.
	VarianceFloor = 1e-2

	// ZeroRunCutoff is the minimum length of a consecutive zero-rate
	// window run that gets removed outright from a bout.
	ZeroRunCutoff = 5

	// StrikeDelta scales the filtered-signal maximum into the peak
	// acceptance threshold of the heel-strike detector.
	StrikeDelta = 0.5
)

// MissingSource is the sentinel standing in for a recording with no
// materialized source file. It passes through the pipeline unchanged and
// is written verbatim to output cells.
const MissingSource = "#ERROR"
