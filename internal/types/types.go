// Package types holds the data structures that flow between the
// pipeline, the batch layer, and the storage engines.
package types

import (
	"github.com/arytontediarjo/mpower-analysis/internal/sensor"
)

// InputKind tags a recording input at the pipeline boundary.
type InputKind int

const (
	// FileReference points at a locally materialized recording file.
	FileReference InputKind = iota
	// LoadedStream carries already-parsed samples.
	LoadedStream
	// MissingSource stands in for a recording with no source file; the
	// pipeline passes it through without computing anything.
	MissingSource
)

// RecordingInput is the tagged input variant resolved once at the
// pipeline boundary, replacing type sniffing on paths versus frames.
type RecordingInput struct {
	Kind    InputKind
	Path    string          // set for FileReference
	Samples []sensor.Sample // set for LoadedStream, uncleaned
}

// FileInput references a recording file on disk.
func FileInput(path string) RecordingInput {
	return RecordingInput{Kind: FileReference, Path: path}
}

// StreamInput wraps already-loaded samples.
func StreamInput(samples []sensor.Sample) RecordingInput {
	return RecordingInput{Kind: LoadedStream, Samples: samples}
}

// MissingInput marks an absent source.
func MissingInput() RecordingInput {
	return RecordingInput{Kind: MissingSource}
}

// FeatureKeys lists the exported feature columns in output order. These
// names are the external contract; they appear verbatim in CSV headers,
// API payloads, and stored rows.
var FeatureKeys = []string{
	"wchunk.mean_no_of_steps_per_secs",
	"no_wchunk.mean_no_of_steps_per_secs",
	"rotation.no_of_turns",
	"rotation.mean_duration",
	"rotation.min_duration",
	"rotation.max_duration",
}

// GaitFeatures is the fixed-shape feature record of one recording
// segment. Every field is always populated; absorbed failures surface as
// zeros, never as missing values.
type GaitFeatures struct {
	WindowedMeanStepsPerSec   float64 `json:"wchunk.mean_no_of_steps_per_secs"`
	UnwindowedMeanStepsPerSec float64 `json:"no_wchunk.mean_no_of_steps_per_secs"`
	NumberOfTurns             int     `json:"rotation.no_of_turns"`
	MeanTurnDuration          float64 `json:"rotation.mean_duration"`
	MinTurnDuration           float64 `json:"rotation.min_duration"`
	MaxTurnDuration           float64 `json:"rotation.max_duration"`
}

// Map renders the record as the flat key-to-scalar mapping of the
// external contract, keyed exactly by FeatureKeys.
func (g GaitFeatures) Map() map[string]float64 {
	return map[string]float64{
		FeatureKeys[0]: g.WindowedMeanStepsPerSec,
		FeatureKeys[1]: g.UnwindowedMeanStepsPerSec,
		FeatureKeys[2]: float64(g.NumberOfTurns),
		FeatureKeys[3]: g.MeanTurnDuration,
		FeatureKeys[4]: g.MinTurnDuration,
		FeatureKeys[5]: g.MaxTurnDuration,
	}
}

// FeatureResult is what the pipeline hands back per segment: either a
// computed record or the missing-source passthrough.
type FeatureResult struct {
	Missing  bool
	Features GaitFeatures
}

// Segment pairs a motion-segment column name with its recording input.
type Segment struct {
	Name  string
	Input RecordingInput
}

// RecordRow is one recording row from the remote table: identity
// metadata plus the motion segments to featurize.
type RecordRow struct {
	RecordID   string
	HealthCode string
	AppVersion string
	PhoneInfo  string
	CreatedOn  int64 // epoch milliseconds
	Segments   []Segment
}

// FeatureRow is the flattened per-(recording, segment) row handed to the
// storage engines after extraction.
type FeatureRow struct {
	RunID      string
	RecordID   string
	HealthCode string
	AppVersion string
	PhoneInfo  string
	CreatedOn  int64
	Segment    string
	Missing    bool
	Features   GaitFeatures
}
