package gait

import (
	"math"

	"gonum.org/v1/gonum/integrate"

	"github.com/arytontediarjo/mpower-analysis/internal/constants"
)

// TurnEvent is one discrete rotation interval bounded by zero crossings
// of the filtered rotation-rate signal.
type TurnEvent struct {
	// TD marks the interval's last sample on the recording's time base,
	// which is also the join key against the acceleration timeline.
	TD       float64
	AUC      float64 // magnitude of the trapezoidal integral over the interval
	Duration float64 // seconds, measured to the sample after the interval end
	AUCxT    float64 // AUC scaled by Duration
}

// RotationSegmenter converts a rotation-rate stream into TurnEvents.
// aucXt couples magnitude with sustain time so brief high-amplitude
// jitter and long low-amplitude drift both stay below the turn threshold.
type RotationSegmenter struct {
	filter *LowPassFilter
}

// NewRotationSegmenter builds the segmenter with the standard 2 Hz
// order-2 rotation filter.
func NewRotationSegmenter() (*RotationSegmenter, error) {
	f, err := NewLowPassFilter(constants.SampleRate, constants.RotationCutoffHz, constants.RotationFilterOrder)
	if err != nil {
		return nil, err
	}
	return &RotationSegmenter{filter: f}, nil
}

// Segment filters the rotation values and emits one TurnEvent per
// crossing-bounded interval spanning at least two samples. td and values
// must be the same length. Intervals shorter than two samples advance the
// cursor without emitting; the tail after the last crossing never forms
// an event.
func (r *RotationSegmenter) Segment(td, values []float64) []TurnEvent {
	if len(td) != len(values) || len(td) == 0 {
		return nil
	}

	filtered := r.filter.Apply(values)
	crossings := ZeroCrossings(filtered)

	var events []TurnEvent
	start := 0
	for _, i := range crossings {
		x := td[start : i+1]
		y := filtered[start : i+1]
		duration := td[i+1] - td[start]
		start = i + 1
		if len(y) < 2 {
			continue
		}
		auc := math.Abs(integrate.Trapezoidal(x, y))
		events = append(events, TurnEvent{
			TD:       x[len(x)-1],
			AUC:      auc,
			Duration: duration,
			AUCxT:    auc * duration,
		})
	}
	return events
}
