package gait

import (
	"math"

	"github.com/arytontediarjo/mpower-analysis/internal/constants"
)

// Overlay carries per-index turn metrics aligned to the acceleration
// timeline after merging TurnEvents onto it.
type Overlay struct {
	AUCxT        []float64
	TurnDuration []float64
}

// Bout is a maximal run of consecutive candidate-walking timeline
// indices. Start and End are inclusive.
type Bout struct {
	Start int
	End   int
}

// Len returns the number of timeline samples in the bout.
func (b Bout) Len() int {
	return b.End - b.Start + 1
}

// BoutSegmenter merges the rotation-derived turn events onto the
// acceleration timeline and partitions every index into either a turning
// interval or exactly one walking bout.
type BoutSegmenter struct {
	// TurnThreshold classifies an index as turning when its aucXt is at
	// or above it.
	TurnThreshold float64
}

// NewBoutSegmenter returns a segmenter with the standard threshold.
func NewBoutSegmenter() *BoutSegmenter {
	return &BoutSegmenter{TurnThreshold: constants.TurnThreshold}
}

// MergeTimeline performs a left outer join of the turn events onto the
// acceleration td series: an index whose td equals an event's TD marker
// takes that event's metrics (both series share the recording's time
// base, so the keys match exactly); unmatched indices take the nearest
// following match, and indices past the last match take zero.
func (s *BoutSegmenter) MergeTimeline(td []float64, events []TurnEvent) Overlay {
	byTD := make(map[float64]TurnEvent, len(events))
	for _, ev := range events {
		// First event wins on duplicate markers so the reference
		// timeline keeps its length.
		if _, ok := byTD[ev.TD]; !ok {
			byTD[ev.TD] = ev
		}
	}

	n := len(td)
	ov := Overlay{
		AUCxT:        make([]float64, n),
		TurnDuration: make([]float64, n),
	}

	nextAUC := math.NaN()
	nextDur := math.NaN()
	for i := n - 1; i >= 0; i-- {
		if ev, ok := byTD[td[i]]; ok {
			nextAUC = ev.AUCxT
			nextDur = ev.Duration
		}
		ov.AUCxT[i] = nextAUC
		ov.TurnDuration[i] = nextDur
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(ov.AUCxT[i]) {
			ov.AUCxT[i] = 0
		}
		if math.IsNaN(ov.TurnDuration[i]) {
			ov.TurnDuration[i] = 0
		}
	}
	return ov
}

// Segment splits the merged timeline into walking bouts and turning
// indices. Every index lands in exactly one of the two; the bout list
// preserves timeline order.
func (s *BoutSegmenter) Segment(ov Overlay) ([]Bout, []int) {
	var bouts []Bout
	var turning []int

	start := -1
	for i, v := range ov.AUCxT {
		if v < s.TurnThreshold {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			bouts = append(bouts, Bout{Start: start, End: i - 1})
			start = -1
		}
		turning = append(turning, i)
	}
	if start >= 0 {
		bouts = append(bouts, Bout{Start: start, End: len(ov.AUCxT) - 1})
	}
	return bouts, turning
}
