package gait

import (
	"math"
	"testing"
)

const testEpsilon = 1e-9

// The rotation filter pads 9 samples, so series of 9 or fewer pass
// through it untouched; these cases pin the interval arithmetic exactly.
func TestSegmentIntervals(t *testing.T) {
	seg, err := NewRotationSegmenter()
	if err != nil {
		t.Fatalf("NewRotationSegmenter: %v", err)
	}

	td := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	values := []float64{1, 2, 2, 1, -0.1, -0.1, 0.1, 0.1, 0.1}

	events := seg.Segment(td, values)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(events), events)
	}

	// First interval: samples 0..3, trapezoid area 5, duration to the
	// sample after the crossing.
	if math.Abs(events[0].TD-3) > testEpsilon {
		t.Errorf("event 0 TD = %v, want 3", events[0].TD)
	}
	if math.Abs(events[0].AUC-5) > testEpsilon {
		t.Errorf("event 0 AUC = %v, want 5", events[0].AUC)
	}
	if math.Abs(events[0].Duration-4) > testEpsilon {
		t.Errorf("event 0 Duration = %v, want 4", events[0].Duration)
	}
	if math.Abs(events[0].AUCxT-20) > testEpsilon {
		t.Errorf("event 0 AUCxT = %v, want 20", events[0].AUCxT)
	}

	// Second interval: samples 4..5, negative lobe reported as magnitude.
	if math.Abs(events[1].TD-5) > testEpsilon {
		t.Errorf("event 1 TD = %v, want 5", events[1].TD)
	}
	if math.Abs(events[1].AUC-0.1) > testEpsilon {
		t.Errorf("event 1 AUC = %v, want 0.1", events[1].AUC)
	}
	if math.Abs(events[1].Duration-2) > testEpsilon {
		t.Errorf("event 1 Duration = %v, want 2", events[1].Duration)
	}
	if math.Abs(events[1].AUCxT-0.2) > testEpsilon {
		t.Errorf("event 1 AUCxT = %v, want 0.2", events[1].AUCxT)
	}
}

func TestSegmentSkipsSingleSampleIntervals(t *testing.T) {
	seg, err := NewRotationSegmenter()
	if err != nil {
		t.Fatalf("NewRotationSegmenter: %v", err)
	}

	tests := []struct {
		name   string
		td     []float64
		values []float64
		want   int
	}{
		{
			name:   "every interval one sample wide",
			td:     []float64{0, 1, 2, 3, 4},
			values: []float64{1, -1, 1, -1, 1},
			want:   0,
		},
		{
			name:   "short interval between real lobes",
			td:     []float64{0, 1, 2, 3},
			values: []float64{2, 1, -1, 1},
			want:   1,
		},
		{
			name:   "tail after last crossing never emits",
			td:     []float64{0, 1, 2, 3, 4, 5},
			values: []float64{1, 1, -1, -1, -1, -1},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := seg.Segment(tt.td, tt.values)
			if len(events) != tt.want {
				t.Errorf("expected %d events, got %d: %+v", tt.want, len(events), events)
			}
		})
	}
}

func TestSegmentDegenerateInput(t *testing.T) {
	seg, err := NewRotationSegmenter()
	if err != nil {
		t.Fatalf("NewRotationSegmenter: %v", err)
	}

	tests := []struct {
		name   string
		td     []float64
		values []float64
	}{
		{name: "empty"},
		{
			name:   "length mismatch",
			td:     []float64{0, 0.01},
			values: []float64{1},
		},
		{
			name:   "constant signal has no crossings",
			td:     []float64{0, 1, 2, 3, 4},
			values: []float64{0.7, 0.7, 0.7, 0.7, 0.7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if events := seg.Segment(tt.td, tt.values); events != nil {
				t.Errorf("expected no events, got %+v", events)
			}
		})
	}
}

func TestSegmentFilteredSinusoid(t *testing.T) {
	seg, err := NewRotationSegmenter()
	if err != nil {
		t.Fatalf("NewRotationSegmenter: %v", err)
	}

	// A 0.5 Hz rotation signal sits inside the 2 Hz passband; events
	// alternate with its half-periods.
	n := 600
	td := make([]float64, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		td[i] = float64(i) / 100
		values[i] = 3 * math.Sin(2*math.Pi*0.5*td[i])
	}

	events := seg.Segment(td, values)
	if len(events) == 0 {
		t.Fatal("expected events from an oscillating rotation signal")
	}

	prev := math.Inf(-1)
	for i, ev := range events {
		if ev.TD <= prev {
			t.Errorf("event %d: TD %v not increasing past %v", i, ev.TD, prev)
		}
		prev = ev.TD
		if ev.AUC < 0 {
			t.Errorf("event %d: negative AUC %v", i, ev.AUC)
		}
		if ev.Duration <= 0 {
			t.Errorf("event %d: non-positive duration %v", i, ev.Duration)
		}
		if math.Abs(ev.AUCxT-ev.AUC*ev.Duration) > testEpsilon {
			t.Errorf("event %d: AUCxT %v does not equal AUC*Duration %v", i, ev.AUCxT, ev.AUC*ev.Duration)
		}
		// Half-period lobes of 3*sin at 0.5 Hz integrate to roughly
		// 2*amplitude/(pi*f) and span roughly a second each.
		if ev.AUC > 4 {
			t.Errorf("event %d: AUC %v implausibly large for the lobe", i, ev.AUC)
		}
	}
}
