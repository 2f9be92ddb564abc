package gait

import (
	"errors"
	"math"
	"testing"
)

// A clean 2 Hz oscillation at 100 Hz over 512 samples has falling zero
// crossings every half second; the first peak precedes the first
// crossing and is dropped, leaving one strike per remaining period.
func TestDetectSinusoid(t *testing.T) {
	det, err := NewStrikeDetector()
	if err != nil {
		t.Fatalf("NewStrikeDetector: %v", err)
	}

	n := 512
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 2 * math.Sin(2*math.Pi*2*float64(i)/100)
	}

	strikes, err := det.Detect(values)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if strikes.Count() != 9 {
		t.Fatalf("expected 9 strikes, got %d (indices %v)", strikes.Count(), strikes.Indices)
	}

	if strikes.Times[0] != 0 {
		t.Errorf("first strike time = %v, want 0", strikes.Times[0])
	}
	for i := 1; i < len(strikes.Indices); i++ {
		if strikes.Indices[i] <= strikes.Indices[i-1] {
			t.Errorf("indices not increasing at %d: %v", i, strikes.Indices)
		}
		gap := strikes.Times[i] - strikes.Times[i-1]
		if gap < 0.4 || gap > 0.6 {
			t.Errorf("strike gap %d = %v s, want about one 0.5 s period", i, gap)
		}
	}
	for i, idx := range strikes.Indices {
		if idx < 0 || idx >= n {
			t.Errorf("strike %d index %d out of range", i, idx)
		}
	}
}

// Strikes are re-localized on the raw signal, so a sharp spike near a
// smoothed peak captures the detection.
func TestDetectRelocalizesOnRaw(t *testing.T) {
	det, err := NewStrikeDetector()
	if err != nil {
		t.Fatalf("NewStrikeDetector: %v", err)
	}

	n := 512
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = 2 * math.Sin(2*math.Pi*2*float64(i)/100)
	}
	// The smoothed peak sits near sample 62; the raw maximum moves to 60.
	values[60] += 1.5

	strikes, err := det.Detect(values)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	found := false
	for _, idx := range strikes.Indices {
		if idx == 60 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a strike at the raw spike index 60, got %v", strikes.Indices)
	}
}

func TestDetectDegenerateInput(t *testing.T) {
	det, err := NewStrikeDetector()
	if err != nil {
		t.Fatalf("NewStrikeDetector: %v", err)
	}

	constant := make([]float64, 400)
	for i := range constant {
		constant[i] = 9.81
	}

	tests := []struct {
		name   string
		values []float64
	}{
		{name: "empty", values: nil},
		{name: "single sample", values: []float64{1}},
		{name: "constant has no transitions", values: constant},
		{name: "monotone ramp", values: []float64{1, 2, 3, 4, 5, 6, 7, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := det.Detect(tt.values)
			if !errors.Is(err, ErrNoStrikes) {
				t.Errorf("Detect(%s) error = %v, want ErrNoStrikes", tt.name, err)
			}
		})
	}
}
