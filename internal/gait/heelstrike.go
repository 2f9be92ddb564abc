package gait

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/arytontediarjo/mpower-analysis/internal/constants"
)

// Detector failure modes. These are degenerate-signal conditions, not
// bugs: callers decide whether to absorb them (windows default to a zero
// rate) or surface them.
var (
	// ErrNoStrikes means no filtered-signal peak cleared the acceptance
	// threshold, including the case of a series too short to contain a
	// positive-to-negative transition.
	ErrNoStrikes = errors.New("no heel strikes detected")

	// ErrNoDominantFrequency means the series' spectrum has no usable
	// non-DC component, so the inter-peak spacing cannot be estimated.
	ErrNoDominantFrequency = errors.New("no dominant frequency in signal")
)

// Strikes holds heel-strike detections for one scalar series.
type Strikes struct {
	Times   []float64 // seconds, relative to the first strike
	Indices []int     // sample indices into the input series
}

// Count returns the number of detected strikes.
func (s Strikes) Count() int {
	return len(s.Indices)
}

// StrikeDetector finds foot-ground contact events in a vertical
// acceleration series by matching the peak pattern of gait: smoothed
// peaks preceding positive-to-negative transitions, accepted above a
// fraction of the smoothed maximum, then re-localized on the raw signal
// within half the dominant stride period.
type StrikeDetector struct {
	SampleRate float64
	// Delta scales the filtered-signal maximum into the peak acceptance
	// threshold.
	Delta  float64
	filter *LowPassFilter
}

// NewStrikeDetector builds a detector with the standard gait calibration:
// 5 Hz order-4 smoothing at 100 Hz and a 0.5 acceptance fraction.
func NewStrikeDetector() (*StrikeDetector, error) {
	f, err := NewLowPassFilter(constants.SampleRate, constants.AccelCutoffHz, constants.AccelFilterOrder)
	if err != nil {
		return nil, err
	}
	return &StrikeDetector{
		SampleRate: constants.SampleRate,
		Delta:      constants.StrikeDelta,
		filter:     f,
	}, nil
}

// Detect runs the heel-strike pattern match over one scalar series. It
// never panics on degenerate input; it reports ErrNoStrikes or
// ErrNoDominantFrequency instead.
func (d *StrikeDetector) Detect(values []float64) (Strikes, error) {
	n := len(values)
	if n < 2 {
		return Strikes{}, ErrNoStrikes
	}

	demeaned := make([]float64, n)
	mean := stat.Mean(values, nil)
	for i, v := range values {
		demeaned[i] = v - mean
	}
	filtered := d.filter.Apply(demeaned)

	// Positive-to-negative transitions of the smoothed signal bound the
	// candidate segments.
	var transitions []int
	for i := 0; i+1 < n; i++ {
		if filtered[i] > 0 && filtered[i+1] <= 0 {
			transitions = append(transitions, i)
		}
	}

	threshold := math.Abs(d.Delta * maxValue(filtered))
	var candidates []int
	for k := 1; k < len(transitions); k++ {
		lo, hi := transitions[k-1], transitions[k]
		imax := lo + argmax(filtered[lo:hi])
		if filtered[imax] > threshold {
			candidates = append(candidates, imax)
		}
	}
	if len(candidates) == 0 {
		return Strikes{}, ErrNoStrikes
	}

	interpeak, err := d.interpeak(demeaned)
	if err != nil {
		return Strikes{}, err
	}

	// Re-localize each candidate on the raw signal within half the
	// dominant stride period, clamped to the series bounds.
	radius := interpeak / 2
	indices := make([]int, 0, len(candidates))
	for _, c := range candidates {
		lo := c - radius
		if lo < 0 {
			lo = 0
		}
		hi := c + radius
		if hi > n {
			hi = n
		}
		indices = append(indices, lo+argmax(demeaned[lo:hi]))
	}

	first := indices[0]
	times := make([]float64, len(indices))
	for i, idx := range indices {
		times[i] = float64(idx-first) / d.SampleRate
	}
	return Strikes{Times: times, Indices: indices}, nil
}

// interpeak estimates the number of samples between strikes from the
// strongest non-DC component of the series' spectrum.
func (d *StrikeDetector) interpeak(values []float64) (int, error) {
	fft := fourier.NewFFT(len(values))
	coeff := fft.Coefficients(nil, values)

	best := 0
	bestMag := 0.0
	for i := 1; i < len(coeff); i++ {
		if m := cmplx.Abs(coeff[i]); m > bestMag {
			bestMag = m
			best = i
		}
	}
	if best == 0 || bestMag == 0 {
		return 0, ErrNoDominantFrequency
	}

	freq := fft.Freq(best) * d.SampleRate
	return int(math.Round(d.SampleRate / freq)), nil
}

// argmax returns the index of the first maximum, or 0 for an empty slice.
func argmax(x []float64) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

func maxValue(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := x[0]
	for _, v := range x[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
