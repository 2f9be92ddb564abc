// Package gait implements the signal-processing pipeline that turns raw
// motion-sensor recordings into gait and turning features: low-pass
// filtering, zero-crossing turn segmentation, walking-bout extraction,
// and windowed heel-strike counting.
package gait

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LowPassFilter is a zero-phase Butterworth low-pass filter. The design
// is fixed at construction; Apply runs a forward and a backward pass over
// cascaded second-order sections so the output has no phase lag.
type LowPassFilter struct {
	sections []biquad
	padLen   int
}

// NewLowPassFilter designs an order-N Butterworth low-pass filter for the
// given sampling rate. The cutoff must sit below the Nyquist frequency;
// violating that is a configuration error, not a per-signal condition.
func NewLowPassFilter(sampleRate, cutoff float64, order int) (*LowPassFilter, error) {
	if order < 1 {
		return nil, fmt.Errorf("filter order must be positive, got %d", order)
	}
	nyquist := sampleRate / 2
	if cutoff <= 0 || cutoff >= nyquist {
		return nil, fmt.Errorf("cutoff %.4g Hz outside (0, %.4g) Hz at sample rate %.4g Hz", cutoff, nyquist, sampleRate)
	}

	sections := designButterworth(order, cutoff/nyquist)
	return &LowPassFilter{
		sections: sections,
		padLen:   3 * (2*len(sections) + 1),
	}, nil
}

// designButterworth produces normalized second-order sections for an
// analog Butterworth prototype mapped through the bilinear transform with
// frequency pre-warping. wn is the cutoff as a fraction of Nyquist.
func designButterworth(order int, wn float64) []biquad {
	warped := 4 * math.Tan(math.Pi*wn/2)
	const fs2 = 4.0

	gain := math.Pow(warped, float64(order))
	sections := make([]biquad, 0, (order+1)/2)

	// Conjugate pole pairs from the upper-left half of the analog circle.
	for k := 0; k < order/2; k++ {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		re := warped * math.Cos(theta)
		im := warped * math.Sin(theta)

		// Bilinear transform of the pole pair: z = (fs2+p)/(fs2-p).
		denom := (fs2-re)*(fs2-re) + im*im
		zre := (fs2*fs2 - re*re - im*im) / denom
		zim := (2 * fs2 * im) / denom

		sections = append(sections, biquad{
			b0: 1, b1: 2, b2: 1,
			a1: -2 * zre,
			a2: zre*zre + zim*zim,
		})
		gain /= denom
	}

	// Odd orders leave one real pole at -warped.
	if order%2 == 1 {
		zp := (fs2 - warped) / (fs2 + warped)
		sections = append(sections, biquad{
			b0: 1, b1: 1, b2: 0,
			a1: -zp, a2: 0,
		})
		gain /= fs2 + warped
	}

	sections[0].b0 *= gain
	sections[0].b1 *= gain
	sections[0].b2 *= gain
	return sections
}

// Apply filters the signal with zero phase lag and returns a new slice of
// the same length. Signals too short to pad are returned as an unmodified
// copy; there is no per-signal failure mode.
func (f *LowPassFilter) Apply(signal []float64) []float64 {
	n := len(signal)
	out := make([]float64, n)
	if n <= f.padLen {
		copy(out, signal)
		return out
	}

	// Odd extension at both ends suppresses startup transients.
	ext := make([]float64, 0, n+2*f.padLen)
	for i := f.padLen; i >= 1; i-- {
		ext = append(ext, 2*signal[0]-signal[i])
	}
	ext = append(ext, signal...)
	for i := 1; i <= f.padLen; i++ {
		ext = append(ext, 2*signal[n-1]-signal[n-1-i])
	}

	for _, s := range f.sections {
		s.run(ext)
	}
	floats.Reverse(ext)
	for _, s := range f.sections {
		s.run(ext)
	}
	floats.Reverse(ext)

	copy(out, ext[f.padLen:f.padLen+n])
	return out
}

// biquad is one normalized (a0 == 1) second-order section applied in
// Direct-Form II transposed.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// run filters x in place. The state is seeded with the section's DC step
// response scaled by the first sample, so a constant-start signal enters
// the recursion already in steady state.
func (q biquad) run(x []float64) {
	if len(x) == 0 {
		return
	}
	kdc := (q.b0 + q.b1 + q.b2) / (1 + q.a1 + q.a2)
	si1 := q.b2 - kdc*q.a2
	si0 := si1 + q.b1 - kdc*q.a1

	w0 := si0 * x[0]
	w1 := si1 * x[0]
	for i, v := range x {
		y := w0 + q.b0*v
		w0 = w1 + q.b1*v - q.a1*y
		w1 = q.b2*v - q.a2*y
		x[i] = y
	}
}
