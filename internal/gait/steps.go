package gait

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"github.com/arytontediarjo/mpower-analysis/internal/constants"
)

// WindowObservation is one sliding-window measurement over a bout.
type WindowObservation struct {
	Start    int     // window start index within the bout
	Rate     float64 // heel strikes per second
	Variance float64 // sample variance of the filtered window
}

// StepCounter estimates step cadence over a walking bout. The windowed
// estimator excises local stillness so brief pauses do not drag the mean
// down; the unwindowed estimator is a coarse whole-bout baseline. The two
// are reported separately, never reconciled.
type StepCounter struct {
	SampleRate    float64
	WindowSize    int
	Stride        int
	VarianceFloor float64
	ZeroRunCutoff int

	filter   *LowPassFilter
	detector *StrikeDetector
}

// NewStepCounter builds a counter with the standard 256-sample window,
// 50-sample stride, and stillness gates.
func NewStepCounter() (*StepCounter, error) {
	f, err := NewLowPassFilter(constants.SampleRate, constants.AccelCutoffHz, constants.AccelFilterOrder)
	if err != nil {
		return nil, err
	}
	det, err := NewStrikeDetector()
	if err != nil {
		return nil, err
	}
	return &StepCounter{
		SampleRate:    constants.SampleRate,
		WindowSize:    constants.WindowSize,
		Stride:        constants.WindowStride,
		VarianceFloor: constants.VarianceFloor,
		ZeroRunCutoff: constants.ZeroRunCutoff,
		filter:        f,
		detector:      det,
	}, nil
}

// WindowObservations slides the window over the bout's axis values.
// Window end positions begin one sample past the window size and advance
// by the stride while strictly inside the series, so the first window
// covers indices 1..WindowSize and a bout shorter than WindowSize+2
// yields no windows at all. Per window the filtered variance gates
// detection: stationary windows and detector failures record a zero rate.
func (c *StepCounter) WindowObservations(values []float64) []WindowObservation {
	var obs []WindowObservation
	for end := c.WindowSize + 1; end < len(values); end += c.Stride {
		window := values[end-c.WindowSize : end]
		filtered := c.filter.Apply(window)
		variance := stat.Variance(filtered, nil)

		rate := 0.0
		if variance >= c.VarianceFloor {
			strikes, err := c.detector.Detect(window)
			switch {
			case err == nil:
				rate = float64(strikes.Count()) / (float64(c.WindowSize) / c.SampleRate)
			case errors.Is(err, ErrNoStrikes), errors.Is(err, ErrNoDominantFrequency):
				// Degenerate window; keep the zero rate.
			}
		}
		obs = append(obs, WindowObservation{
			Start:    end - c.WindowSize,
			Rate:     rate,
			Variance: variance,
		})
	}
	return obs
}

// FilterZeroRuns removes every maximal run of consecutive zero-rate
// windows whose length reaches the cutoff. Five stationary windows span
// about 2.5 s of stillness between window starts, read as "not walking";
// such spans are deleted outright rather than averaged in.
func (c *StepCounter) FilterZeroRuns(obs []WindowObservation) []WindowObservation {
	var out []WindowObservation
	i := 0
	for i < len(obs) {
		if obs[i].Rate != 0 {
			out = append(out, obs[i])
			i++
			continue
		}
		j := i
		for j < len(obs) && obs[j].Rate == 0 {
			j++
		}
		if j-i < c.ZeroRunCutoff {
			out = append(out, obs[i:j]...)
		}
		i = j
	}
	return out
}

// WindowedRate returns the mean strike rate over the bout's surviving
// windows, or 0 when no window survives (including bouts too short to
// window at all).
func (c *StepCounter) WindowedRate(values []float64) float64 {
	obs := c.FilterZeroRuns(c.WindowObservations(values))
	if len(obs) == 0 {
		return 0
	}
	rates := make([]float64, len(obs))
	for i, o := range obs {
		rates[i] = o.Rate
	}
	return stat.Mean(rates, nil)
}

// UnwindowedRate runs one detection over the bout's full axis values and
// normalizes by the bout's elapsed time. Detector failures and
// non-positive durations yield 0.
func (c *StepCounter) UnwindowedRate(td, values []float64) float64 {
	if len(td) == 0 {
		return 0
	}
	duration := td[len(td)-1] - td[0]
	if duration <= 0 {
		return 0
	}
	strikes, err := c.detector.Detect(values)
	if err != nil {
		return 0
	}
	return float64(strikes.Count()) / duration
}
