// internal/dsp/spectrum.go
package dsp

import (
	"cmp"
	"errors"
	"fmt"
	"math/cmplx"
	"slices"

	"github.com/mjibson/go-dsp/fft"
)

var (
	// ErrInvalidFFTSize indicates the FFT size must be a positive even number
	ErrInvalidFFTSize = errors.New("fft size must be positive and even")
	// ErrInvalidMagnitudeThreshold indicates the peak threshold must be non-negative
	ErrInvalidMagnitudeThreshold = errors.New("magnitude threshold must be non-negative")
	// ErrUnknownMethod indicates an unsupported spectrum method
	ErrUnknownMethod = errors.New("unknown spectrum method")
	// ErrEmptyWindow indicates there were no samples to analyse
	ErrEmptyWindow = errors.New("window has no samples")
)

// Method selects how bin magnitudes are computed.
type Method string

const (
	// MethodDirect evaluates every bin with a Goertzel pass over the whole window
	MethodDirect Method = "direct"
	// MethodFFT folds the window onto FFTSize points and runs a fast transform
	MethodFFT Method = "fft"
)

// ParseMethod converts a config string to a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodDirect, MethodFFT:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Peak is the magnitude measured at one bin frequency. Magnitudes are only
// comparable within the window they came from.
type Peak struct {
	Frequency float64
	Magnitude float64
}

// AnalyzerConfig holds configuration for the spectral analyzer.
type AnalyzerConfig struct {
	// FFTSize sets the bin spacing: sampleRate / FFTSize (from config: fft_size)
	FFTSize int
	// MagnitudeThreshold drops bins at or below this magnitude (from config: magnitude_threshold)
	MagnitudeThreshold float64
	// Method is MethodDirect or MethodFFT (from config: spectrum_method)
	Method Method
}

// Analyzer produces sorted spectral peaks for one window.
type Analyzer struct {
	config AnalyzerConfig
}

// NewAnalyzer creates a new analyzer with the given configuration.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if cfg.FFTSize <= 0 || cfg.FFTSize%2 != 0 {
		return nil, ErrInvalidFFTSize
	}
	if cfg.MagnitudeThreshold < 0 {
		return nil, ErrInvalidMagnitudeThreshold
	}
	if _, err := ParseMethod(string(cfg.Method)); err != nil {
		return nil, err
	}
	return &Analyzer{config: cfg}, nil
}

// Analyze returns one peak per bin k in [0, FFTSize/2) whose magnitude
// exceeds the threshold, ordered by descending magnitude. Equal magnitudes
// keep ascending frequency order.
//
// The window is expected to be Hann-weighted already; Analyze does not
// apply any weighting itself.
func (a *Analyzer) Analyze(window []float64, sampleRate float64) ([]Peak, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}

	var mags []float64
	switch a.config.Method {
	case MethodFFT:
		mags = a.foldedMagnitudes(window)
	default:
		mags = a.directMagnitudes(window, sampleRate)
	}

	step := sampleRate / float64(a.config.FFTSize)
	peaks := make([]Peak, 0, len(mags))
	for k, m := range mags {
		if m > a.config.MagnitudeThreshold {
			peaks = append(peaks, Peak{Frequency: float64(k) * step, Magnitude: m})
		}
	}

	slices.SortStableFunc(peaks, func(x, y Peak) int {
		return cmp.Compare(y.Magnitude, x.Magnitude)
	})
	return peaks, nil
}

// directMagnitudes runs one Goertzel pass per bin: O(len(window) * FFTSize/2).
func (a *Analyzer) directMagnitudes(window []float64, sampleRate float64) []float64 {
	bins := a.config.FFTSize / 2
	step := sampleRate / float64(a.config.FFTSize)
	mags := make([]float64, bins)
	for k := 0; k < bins; k++ {
		g, err := NewGoertzel(GoertzelConfig{TargetFrequency: float64(k) * step, SampleRate: sampleRate})
		if err != nil {
			continue
		}
		mags[k] = g.Magnitude(window)
	}
	return mags
}

// foldedMagnitudes computes the same bins with an FFT. e^(-2πikn/N) has
// period N in n, so summing the window modulo N before transforming gives
// identical bin values for windows of any length.
func (a *Analyzer) foldedMagnitudes(window []float64) []float64 {
	n := a.config.FFTSize
	folded := make([]float64, n)
	for i, v := range window {
		folded[i%n] += v
	}

	spectrum := fft.FFTReal(folded)
	mags := make([]float64, n/2)
	for k := range mags {
		mags[k] = cmplx.Abs(spectrum[k])
	}
	return mags
}

// Config returns the current configuration
func (a *Analyzer) Config() AnalyzerConfig {
	return a.config
}

// BinWidth returns the spacing between bin frequencies at sampleRate.
func (a *Analyzer) BinWidth(sampleRate float64) float64 {
	return sampleRate / float64(a.config.FFTSize)
}
