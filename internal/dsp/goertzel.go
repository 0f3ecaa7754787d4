// internal/dsp/goertzel.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be non-negative and below Nyquist
	ErrInvalidFrequency = errors.New("target frequency must be non-negative and less than Nyquist frequency")
)

// GoertzelConfig holds configuration for a single-bin detector.
type GoertzelConfig struct {
	// TargetFrequency is the frequency to measure in Hz
	TargetFrequency float64
	// SampleRate is the audio sample rate in Hz
	SampleRate float64
}

// Goertzel computes the DFT magnitude at one frequency over a whole window.
// Unlike an FFT bin it accepts any window length, so a 3528-sample window
// can be evaluated at a 2048-point bin frequency directly.
type Goertzel struct {
	config      GoertzelConfig
	coefficient float64 // Pre-computed: 2 * cos(omega)
}

// NewGoertzel creates a new Goertzel detector with the given configuration.
func NewGoertzel(cfg GoertzelConfig) (*Goertzel, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.TargetFrequency < 0 || cfg.TargetFrequency >= cfg.SampleRate/2.0 {
		return nil, ErrInvalidFrequency
	}

	omega := 2.0 * math.Pi * cfg.TargetFrequency / cfg.SampleRate
	return &Goertzel{
		config:      cfg,
		coefficient: 2.0 * math.Cos(omega),
	}, nil
}

// Magnitude returns |sum x[n]·e^(-iωn)| over every sample. The result is
// not normalised by window length.
func (g *Goertzel) Magnitude(samples []float64) float64 {
	var s0, s1, s2 float64
	coeff := g.coefficient

	for _, x := range samples {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	// power = s1² + s2² - coefficient * s1 * s2
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power)
}

// Config returns the current configuration
func (g *Goertzel) Config() GoertzelConfig {
	return g.config
}

// Coefficient returns the pre-computed Goertzel coefficient (for testing)
func (g *Goertzel) Coefficient() float64 {
	return g.coefficient
}
