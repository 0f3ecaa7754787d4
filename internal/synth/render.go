// Package synth renders tone sequences into PCM sample buffers.
package synth

import (
	"errors"
	"math"
	"time"

	"github.com/ColonelBlimp/dtmfaddr/internal/dtmf"
	"gonum.org/v1/gonum/floats"
)

// Default rendering values
const (
	// DefaultAmplitude is applied to each of the two oscillators; two tones peak at 0.6
	DefaultAmplitude = 0.3
	// DefaultRamp is the linear fade applied at both ends of a tone to avoid clicks
	DefaultRamp = 10 * time.Millisecond
)

var (
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidAmplitude indicates amplitude must be in (0, 0.5] so two tones cannot clip
	ErrInvalidAmplitude = errors.New("amplitude must be greater than 0 and at most 0.5")
	// ErrInvalidRamp indicates ramp must be non-negative
	ErrInvalidRamp = errors.New("ramp must be non-negative")
)

// Config holds configuration for rendering.
type Config struct {
	// SampleRate in Hz (from config: sample_rate)
	SampleRate float64
	// Amplitude per oscillator (from config: amplitude)
	Amplitude float64
	// Ramp is the attack and release length of each tone (from config: ramp_ms)
	Ramp time.Duration
}

// DefaultConfig returns 44.1 kHz rendering with the default amplitude and ramp.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Amplitude:  DefaultAmplitude,
		Ramp:       DefaultRamp,
	}
}

// Validate checks the rendering parameters.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if c.Amplitude <= 0 || c.Amplitude > 0.5 {
		return ErrInvalidAmplitude
	}
	if c.Ramp < 0 {
		return ErrInvalidRamp
	}
	return nil
}

// SegmentSamples returns how many samples a segment of duration d occupies.
func SegmentSamples(d time.Duration, sampleRate float64) int {
	return int(math.Round(sampleRate * d.Seconds()))
}

// Render synthesizes seq into a mono buffer nominally in [-1, 1].
// Each segment starts its oscillators at phase zero.
func Render(seq dtmf.Sequence, cfg Config) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	total := 0
	for _, s := range seq {
		total += SegmentSamples(s.Duration, cfg.SampleRate)
	}

	out := make([]float64, total)
	offset := 0
	for _, s := range seq {
		n := SegmentSamples(s.Duration, cfg.SampleRate)
		if !s.Silent() {
			renderTone(out[offset:offset+n], s.Tone, cfg)
		}
		offset += n
	}
	return out, nil
}

func renderTone(dst []float64, pair dtmf.FrequencyPair, cfg Config) {
	n := len(dst)
	col := make([]float64, n)
	for i := range dst {
		t := float64(i) / cfg.SampleRate
		dst[i] = math.Sin(2 * math.Pi * pair.Row * t)
		col[i] = math.Sin(2 * math.Pi * pair.Col * t)
	}
	floats.Add(dst, col)
	floats.Scale(cfg.Amplitude, dst)

	ramp := SegmentSamples(cfg.Ramp, cfg.SampleRate)
	if ramp > n/2 {
		ramp = n / 2
	}
	for i := 0; i < ramp; i++ {
		g := float64(i) / float64(ramp)
		dst[i] *= g
		dst[n-1-i] *= g
	}
}
