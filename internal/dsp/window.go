package dsp

import (
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Hann returns a copy of samples weighted by 0.5 - 0.5*cos(2πn/(L-1)).
// A single sample is passed through unchanged.
func Hann(samples []float64) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	if len(out) > 0 {
		window.Apply(out, window.Hann)
	}
	return out
}

// RMS returns the root-mean-square amplitude of samples, 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
}
