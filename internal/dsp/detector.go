// internal/dsp/detector.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidSilenceThreshold indicates the RMS gate must be non-negative
	ErrInvalidSilenceThreshold = errors.New("silence threshold must be non-negative")
	// ErrInvalidTolerance indicates frequency tolerance must be positive
	ErrInvalidTolerance = errors.New("frequency tolerance must be positive")
	// ErrInvalidTopPeaks indicates fewer than two peaks were requested
	ErrInvalidTopPeaks = errors.New("top peaks must be at least 2")
	// ErrAnalyzerRequired indicates Analyzer instance is required
	ErrAnalyzerRequired = errors.New("analyzer instance is required")
	// ErrTargetsRequired indicates both target frequency groups must be non-empty
	ErrTargetsRequired = errors.New("row and column target frequencies are required")
)

// DetectorConfig holds configuration for the dual-tone window detector.
type DetectorConfig struct {
	// SilenceThreshold is the RMS below which a window is silence (from config: silence_threshold)
	SilenceThreshold float64
	// TopPeaks is how many of the strongest peaks are searched (from config: top_peaks)
	TopPeaks int
	// Tolerance is the maximum distance in Hz from a target frequency (from config: frequency_tolerance)
	Tolerance float64
	// Rows are the low-group target frequencies, ascending
	Rows []float64
	// Cols are the high-group target frequencies, ascending
	Cols []float64
}

// Detection is the outcome of classifying one window.
type Detection struct {
	// Silent is true when the window's RMS fell below the silence threshold
	Silent bool
	// RMS is the energy of the raw window
	RMS float64
	// Found is true when both a row and a column target matched
	Found bool
	// Row and Col are the matched target frequencies (valid when Found)
	Row float64
	Col float64
	// Peaks are the strongest peaks that were searched
	Peaks []Peak
}

// Detector classifies audio windows as silence or a row/column tone pair.
// It holds no per-window state and is safe for concurrent use.
type Detector struct {
	config   DetectorConfig
	analyzer *Analyzer
}

// NewDetector creates a new window detector with the given configuration.
func NewDetector(cfg DetectorConfig, analyzer *Analyzer) (*Detector, error) {
	if analyzer == nil {
		return nil, ErrAnalyzerRequired
	}
	if cfg.SilenceThreshold < 0 {
		return nil, ErrInvalidSilenceThreshold
	}
	// a row and a column peak are both needed
	if cfg.TopPeaks < 2 {
		return nil, ErrInvalidTopPeaks
	}
	if cfg.Tolerance <= 0 {
		return nil, ErrInvalidTolerance
	}
	if len(cfg.Rows) == 0 || len(cfg.Cols) == 0 {
		return nil, ErrTargetsRequired
	}
	return &Detector{config: cfg, analyzer: analyzer}, nil
}

// Detect classifies one raw (unweighted) window.
func (d *Detector) Detect(window []float64, sampleRate float64) (Detection, error) {
	rms := RMS(window)
	if rms < d.config.SilenceThreshold {
		return Detection{Silent: true, RMS: rms}, nil
	}

	peaks, err := d.analyzer.Analyze(Hann(window), sampleRate)
	if err != nil {
		return Detection{RMS: rms}, err
	}
	if len(peaks) > d.config.TopPeaks {
		peaks = peaks[:d.config.TopPeaks]
	}

	det := Detection{RMS: rms, Peaks: peaks}
	row, rowOK := MatchFrequency(peaks, d.config.Rows, d.config.Tolerance)
	col, colOK := MatchFrequency(peaks, d.config.Cols, d.config.Tolerance)
	if rowOK && colOK {
		det.Found = true
		det.Row = row
		det.Col = col
	}
	return det, nil
}

// MatchFrequency returns the first target within tolerance of any peak.
// Peaks are visited in the order given (strongest first) and targets in
// ascending order, so an ambiguous window always resolves the same way.
func MatchFrequency(peaks []Peak, targets []float64, tolerance float64) (float64, bool) {
	for _, p := range peaks {
		for _, t := range targets {
			if math.Abs(p.Frequency-t) <= tolerance {
				return t, true
			}
		}
	}
	return 0, false
}

// Config returns the current configuration
func (d *Detector) Config() DetectorConfig {
	return d.config
}
