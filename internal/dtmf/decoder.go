// internal/dtmf/decoder.go
package dtmf

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ColonelBlimp/dtmfaddr/internal/dsp"
	"go.uber.org/zap"
)

// Decoder defaults
const (
	DefaultFFTSize            = 2048
	DefaultMagnitudeThreshold = 0.1
	DefaultSilenceThreshold   = 0.01
	DefaultTopPeaks           = 4
	DefaultTolerance          = 30.0
	// MinPartialWindow is the smallest trailing window that is still analysed
	MinPartialWindow = 2
)

// ErrWindowTooShort indicates the sample rate and tone duration give a window under MinPartialWindow samples
var ErrWindowTooShort = errors.New("analysis window too short")

// DecoderConfig holds configuration for the decoder.
type DecoderConfig struct {
	// ToneDuration sets the window length: round(sampleRate * ToneDuration) (from config: tone_duration_ms)
	ToneDuration time.Duration
	// FFTSize sets the analyzer bin spacing (from config: fft_size)
	FFTSize int
	// Method selects direct or FFT bin evaluation (from config: spectrum_method)
	Method dsp.Method
	// MagnitudeThreshold drops weak bins (from config: magnitude_threshold)
	MagnitudeThreshold float64
	// SilenceThreshold is the RMS gate (from config: silence_threshold)
	SilenceThreshold float64
	// TopPeaks is how many peaks are searched for row/column targets (from config: top_peaks)
	TopPeaks int
	// Tolerance is the Hz distance allowed from a target (from config: frequency_tolerance)
	Tolerance float64
	// MinHexLength is the shortest decoded payload accepted (from config: min_hex_length)
	// 40 is strict; lower values accept partially heard addresses
	MinHexLength int
}

// DefaultDecoderConfig returns the default decoder settings with a strict length policy.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		ToneDuration:       DefaultToneDuration,
		FFTSize:            DefaultFFTSize,
		Method:             dsp.MethodFFT,
		MagnitudeThreshold: DefaultMagnitudeThreshold,
		SilenceThreshold:   DefaultSilenceThreshold,
		TopPeaks:           DefaultTopPeaks,
		Tolerance:          DefaultTolerance,
		MinHexLength:       ExpectedHexLength,
	}
}

// Result is the outcome of a decode. Symbols and Hex are filled in even
// when Decode also returns an error.
type Result struct {
	// Hex is the reassembled lowercase payload without markers
	Hex string
	// Symbols is every symbol emitted, in order, markers included
	Symbols []Symbol
	// Windows is the number of windows analysed
	Windows int
}

// Address returns Hex with a 0x prefix.
func (r Result) Address() string {
	return "0x" + r.Hex
}

// SymbolString returns Symbols as a string.
func (r Result) SymbolString() string {
	var b strings.Builder
	for _, s := range r.Symbols {
		b.WriteByte(byte(s))
	}
	return b.String()
}

// Decoder recovers hex payloads from complete audio buffers. It holds no
// mutable state between calls and is safe for concurrent use.
type Decoder struct {
	config   DecoderConfig
	analyzer *dsp.Analyzer
	detector *dsp.Detector
	log      *zap.Logger
}

// NewDecoder creates a decoder. A nil logger discards diagnostics.
func NewDecoder(cfg DecoderConfig, log *zap.Logger) (*Decoder, error) {
	if cfg.ToneDuration <= 0 {
		return nil, ErrInvalidTiming
	}
	if cfg.MinHexLength < 1 || cfg.MinHexLength > ExpectedHexLength {
		return nil, ErrInvalidMinLength
	}

	analyzer, err := dsp.NewAnalyzer(dsp.AnalyzerConfig{
		FFTSize:            cfg.FFTSize,
		MagnitudeThreshold: cfg.MagnitudeThreshold,
		Method:             cfg.Method,
	})
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}

	detector, err := dsp.NewDetector(dsp.DetectorConfig{
		SilenceThreshold: cfg.SilenceThreshold,
		TopPeaks:         cfg.TopPeaks,
		Tolerance:        cfg.Tolerance,
		Rows:             RowFrequencies[:],
		Cols:             ColFrequencies[:],
	}, analyzer)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{config: cfg, analyzer: analyzer, detector: detector, log: log}, nil
}

// WindowLength returns the number of samples per analysis window at sampleRate.
func (d *Decoder) WindowLength(sampleRate float64) int {
	return int(math.Round(sampleRate * d.config.ToneDuration.Seconds()))
}

// Decode runs the window detector over samples and reassembles the payload.
//
// Ordinary failures are reported with ErrNoTonesDetected,
// ErrIncompleteSequence or ErrUnexpectedLength.
func (d *Decoder) Decode(samples []float64, sampleRate float64) (Result, error) {
	symbols, windows, err := d.Symbols(samples, sampleRate)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Hex:     Reassemble(symbols),
		Symbols: symbols,
		Windows: windows,
	}

	d.log.Debug("decoded symbol stream",
		zap.String("symbols", res.SymbolString()),
		zap.Int("windows", windows),
		zap.Int("window_samples", d.WindowLength(sampleRate)),
		zap.Float64("bin_hz", d.analyzer.BinWidth(sampleRate)),
		zap.Int("hex_length", len(res.Hex)),
	)

	switch {
	case len(symbols) == 0:
		return res, ErrNoTonesDetected
	case len(res.Hex) < d.config.MinHexLength:
		return res, fmt.Errorf("%w: decoded %d of %d hex characters", ErrIncompleteSequence, len(res.Hex), ExpectedHexLength)
	case len(res.Hex) > ExpectedHexLength:
		return res, fmt.Errorf("%w: decoded %d hex characters", ErrUnexpectedLength, len(res.Hex))
	}
	return res, nil
}

// Symbols slides a non-overlapping window over samples and returns the
// de-duplicated symbol stream and the number of windows analysed.
//
// A trailing window shorter than the window length is analysed with the
// samples it has, unless it holds fewer than MinPartialWindow samples.
func (d *Decoder) Symbols(samples []float64, sampleRate float64) ([]Symbol, int, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, 0, ErrInvalidSampleRate
	}
	size := d.WindowLength(sampleRate)
	if size < MinPartialWindow {
		return nil, 0, ErrWindowTooShort
	}

	var (
		out     []Symbol
		tracker Tracker
		windows int
	)
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		if end-start < MinPartialWindow {
			break
		}

		det, err := d.detector.Detect(samples[start:end], sampleRate)
		if err != nil {
			return nil, windows, fmt.Errorf("window at sample %d: %w", start, err)
		}
		windows++

		sym := NoSymbol
		if det.Found {
			sym, _ = SymbolAt(det.Row, det.Col)
		}
		emitted, ok := tracker.Observe(sym)
		if ok {
			out = append(out, emitted)
		}

		if ce := d.log.Check(zap.DebugLevel, "window"); ce != nil {
			fields := []zap.Field{
				zap.Int("start", start),
				zap.Float64("rms", det.RMS),
				zap.Bool("silent", det.Silent),
				zap.Stringer("symbol", sym),
				zap.Bool("emitted", ok),
			}
			if len(det.Peaks) > 0 {
				fields = append(fields,
					zap.Float64("top_hz", det.Peaks[0].Frequency),
					zap.Float64("top_mag", det.Peaks[0].Magnitude),
				)
			}
			ce.Write(fields...)
		}
	}
	return out, windows, nil
}

// Config returns the current configuration
func (d *Decoder) Config() DecoderConfig {
	return d.config
}

// Tracker suppresses repeated detections of a tone that spans several
// windows. Its zero value is awaiting a symbol.
type Tracker struct {
	held Symbol
}

// Observe feeds one window's symbol (NoSymbol for silence or no match)
// and reports the symbol to emit, if any.
func (t *Tracker) Observe(s Symbol) (Symbol, bool) {
	if s == NoSymbol {
		t.held = NoSymbol
		return NoSymbol, false
	}
	if s == t.held {
		return NoSymbol, false
	}
	t.held = s
	return s, true
}

// Reassemble drops every marker from symbols and maps the rest to hex.
func Reassemble(symbols []Symbol) string {
	var b strings.Builder
	b.Grow(len(symbols))
	for _, s := range symbols {
		if s.IsMarker() {
			continue
		}
		if h, ok := HexOf(s); ok {
			b.WriteRune(h)
		}
	}
	return b.String()
}
