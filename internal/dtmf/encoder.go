// internal/dtmf/encoder.go
package dtmf

import (
	"strings"

	"go.uber.org/zap"
)

// ExpectedHexLength is the number of hex characters in a 20-byte address
const ExpectedHexLength = 40

// EncoderConfig holds configuration for the encoder.
type EncoderConfig struct {
	Timing Timing
}

// Encoder turns hex payloads into tone sequences. It holds no mutable
// state and is safe for concurrent use.
type Encoder struct {
	config EncoderConfig
	log    *zap.Logger
}

// NewEncoder creates an encoder. A nil logger discards warnings.
func NewEncoder(cfg EncoderConfig, log *zap.Logger) (*Encoder, error) {
	if cfg.Timing.Tone <= 0 || cfg.Timing.Silence <= 0 {
		return nil, ErrInvalidTiming
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Encoder{config: cfg, log: log}, nil
}

// NormalizePayload strips an optional 0x prefix and lowercases the rest.
func NormalizePayload(payload string) string {
	if len(payload) >= 2 && payload[0] == '0' && (payload[1] == 'x' || payload[1] == 'X') {
		payload = payload[2:]
	}
	return strings.ToLower(payload)
}

// Encode builds the tone sequence for payload. Length is not enforced.
//
// Characters without a symbol are skipped and logged; the returned
// sequence is still complete and a *UnmappableError lists what was dropped.
func (e *Encoder) Encode(payload string) (Sequence, error) {
	chars := []rune(NormalizePayload(payload))
	seq := make(Sequence, 0, 2*len(chars)+3)

	seq = append(seq, e.marker(StartMarker), e.silence())

	var skipped []Skipped
	for i, ch := range chars {
		sym, ok := SymbolForHex(ch)
		if !ok {
			e.log.Warn("skipping unmappable character",
				zap.String("char", string(ch)),
				zap.Int("position", i),
			)
			skipped = append(skipped, Skipped{Position: i, Char: ch})
			continue
		}
		seq = append(seq, e.tone(sym, ch))
		if i < len(chars)-1 {
			seq = append(seq, e.silence())
		}
	}

	seq = append(seq, e.silence(), e.marker(StopMarker))

	e.log.Debug("encoded payload",
		zap.Int("chars", len(chars)),
		zap.Int("segments", len(seq)),
		zap.Duration("duration", seq.Duration()),
	)

	if len(skipped) > 0 {
		return seq, &UnmappableError{Skipped: skipped}
	}
	return seq, nil
}

// Timing returns the configured segment durations.
func (e *Encoder) Timing() Timing {
	return e.config.Timing
}

func (e *Encoder) tone(sym Symbol, src rune) Segment {
	pair, _ := FrequenciesOf(sym)
	return Segment{
		Duration: e.config.Timing.Tone,
		Tone:     pair,
		Symbol:   sym,
		Source:   src,
	}
}

func (e *Encoder) marker(sym Symbol) Segment {
	return e.tone(sym, rune(sym))
}

func (e *Encoder) silence() Segment {
	return Segment{Duration: e.config.Timing.Silence}
}

// ExpectedSymbols returns the symbol string a payload should sound,
// markers included. Unmappable characters are left out.
func ExpectedSymbols(payload string) string {
	var b strings.Builder
	b.WriteByte(byte(StartMarker))
	for _, ch := range NormalizePayload(payload) {
		if sym, ok := SymbolForHex(ch); ok {
			b.WriteByte(byte(sym))
		}
	}
	b.WriteByte(byte(StopMarker))
	return b.String()
}

// Accuracy returns the percentage of positions where got matches want,
// measured against the length of want.
func Accuracy(got, want string) float64 {
	if got == "" || want == "" {
		return 0
	}
	n := min(len(got), len(want))
	correct := 0
	for i := 0; i < n; i++ {
		if got[i] == want[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(want)) * 100
}
