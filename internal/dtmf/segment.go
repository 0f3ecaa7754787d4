package dtmf

import (
	"strings"
	"time"
)

// Default segment durations
const (
	DefaultToneDuration    = 80 * time.Millisecond
	DefaultSilenceDuration = 40 * time.Millisecond
)

// Timing holds the two segment durations a sequence is built from.
type Timing struct {
	// Tone is the length of every symbol segment (from config: tone_duration_ms)
	Tone time.Duration
	// Silence is the length of every separator (from config: silence_duration_ms)
	Silence time.Duration
}

// DefaultTiming returns the 80 ms / 40 ms timing.
func DefaultTiming() Timing {
	return Timing{Tone: DefaultToneDuration, Silence: DefaultSilenceDuration}
}

// Segment is one timed unit of a tone sequence: a dual tone or silence.
type Segment struct {
	// Duration is either Timing.Tone or Timing.Silence
	Duration time.Duration
	// Tone is the frequency pair; zero for silence
	Tone FrequencyPair
	// Symbol is the keypad symbol sounded; NoSymbol for silence
	Symbol Symbol
	// Source is the input character this segment encodes (the marker itself for markers, 0 for silence)
	Source rune
}

// Silent reports whether the segment is silence.
func (s Segment) Silent() bool {
	return s.Tone.IsZero()
}

// Sequence is an ordered list of segments, start marker first and stop marker last.
type Sequence []Segment

// Tones returns the number of tone segments.
func (q Sequence) Tones() int {
	n := 0
	for _, s := range q {
		if !s.Silent() {
			n++
		}
	}
	return n
}

// Silences returns the number of silence segments.
func (q Sequence) Silences() int {
	return len(q) - q.Tones()
}

// Duration returns the total play time of the sequence.
func (q Sequence) Duration() time.Duration {
	var d time.Duration
	for _, s := range q {
		d += s.Duration
	}
	return d
}

// Symbols returns the sounded symbols in order, markers included.
func (q Sequence) Symbols() string {
	var b strings.Builder
	for _, s := range q {
		if !s.Silent() {
			b.WriteByte(byte(s.Symbol))
		}
	}
	return b.String()
}
