package dtmf

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const samplePayload = "1234567890abcdef1234567890abcdef12345678"

func createTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	e, err := NewEncoder(EncoderConfig{Timing: DefaultTiming()}, nil)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}
	return e
}

func TestNewEncoder_InvalidTiming(t *testing.T) {
	tests := []struct {
		name   string
		timing Timing
	}{
		{"zero tone", Timing{Tone: 0, Silence: 40 * time.Millisecond}},
		{"zero silence", Timing{Tone: 80 * time.Millisecond, Silence: 0}},
		{"negative tone", Timing{Tone: -time.Millisecond, Silence: 40 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(EncoderConfig{Timing: tt.timing}, nil)
			if err != ErrInvalidTiming {
				t.Errorf("NewEncoder() error = %v, want ErrInvalidTiming", err)
			}
		})
	}
}

func TestEncode_ReferenceAddress(t *testing.T) {
	e := createTestEncoder(t)

	seq, err := e.Encode(samplePayload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if len(seq) != 83 {
		t.Errorf("len(seq) = %d, want 83", len(seq))
	}
	if seq.Tones() != 42 {
		t.Errorf("seq.Tones() = %d, want 42", seq.Tones())
	}
	if seq.Silences() != 41 {
		t.Errorf("seq.Silences() = %d, want 41", seq.Silences())
	}
	if seq[0].Symbol != StartMarker {
		t.Errorf("first segment = %v, want start marker", seq[0].Symbol)
	}
	if last := seq[len(seq)-1]; last.Symbol != StopMarker || last.Silent() {
		t.Errorf("last segment = %+v, want stop marker tone", last)
	}
	if seq.Duration() != 5*time.Second {
		t.Errorf("seq.Duration() = %v, want 5s", seq.Duration())
	}
}

func TestEncode_SegmentLayout(t *testing.T) {
	e := createTestEncoder(t)

	for n := 0; n <= 8; n++ {
		payload := samplePayload[:n]
		seq, err := e.Encode(payload)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", payload, err)
		}

		wantTones := n + 2
		if seq.Tones() != wantTones {
			t.Errorf("Encode(%q) tones = %d, want %d", payload, seq.Tones(), wantTones)
		}

		// Tones and silences alternate, starting and ending on a tone.
		for i, s := range seq {
			if n == 0 {
				break
			}
			wantSilent := i%2 == 1
			if s.Silent() != wantSilent {
				t.Errorf("Encode(%q)[%d].Silent() = %v, want %v", payload, i, s.Silent(), wantSilent)
			}
		}
	}
}

func TestEncode_EmptyPayload(t *testing.T) {
	e := createTestEncoder(t)

	seq, err := e.Encode("0x")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got := seq.Symbols(); got != "*#" {
		t.Errorf("seq.Symbols() = %q, want *#", got)
	}
	// Both the separator after the start marker and the one before the
	// stop marker are kept.
	if len(seq) != 4 || seq.Silences() != 2 {
		t.Errorf("len(seq) = %d with %d silences, want 4 with 2", len(seq), seq.Silences())
	}
}

func TestEncode_SegmentDurations(t *testing.T) {
	timing := Timing{Tone: 100 * time.Millisecond, Silence: 25 * time.Millisecond}
	e, err := NewEncoder(EncoderConfig{Timing: timing}, nil)
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}

	seq, err := e.Encode("abc")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for i, s := range seq {
		want := timing.Tone
		if s.Silent() {
			want = timing.Silence
		}
		if s.Duration != want {
			t.Errorf("seq[%d].Duration = %v, want %v", i, s.Duration, want)
		}
		if s.Silent() && (s.Symbol != NoSymbol || s.Source != 0) {
			t.Errorf("silence seq[%d] carries symbol %v / source %q", i, s.Symbol, s.Source)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	e := createTestEncoder(t)

	first, err := e.Encode(samplePayload)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Encode(samplePayload)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if !slices.Equal(first, again) {
			t.Fatal("Encode() returned different sequences for the same payload")
		}
	}
}

func TestEncode_PrefixAndCase(t *testing.T) {
	e := createTestEncoder(t)

	want, _ := e.Encode("abcdef")
	for _, payload := range []string{"0xabcdef", "0XABCDEF", "ABCdef"} {
		got, err := e.Encode(payload)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", payload, err)
		}
		if !slices.Equal(got, want) {
			t.Errorf("Encode(%q) differs from Encode(%q)", payload, "abcdef")
		}
	}
}

func TestEncode_SourceCharacters(t *testing.T) {
	e := createTestEncoder(t)

	seq, err := e.Encode("0xE1")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var sources []rune
	for _, s := range seq {
		if !s.Silent() {
			sources = append(sources, s.Source)
		}
	}
	want := []rune{'*', 'e', '1', '#'}
	if !slices.Equal(sources, want) {
		t.Errorf("sources = %q, want %q", sources, want)
	}
	if seq.Symbols() != "*D1#" {
		t.Errorf("seq.Symbols() = %q, want *D1#", seq.Symbols())
	}
}

func TestEncode_UnmappableCharacters(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e, err := NewEncoder(EncoderConfig{Timing: DefaultTiming()}, zap.New(core))
	if err != nil {
		t.Fatalf("NewEncoder() error = %v", err)
	}

	seq, err := e.Encode("12g3z4")
	if !errors.Is(err, ErrUnmappableCharacter) {
		t.Fatalf("Encode() error = %v, want ErrUnmappableCharacter", err)
	}

	var unmappable *UnmappableError
	if !errors.As(err, &unmappable) {
		t.Fatalf("Encode() error is %T, want *UnmappableError", err)
	}
	want := []Skipped{{Position: 2, Char: 'g'}, {Position: 4, Char: 'z'}}
	if !slices.Equal(unmappable.Skipped, want) {
		t.Errorf("Skipped = %+v, want %+v", unmappable.Skipped, want)
	}

	if got := seq.Symbols(); got != "*1234#" {
		t.Errorf("seq.Symbols() = %q, want *1234#", got)
	}
	if seq[0].Symbol != StartMarker || seq[len(seq)-1].Symbol != StopMarker {
		t.Error("sequence with skipped characters must still be framed")
	}

	if logs.Len() != 2 {
		t.Errorf("logged %d warnings, want 2", logs.Len())
	}
	for _, entry := range logs.All() {
		if entry.Message != "skipping unmappable character" {
			t.Errorf("unexpected log message %q", entry.Message)
		}
	}
}

func TestNormalizePayload(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0xABCD", "abcd"},
		{"0Xabcd", "abcd"},
		{"abcd", "abcd"},
		{"0x", ""},
		{"0", "0"},
		{"", ""},
		{"x0ab", "x0ab"},
	}

	for _, tt := range tests {
		if got := NormalizePayload(tt.in); got != tt.want {
			t.Errorf("NormalizePayload(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpectedSymbols(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"0x12ab", "*12AB#"},
		{"ef", "*DD#"},
		{"1g2", "*12#"},
		{"", "*#"},
	}

	for _, tt := range tests {
		if got := ExpectedSymbols(tt.payload); got != tt.want {
			t.Errorf("ExpectedSymbols(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		got  string
		want string
		pct  float64
	}{
		{"*1234#", "*1234#", 100},
		{"*1234", "*1234#", 100 * 5.0 / 6.0},
		{"*9234#", "*1234#", 100 * 5.0 / 6.0},
		{"", "*1234#", 0},
		{"*1#", "", 0},
	}

	for _, tt := range tests {
		if got := Accuracy(tt.got, tt.want); math.Abs(got-tt.pct) > 1e-9 {
			t.Errorf("Accuracy(%q, %q) = %v, want %v", tt.got, tt.want, got, tt.pct)
		}
	}
}
