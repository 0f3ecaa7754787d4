package dtmf

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnmappableCharacter indicates an input character has no DTMF symbol
	ErrUnmappableCharacter = errors.New("character has no DTMF symbol")
	// ErrNoTonesDetected indicates no symbol was found anywhere in the audio
	ErrNoTonesDetected = errors.New("no DTMF tones detected")
	// ErrIncompleteSequence indicates fewer hex characters were decoded than required
	ErrIncompleteSequence = errors.New("incomplete DTMF sequence")
	// ErrUnexpectedLength indicates more hex characters were decoded than a payload holds
	ErrUnexpectedLength = errors.New("decoded payload longer than expected")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidTiming indicates tone and silence durations must be positive
	ErrInvalidTiming = errors.New("tone and silence durations must be positive")
	// ErrInvalidMinLength indicates the minimum hex length must be in 1..ExpectedHexLength
	ErrInvalidMinLength = errors.New("minimum hex length out of range")
)

// Skipped records one character the encoder could not map.
type Skipped struct {
	Position int
	Char     rune
}

// UnmappableError lists every character skipped during an encode.
// The sequence returned alongside it is complete for the characters that mapped.
type UnmappableError struct {
	Skipped []Skipped
}

func (e *UnmappableError) Error() string {
	parts := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		parts[i] = fmt.Sprintf("%q at %d", s.Char, s.Position)
	}
	return fmt.Sprintf("%v: %s", ErrUnmappableCharacter, strings.Join(parts, ", "))
}

func (e *UnmappableError) Unwrap() error {
	return ErrUnmappableCharacter
}
