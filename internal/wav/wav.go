// Package wav reads and writes the canonical 44-byte-header PCM WAV container.
package wav

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	dspwav "github.com/mjibson/go-dsp/wav"
)

// HeaderSize is the length of the canonical RIFF/WAVE header
const HeaderSize = 44

const (
	bitsPerSample = 16
	formatPCM     = 1
)

var (
	// ErrInvalidChannels indicates channel count must be 1 or 2
	ErrInvalidChannels = errors.New("channels must be 1 or 2")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrNoAudio indicates the file holds no samples
	ErrNoAudio = errors.New("wav file contains no samples")
	// ErrUnsupportedFormat indicates a sample encoding other than 8/16-bit PCM or 32-bit float
	ErrUnsupportedFormat = errors.New("unsupported wav sample format")
)

// Clip is decoded audio, down-mixed to mono.
type Clip struct {
	Samples    []float64
	SampleRate float64
	// Channels is the channel count of the source file
	Channels int
}

// Write encodes mono samples as 16-bit signed little-endian PCM. With two
// channels every sample is written to both. Samples are clamped to [-1, 1].
// The header sizes are patched on close, so w must be seekable.
func Write(w io.WriteSeeker, samples []float64, sampleRate, channels int) error {
	if channels < 1 || channels > 2 {
		return ErrInvalidChannels
	}
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}

	data := make([]int, 0, len(samples)*channels)
	for _, s := range samples {
		v := int(toInt16(s))
		for c := 0; c < channels; c++ {
			data = append(data, v)
		}
	}

	enc := gowav.NewEncoder(w, sampleRate, bitsPerSample, channels, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return nil
}

// toInt16 scales negative values by 0x8000 and positive by 0x7FFF.
func toInt16(s float64) int16 {
	s = math.Max(-1, math.Min(1, s))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// Read decodes a WAV stream and averages all channels into one.
func Read(r io.Reader) (Clip, error) {
	w, err := dspwav.New(r)
	if err != nil {
		return Clip{}, fmt.Errorf("read header: %w", err)
	}

	channels := int(w.NumChannels)
	if channels < 1 {
		return Clip{}, ErrInvalidChannels
	}

	if w.Samples == 0 {
		return Clip{}, ErrNoAudio
	}

	// The reader decodes fixed-size blocks; asking for exactly the sample
	// count from the header avoids a short final read.
	raw, err := w.ReadSamples(w.Samples)
	if err != nil {
		return Clip{}, fmt.Errorf("read samples: %w", err)
	}
	interleaved, err := toFloat(raw)
	if err != nil {
		return Clip{}, err
	}

	return Clip{
		Samples:    downmix(interleaved, channels),
		SampleRate: float64(w.SampleRate),
		Channels:   channels,
	}, nil
}

// toFloat scales decoded PCM to [-1, 1]. 8-bit PCM is unsigned around 128.
func toFloat(raw any) ([]float64, error) {
	switch data := raw.(type) {
	case []uint8:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = (float64(v) - 128) / 128
		}
		return out, nil
	case []int16:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v) / 0x8000
		}
		return out, nil
	case []float32:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedFormat, raw)
}

func downmix(interleaved []float64, channels int) []float64 {
	if channels == 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := range out {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
