// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ColonelBlimp/dtmfaddr/internal/codec"
	"github.com/ColonelBlimp/dtmfaddr/internal/dsp"
	"github.com/ColonelBlimp/dtmfaddr/internal/dtmf"
	"github.com/ColonelBlimp/dtmfaddr/internal/synth"
	"github.com/spf13/viper"
)

const (
	AppName       = "dtmfaddr"
	ConfigType    = "yaml"
	DefaultConfig = `# DTMF address codec configuration

# Audio
sample_rate: 44100        # Render and capture sample rate in Hz
device_index: -1          # Capture device (-1 for default device)
record_seconds: 8         # Capture length for 'listen'
wav_channels: 1           # Channels written to WAV files (1 or 2)

# Tone timing
tone_duration_ms: 80      # Length of every symbol tone, also the decode window
silence_duration_ms: 40   # Gap between tones

# Rendering
amplitude: 0.3            # Per-oscillator amplitude (two tones peak at 2x this)
ramp_ms: 10               # Linear fade in/out per tone, 0 disables

# Detection
fft_size: 2048            # Bin spacing is sample_rate / fft_size
spectrum_method: "fft"    # "fft" (fast) or "direct" (per-bin DFT)
silence_threshold: 0.01   # Window RMS below this is silence
magnitude_threshold: 0.1  # Bins at or below this magnitude are ignored
frequency_tolerance: 30   # Hz allowed between a peak and a DTMF frequency
top_peaks: 4              # Strongest peaks searched per window

# Payload
min_hex_length: 40        # 40 = strict; lower accepts partially heard addresses

# Caching
cache_capacity: 10        # Entries kept per cache (tone sequences, rendered audio)

# Output
debug: false              # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio
	SampleRate    float64 `mapstructure:"sample_rate"`
	DeviceIndex   int     `mapstructure:"device_index"`
	RecordSeconds float64 `mapstructure:"record_seconds"`
	WAVChannels   int     `mapstructure:"wav_channels"`

	// Tone timing
	ToneDurationMs    int `mapstructure:"tone_duration_ms"`
	SilenceDurationMs int `mapstructure:"silence_duration_ms"`

	// Rendering
	Amplitude float64 `mapstructure:"amplitude"`
	RampMs    int     `mapstructure:"ramp_ms"`

	// Detection
	FFTSize            int     `mapstructure:"fft_size"`
	SpectrumMethod     string  `mapstructure:"spectrum_method"`
	SilenceThreshold   float64 `mapstructure:"silence_threshold"`
	MagnitudeThreshold float64 `mapstructure:"magnitude_threshold"`
	FrequencyTolerance float64 `mapstructure:"frequency_tolerance"`
	TopPeaks           int     `mapstructure:"top_peaks"`

	// Payload
	MinHexLength int `mapstructure:"min_hex_length"`

	// Caching
	CacheCapacity int `mapstructure:"cache_capacity"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/dtmfaddr/
func Init() error {
	viper.SetDefault("sample_rate", 44100)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("record_seconds", 8)
	viper.SetDefault("wav_channels", 1)
	viper.SetDefault("tone_duration_ms", 80)
	viper.SetDefault("silence_duration_ms", 40)
	viper.SetDefault("amplitude", 0.3)
	viper.SetDefault("ramp_ms", 10)
	viper.SetDefault("fft_size", 2048)
	viper.SetDefault("spectrum_method", "fft")
	viper.SetDefault("silence_threshold", 0.01)
	viper.SetDefault("magnitude_threshold", 0.1)
	viper.SetDefault("frequency_tolerance", 30)
	viper.SetDefault("top_peaks", 4)
	viper.SetDefault("min_hex_length", 40)
	viper.SetDefault("cache_capacity", 10)
	viper.SetDefault("debug", false)

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Audio
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.RecordSeconds <= 0 || s.RecordSeconds > 120 {
		errs = append(errs, fmt.Errorf("record_seconds must be greater than 0 and at most 120, got %v", s.RecordSeconds))
	}
	if s.WAVChannels < 1 || s.WAVChannels > 2 {
		errs = append(errs, fmt.Errorf("wav_channels must be 1 or 2, got %d", s.WAVChannels))
	}

	// Tone timing
	if s.ToneDurationMs < 20 || s.ToneDurationMs > 1000 {
		errs = append(errs, fmt.Errorf("tone_duration_ms must be between 20 and 1000, got %d", s.ToneDurationMs))
	}
	if s.SilenceDurationMs < 1 || s.SilenceDurationMs > 1000 {
		errs = append(errs, fmt.Errorf("silence_duration_ms must be between 1 and 1000, got %d", s.SilenceDurationMs))
	}

	// Rendering
	if s.Amplitude <= 0 || s.Amplitude > 0.5 {
		errs = append(errs, fmt.Errorf("amplitude must be greater than 0 and at most 0.5, got %v", s.Amplitude))
	}
	if s.RampMs < 0 || s.RampMs*2 > s.ToneDurationMs {
		errs = append(errs, fmt.Errorf("ramp_ms must be between 0 and half of tone_duration_ms, got %d", s.RampMs))
	}

	// Detection
	if s.FFTSize < 256 || s.FFTSize > 16384 {
		errs = append(errs, fmt.Errorf("fft_size must be between 256 and 16384, got %d", s.FFTSize))
	}
	if s.FFTSize&(s.FFTSize-1) != 0 {
		errs = append(errs, fmt.Errorf("fft_size should be a power of 2, got %d", s.FFTSize))
	}
	if _, err := dsp.ParseMethod(s.SpectrumMethod); err != nil {
		errs = append(errs, fmt.Errorf("spectrum_method must be \"fft\" or \"direct\", got %q", s.SpectrumMethod))
	}
	if s.SilenceThreshold < 0 || s.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("silence_threshold must be between 0.0 and 1.0, got %v", s.SilenceThreshold))
	}
	if s.MagnitudeThreshold < 0 {
		errs = append(errs, fmt.Errorf("magnitude_threshold must be non-negative, got %v", s.MagnitudeThreshold))
	}
	// Row frequencies are at least 73 Hz apart; a wider tolerance would overlap them
	if s.FrequencyTolerance <= 0 || s.FrequencyTolerance > 36 {
		errs = append(errs, fmt.Errorf("frequency_tolerance must be greater than 0 and at most 36 Hz, got %v", s.FrequencyTolerance))
	}
	if s.TopPeaks < 2 || s.TopPeaks > 32 {
		errs = append(errs, fmt.Errorf("top_peaks must be between 2 and 32, got %d", s.TopPeaks))
	}

	// Payload
	if s.MinHexLength < 1 || s.MinHexLength > dtmf.ExpectedHexLength {
		errs = append(errs, fmt.Errorf("min_hex_length must be between 1 and %d, got %d", dtmf.ExpectedHexLength, s.MinHexLength))
	}

	// Caching
	if s.CacheCapacity < 1 || s.CacheCapacity > 1000 {
		errs = append(errs, fmt.Errorf("cache_capacity must be between 1 and 1000, got %d", s.CacheCapacity))
	}

	// Nyquist check: the highest DTMF column must be below half the sample rate
	if top := dtmf.ColFrequencies[len(dtmf.ColFrequencies)-1]; top >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("sample_rate (%v Hz) must be more than twice the highest DTMF frequency (%v Hz)", s.SampleRate, top))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Timing returns the configured tone and silence durations.
func (s *Settings) Timing() dtmf.Timing {
	return dtmf.Timing{
		Tone:    time.Duration(s.ToneDurationMs) * time.Millisecond,
		Silence: time.Duration(s.SilenceDurationMs) * time.Millisecond,
	}
}

// DecoderConfig returns the decoder settings.
func (s *Settings) DecoderConfig() dtmf.DecoderConfig {
	return dtmf.DecoderConfig{
		ToneDuration:       s.Timing().Tone,
		FFTSize:            s.FFTSize,
		Method:             dsp.Method(s.SpectrumMethod),
		MagnitudeThreshold: s.MagnitudeThreshold,
		SilenceThreshold:   s.SilenceThreshold,
		TopPeaks:           s.TopPeaks,
		Tolerance:          s.FrequencyTolerance,
		MinHexLength:       s.MinHexLength,
	}
}

// RecordDuration returns the capture length for 'listen'.
func (s *Settings) RecordDuration() time.Duration {
	return time.Duration(s.RecordSeconds * float64(time.Second))
}

// CodecConfig assembles the codec configuration from the settings.
func (s *Settings) CodecConfig() codec.Config {
	return codec.Config{
		Timing:  s.Timing(),
		Decoder: s.DecoderConfig(),
		Render: synth.Config{
			SampleRate: s.SampleRate,
			Amplitude:  s.Amplitude,
			Ramp:       time.Duration(s.RampMs) * time.Millisecond,
		},
		CacheCapacity: s.CacheCapacity,
	}
}
