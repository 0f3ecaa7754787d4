// Package codec ties the encoder, renderer and decoder together behind the
// bounded caches and metrics a caller needs.
package codec

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ColonelBlimp/dtmfaddr/internal/cache"
	"github.com/ColonelBlimp/dtmfaddr/internal/dtmf"
	"github.com/ColonelBlimp/dtmfaddr/internal/observe"
	"github.com/ColonelBlimp/dtmfaddr/internal/synth"
	"go.uber.org/zap"
)

// Cache names used as metric attributes
const (
	CacheTones  = "tones"
	CacheRender = "render"
)

// Config holds everything needed to build a Codec.
type Config struct {
	Timing  dtmf.Timing
	Decoder dtmf.DecoderConfig
	Render  synth.Config
	// CacheCapacity bounds each cache (from config: cache_capacity)
	CacheCapacity int
}

// DefaultConfig returns the default timing, decoder and renderer settings.
func DefaultConfig() Config {
	return Config{
		Timing:        dtmf.DefaultTiming(),
		Decoder:       dtmf.DefaultDecoderConfig(),
		Render:        synth.DefaultConfig(),
		CacheCapacity: cache.DefaultCapacity,
	}
}

type toneEntry struct {
	seq     dtmf.Sequence
	skipped error
}

// Codec is safe for concurrent use.
type Codec struct {
	config  Config
	encoder *dtmf.Encoder
	decoder *dtmf.Decoder
	tones   *cache.Loader[toneEntry]
	audio   *cache.Loader[[]float64]
	metrics *observe.Metrics
	log     *zap.Logger
}

// New builds a codec. A nil metrics uses observe.DefaultMetrics; a nil
// logger discards output.
func New(cfg Config, metrics *observe.Metrics, log *zap.Logger) (*Codec, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if cfg.Decoder.ToneDuration == 0 {
		cfg.Decoder.ToneDuration = cfg.Timing.Tone
	}
	if err := cfg.Render.Validate(); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}

	encoder, err := dtmf.NewEncoder(dtmf.EncoderConfig{Timing: cfg.Timing}, log.Named("encoder"))
	if err != nil {
		return nil, fmt.Errorf("create encoder: %w", err)
	}
	decoder, err := dtmf.NewDecoder(cfg.Decoder, log.Named("decoder"))
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	c := &Codec{
		config:  cfg,
		encoder: encoder,
		decoder: decoder,
		metrics: metrics,
		log:     log,
	}

	c.tones, err = cache.NewLoader[toneEntry](cfg.CacheCapacity, c.lookupRecorder(CacheTones))
	if err != nil {
		return nil, fmt.Errorf("tone cache: %w", err)
	}
	c.audio, err = cache.NewLoader[[]float64](cfg.CacheCapacity, c.lookupRecorder(CacheRender))
	if err != nil {
		return nil, fmt.Errorf("render cache: %w", err)
	}
	return c, nil
}

func (c *Codec) lookupRecorder(name string) cache.LookupFunc {
	return func(hit bool) {
		c.metrics.RecordCacheLookup(context.Background(), name, hit)
	}
}

// Tones returns the tone sequence for payload, from cache when possible.
// A *dtmf.UnmappableError comes back with a usable sequence.
func (c *Codec) Tones(ctx context.Context, payload string) (dtmf.Sequence, error) {
	key := dtmf.NormalizePayload(payload)
	entry, err := c.tones.Get(key, func() (toneEntry, error) {
		seq, skipped := c.encoder.Encode(key)
		c.metrics.RecordEncode(ctx, skipped != nil)
		c.log.Debug("encoded payload", zap.Int("symbols", len(seq)), zap.Int("cached", c.tones.Len()))
		return toneEntry{seq: seq, skipped: skipped}, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(entry.seq), entry.skipped
}

// Render returns the synthesized audio for payload at the configured
// sample rate, from cache when possible. Skipped characters are not an error here.
func (c *Codec) Render(ctx context.Context, payload string) ([]float64, error) {
	key := dtmf.NormalizePayload(payload)
	samples, err := c.audio.Get(key, func() ([]float64, error) {
		seq, err := c.Tones(ctx, key)
		var skipped *dtmf.UnmappableError
		if err != nil && !errors.As(err, &skipped) {
			return nil, err
		}
		return synth.Render(seq, c.config.Render)
	})
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", key, err)
	}
	return slices.Clone(samples), nil
}

// Decode recovers a payload from a complete buffer and records the outcome.
func (c *Codec) Decode(ctx context.Context, samples []float64, sampleRate float64) (dtmf.Result, error) {
	start := time.Now()
	res, err := c.decoder.Decode(samples, sampleRate)
	status := decodeStatus(err)
	c.metrics.RecordDecode(ctx, status, time.Since(start), len(res.Symbols))

	if err != nil {
		c.log.Debug("decode failed",
			zap.String("status", status),
			zap.String("symbols", res.SymbolString()),
			zap.Error(err),
		)
	}
	return res, err
}

// Accuracy scores res against the symbols expected sounds and records the
// result. res may come from a failed decode.
func (c *Codec) Accuracy(ctx context.Context, res dtmf.Result, expected string) float64 {
	pct := dtmf.Accuracy(res.SymbolString(), dtmf.ExpectedSymbols(expected))
	c.metrics.RecordAccuracy(ctx, pct)
	return pct
}

func decodeStatus(err error) string {
	switch {
	case err == nil:
		return observe.StatusOK
	case errors.Is(err, dtmf.ErrNoTonesDetected):
		return observe.StatusNoTones
	case errors.Is(err, dtmf.ErrIncompleteSequence):
		return observe.StatusIncomplete
	case errors.Is(err, dtmf.ErrUnexpectedLength):
		return observe.StatusTooLong
	}
	return observe.StatusError
}

// SampleRate returns the rendering sample rate.
func (c *Codec) SampleRate() float64 {
	return c.config.Render.SampleRate
}

// Config returns the current configuration
func (c *Codec) Config() Config {
	return c.config
}
