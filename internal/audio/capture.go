// Package audio captures microphone input for the non-streaming decoder.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized   = errors.New("audio capture not initialized")
	ErrAlreadyRunning   = errors.New("audio capture already running")
	ErrNotRunning       = errors.New("audio capture not running")
	ErrInvalidDuration  = errors.New("record duration must be positive")
	ErrDeviceOutOfRange = errors.New("device index out of range")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 44100
	Channels    uint32 // 1 for mono, 2 for stereo (averaged to mono)
	BufferSize  uint32 // frames per callback
}

// DefaultConfig returns mono 44.1 kHz capture on the default device
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  44100,
		Channels:    1,
		BufferSize:  1024,
	}
}

// SampleCallback is called directly from the audio thread with mono samples.
// Must be non-blocking and fast.
type SampleCallback func(samples []float64)

// Capture reads audio from a capture device through miniaudio.
type Capture struct {
	config  Config
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex

	callbackPtr atomic.Pointer[SampleCallback]
}

// New creates a new audio capture instance
func New(cfg Config) *Capture {
	return &Capture{config: cfg}
}

// SetCallback sets the callback for incoming samples. Set before Start.
func (c *Capture) SetCallback(cb SampleCallback) {
	if cb == nil {
		c.callbackPtr.Store(nil)
		return
	}
	c.callbackPtr.Store(&cb)
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx
	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Start begins audio capture. Capture stops when ctx is cancelled.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.RLock()
	running, initialized := c.running, c.ctx != nil
	c.mu.RUnlock()
	if running {
		return ErrAlreadyRunning
	}
	if !initialized {
		return ErrNotInitialized
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = c.config.SampleRate
	deviceConfig.PeriodSizeInFrames = c.config.BufferSize
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = c.config.Channels

	if c.config.DeviceIndex >= 0 {
		devices, err := c.ListDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("%w: %d (have %d devices)", ErrDeviceOutOfRange, c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	channels := int(c.config.Channels)
	onRecvFrames := func(_, inputSamples []byte, _ uint32) {
		if len(inputSamples) == 0 {
			return
		}
		if cb := c.callbackPtr.Load(); cb != nil {
			(*cb)(toMono(inputSamples, channels))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}
	c.device = device
	c.running = true

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()
	return nil
}

// Record captures d of audio and returns it as one mono buffer. It blocks
// until the duration has elapsed or ctx is cancelled.
func (c *Capture) Record(ctx context.Context, d time.Duration) ([]float64, error) {
	if d <= 0 {
		return nil, ErrInvalidDuration
	}

	want := int(math.Round(float64(c.config.SampleRate) * d.Seconds()))
	var (
		mu   sync.Mutex
		buf  = make([]float64, 0, want)
		done = make(chan struct{})
		once sync.Once
	)
	c.SetCallback(func(samples []float64) {
		mu.Lock()
		defer mu.Unlock()
		room := want - len(buf)
		if room <= 0 {
			return
		}
		if len(samples) > room {
			samples = samples[:room]
		}
		buf = append(buf, samples...)
		if len(buf) >= want {
			once.Do(func() { close(done) })
		}
	})
	defer c.SetCallback(nil)

	recCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := c.Start(recCtx); err != nil {
		return nil, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]float64, len(buf))
	copy(out, buf)
	return out, nil
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}
	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
	c.running = false
	return nil
}

// Close releases all audio resources
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running = false
	}

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// toMono converts interleaved little-endian float32 frames to mono float64.
func toMono(data []byte, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(data) / (4 * channels)
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * 4
			sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
		}
		out[i] = sum / float64(channels)
	}
	return out
}
