package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	ErrPlayerNotInitialized = errors.New("audio playback not initialized")
	ErrAlreadyPlaying       = errors.New("audio playback already running")
)

// Player sends rendered audio to a playback device through miniaudio.
// It plays one buffer at a time.
type Player struct {
	config  Config
	ctx     *malgo.AllocatedContext
	playing bool
	mu      sync.Mutex
}

// NewPlayer creates a new playback instance. Channels > 1 duplicates the
// mono signal to every channel.
func NewPlayer(cfg Config) *Player {
	return &Player{config: cfg}
}

// Init initializes the audio backend
func (p *Player) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	p.ctx = ctx
	return nil
}

// ListDevices returns available playback devices
func (p *Player) ListDevices() ([]malgo.DeviceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil, ErrPlayerNotInitialized
	}
	infos, err := p.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}
	return infos, nil
}

// Play blocks until samples have been handed to the device or ctx is
// cancelled. An empty buffer returns immediately.
func (p *Player) Play(ctx context.Context, samples []float64) error {
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return ErrAlreadyPlaying
	}
	if p.ctx == nil {
		p.mu.Unlock()
		return ErrPlayerNotInitialized
	}
	p.playing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.SampleRate = p.config.SampleRate
	deviceConfig.PeriodSizeInFrames = p.config.BufferSize
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = p.config.Channels

	if p.config.DeviceIndex >= 0 {
		devices, err := p.ListDevices()
		if err != nil {
			return err
		}
		if p.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("%w: %d (have %d devices)", ErrDeviceOutOfRange, p.config.DeviceIndex, len(devices))
		}
		deviceConfig.Playback.DeviceID = devices[p.config.DeviceIndex].ID.Pointer()
	}

	src := &frameSource{samples: samples, channels: int(p.config.Channels)}
	done := make(chan struct{})
	var once sync.Once
	onSendFrames := func(output, _ []byte, _ uint32) {
		// the buffer holding the last samples was queued on the previous call
		drained := src.exhausted()
		src.fill(output)
		if drained {
			once.Do(func() { close(done) })
		}
	}

	p.mu.Lock()
	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("start device: %w", err)
	}
	defer func() { _ = device.Stop() }()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases all audio resources
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		if err := p.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		p.ctx.Free()
		p.ctx = nil
	}
	return nil
}

// IsPlaying returns true while Play is running
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// frameSource feeds mono samples to the device as interleaved float32 frames.
// It is only touched from the device callback.
type frameSource struct {
	samples  []float64
	channels int
	pos      int
}

func (s *frameSource) exhausted() bool {
	return s.pos >= len(s.samples)
}

// fill writes the next frames into out, padding with silence once the
// samples run out.
func (s *frameSource) fill(out []byte) {
	channels := max(s.channels, 1)
	frames := len(out) / (4 * channels)
	for i := 0; i < frames; i++ {
		var v float32
		if s.pos < len(s.samples) {
			v = float32(s.samples[s.pos])
			s.pos++
		}
		bits := math.Float32bits(v)
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint32(out[(i*channels+ch)*4:], bits)
		}
	}
}
