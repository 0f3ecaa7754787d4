//go:build integration

package audio

import (
	"context"
	"math"
	"testing"
	"time"
)

// These tests require actual audio hardware and are skipped by default.
// Run with: go test -tags=integration ./internal/audio

func TestCapture_ListDevices_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	devices, err := capture.ListDevices()
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}

	t.Logf("Found %d capture devices:", len(devices))
	for i, d := range devices {
		t.Logf("  [%d] %s", i, d.Name())
	}
}

func TestCapture_StartStop_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := capture.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !capture.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}

	time.Sleep(100 * time.Millisecond)

	if err := capture.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if capture.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
}

func TestCapture_Record_Integration(t *testing.T) {
	cfg := DefaultConfig()
	capture := New(cfg)
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	samples, err := capture.Record(ctx, 250*time.Millisecond)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	want := int(cfg.SampleRate) / 4
	if len(samples) != want {
		t.Errorf("Record() returned %d samples, want %d", len(samples), want)
	}
}

func TestCapture_Record_Cancelled_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := capture.Record(ctx, 10*time.Second); err != context.DeadlineExceeded {
		t.Errorf("Record() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestPlayer_Play_Integration(t *testing.T) {
	cfg := DefaultConfig()
	player := NewPlayer(cfg)
	defer player.Close()

	if err := player.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tone := make([]float64, int(cfg.SampleRate)/5)
	for i := range tone {
		tone[i] = 0.2 * math.Sin(2*math.Pi*697*float64(i)/float64(cfg.SampleRate))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := player.Play(ctx, tone); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if player.IsPlaying() {
		t.Error("IsPlaying() = true after Play() returned")
	}
}
