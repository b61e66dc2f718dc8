//go:build !headless

// Package backend wires audiocore's Backend contract to concrete host
// audio output implementations.
package backend

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/silverwake/waveengine/internal/audiocore"
)

func init() {
	audiocore.RegisterBackend(audiocore.BackendOto, newOtoBackend)
}

// otoBackend pulls raw stereo PCM16 bytes from the mixer through
// oto/v3's callback-driven player.
type otoBackend struct {
	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	started bool
}

func newOtoBackend(cfg audiocore.Config) (audiocore.Backend, error) {
	return &otoBackend{}, nil
}

// Open wires src (the mixer) as oto's io.Reader and creates the
// player; playback doesn't start until Resume is called.
func (b *otoBackend) Open(src io.Reader, sampleRateHz int) error {
	options := &oto.NewContextOptions{
		SampleRate:   sampleRateHz,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   0,
	}
	ctx, ready, err := oto.NewContext(options)
	if err != nil {
		return fmt.Errorf("backend: open oto context: %w", err)
	}
	<-ready

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctx = ctx
	b.player = ctx.NewPlayer(src)
	return nil
}

func (b *otoBackend) SetVolume(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil {
		b.player.SetVolume(float64(v))
	}
}

func (b *otoBackend) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player == nil {
		return fmt.Errorf("backend: oto player not open")
	}
	if !b.started {
		b.player.Play()
		b.started = true
	}
	return nil
}

func (b *otoBackend) Pause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil && b.started {
		b.player.Pause()
		b.started = false
	}
	return nil
}

func (b *otoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player != nil {
		err := b.player.Close()
		b.player = nil
		return err
	}
	return nil
}

func (b *otoBackend) SupportsSurround() bool       { return false }
func (b *otoBackend) SupportsLatencyControl() bool { return true }
func (b *otoBackend) SupportsVolumeChanges() bool  { return true }
