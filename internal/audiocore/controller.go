package audiocore

import (
	"fmt"
	"sync"
)

// Controller is the explicit handle applications use to drive the
// audio engine: it owns the Mixer and the selected Backend, and
// exposes the same operations the original global audio-subsystem
// functions did, just as methods on a value instead of package-level
// state.
type Controller struct {
	mu sync.Mutex

	cfg     Config
	mixer   *Mixer
	backend Backend
	running bool
}

// BackendFactory constructs a Backend for the named kind. Callers
// register factories for whichever backends they've linked in (the
// oto backend, a headless no-op, etc.) rather than the package
// hard-coding a build-tag switch.
type BackendFactory func(cfg Config) (Backend, error)

var backendFactories = map[BackendKind]BackendFactory{}

// RegisterBackend makes a backend kind available to NewController. Backend
// packages call this from an init() function.
func RegisterBackend(kind BackendKind, factory BackendFactory) {
	backendFactories[kind] = factory
}

// NewController creates the mixer and attempts to open the configured
// backend, falling back to the headless backend if the preferred one
// fails to open (matching the "never silently have no audio subsystem
// at all" behavior of the original backend-selection fallback).
func NewController(cfg Config) (*Controller, error) {
	cfg.ClampTargetLatency(dmaInputRate)

	mixer := NewMixer(cfg)
	c := &Controller{cfg: cfg, mixer: mixer}

	backend, err := openBackend(cfg, mixer)
	if err != nil {
		if cfg.Backend != BackendHeadless {
			backend, err = openBackend(Config{Backend: BackendHeadless, OSMixerRate: cfg.OSMixerRate}, mixer)
		}
		if err != nil {
			return nil, fmt.Errorf("audiocore: no usable audio backend: %w", err)
		}
	}
	c.backend = backend

	c.mixer.SetVolume(cfg.Volume * 255 / 100)
	return c, nil
}

func openBackend(cfg Config, mixer *Mixer) (Backend, error) {
	factory, ok := backendFactories[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("audiocore: backend %q is not registered", cfg.Backend)
	}
	backend, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("audiocore: open backend %q: %w", cfg.Backend, err)
	}
	if err := backend.Open(mixer, int(cfg.OSMixerRate)); err != nil {
		return nil, err
	}
	return backend, nil
}

// Shutdown stops playback and releases the backend.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	return err
}

// SetRunning starts or pauses playback and returns any error the
// backend reports; logging that error is left to the caller.
func (c *Controller) SetRunning(running bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if running == c.running {
		return nil
	}
	c.running = running
	c.mixer.SetPaused(!running)
	if running {
		return c.backend.Resume()
	}
	return c.backend.Pause()
}

// SendAIBuffer feeds big-endian stereo audio-interface samples into
// the DMA source.
func (c *Controller) SendAIBuffer(samples []int16) {
	c.mixer.PushDMASamples(samples)
}

// IncreaseVolume raises volume by offset (0..100 scale), clamped.
func (c *Controller) IncreaseVolume(offset uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Volume = clampVolume(c.cfg.Volume + offset)
	c.applyVolumeLocked()
}

// DecreaseVolume lowers volume by offset, clamped to zero.
func (c *Controller) DecreaseVolume(offset uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset > c.cfg.Volume {
		c.cfg.Volume = 0
	} else {
		c.cfg.Volume -= offset
	}
	c.applyVolumeLocked()
}

// ToggleMuteVolume flips the mute flag without discarding the volume
// level it'll return to.
func (c *Controller) ToggleMuteVolume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Muted = !c.cfg.Muted
	c.applyVolumeLocked()
}

func (c *Controller) applyVolumeLocked() {
	c.mixer.cfg.Muted = c.cfg.Muted
	c.mixer.SetVolume(c.cfg.Volume * 255 / 100)
	if c.backend != nil && c.backend.SupportsVolumeChanges() {
		v := float32(c.cfg.Volume) / 100
		if c.cfg.Muted {
			v = 0
		}
		c.backend.SetVolume(v)
	}
}

func clampVolume(v uint32) uint32 {
	if v > 100 {
		return 100
	}
	return v
}

// UpdateSettings re-applies configuration to the mixer. volumeOnly
// skips anything that would require tearing down the backend (latency,
// sample rate, surround quality).
func (c *Controller) UpdateSettings(volumeOnly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyVolumeLocked()
	if volumeOnly {
		return
	}
	if c.mixer.surround != nil {
		c.mixer.surround.InitAndSetSampleRate(c.cfg.OSMixerRate)
	}
}

// StartAudioDump begins dumping the raw mixer sources to WAV.
func (c *Controller) StartAudioDump(dtkPath, dspPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mixer.StartAudioDump(dtkPath, dspPath)
}

// StopAudioDump ends any in-progress WAV dump.
func (c *Controller) StopAudioDump() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mixer.StopAudioDump()
}

// Mixer exposes the underlying mixer for callers that need direct
// access, such as reading MixSurround output for a non-PCM consumer.
func (c *Controller) Mixer() *Mixer { return c.mixer }
