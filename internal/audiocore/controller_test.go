package audiocore

import (
	"io"
	"testing"
)

type fakeBackend struct {
	opened, paused, resumed, closed bool
	volume                          float32
	failOpen                        bool
}

func (b *fakeBackend) Open(src io.Reader, sampleRateHz int) error {
	if b.failOpen {
		return errFakeOpen
	}
	b.opened = true
	return nil
}
func (b *fakeBackend) SetVolume(v float32)         { b.volume = v }
func (b *fakeBackend) Pause() error                { b.paused = true; return nil }
func (b *fakeBackend) Resume() error               { b.resumed = true; return nil }
func (b *fakeBackend) Close() error                { b.closed = true; return nil }
func (b *fakeBackend) SupportsSurround() bool       { return false }
func (b *fakeBackend) SupportsLatencyControl() bool { return true }
func (b *fakeBackend) SupportsVolumeChanges() bool  { return true }

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errFakeOpen = fakeErr("fake: open failed")

const testBackendKind BackendKind = "test-fake"
const testFailingBackendKind BackendKind = "test-fake-failing"

func init() {
	RegisterBackend(testBackendKind, func(cfg Config) (Backend, error) {
		return &fakeBackend{}, nil
	})
	RegisterBackend(testFailingBackendKind, func(cfg Config) (Backend, error) {
		return &fakeBackend{failOpen: true}, nil
	})
	RegisterBackend(BackendHeadless, func(cfg Config) (Backend, error) {
		return &fakeBackend{}, nil
	})
}

func newTestControllerConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = testBackendKind
	cfg.Stretch = false
	cfg.Surround = false
	return cfg
}

func TestNewControllerOpensBackend(t *testing.T) {
	ctl, err := NewController(newTestControllerConfig())
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	defer ctl.Shutdown()

	fb, ok := ctl.backend.(*fakeBackend)
	if !ok || !fb.opened {
		t.Fatalf("expected the configured backend to be opened")
	}
}

func TestNewControllerFallsBackToHeadless(t *testing.T) {
	cfg := newTestControllerConfig()
	cfg.Backend = testFailingBackendKind
	ctl, err := NewController(cfg)
	if err != nil {
		t.Fatalf("NewController() error = %v, want fallback to headless to succeed", err)
	}
	defer ctl.Shutdown()
}

func TestControllerSetRunningTogglesBackend(t *testing.T) {
	ctl, err := NewController(newTestControllerConfig())
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	defer ctl.Shutdown()

	if err := ctl.SetRunning(true); err != nil {
		t.Fatalf("SetRunning(true) error = %v", err)
	}
	fb := ctl.backend.(*fakeBackend)
	if !fb.resumed {
		t.Fatalf("SetRunning(true) did not resume the backend")
	}
	if err := ctl.SetRunning(false); err != nil {
		t.Fatalf("SetRunning(false) error = %v", err)
	}
	if !fb.paused {
		t.Fatalf("SetRunning(false) did not pause the backend")
	}
}

func TestControllerSetRunningPausesMixer(t *testing.T) {
	ctl, err := NewController(newTestControllerConfig())
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	defer ctl.Shutdown()

	if err := ctl.SetRunning(true); err != nil {
		t.Fatalf("SetRunning(true) error = %v", err)
	}
	if ctl.Mixer().dmaSpeed.IsPaused() {
		t.Fatalf("mixer reports paused after SetRunning(true)")
	}
	if err := ctl.SetRunning(false); err != nil {
		t.Fatalf("SetRunning(false) error = %v", err)
	}
	if !ctl.Mixer().dmaSpeed.IsPaused() {
		t.Fatalf("mixer does not report paused after SetRunning(false)")
	}
}

func TestControllerVolumeClamping(t *testing.T) {
	ctl, err := NewController(newTestControllerConfig())
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	defer ctl.Shutdown()

	ctl.IncreaseVolume(1000)
	if ctl.cfg.Volume != 100 {
		t.Fatalf("cfg.Volume = %d, want clamped to 100", ctl.cfg.Volume)
	}
	ctl.DecreaseVolume(1000)
	if ctl.cfg.Volume != 0 {
		t.Fatalf("cfg.Volume = %d, want clamped to 0", ctl.cfg.Volume)
	}
}

func TestControllerToggleMute(t *testing.T) {
	ctl, err := NewController(newTestControllerConfig())
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	defer ctl.Shutdown()

	ctl.ToggleMuteVolume()
	if !ctl.cfg.Muted {
		t.Fatalf("ToggleMuteVolume() did not set Muted")
	}
	fb := ctl.backend.(*fakeBackend)
	if fb.volume != 0 {
		t.Fatalf("backend volume = %v, want 0 while muted", fb.volume)
	}
	ctl.ToggleMuteVolume()
	if ctl.cfg.Muted {
		t.Fatalf("ToggleMuteVolume() did not clear Muted")
	}
}
