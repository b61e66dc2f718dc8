package backend

import (
	"io"

	"github.com/silverwake/waveengine/internal/audiocore"
)

func init() {
	audiocore.RegisterBackend(audiocore.BackendHeadless, newHeadlessBackend)
}

// headlessBackend never produces sound. It exists so a machine with no
// usable audio device (a CI runner, a container) can still run the
// engine end to end, and so NewController always has a fallback to
// drop back to. It reads from src only once per Resume, one block;
// nothing pulls from the mixer after that, so pushed samples collect
// until the FIFOs are full and further pushes are clipped.
type headlessBackend struct {
	src     io.Reader
	started bool
	scratch []byte
}

func newHeadlessBackend(cfg audiocore.Config) (audiocore.Backend, error) {
	return &headlessBackend{scratch: make([]byte, 4096)}, nil
}

func (b *headlessBackend) Open(src io.Reader, sampleRateHz int) error {
	b.src = src
	return nil
}

func (b *headlessBackend) SetVolume(v float32) {}

func (b *headlessBackend) Resume() error {
	b.started = true
	// Pull a single block; this backend makes no further reads.
	if b.src != nil {
		_, _ = b.src.Read(b.scratch)
	}
	return nil
}

func (b *headlessBackend) Pause() error {
	b.started = false
	return nil
}

func (b *headlessBackend) Close() error {
	b.started = false
	return nil
}

func (b *headlessBackend) SupportsSurround() bool       { return false }
func (b *headlessBackend) SupportsLatencyControl() bool { return false }
func (b *headlessBackend) SupportsVolumeChanges() bool  { return false }
