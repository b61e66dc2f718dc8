package audiocore

import "io"

// Backend is the boundary between the mixer and a host audio output
// device. Implementations pull PCM from a Mixer (an io.Reader of raw
// little-endian stereo PCM16) on their own schedule; the mixer never
// blocks waiting on a backend.
type Backend interface {
	// Open starts pulling from src at sampleRateHz and begins
	// playback.
	Open(src io.Reader, sampleRateHz int) error
	// SetVolume adjusts host-level output gain, if the backend
	// supports it; otherwise it's a no-op.
	SetVolume(v float32)
	Pause() error
	Resume() error
	Close() error

	SupportsSurround() bool
	SupportsLatencyControl() bool
	SupportsVolumeChanges() bool
}
