package audiocore

import (
	"sync"

	"github.com/alttagil/sonic-go"
)

const (
	// stretchSequenceMS and stretchSeekWindowMS mirror the nominal
	// analysis window sizes used to size GetAcceptableLatency.
	stretchSequenceMS   = 62
	stretchSeekWindowMS = 28
)

// Stretcher is a pitch-preserving tempo changer: push samples in at
// the emulated machine's rate, pull them back out re-timed to 1.0x
// regardless of how fast or slow the source is actually running. It
// satisfies the TimeStretcher contract described by the mixer.
type Stretcher struct {
	mu sync.Mutex

	sampleRate int
	stream     *sonic.Stream

	tempoSum   float64
	tempoCount int
	lastTempo  float64
}

// NewStretcher creates a stretcher for stereo audio at sampleRate Hz.
func NewStretcher(sampleRate int) *Stretcher {
	return &Stretcher{
		sampleRate: sampleRate,
		stream:     sonic.NewSonicStream(sampleRate, numChannels),
		lastTempo:  1.0,
	}
}

// Clear drops all buffered audio and resets the running tempo average,
// used whenever playback resets discontinuously (e.g. a savestate
// load or a pause).
func (s *Stretcher) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.Reset()
	s.tempoSum, s.tempoCount = 0, 0
}

// SetTempo accumulates tempo into a running average and, if reset is
// true, applies the average to the underlying stretcher and starts a
// fresh average. Accumulating between resets smooths out per-block
// jitter in the caller's instantaneous speed estimate.
func (s *Stretcher) SetTempo(tempo float64, reset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tempo <= 0 {
		tempo = s.lastTempo
	}
	s.tempoSum += tempo
	s.tempoCount++
	if reset {
		avg := s.tempoSum / float64(s.tempoCount)
		s.stream.SetSpeed(avg)
		s.lastTempo = avg
		s.tempoSum, s.tempoCount = 0, 0
	}
}

// PushSamples feeds interleaved stereo int16 frames into the
// stretcher's input queue.
func (s *Stretcher) PushSamples(samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Write(samples)
}

// GetStretchedSamples pulls up to len(out)/numChannels re-timed
// frames. If pad is true and the stretcher can't fill the request, the
// last produced frame is repeated to fill the remainder instead of
// leaving silence, matching how the mixer disguises a momentary
// under-supply.
func (s *Stretcher) GetStretchedSamples(out []int16, pad bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := len(out) / numChannels
	got, err := s.stream.ReadTo(out[:want*numChannels])
	n := 0
	if err == nil {
		n = len(got) / numChannels
	}
	if n < want && pad && n > 0 {
		last0, last1 := out[(n-1)*numChannels], out[(n-1)*numChannels+1]
		for i := n; i < want; i++ {
			out[i*numChannels] = last0
			out[i*numChannels+1] = last1
		}
		return want
	}
	return n
}

// GetProcessedLatency reports how many seconds of already-accepted
// input are still queued awaiting output.
func (s *Stretcher) GetProcessedLatency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.stream.NumOutputSamples() + s.stream.NumInputSamples()
	return float64(queued) / float64(s.sampleRate)
}

// GetAcceptableLatency is the nominal amount of latency the
// time-stretch algorithm needs to do its job, independent of current
// backlog; the mixer uses it as the ceiling for its own latency
// catch-up logic on the stretching path.
func (s *Stretcher) GetAcceptableLatency() float64 {
	return float64(stretchSequenceMS+stretchSeekWindowMS) / 1000
}
