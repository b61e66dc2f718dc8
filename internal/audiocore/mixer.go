package audiocore

import (
	"encoding/binary"
	"fmt"
)

const (
	// nonStretchingCatchUpSpeed and stretchingCatchUpSpeed are the
	// small speed multipliers the mixer applies while it is behind on
	// buffered latency, nudging playback just fast enough to recover
	// without an audible pitch jump.
	nonStretchingCatchUpSpeed = 1.0175
	stretchingCatchUpSpeed    = 1.25

	numRemoteSpeakers = 4

	dmaInputRate      = 32000
	streamingRate     = 48000
	remoteSpeakerRate = 6000
)

// Mixer owns every per-source SampleFifo plus the shared
// speed-tracking, time-stretching and surround-decoding machinery, and
// produces a single steady output stream for a host audio backend.
// All Push* methods may be called from whichever producer goroutine
// owns that source; Mix and MixSurround are meant to be called from a
// single consumer goroutine (typically the backend's pull callback).
type Mixer struct {
	cfg Config

	dmaFifo            *SampleFifo
	streamingFifo      *SampleFifo
	remoteSpeakerFifos [numRemoteSpeakers]*SampleFifo

	dmaSpeed *SpeedTracker

	stretcher *Stretcher
	surround  *SurroundDecoder

	waveDTK *WaveFileWriter
	waveDSP *WaveFileWriter

	targetSpeed           float64
	mixingSpeed           float64
	timeBehindTargetSpeed float64
	behindTargetSpeed     bool
	latencyCatchingUp     bool
	stretching            bool

	scratch []int16

	stretchScratch []int16
}

// NewMixer builds a mixer for the given configuration. The output rate
// is cfg.OSMixerRate, the host backend's sample rate; it is also used
// below as the stretcher's and surround decoder's operating rate.
func NewMixer(cfg Config) *Mixer {
	m := &Mixer{
		cfg:           cfg,
		dmaFifo:       NewSampleFifo(dmaInputRate, true),
		streamingFifo: NewSampleFifo(streamingRate, true),
		dmaSpeed:      NewSpeedTracker(dmaInputRate, 560),
		stretching:    cfg.Stretch,
		scratch:       make([]int16, fifoCapacity*numChannels),
		targetSpeed:   1.0,
		mixingSpeed:   1.0,
	}
	for i := range m.remoteSpeakerFifos {
		m.remoteSpeakerFifos[i] = NewSampleFifo(remoteSpeakerRate, false)
	}
	if cfg.Stretch {
		m.stretcher = NewStretcher(int(cfg.OSMixerRate))
		m.stretchScratch = make([]int16, fifoCapacity*numChannels)
	}
	if cfg.Surround {
		m.surround = NewSurroundDecoder(cfg.DPL2Quality)
		m.surround.InitAndSetSampleRate(cfg.OSMixerRate)
	}
	return m
}

// PushDMASamples accepts big-endian interleaved stereo frames from the
// emulated DMA audio output (the console's primary audio DMA engine).
func (m *Mixer) PushDMASamples(samples []int16) {
	m.dmaFifo.Push(samples)
	m.dmaSpeed.Update(float64(len(samples)/numChannels), float64(len(samples)/numChannels)/dmaInputRate)
	if m.waveDTK != nil {
		_ = m.waveDTK.AddStereoSamplesBE(samples, len(samples)/numChannels, dmaInputRate, false)
	}
}

// PushStreamingSamples accepts interleaved stereo frames from a
// secondary streaming source (e.g. optical disc audio), and doubles as
// the heartbeat that ages out remote-speaker activity between their
// own pushes.
func (m *Mixer) PushStreamingSamples(samples []int16) {
	m.streamingFifo.Push(samples)
	if m.waveDSP != nil {
		_ = m.waveDSP.AddStereoSamplesBE(samples, len(samples)/numChannels, streamingRate, false)
	}
	dt := float64(len(samples)/numChannels) / streamingRate
	for i := range m.remoteSpeakerFifos {
		m.remoteSpeakerFifos[i].UpdatePush(-dt, 0)
	}
}

// PushRemoteSpeakerSamples accepts mono frames from remote speaker
// index idx, pre-swapping their byte order so that the generic
// byte-swap every FIFO read performs cancels back out to native order
// (these samples don't arrive in the hardware-native big-endian form
// the DMA/streaming sources do).
func (m *Mixer) PushRemoteSpeakerSamples(idx int, mono []int16) error {
	if idx < 0 || idx >= numRemoteSpeakers {
		return fmt.Errorf("audiocore: remote speaker index %d out of range", idx)
	}
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		sw := beSwap16(s)
		stereo[i*2] = sw
		stereo[i*2+1] = sw
	}
	fifo := m.remoteSpeakerFifos[idx]
	primeFrames := uint32(m.cfg.RemoteSpeakerPrimeFraction * MaxSupportedLatencyFrames(remoteSpeakerRate))
	fifo.UpdatePush(float64(len(mono))/remoteSpeakerRate, primeFrames)
	fifo.Push(stereo)
	return nil
}

// MaxSupportedLatencyFrames is MaxSupportedLatencyMS expressed in
// frames at rateHz, used to size the remote-speaker priming fill.
func MaxSupportedLatencyFrames(rateHz float64) float64 {
	return float64(MaxSupportedLatencyMS(rateHz)) * rateHz / 1000
}

// SetDMAInputSampleRate updates the DMA source's rate (e.g. the
// console switching its audio DMA clock).
func (m *Mixer) SetDMAInputSampleRate(hz float64) { m.dmaFifo.SetInputRate(hz) }

// SetStreamingInputSampleRate updates the streaming source's rate.
func (m *Mixer) SetStreamingInputSampleRate(hz float64) { m.streamingFifo.SetInputRate(hz) }

// SetVolume scales every source's output by volume (0..255), applying
// the configured mute state.
func (m *Mixer) SetVolume(volume uint32) {
	l, r := volume, volume
	if m.cfg.Muted {
		l, r = 0, 0
	}
	m.dmaFifo.SetVolume(l, r)
	m.streamingFifo.SetVolume(l, r)
	for _, f := range m.remoteSpeakerFifos {
		f.SetVolume(l, r)
	}
}

// updateTargetSpeed picks targetSpeed for the next dtSeconds of output,
// branching on whether the user has pinned emulation to a fixed rate
// (FrameLimiter) or is letting it run as fast as the host can push
// samples. In unthrottled mode target speed simply tracks the
// SpeedTracker's measured average. In throttled mode it normally
// tracks the fixed EmulationSpeed, but falls back to the measured
// average whenever actual playback has drifted behind EmulationSpeed
// by more than the configured tolerance, so the output doesn't queue
// up an ever-growing backlog while trying to hit a rate it can't
// sustain.
func (m *Mixer) updateTargetSpeed(dtSeconds float64) {
	if !m.cfg.FrameLimiter {
		m.targetSpeed = m.dmaSpeed.GetCachedAverageSpeed(0, dtSeconds, 0.05, 1.0)
		m.behindTargetSpeed = false
		m.timeBehindTargetSpeed = 0
		return
	}

	emulationSpeed := m.cfg.EmulationSpeed
	if emulationSpeed <= 0 {
		emulationSpeed = 1.0
	}

	if m.cfg.SpeedToleranceMS < 0 {
		// Dynamic speed disabled: pin to the fixed rate unconditionally.
		m.targetSpeed = emulationSpeed
		m.behindTargetSpeed = false
		m.timeBehindTargetSpeed = 0
		return
	}

	lastSpeed := m.dmaSpeed.GetLastSpeed(emulationSpeed)
	gainTimeDelta := dtSeconds * (1 - lastSpeed/emulationSpeed)
	m.timeBehindTargetSpeed += gainTimeDelta
	if m.timeBehindTargetSpeed < 0 {
		m.timeBehindTargetSpeed = 0
	}

	tolerance := float64(m.cfg.SpeedToleranceMS) / 1000
	average := m.dmaSpeed.GetCachedAverageSpeed(1, dtSeconds, 0.05, emulationSpeed)
	switch {
	case m.timeBehindTargetSpeed > tolerance:
		m.behindTargetSpeed = true
	case average >= emulationSpeed-0.01:
		m.behindTargetSpeed = false
		m.timeBehindTargetSpeed = 0
	}

	if m.behindTargetSpeed || m.cfg.SpeedToleranceMS == 0 {
		m.targetSpeed = average
	} else {
		m.targetSpeed = emulationSpeed
	}
}

// updateLatencyCatchUp recomputes the mixing speed for the next block
// of dtSeconds of output: it picks targetSpeed via updateTargetSpeed,
// then layers a latency ceiling on top. When buffered/queued latency
// exceeds the user's target, the mixer temporarily plays a little fast
// to recover instead of letting latency grow without bound.
func (m *Mixer) updateLatencyCatchUp(dtSeconds float64) {
	m.updateTargetSpeed(dtSeconds)

	var acceptable, processed float64
	catchUpSpeed := nonStretchingCatchUpSpeed
	if m.stretching && m.stretcher != nil {
		catchUpSpeed = stretchingCatchUpSpeed
		acceptable = m.stretcher.GetAcceptableLatency()
		processed = m.stretcher.GetProcessedLatency()
	} else {
		acceptable = float64(m.cfg.TargetLatencyMS) / 1000
		processed = float64(m.dmaFifo.NumSamples()) / dmaInputRate
	}

	if processed > acceptable {
		m.latencyCatchingUp = true
	} else {
		m.latencyCatchingUp = false
	}

	if m.latencyCatchingUp {
		m.mixingSpeed = m.targetSpeed * catchUpSpeed
	} else {
		m.mixingSpeed = m.targetSpeed
	}
}

// SetPaused notifies the mixer of an emulation pause/unpause
// transition. While paused, Mix is a no-op: it returns 0 and leaves
// out untouched.
func (m *Mixer) SetPaused(paused bool) {
	m.dmaSpeed.SetPaused(paused)
}

// Mix renders len(out)/2 interleaved stereo int16 frames, the primary
// consumer-facing entry point. It always fills the full request,
// padding with whatever underrun strategy each source's FIFO chooses,
// unless the mixer is paused or asked for zero frames, in which case
// it returns 0 without touching out.
func (m *Mixer) Mix(out []int16) int {
	n := len(out) / numChannels
	if n == 0 || m.dmaSpeed.IsPaused() {
		return 0
	}
	for i := range out {
		out[i] = 0
	}
	dt := float64(n) / m.cfg.OSMixerRate
	m.updateLatencyCatchUp(dt)

	if m.stretching && m.stretcher != nil {
		return m.mixStretching(out, n, dt)
	}
	return m.mixDirect(out, n)
}

func (m *Mixer) mixDirect(out []int16, n int) int {
	m.dmaFifo.Mix(out, n, m.mixingSpeed, m.cfg.OSMixerRate, false, m.scratch)
	m.streamingFifo.Mix(out, n, m.mixingSpeed, m.cfg.OSMixerRate, false, m.scratch)
	for _, f := range m.remoteSpeakerFifos {
		f.Mix(out, n, m.mixingSpeed, m.cfg.OSMixerRate, false, m.scratch)
	}
	return n
}

// mixStretching resamples every source straight to the output rate
// (speed left out of the ratio, since tempo is the stretcher's job),
// sums them, pushes the sum into the time-stretcher, and pulls
// re-timed output back out. The stretcher's own internal buffering
// means the frames pushed in and pulled out below don't line up 1:1
// with this call's n; frames it cannot supply stay silent, since Mix
// has already zeroed out.
func (m *Mixer) mixStretching(out []int16, n int, dt float64) int {
	mixed := make([]int16, n*numChannels)
	m.dmaFifo.Mix(mixed, n, m.mixingSpeed, m.cfg.OSMixerRate, true, m.scratch)
	m.streamingFifo.Mix(mixed, n, m.mixingSpeed, m.cfg.OSMixerRate, true, m.scratch)
	for _, f := range m.remoteSpeakerFifos {
		f.Mix(mixed, n, m.mixingSpeed, m.cfg.OSMixerRate, true, m.scratch)
	}

	m.stretcher.SetTempo(m.mixingSpeed, true)
	_ = m.stretcher.PushSamples(mixed)
	m.stretcher.GetStretchedSamples(out, true)
	return n
}

// Read implements io.Reader over raw little-endian stereo PCM16 bytes,
// letting the mixer be handed directly to a pull-model host backend.
func (m *Mixer) Read(p []byte) (int, error) {
	frames := len(p) / (numChannels * 2)
	if frames == 0 {
		return 0, nil
	}
	buf := make([]int16, frames*numChannels)
	produced := m.Mix(buf)
	for i := 0; i < produced*numChannels; i++ {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(buf[i]))
	}
	return produced * numChannels * 2, nil
}

// MixSurround renders decoded 5.1 frames into out (interleaved
// FL,FR,FC,LFE,BL,BR) by mixing just enough stereo input to keep the
// surround decoder fed, then draining its output ring.
func (m *Mixer) MixSurround(out []float32) (int, error) {
	if m.surround == nil {
		return 0, fmt.Errorf("audiocore: surround decoding is not enabled")
	}
	if m.dmaSpeed.IsPaused() {
		return 0, nil
	}
	wantFrames := len(out) / surroundChannels
	needed := m.surround.QuerySamplesNeededForSurroundOutput(wantFrames)
	if needed > 0 {
		stereo := make([]int16, needed*numChannels)
		dt := float64(needed) / m.cfg.OSMixerRate
		m.updateLatencyCatchUp(dt)
		m.mixDirect(stereo, needed)
		m.surround.PushSamples(stereo)
	}
	return m.surround.GetDecodedSamples(out), nil
}

// StartAudioDump opens WAV dumps of the raw DMA ("DTK") and secondary
// streaming ("DSP") sources at the given paths.
func (m *Mixer) StartAudioDump(dtkPath, dspPath string) error {
	m.waveDTK = NewWaveFileWriter(dtkPath, true)
	m.waveDSP = NewWaveFileWriter(dspPath, true)
	if err := m.waveDTK.Start(dmaInputRate); err != nil {
		return err
	}
	return m.waveDSP.Start(streamingRate)
}

// StopAudioDump closes any open WAV dumps.
func (m *Mixer) StopAudioDump() error {
	var firstErr error
	if m.waveDTK != nil {
		if err := m.waveDTK.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.waveDTK = nil
	}
	if m.waveDSP != nil {
		if err := m.waveDSP.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.waveDSP = nil
	}
	return firstErr
}
