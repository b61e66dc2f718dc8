// Package audiocore implements the emulator audio mixing engine: a set of
// lock-free per-source sample FIFOs, a speed tracker, and a mixer that
// combines them into a steady output stream for a host audio backend.
package audiocore

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	// fifoCapacity is the number of stereo frames a SampleFifo can hold.
	// Must stay a power of two so that wraparound is a mask.
	fifoCapacity = 1 << 16
	fifoMask     = fifoCapacity - 1

	// interpWindow is the number of trailing samples the cubic kernel
	// keeps in reserve around the read cursor.
	interpWindow = 3

	// numChannels is fixed at stereo for the ring; surround is produced
	// downstream by the decoder from a stereo feed.
	numChannels = 2
)

// cubic interpolation coefficients, one row per tap (y0..y3), columns
// are the x^3, x^2, x^1, x^0 terms.
var cubicCoeffs = [4][4]float32{
	{-0.5, 1.0, -0.5, 0.0},
	{1.5, -2.5, 0.0, 1.0},
	{-1.5, 2.0, 0.5, 0.0},
	{0.5, -0.5, 0.0, 0.0},
}

// SampleFifo is a single-producer/single-consumer ring buffer of
// interleaved stereo 16-bit PCM frames with an embedded cubic resampler.
// Exactly one goroutine may call Push (the producer) and exactly one
// goroutine may call Mix and the other consumer-only accessors.
type SampleFifo struct {
	buf [fifoCapacity * numChannels]int16

	indexW atomic.Uint64 // producer-owned, frame count written
	indexR atomic.Uint64 // consumer-owned, frame count read

	// consumer-only scalar state; never touched by the producer.
	fract           float64
	backwardsIndexR uint64
	backwardsFract  float64
	lastOutput      [numChannels]int32

	inputRateBits atomic.Uint64 // float64 bits, Hz
	lVolume       atomic.Int32  // fixed point, 0..256
	rVolume       atomic.Int32

	currentlyPushed atomic.Bool

	// pushMu guards lastPushTimer, which can be written from two
	// different producer threads for a remote-speaker FIFO (the
	// streaming heartbeat decrements it, the speaker's own pushes
	// increment it). Everything else on the push side is lock-free.
	pushMu        sync.Mutex
	lastPushTimer float64

	constantlyPushed bool
}

// NewSampleFifo creates a FIFO for a source pushing at inputRate Hz.
// constantlyPushed marks DMA/streaming-style sources that are always
// producing (eligible for backwards-play on underrun) as opposed to
// sparsely-active sources like remote speakers.
func NewSampleFifo(inputRate float64, constantlyPushed bool) *SampleFifo {
	f := &SampleFifo{
		constantlyPushed: constantlyPushed,
		fract:            -1,
		backwardsFract:   -1,
		lastPushTimer:    -1,
	}
	f.inputRateBits.Store(math.Float64bits(inputRate))
	f.lVolume.Store(256)
	f.rVolume.Store(256)
	return f
}

// SetInputRate updates the source's sample rate. Safe to call from any
// thread; the consumer observes either the old or the new rate and
// both are valid mid-block.
func (f *SampleFifo) SetInputRate(hz float64) {
	f.inputRateBits.Store(math.Float64bits(hz))
}

// InputRate returns the current input sample rate in Hz.
func (f *SampleFifo) InputRate() float64 {
	return math.Float64frombits(f.inputRateBits.Load())
}

// SetVolume sets per-channel volume from 0..255; stored internally as a
// 0..256 fixed-point multiplier (matching the >>8 scale used by the
// interpolator).
func (f *SampleFifo) SetVolume(l, r uint32) {
	f.lVolume.Store(int32(l + l>>7))
	f.rVolume.Store(int32(r + r>>7))
}

// IsCurrentlyPushed reports whether this source has produced samples
// recently enough to be considered active (relevant for sparse sources
// like remote speakers).
func (f *SampleFifo) IsCurrentlyPushed() bool {
	return f.currentlyPushed.Load()
}

func samplesDifference(w, r uint64) uint64 {
	if w < r {
		// counters are monotonic; this should not happen, but guard
		// against it the same way the original treats it: as empty.
		return 0
	}
	return w - r
}

// NumSamples returns the raw number of unread frames.
func (f *SampleFifo) NumSamples() uint32 {
	return uint32(samplesDifference(f.indexW.Load(), f.indexR.Load()))
}

// AvailableSamples returns the usable frame count rescaled to rate,
// discounting the interpolation window that Mix always keeps in
// reserve.
func (f *SampleFifo) AvailableSamples(rate float64) uint32 {
	n := f.NumSamples()
	if n <= interpWindow {
		return 0
	}
	if rate <= 0 {
		return 0
	}
	return uint32(float64(n-interpWindow) / rate)
}

// Push copies n stereo frames into the ring. If the push would exceed
// free space it is clipped to the free space and the excess dropped.
// Only the producer thread may call this for a given FIFO (aside from
// the FIFO's own internal priming/draining pushes, which happen from
// the UpdatePush call made by that same producer).
func (f *SampleFifo) Push(samples []int16) {
	n := len(samples) / numChannels
	if n == 0 {
		return
	}
	indexW := f.indexW.Load()
	fifoFrames := samplesDifference(indexW, f.indexR.Load())
	if uint64(n)+fifoFrames > fifoCapacity {
		free := int64(fifoCapacity) - int64(fifoFrames)
		if free < 0 {
			free = 0
		}
		n = int(free)
	}
	if n == 0 {
		return
	}
	pos := int(indexW & fifoMask)
	firstFrames := fifoCapacity - pos
	if firstFrames > n {
		firstFrames = n
	}
	copy(f.buf[pos*numChannels:(pos+firstFrames)*numChannels], samples[:firstFrames*numChannels])
	if remaining := n - firstFrames; remaining > 0 {
		copy(f.buf[0:remaining*numChannels], samples[firstFrames*numChannels:n*numChannels])
	}
	f.indexW.Add(uint64(n))
}

// UpdatePush tracks push activity for sources that aren't constantly
// pushed. dt > 0 is a push of dt seconds of audio (increments the
// timer); dt < 0 is a heartbeat decrement from a more frequently
// pushed source (the streaming mixer, used to notice quiescence).
// primeFrames is how many frames of silence to pre-fill on the
// inactive->active transition (see Config.RemoteSpeakerPrimeFraction).
func (f *SampleFifo) UpdatePush(dt float64, primeFrames uint32) {
	f.pushMu.Lock()
	var currentlyPushed bool
	if dt >= 0 {
		if f.lastPushTimer < 0 {
			f.lastPushTimer = 0
		}
		f.lastPushTimer += dt
		currentlyPushed = f.lastPushTimer > 0
	} else if f.lastPushTimer > 0 {
		f.lastPushTimer += dt
		currentlyPushed = true
	} else {
		currentlyPushed = false
	}
	transitioned := f.currentlyPushed.Load() != currentlyPushed
	if transitioned {
		f.currentlyPushed.Store(currentlyPushed)
	}
	f.pushMu.Unlock()

	if !transitioned {
		return
	}
	if currentlyPushed {
		if primeFrames > fifoCapacity {
			primeFrames = fifoCapacity
		}
		silence := make([]int16, int(primeFrames)*numChannels)
		f.Push(silence)
	} else {
		silence := make([]int16, (interpWindow+1)*numChannels)
		f.Push(silence)
	}
}

// nextIndexR returns the consumer index advanced by the whole part of
// fract+rate, matching the original's GetNextIndexR: used only to
// estimate the window CubicInterpolation needs to stage into the swap
// scratch buffer.
func nextIndexR(indexR uint64, fract, rate float64) uint64 {
	if fract < 0 {
		return indexR
	}
	return indexR + uint64(fract+rate)
}

// Mix adds up to n stereo frames into out (which must be pre-zeroed)
// and returns the number of frames actually produced from real data.
// stretching, when true, drops the speed factor from the resample
// ratio because the caller's time-stretcher is responsible for tempo.
// scratch must be at least fifoCapacity*numChannels int16s; it is the
// consumer-owned, byte-swapped staging buffer for interpolation reads.
func (f *SampleFifo) Mix(out []int16, n int, speed float64, outputRate float64, stretching bool, scratch []int16) int {
	indexR := f.indexR.Load()
	indexW := f.indexW.Load()

	rate := f.InputRate() / outputRate
	if !stretching {
		rate *= speed
	}

	lVolume := f.lVolume.Load()
	rVolume := f.rVolume.Load()

	actual := f.cubicInterpolation(out, n, rate, &indexR, indexW, lVolume, rVolume, true, scratch)

	if actual != n {
		if actual > 0 {
			f.backwardsIndexR = indexR + interpWindow
			f.backwardsFract = 1 - f.fract
		}
		if indexW >= interpWindow {
			indexR = indexW - interpWindow
		} else {
			indexR = 0
		}
		f.fract = -1
	}

	behind := n - actual
	if behind > 0 && f.constantlyPushed && !stretching {
		backRate := f.InputRate() / outputRate
		f.cubicInterpolation(out[actual*numChannels:], behind, backRate, &f.backwardsIndexR, indexW, lVolume, rVolume, false, scratch)
	} else if behind > 0 && (f.constantlyPushed || f.currentlyPushed.Load()) {
		for i := actual; i < n; i++ {
			out[i*numChannels+0] = clampAdd16(out[i*numChannels+0], f.lastOutput[0])
			out[i*numChannels+1] = clampAdd16(out[i*numChannels+1], f.lastOutput[1])
		}
	}

	f.indexR.Store(indexR)
	return actual
}

func clampAdd16(a int16, b int32) int16 {
	v := int32(a) + b
	return clampS16(v)
}

func clampS16(v int32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// cubicInterpolation is the resampling core, shared between forward
// playback and the backwards-play underrun helper (forwards=false).
// It returns the number of output frames it actually produced before
// running out of source data (forward mode only; backward mode always
// produces num_samples frames by design since it replays already
// written history).
func (f *SampleFifo) cubicInterpolation(out []int16, numSamples int, rate float64, indexR *uint64, indexW uint64, lVolume, rVolume int32, forwards bool, scratch []int16) int {
	direction := int64(1)
	fractPtr := &f.fract
	if !forwards {
		direction = -1
		fractPtr = &f.backwardsFract
	}

	available := samplesDifference(indexW, *indexR)

	requested := uint64(rate*float64(numSamples)) + 1
	var readable uint64
	if forwards {
		readable = available
	} else {
		readable = fifoCapacity
	}
	samplesToRead := requested + interpWindow
	if samplesToRead > readable {
		samplesToRead = readable
	}

	firstIndexR := nextIndexR(*indexR, *fractPtr, rate)
	// Stage the byte-order-normalized window into scratch, padded by
	// the kernel's one-behind/two-ahead tap reach. Ring storage is
	// left untouched so producers may keep writing concurrently.
	k := int64(firstIndexR) - direction
	last := k + (int64(samplesToRead)+3)*direction
	for ; (direction > 0 && k <= last) || (direction < 0 && k >= last); k += direction {
		pos := int(uint64(k) & fifoMask)
		scratch[pos*numChannels+0] = beSwap16(f.buf[pos*numChannels+0])
		scratch[pos*numChannels+1] = beSwap16(f.buf[pos*numChannels+1])
	}

	if *fractPtr < 0 && numSamples > 0 && (!forwards || available > interpWindow) {
		*fractPtr = -rate
	}

	i := 0
	nextAvailable := available
	for i < numSamples {
		if forwards && !(nextAvailable > interpWindow && nextAvailable <= available) {
			break
		}

		*fractPtr += rate
		whole := uint64(*fractPtr)
		*fractPtr -= float64(whole)

		*indexR = uint64(int64(*indexR) + int64(whole)*direction)

		available = nextAvailable
		nextAvailable = samplesDifference(indexW, *indexR)

		x := float32(*fractPtr)
		x2 := x * x
		x3 := x2 * x

		var y [4]float32
		for row := 0; row < 4; row++ {
			c := cubicCoeffs[row]
			y[row] = c[0]*x3 + c[1]*x2 + c[2]*x + c[3]
		}

		base := int64(*indexR)
		lSample := y[0]*float32(scratchAt(scratch, base, direction, -1, 0)) +
			y[1]*float32(scratchAt(scratch, base, direction, 0, 0)) +
			y[2]*float32(scratchAt(scratch, base, direction, 1, 0)) +
			y[3]*float32(scratchAt(scratch, base, direction, 2, 0))
		rSample := y[0]*float32(scratchAt(scratch, base, direction, -1, 1)) +
			y[1]*float32(scratchAt(scratch, base, direction, 0, 1)) +
			y[2]*float32(scratchAt(scratch, base, direction, 1, 1)) +
			y[3]*float32(scratchAt(scratch, base, direction, 2, 1))

		l := (roundF32(lSample) * lVolume) >> 8
		r := (roundF32(rSample) * rVolume) >> 8

		f.lastOutput[0] = l
		f.lastOutput[1] = r

		out[i*numChannels+0] = clampAdd16(out[i*numChannels+0], l)
		out[i*numChannels+1] = clampAdd16(out[i*numChannels+1], r)

		i++
	}

	return i
}

// scratchAt reads channel ch of the frame frameOffset*direction taps
// away from base out of the swapped scratch buffer.
func scratchAt(scratch []int16, base int64, direction int64, frameOffset int64, ch int64) int16 {
	frame := uint64(base+frameOffset*direction) & fifoMask
	return scratch[frame*numChannels+uint64(ch)]
}

func roundF32(v float32) int32 {
	if v >= 0 {
		return int32(v + 0.5)
	}
	return int32(v - 0.5)
}
