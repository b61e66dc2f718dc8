package audiocore

import "math"

// Surround channel order: front-left, front-right, front-center,
// low-frequency-effects, back-left, back-right.
const (
	chFL  = 0
	chFR  = 1
	chFC  = 2
	chLFE = 3
	chBL  = 4
	chBR  = 5

	surroundChannels = 6
)

// dpl2FrameBlockSize maps a quality tier to the analysis block size,
// in frames, that the steered matrix decode runs over. Larger blocks
// give the steering logic more context to separate the surrounds from
// the front image, at the cost of latency.
func dpl2FrameBlockSize(quality DPL2Quality, sampleRateHz float64) int {
	var ms float64
	switch quality {
	case DPL2QualityLowest:
		ms = 10
	case DPL2QualityLow:
		ms = 20
	case DPL2QualityHighest:
		ms = 80
	default:
		ms = 40
	}
	frames := sampleRateHz * ms / 1000
	return nextPowerOfTwo(int(frames))
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// SurroundDecoder turns a stereo feed into 5.1 using a block-based
// Dolby Pro Logic II-style passive matrix decode: each analysis block
// estimates a front/back steering value from the inter-channel
// correlation, then derives the six output channels from a matrix
// built around that estimate. No left/right steering is applied; the
// left/right image comes straight from the input channels.
// This is not bit-exact to any particular commercial decoder; it
// approximates the same passive-matrix family.
type SurroundDecoder struct {
	sampleRate float64
	quality    DPL2Quality
	frameBlock int

	stereoBuf  []float64 // pending undecoded stereo input, interleaved
	outRing    []float32 // decoded surround output ring, interleaved 6ch
	outW, outR int
}

// NewSurroundDecoder creates a decoder for the given quality tier; call
// InitAndSetSampleRate before pushing samples.
func NewSurroundDecoder(quality DPL2Quality) *SurroundDecoder {
	return &SurroundDecoder{quality: quality}
}

// InitAndSetSampleRate (re)sizes the decoder's analysis block for
// sampleRateHz. It is a no-op if the rate hasn't actually changed, so
// callers may invoke it unconditionally on every settings refresh.
func (d *SurroundDecoder) InitAndSetSampleRate(sampleRateHz float64) {
	if d.sampleRate == sampleRateHz && d.frameBlock > 0 {
		return
	}
	d.sampleRate = sampleRateHz
	d.frameBlock = dpl2FrameBlockSize(d.quality, sampleRateHz)
	d.Clear()
}

// Clear drops all buffered input and output.
func (d *SurroundDecoder) Clear() {
	d.stereoBuf = d.stereoBuf[:0]
	ringLen := d.frameBlock * 8 * surroundChannels
	if ringLen < surroundChannels {
		ringLen = surroundChannels
	}
	d.outRing = make([]float32, ringLen)
	d.outW, d.outR = 0, 0
}

// QuerySamplesNeededForSurroundOutput reports how many stereo input
// frames must be pushed so that framesWanted decoded surround frames
// are ready, counting frames already decoded and waiting in the output
// ring and input already buffered toward the next analysis block.
func (d *SurroundDecoder) QuerySamplesNeededForSurroundOutput(framesWanted int) int {
	short := framesWanted - (d.outW - d.outR)
	if short <= 0 {
		return 0
	}
	blocksWanted := (short + d.frameBlock - 1) / d.frameBlock
	needed := blocksWanted*d.frameBlock - len(d.stereoBuf)/2
	if needed < 0 {
		return 0
	}
	return needed
}

// PushSamples feeds interleaved stereo int16 frames in and decodes
// every whole analysis block that becomes available.
func (d *SurroundDecoder) PushSamples(samples []int16) {
	for _, s := range samples {
		d.stereoBuf = append(d.stereoBuf, float64(s)/32768)
	}
	for len(d.stereoBuf) >= d.frameBlock*2 {
		d.decodeBlock(d.stereoBuf[:d.frameBlock*2])
		d.stereoBuf = d.stereoBuf[d.frameBlock*2:]
	}
}

// decodeBlock runs the passive-matrix steering decode over one
// analysis block and appends the result to the output ring.
func (d *SurroundDecoder) decodeBlock(block []float64) {
	n := len(block) / 2
	var sumLR, sumLL, sumRR float64
	for i := 0; i < n; i++ {
		l, r := block[i*2], block[i*2+1]
		sumLL += l * l
		sumRR += r * r
		sumLR += l * r
	}
	total := sumLL + sumRR
	var frontBack float64
	if total > 0 {
		// frontBack steering approximated from the in-phase fraction
		// of the stereo signal: correlated content is treated as a
		// center/front image, decorrelated content as surround.
		denom := math.Sqrt(sumLL*sumRR) + 1e-9
		correlation := sumLR / denom
		frontBack = clampFloat(correlation, -1, 1)
	}

	frontGain := 0.5 + 0.5*frontBack
	backGain := 1 - frontGain

	pos := d.outW % len(d.outRing)
	for i := 0; i < n; i++ {
		l, r := block[i*2], block[i*2+1]
		center := (l + r) * 0.5 * frontGain
		lfe := center * 0.25
		fl := l*frontGain + center*0.3
		fr := r*frontGain + center*0.3
		bl := l * backGain
		br := r * backGain

		frame := pos % (len(d.outRing) / surroundChannels)
		base := frame * surroundChannels
		d.outRing[base+chFL] = float32(fl)
		d.outRing[base+chFR] = float32(fr)
		d.outRing[base+chFC] = float32(center)
		d.outRing[base+chLFE] = float32(lfe)
		d.outRing[base+chBL] = float32(bl)
		d.outRing[base+chBR] = float32(br)
		pos++
	}
	d.outW += n
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetDecodedSamples pops up to len(out)/surroundChannels decoded
// frames into out and returns how many frames it produced.
func (d *SurroundDecoder) GetDecodedSamples(out []float32) int {
	capacity := len(d.outRing) / surroundChannels
	available := d.outW - d.outR
	if available > capacity {
		available = capacity
	}
	want := len(out) / surroundChannels
	if want > available {
		want = available
	}
	for i := 0; i < want; i++ {
		frame := (d.outR + i) % capacity
		base := frame * surroundChannels
		copy(out[i*surroundChannels:(i+1)*surroundChannels], d.outRing[base:base+surroundChannels])
	}
	d.outR += want
	return want
}
