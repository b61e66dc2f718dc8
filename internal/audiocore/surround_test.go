package audiocore

import "testing"

func TestDpl2FrameBlockSizeIsPowerOfTwo(t *testing.T) {
	for _, q := range []DPL2Quality{DPL2QualityLowest, DPL2QualityLow, DPL2QualityHigh, DPL2QualityHighest} {
		size := dpl2FrameBlockSize(q, 48000)
		if size&(size-1) != 0 {
			t.Fatalf("dpl2FrameBlockSize(%v) = %d, want a power of two", q, size)
		}
	}
}

func TestDpl2FrameBlockSizeGrowsWithQuality(t *testing.T) {
	lowest := dpl2FrameBlockSize(DPL2QualityLowest, 48000)
	highest := dpl2FrameBlockSize(DPL2QualityHighest, 48000)
	if highest <= lowest {
		t.Fatalf("highest quality block size %d should exceed lowest quality block size %d", highest, lowest)
	}
}

func TestSurroundDecoderQueryAndDecode(t *testing.T) {
	d := NewSurroundDecoder(DPL2QualityLowest)
	d.InitAndSetSampleRate(48000)

	needed := d.QuerySamplesNeededForSurroundOutput(1)
	if needed <= 0 {
		t.Fatalf("QuerySamplesNeededForSurroundOutput() = %d, want > 0 on an empty decoder", needed)
	}

	stereo := make([]int16, needed*2)
	for i := range stereo {
		if i%2 == 0 {
			stereo[i] = 10000
		} else {
			stereo[i] = -10000
		}
	}
	d.PushSamples(stereo)

	out := make([]float32, 4*surroundChannels)
	got := d.GetDecodedSamples(out)
	if got == 0 {
		t.Fatalf("GetDecodedSamples() produced 0 frames after pushing a full block")
	}
}

func TestSurroundDecoderClearDropsBufferedState(t *testing.T) {
	d := NewSurroundDecoder(DPL2QualityLowest)
	d.InitAndSetSampleRate(48000)
	d.PushSamples(make([]int16, d.frameBlock*2))
	d.Clear()

	out := make([]float32, surroundChannels)
	if got := d.GetDecodedSamples(out); got != 0 {
		t.Fatalf("GetDecodedSamples() after Clear() = %d, want 0", got)
	}
}

func TestSurroundDecoderInitIsNoOpWithoutRateChange(t *testing.T) {
	d := NewSurroundDecoder(DPL2QualityHigh)
	d.InitAndSetSampleRate(48000)
	d.PushSamples(make([]int16, 4))
	before := len(d.stereoBuf)
	d.InitAndSetSampleRate(48000)
	if len(d.stereoBuf) != before {
		t.Fatalf("InitAndSetSampleRate() with an unchanged rate cleared buffered input")
	}
}
