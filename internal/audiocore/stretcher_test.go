package audiocore

import "testing"

func TestStretcherPushAndPullRoundTripsAtUnityTempo(t *testing.T) {
	s := NewStretcher(48000)
	s.SetTempo(1.0, true)

	in := make([]int16, 2048*numChannels)
	for i := range in {
		in[i] = int16(i % 100)
	}
	if err := s.PushSamples(in); err != nil {
		t.Fatalf("PushSamples() error = %v", err)
	}

	out := make([]int16, 2048*numChannels)
	got := s.GetStretchedSamples(out, false)
	if got == 0 {
		t.Fatalf("GetStretchedSamples() produced 0 frames after pushing %d frames at unity tempo", len(in)/numChannels)
	}
}

func TestStretcherPadRepeatsLastFrameOnUnderSupply(t *testing.T) {
	s := NewStretcher(48000)
	s.SetTempo(1.0, true)

	// Push fewer frames than we'll ask to pull, forcing an under-supply.
	in := make([]int16, 64*numChannels)
	for i := range in {
		in[i] = 500
	}
	if err := s.PushSamples(in); err != nil {
		t.Fatalf("PushSamples() error = %v", err)
	}

	out := make([]int16, 4096*numChannels)
	for i := range out {
		out[i] = -1 // sentinel so untouched tail frames are obvious
	}
	got := s.GetStretchedSamples(out, true)
	if got != len(out)/numChannels {
		t.Fatalf("GetStretchedSamples(pad=true) = %d, want the full request padded", got)
	}
}

func TestStretcherSetTempoAveragesBetweenResets(t *testing.T) {
	s := NewStretcher(48000)
	// Accumulate without resetting; the reset call applies the mean of
	// all three tempos, and GetAcceptableLatency stays usable.
	s.SetTempo(1.0, false)
	s.SetTempo(1.5, false)
	s.SetTempo(2.0, true)

	if s.lastTempo != 1.5 {
		t.Fatalf("applied tempo = %v, want the average 1.5 of the accumulated tempos", s.lastTempo)
	}
	if lat := s.GetAcceptableLatency(); lat <= 0 {
		t.Fatalf("GetAcceptableLatency() = %v, want > 0", lat)
	}
}

func TestStretcherClearDropsBufferedAudio(t *testing.T) {
	s := NewStretcher(48000)
	s.SetTempo(1.0, true)
	if err := s.PushSamples(make([]int16, 2048*numChannels)); err != nil {
		t.Fatalf("PushSamples() error = %v", err)
	}
	s.Clear()

	if lat := s.GetProcessedLatency(); lat != 0 {
		t.Fatalf("GetProcessedLatency() after Clear() = %v, want 0", lat)
	}
}
