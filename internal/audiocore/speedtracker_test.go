package audiocore

import "testing"

func TestSpeedTrackerReturnsAlternativeWhenEmpty(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	if got := s.GetLastSpeed(1.0); got != 1.0 {
		t.Fatalf("GetLastSpeed() on empty tracker = %v, want 1.0", got)
	}
	if got := s.GetAverageSpeed(2.0); got != 2.0 {
		t.Fatalf("GetAverageSpeed() on empty tracker = %v, want 2.0", got)
	}
}

func TestSpeedTrackerTracksFullSpeed(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	for i := 0; i < 10; i++ {
		s.Update(100, 0.1) // 100 ticks in 0.1s at 1000 ticks/sec == 1.0x
	}
	got := s.GetAverageSpeed(0)
	if got < 0.99 || got > 1.01 {
		t.Fatalf("GetAverageSpeed() = %v, want ~1.0", got)
	}
}

func TestSpeedTrackerTracksHalfSpeed(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	for i := 0; i < 10; i++ {
		s.Update(50, 0.1) // half the expected ticks
	}
	got := s.GetAverageSpeed(0)
	if got < 0.49 || got > 0.51 {
		t.Fatalf("GetAverageSpeed() = %v, want ~0.5", got)
	}
}

func TestSpeedTrackerStartResetsWindow(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	s.Update(50, 0.1)
	s.Start(false)
	if got := s.GetAverageSpeed(-1); got != -1 {
		t.Fatalf("GetAverageSpeed() after Start(false) = %v, want the alternative sentinel -1", got)
	}
}

func TestSpeedTrackerPausedUpdatesAreIgnored(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	s.Update(100, 0.1)
	s.SetPaused(true)
	s.Update(9999, 0.1) // would report a huge spike if not ignored
	s.SetPaused(false)
	got := s.GetAverageSpeed(0)
	if got < 0.99 || got > 1.01 {
		t.Fatalf("GetAverageSpeed() = %v, want ~1.0 (paused sample should not have been recorded)", got)
	}
}

func TestSpeedTrackerIsPausedReflectsSetPaused(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	if s.IsPaused() {
		t.Fatalf("IsPaused() = true before any SetPaused call")
	}
	s.SetPaused(true)
	if !s.IsPaused() {
		t.Fatalf("IsPaused() = false after SetPaused(true)")
	}
	s.SetPaused(false)
	if s.IsPaused() {
		t.Fatalf("IsPaused() = true after SetPaused(false)")
	}
}

func TestSpeedTrackerCachedAverageHoldsUntilMaxAge(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	s.Update(100, 0.1)
	first := s.GetCachedAverageSpeed(0, 0, 1.0, 0)
	s.Update(50, 0.1) // would change the average if recomputed
	held := s.GetCachedAverageSpeed(0, 0.01, 1.0, 0)
	if held != first {
		t.Fatalf("GetCachedAverageSpeed() = %v, want cached value %v to be held before maxAverageAge elapses", held, first)
	}
	refreshed := s.GetCachedAverageSpeed(0, 2.0, 1.0, 0)
	if refreshed == first {
		t.Fatalf("GetCachedAverageSpeed() did not refresh after maxAverageAge elapsed")
	}
}

func TestSpeedTrackerCacheSlotsAreIndependent(t *testing.T) {
	s := NewSpeedTracker(1000, 60)
	s.Update(100, 0.1)
	a := s.GetCachedAverageSpeed(0, 0, 1.0, 0)
	b := s.GetCachedAverageSpeed(1, 0, 1.0, 0)
	if a != b {
		t.Fatalf("slot 0 = %v, slot 1 = %v, want equal on first read", a, b)
	}
	s.Update(50, 0.1)
	// Force slot 0 to refresh but not slot 1.
	refreshed := s.GetCachedAverageSpeed(0, 2.0, 1.0, 0)
	held := s.GetCachedAverageSpeed(1, 0, 1.0, 0)
	if refreshed == held {
		t.Fatalf("expected slot 0 (%v) to diverge from still-cached slot 1 (%v)", refreshed, held)
	}
}
