package audiocore

import (
	"sync"
)

// speedWindow bounds how many recent push-interval deltas SpeedTracker
// keeps for its rolling average.
const speedWindow = 32

// SpeedTracker estimates how fast the emulated machine is currently
// running relative to real time, from the cadence of ticks it is fed.
// It keeps a short window of recent deltas plus two independently
// cacheable averages so callers with different update rates (the
// mixer's catch-up logic vs. a UI readout) don't force each other to
// recompute on every call.
type SpeedTracker struct {
	mu sync.Mutex

	ticksPerSecond float64
	updatesPerSec  float64

	deltas    [speedWindow]float64
	count     int
	next      int
	lastDelta float64

	lastTicks   float64
	hasLastTick bool
	paused      bool

	cached [2]cachedSpeed
}

type cachedSpeed struct {
	value     float64
	sinceLast float64
	valid     bool
}

// NewSpeedTracker creates a tracker for a machine that advances
// ticksPerSecond ticks per second of emulated time, fed roughly
// updatesPerSec times per real second.
func NewSpeedTracker(ticksPerSecond, updatesPerSec float64) *SpeedTracker {
	return &SpeedTracker{ticksPerSecond: ticksPerSecond, updatesPerSec: updatesPerSec}
}

// Start resets the rolling window. simulateFullSpeed seeds it as if
// the machine had already been running at exactly 1.0x, avoiding a
// startup transient of reported-zero speed.
func (s *SpeedTracker) Start(simulateFullSpeed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count, s.next = 0, 0
	s.hasLastTick = false
	s.cached[0] = cachedSpeed{}
	s.cached[1] = cachedSpeed{}
	s.lastDelta = 0
	if simulateFullSpeed {
		for i := range s.deltas {
			s.deltas[i] = 1
		}
		s.count = speedWindow
		s.lastDelta = 1
	}
}

// SetPaused notifies the tracker of a pause/unpause transition so the
// elapsed-time gap across the pause isn't counted as a slow update.
func (s *SpeedTracker) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused == s.paused {
		return
	}
	s.paused = paused
	if !paused {
		s.hasLastTick = false
	}
}

// IsPaused reports whether the tracker is currently in a paused state,
// as last set by SetPaused.
func (s *SpeedTracker) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// OnSettingsChanged rescales the recorded deltas when the emulated
// tick rate or update cadence changes, so past samples stay
// comparable to future ones.
func (s *SpeedTracker) OnSettingsChanged(newTicksPerSecond, newUpdatesPerSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticksPerSecond <= 0 || s.updatesPerSec <= 0 {
		s.ticksPerSecond, s.updatesPerSec = newTicksPerSecond, newUpdatesPerSec
		return
	}
	scale := (s.ticksPerSecond / s.updatesPerSec) / (newTicksPerSecond / newUpdatesPerSec)
	for i := range s.deltas {
		s.deltas[i] *= scale
	}
	s.lastDelta *= scale
	s.ticksPerSecond, s.updatesPerSec = newTicksPerSecond, newUpdatesPerSec
}

// Update records elapsedTicks of emulated progress having taken
// wallSeconds of real time.
func (s *SpeedTracker) Update(elapsedTicks, wallSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || wallSeconds <= 0 || s.ticksPerSecond <= 0 {
		return
	}
	expected := s.ticksPerSecond * wallSeconds
	if expected <= 0 {
		return
	}
	delta := elapsedTicks / expected
	s.lastDelta = delta
	s.deltas[s.next] = delta
	s.next = (s.next + 1) % speedWindow
	if s.count < speedWindow {
		s.count++
	}
}

// GetLastSpeed returns the most recently recorded instantaneous speed
// sample, or alternativeSpeed if no samples exist yet.
func (s *SpeedTracker) GetLastSpeed(alternativeSpeed float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return alternativeSpeed
	}
	return s.lastDelta
}

// GetAverageSpeed returns the mean of the recorded window, or
// alternativeSpeed if the window is empty.
func (s *SpeedTracker) GetAverageSpeed(alternativeSpeed float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.averageLocked(alternativeSpeed)
}

func (s *SpeedTracker) averageLocked(alternativeSpeed float64) float64 {
	if s.count == 0 {
		return alternativeSpeed
	}
	var sum float64
	for i := 0; i < s.count; i++ {
		sum += s.deltas[i]
	}
	return sum / float64(s.count)
}

// GetCachedAverageSpeed returns slot's cached average, recomputing it
// only once maxAverageAge seconds of caller-reported time have passed
// since the last refresh. Two independent slots (0 and 1) let two
// callers with different refresh cadences share one tracker without
// thrashing each other's cache.
func (s *SpeedTracker) GetCachedAverageSpeed(slot int, elapsedSinceLastCall, maxAverageAge, alternativeSpeed float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.cached[slot]
	c.sinceLast += elapsedSinceLastCall
	if !c.valid || c.sinceLast >= maxAverageAge {
		c.value = s.averageLocked(alternativeSpeed)
		c.sinceLast = 0
		c.valid = true
	}
	return c.value
}
