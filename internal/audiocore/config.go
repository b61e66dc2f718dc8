package audiocore

import "fmt"

// DPL2Quality selects the analysis block size used by the surround
// decoder: higher quality trades latency for separation.
type DPL2Quality int

const (
	DPL2QualityLowest DPL2Quality = iota
	DPL2QualityLow
	DPL2QualityHigh
	DPL2QualityHighest
)

func (q DPL2Quality) String() string {
	switch q {
	case DPL2QualityLowest:
		return "lowest"
	case DPL2QualityLow:
		return "low"
	case DPL2QualityHigh:
		return "high"
	case DPL2QualityHighest:
		return "highest"
	default:
		return "unknown"
	}
}

// ParseDPL2Quality accepts the -dpl2-quality flag's string form.
func ParseDPL2Quality(s string) (DPL2Quality, error) {
	switch s {
	case "lowest":
		return DPL2QualityLowest, nil
	case "low":
		return DPL2QualityLow, nil
	case "high", "":
		return DPL2QualityHigh, nil
	case "highest":
		return DPL2QualityHighest, nil
	default:
		return 0, fmt.Errorf("audiocore: unknown dpl2 quality %q", s)
	}
}

// BackendKind names a supported host audio backend.
type BackendKind string

const (
	BackendOto      BackendKind = "oto"
	BackendHeadless BackendKind = "headless"
)

// Config holds every tunable the control surface exposes. Zero values
// are not valid configuration; use DefaultConfig and override.
type Config struct {
	Backend BackendKind

	// OSMixerRate is the host audio device's sample rate in Hz.
	OSMixerRate float64

	// TargetLatencyMS is the user's requested output buffering in
	// milliseconds; it is clamped by ClampTargetLatency before use.
	TargetLatencyMS uint32

	// FrameLimiter selects throttled mode: true pins the mixer's target
	// speed to EmulationSpeed and tracks drift away from it; false (the
	// default) lets target speed follow the SpeedTracker's measured
	// average of the DMA source's actual push cadence.
	FrameLimiter bool

	// EmulationSpeed is the fixed target speed used in throttled mode
	// (1.0 = real-time, 2.0 = double speed, ...). Ignored unless
	// FrameLimiter is true.
	EmulationSpeed float64

	// SpeedToleranceMS is how far behind EmulationSpeed (in throttled
	// mode) playback is allowed to drift before the mixer starts
	// catching up by falling back to the tracker's measured average.
	// Negative disables dynamic speed entirely (always pin to
	// EmulationSpeed); zero means the measured average is always used;
	// positive is the drift threshold in milliseconds.
	SpeedToleranceMS int32

	// Stretch enables the time-stretching path instead of plain
	// resample-to-rate when emulation speed isn't 1.0x.
	Stretch bool

	// Surround enables the Dolby Pro Logic II-style decode path.
	Surround    bool
	DPL2Quality DPL2Quality

	// RemoteSpeakerPrimeFraction is the fraction of MaxSupportedLatency
	// (in seconds) used to pre-fill a remote-speaker FIFO with silence
	// when it transitions from idle to active, smoothing the initial
	// attack instead of starting from a cold, empty buffer.
	RemoteSpeakerPrimeFraction float64

	Volume uint32 // 0..100
	Muted  bool
}

// DefaultConfig returns the control surface's out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		Backend:                    BackendOto,
		OSMixerRate:                48000,
		TargetLatencyMS:            20,
		FrameLimiter:               false,
		EmulationSpeed:             1.0,
		SpeedToleranceMS:           10,
		Stretch:                    true,
		Surround:                   false,
		DPL2Quality:                DPL2QualityHigh,
		RemoteSpeakerPrimeFraction: 0.5,
		Volume:                     100,
	}
}

// MaxSupportedLatencyMS returns the largest buffering the FIFO ring
// can hold, given the worst-case source rate that will ever be mixed.
// Requesting more than this would ask the mixer to hold more samples
// than fifoCapacity can store.
func MaxSupportedLatencyMS(worstCaseRateHz float64) uint32 {
	return uint32(1000 * (fifoCapacity - interpWindow - 1) / worstCaseRateHz)
}

// ClampTargetLatency clamps the configured target latency into
// [0, MaxSupportedLatencyMS(worstCaseRateHz)].
func (c *Config) ClampTargetLatency(worstCaseRateHz float64) {
	max := MaxSupportedLatencyMS(worstCaseRateHz)
	if c.TargetLatencyMS > max {
		c.TargetLatencyMS = max
	}
}
