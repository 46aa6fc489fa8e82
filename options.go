package strip

import "time"

// Options carries the reader's tunables. The thresholds and delays ship
// with defaults tuned against observed flicker on long strips; they are
// deliberately configurable rather than constants.
type Options struct {
	// EnterThreshold is the visibility ratio at or above which a hidden
	// panel becomes visible.
	EnterThreshold float64
	// ExitThreshold is the ratio below which a visible panel stops being
	// visible. Must be <= EnterThreshold for the hysteresis to make sense.
	ExitThreshold float64
	// StopDelay is how long a stream must stay invisible before its stop
	// command is actually sent.
	StopDelay time.Duration
	// EvictDelay is the additional grace period after a stop before the
	// stream's cached frame is released.
	EvictDelay time.Duration
	// CaptureIntervalMs is the polling interval requested in start-capture
	// commands, in milliseconds.
	CaptureIntervalMs int
}

// DefaultOptions returns the standard tunables: 0.5/0.1 hysteresis
// thresholds, 500ms stop debounce, 5s eviction grace, 500ms capture
// interval.
func DefaultOptions() Options {
	return Options{
		EnterThreshold:    0.5,
		ExitThreshold:     0.1,
		StopDelay:         500 * time.Millisecond,
		EvictDelay:        5 * time.Second,
		CaptureIntervalMs: 500,
	}
}
