package face

import (
	"time"
)

// BlinkEvent marks one confirmed blink. Game logic treats it as an opaque
// trigger; the timestamp and closed-frame count are carried for recording.
type BlinkEvent struct {
	At           time.Time `json:"at"`
	ClosedFrames int       `json:"closed_frames"`
}

// BlinkSource produces confirmed blink events from per-frame closure
// readings. Implementations never error: absence of input is a valid
// signal (no blink).
type BlinkSource interface {
	// Observe consumes one frame's closure intensity in [0,1] and reports
	// whether a blink completed on this frame.
	Observe(closureIntensity float64, now time.Time) (BlinkEvent, bool)
}

// BlinkDetectorConfig holds tuning parameters for the blink detector.
type BlinkDetectorConfig struct {
	ClosureThreshold float64       // Intensity above which a frame counts as closed
	FrameThreshold   int           // Consecutive closed frames required to confirm
	Cooldown         time.Duration // Minimum gap between emitted events
}

// DefaultBlinkDetectorConfig returns default blink detector configuration.
func DefaultBlinkDetectorConfig() BlinkDetectorConfig {
	return BlinkDetectorConfig{
		ClosureThreshold: 0.3,
		FrameThreshold:   2,
		Cooldown:         200 * time.Millisecond,
	}
}

// BlinkDetector is a two-state machine over closure intensity. While
// intensity stays above the threshold it counts closed frames; on the frame
// intensity drops back it emits a single event if the closed run was long
// enough and the cooldown window has elapsed. The frame-count requirement
// filters single-frame landmark noise; the cooldown keeps one physical
// blink hovering near the threshold from registering several times.
//
// The detector owns its state exclusively and is mutated once per frame.
type BlinkDetector struct {
	cfg BlinkDetectorConfig

	consecutiveClosed int
	lastBlink         time.Time
}

// NewBlinkDetector creates a blink detector with the given configuration.
func NewBlinkDetector(cfg BlinkDetectorConfig) *BlinkDetector {
	if cfg.FrameThreshold < 1 {
		cfg.FrameThreshold = 1
	}
	return &BlinkDetector{cfg: cfg}
}

// Observe implements BlinkSource.
//
// A no-face frame must be reported as intensity 0: it resets the closed
// counter without touching the cooldown timer.
func (d *BlinkDetector) Observe(closureIntensity float64, now time.Time) (BlinkEvent, bool) {
	if closureIntensity > d.cfg.ClosureThreshold {
		d.consecutiveClosed++
		return BlinkEvent{}, false
	}

	closed := d.consecutiveClosed
	d.consecutiveClosed = 0

	if closed < d.cfg.FrameThreshold {
		return BlinkEvent{}, false
	}
	if now.Sub(d.lastBlink) <= d.cfg.Cooldown {
		return BlinkEvent{}, false
	}

	d.lastBlink = now
	return BlinkEvent{At: now, ClosedFrames: closed}, true
}

// ClosedFrames returns the current consecutive-closed counter. Exposed for
// debug surfaces only.
func (d *BlinkDetector) ClosedFrames() int {
	return d.consecutiveClosed
}

// SimulatedBlinkSource emits synthetic blinks on a fixed schedule. It is
// the demo-mode variant of BlinkSource, selected at construction time when
// no landmark provider is available, so the rest of the pipeline runs
// unchanged.
type SimulatedBlinkSource struct {
	interval time.Duration
	next     time.Time
}

// NewSimulatedBlinkSource creates a demo blink source emitting one blink
// per interval.
func NewSimulatedBlinkSource(interval time.Duration) *SimulatedBlinkSource {
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &SimulatedBlinkSource{interval: interval}
}

// Observe implements BlinkSource. Closure intensity is ignored.
func (s *SimulatedBlinkSource) Observe(_ float64, now time.Time) (BlinkEvent, bool) {
	if s.next.IsZero() {
		s.next = now.Add(s.interval)
		return BlinkEvent{}, false
	}
	if now.Before(s.next) {
		return BlinkEvent{}, false
	}
	s.next = now.Add(s.interval)
	return BlinkEvent{At: now}, true
}
