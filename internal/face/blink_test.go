package face

import (
	"testing"
	"time"
)

// feed runs a closure sequence through the detector at the given frame
// spacing and returns the indices of frames that emitted events.
func feed(d BlinkSource, sequence []float64, start time.Time, frameGap time.Duration) []int {
	var emitted []int
	now := start
	for i, closure := range sequence {
		if _, ok := d.Observe(closure, now); ok {
			emitted = append(emitted, i)
		}
		now = now.Add(frameGap)
	}
	return emitted
}

func TestBlinkEmittedAfterTwoClosedFrames(t *testing.T) {
	d := NewBlinkDetector(BlinkDetectorConfig{
		ClosureThreshold: 0.3,
		FrameThreshold:   2,
		Cooldown:         200 * time.Millisecond,
	})

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	emitted := feed(d, []float64{0.1, 0.4, 0.4, 0.1}, start, 33*time.Millisecond)

	if len(emitted) != 1 || emitted[0] != 3 {
		t.Fatalf("emitted on frames %v, want exactly frame 3", emitted)
	}
}

func TestNoBlinkWithoutConsecutiveClosedFrames(t *testing.T) {
	d := NewBlinkDetector(BlinkDetectorConfig{
		ClosureThreshold: 0.3,
		FrameThreshold:   2,
		Cooldown:         200 * time.Millisecond,
	})

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	emitted := feed(d, []float64{0.4, 0.1, 0.4, 0.1}, start, 33*time.Millisecond)

	if len(emitted) != 0 {
		t.Fatalf("emitted on frames %v, want none (never 2 consecutive closed)", emitted)
	}
}

func TestCooldownSuppressesSecondEvent(t *testing.T) {
	d := NewBlinkDetector(DefaultBlinkDetectorConfig())

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Two complete blinks 99ms apart: the second falls inside the 200ms
	// cooldown and must be swallowed.
	seq := []float64{0.4, 0.4, 0.1, 0.4, 0.4, 0.1}
	emitted := feed(d, seq, start, 33*time.Millisecond)

	if len(emitted) != 1 || emitted[0] != 2 {
		t.Fatalf("emitted on frames %v, want exactly frame 2", emitted)
	}
}

func TestSecondBlinkAfterCooldown(t *testing.T) {
	d := NewBlinkDetector(DefaultBlinkDetectorConfig())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := func(closure float64) (BlinkEvent, bool) {
		ev, ok := d.Observe(closure, now)
		now = now.Add(150 * time.Millisecond)
		return ev, ok
	}

	// First blink.
	step(0.4)
	step(0.4)
	if _, ok := step(0.1); !ok {
		t.Fatal("first blink not emitted")
	}
	// Second blink, well past the cooldown by the time it completes.
	step(0.4)
	step(0.4)
	if _, ok := step(0.1); !ok {
		t.Fatal("second blink after cooldown not emitted")
	}
}

func TestNoFaceFrameResetsCounterNotCooldown(t *testing.T) {
	d := NewBlinkDetector(DefaultBlinkDetectorConfig())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Complete a blink to arm the cooldown timer.
	d.Observe(0.4, now)
	now = now.Add(33 * time.Millisecond)
	d.Observe(0.4, now)
	now = now.Add(33 * time.Millisecond)
	if _, ok := d.Observe(0.1, now); !ok {
		t.Fatal("setup blink not emitted")
	}

	// A no-face frame reads as intensity 0: open frame, counter reset.
	now = now.Add(33 * time.Millisecond)
	d.Observe(0, now)
	if d.ClosedFrames() != 0 {
		t.Fatalf("counter = %d after open frame, want 0", d.ClosedFrames())
	}

	// A blink completing 99ms after the last event is still inside the
	// cooldown: the no-face frame must not have reset the timer.
	now = now.Add(33 * time.Millisecond)
	d.Observe(0.4, now)
	now = now.Add(33 * time.Millisecond)
	d.Observe(0.4, now)
	now = now.Add(33 * time.Millisecond)
	if _, ok := d.Observe(0.1, now); ok {
		t.Fatal("blink emitted inside cooldown after no-face frame")
	}
}

func TestBlinkEventCarriesClosedRunLength(t *testing.T) {
	d := NewBlinkDetector(DefaultBlinkDetectorConfig())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		d.Observe(0.5, now)
		now = now.Add(33 * time.Millisecond)
	}
	ev, ok := d.Observe(0.1, now)
	if !ok {
		t.Fatal("blink not emitted")
	}
	if ev.ClosedFrames != 4 {
		t.Fatalf("ClosedFrames = %d, want 4", ev.ClosedFrames)
	}
	if !ev.At.Equal(now) {
		t.Fatalf("At = %v, want %v", ev.At, now)
	}
}

func TestSimulatedBlinkSourceSchedule(t *testing.T) {
	s := NewSimulatedBlinkSource(time.Second)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, ok := s.Observe(0, now); ok {
		t.Fatal("simulated source emitted on first observation")
	}
	if _, ok := s.Observe(0, now.Add(500*time.Millisecond)); ok {
		t.Fatal("simulated source emitted before interval elapsed")
	}
	if _, ok := s.Observe(0, now.Add(time.Second)); !ok {
		t.Fatal("simulated source did not emit after interval")
	}
	if _, ok := s.Observe(0, now.Add(1500*time.Millisecond)); ok {
		t.Fatal("simulated source emitted again before next interval")
	}
}
