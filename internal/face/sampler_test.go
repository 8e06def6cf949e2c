package face

import (
	"errors"
	"testing"
	"time"
)

func newTestSampler(perPoint int) (*Sampler, *Engine) {
	engine := NewEngine(DefaultEngineConfig())
	s := NewSampler(engine, SamplerConfig{
		SamplesPerPoint: perPoint,
		Interval:        100 * time.Millisecond,
	})
	return s, engine
}

func TestSamplerWalksAllTargets(t *testing.T) {
	s, engine := newTestSampler(3)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Begin(now)
	if !engine.IsActive() {
		t.Fatal("Begin should start a calibration session")
	}

	gaze := SmoothedGaze{X: 0.1, Y: 0.1, Confidence: 1}
	ticks := 0
	for !s.Tick(now, gaze, true) {
		now = now.Add(100 * time.Millisecond)
		ticks++
		if ticks > 100 {
			t.Fatal("sampler never completed")
		}
	}

	// 5 targets x 3 samples, one per tick.
	if ticks != 14 {
		t.Fatalf("completed after %d ticks, want 14", ticks)
	}

	p := s.Progress()
	if !p.Complete || p.Active {
		t.Fatalf("progress = %+v, want complete and inactive", p)
	}

	// All five point groups were recorded; Finish succeeds on geometry
	// grounds or fails only on regression validity, not sample counts.
	if _, err := engine.Finish(now); err == nil {
		// Identical gaze at every target: zero variance falls back to
		// viewport scales, which validate fine.
		return
	} else if errors.Is(err, ErrInsufficientSamples) {
		t.Fatal("sampler did not deliver enough samples")
	}
}

func TestSamplerRespectsInterval(t *testing.T) {
	s, _ := newTestSampler(3)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Begin(now)
	gaze := SmoothedGaze{Confidence: 1}

	s.Tick(now, gaze, true)
	// 50ms later: inside the 100ms interval, no sample taken.
	s.Tick(now.Add(50*time.Millisecond), gaze, true)

	if got := s.Progress().Collected; got != 1 {
		t.Fatalf("collected = %d after sub-interval tick, want 1", got)
	}

	s.Tick(now.Add(100*time.Millisecond), gaze, true)
	if got := s.Progress().Collected; got != 2 {
		t.Fatalf("collected = %d, want 2", got)
	}
}

func TestSamplerIgnoresMissingGaze(t *testing.T) {
	s, _ := newTestSampler(2)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Begin(now)

	// No smoothed gaze available yet (no face seen): nothing collected.
	s.Tick(now, SmoothedGaze{}, false)
	s.Tick(now.Add(time.Second), SmoothedGaze{}, false)

	if got := s.Progress().Collected; got != 0 {
		t.Fatalf("collected = %d with no gaze, want 0", got)
	}
}

func TestSamplerCancelIdempotent(t *testing.T) {
	s, engine := newTestSampler(3)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Begin(now)
	s.Tick(now, SmoothedGaze{Confidence: 1}, true)

	s.Cancel()
	if engine.IsActive() {
		t.Fatal("Cancel should end the session")
	}
	s.Cancel() // second cancel is a no-op

	p := s.Progress()
	if p.Active || p.Complete || p.Collected != 0 {
		t.Fatalf("progress after cancel = %+v", p)
	}
}

func TestSamplerProgressReportsTarget(t *testing.T) {
	s, _ := newTestSampler(1)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Begin(now)

	p := s.Progress()
	if p.Target.Name != PointCenter || p.TargetIndex != 0 || p.TargetCount != 5 {
		t.Fatalf("initial progress = %+v", p)
	}

	// One sample completes the center point and advances to top.
	s.Tick(now, SmoothedGaze{Confidence: 1}, true)
	p = s.Progress()
	if p.Target.Name != PointTop || p.TargetIndex != 1 {
		t.Fatalf("progress after first point = %+v", p)
	}
}
