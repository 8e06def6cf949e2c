package face

import (
	"testing"
	"time"

	"github.com/bloomsight/blinkbloom/internal/timeutil"
)

// captureObserver records emitted events for assertions.
type captureObserver struct {
	blinks     []BlinkEvent
	directions []DirectionChangedEvent
	gazes      []GazeUpdate
}

func (c *captureObserver) OnBlink(ev BlinkEvent)                      { c.blinks = append(c.blinks, ev) }
func (c *captureObserver) OnDirectionChange(ev DirectionChangedEvent) { c.directions = append(c.directions, ev) }
func (c *captureObserver) OnGaze(ev GazeUpdate)                       { c.gazes = append(c.gazes, ev) }

func newTestPipeline() (*Pipeline, *captureObserver, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultPipelineConfig()
	cfg.Clock = clock
	p := NewPipeline(cfg)
	obs := &captureObserver{}
	p.Subscribe(obs)
	return p, obs, clock
}

func TestPipelineEmitsBlinkFromClosureSequence(t *testing.T) {
	p, obs, clock := newTestPipeline()

	frames := []*LandmarkFrame{
		buildFrame(frameOpts{iris: true}),
		buildFrame(frameOpts{iris: true, closed: true}),
		buildFrame(frameOpts{iris: true, closed: true}),
		buildFrame(frameOpts{iris: true}),
	}
	for _, f := range frames {
		p.ProcessFrame(f)
		clock.Advance(33 * time.Millisecond)
	}

	if len(obs.blinks) != 1 {
		t.Fatalf("observed %d blinks, want 1", len(obs.blinks))
	}
	if obs.blinks[0].ClosedFrames != 2 {
		t.Fatalf("ClosedFrames = %d, want 2", obs.blinks[0].ClosedFrames)
	}
}

func TestPipelineNoFaceBranch(t *testing.T) {
	p, obs, clock := newTestPipeline()

	sig := p.ProcessFrame(nil)
	if sig.Blink != nil || sig.Gaze != nil || sig.Pose != nil || sig.DirectionChange != nil {
		t.Fatalf("nil frame produced signals: %+v", sig)
	}
	if len(obs.gazes) != 0 {
		t.Fatal("nil frame produced gaze updates")
	}
	if _, ok := p.Smoothed(); ok {
		t.Fatal("Smoothed() should be unavailable before any face")
	}

	// A face appearing afterwards works normally.
	clock.Advance(33 * time.Millisecond)
	sig = p.ProcessFrame(buildFrame(frameOpts{iris: true}))
	if sig.Gaze == nil || sig.Pose == nil {
		t.Fatal("face frame after no-face did not produce gaze")
	}
}

func TestPipelineGazeUpdateScreenMapping(t *testing.T) {
	p, obs, _ := newTestPipeline()

	p.ProcessFrame(buildFrame(frameOpts{iris: true}))
	if len(obs.gazes) != 1 {
		t.Fatalf("observed %d gaze updates, want 1", len(obs.gazes))
	}
	g := obs.gazes[0]

	// Uncalibrated: centered gaze lands on the default viewport center.
	if g.ScreenX != 640 || g.ScreenY != 360 {
		t.Fatalf("screen = (%v, %v), want (640, 360)", g.ScreenX, g.ScreenY)
	}
	if g.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0 (iris)", g.Confidence)
	}
}

func TestPipelineDirectionChange(t *testing.T) {
	p, obs, clock := newTestPipeline()

	tilted := frameOpts{iris: true, rollDY: 0.006} // roll proxy 0.02
	for i := 0; i < 3; i++ {
		p.ProcessFrame(buildFrame(tilted))
		clock.Advance(33 * time.Millisecond)
	}

	if len(obs.directions) != 1 {
		t.Fatalf("observed %d direction changes, want 1", len(obs.directions))
	}
	ev := obs.directions[0]
	if ev.From != Center || ev.To != East {
		t.Fatalf("direction change %v -> %v, want center -> east", ev.From, ev.To)
	}
	if p.Direction() != East {
		t.Fatalf("Direction() = %v, want east", p.Direction())
	}
}

func TestPipelineFrameTimestampPreferred(t *testing.T) {
	p, obs, _ := newTestPipeline()

	at := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	f := buildFrame(frameOpts{iris: true})
	f.Timestamp = at
	p.ProcessFrame(f)

	if len(obs.gazes) != 1 || !obs.gazes[0].At.Equal(at) {
		t.Fatalf("gaze timestamp = %v, want frame timestamp %v", obs.gazes[0].At, at)
	}
}

func TestPipelineFinishCalibrationSetsCenterOffset(t *testing.T) {
	p, obs, _ := newTestPipeline()

	// Calibrate with a constant gaze bias at the center target.
	engine := p.Calibration()
	engine.Start(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	record := func(name string, x, y float64) {
		if err := engine.RecordPointSamples(name, samplesFor(x, y, 5)); err != nil {
			t.Fatal(err)
		}
	}
	record(PointCenter, 0.05, 0)
	record(PointLeft, -0.2, 0)
	record(PointRight, 0.3, 0)

	transform, err := p.FinishCalibration()
	if err != nil {
		t.Fatalf("FinishCalibration: %v", err)
	}
	if !transform.IsValid {
		t.Fatal("transform should be valid")
	}

	// The next neutral frame has the 0.05 center bias subtracted.
	p.ProcessFrame(buildFrame(frameOpts{iris: true}))
	g := obs.gazes[len(obs.gazes)-1]
	if g.X > -0.049 || g.X < -0.051 {
		t.Fatalf("gaze.X = %v, want about -0.05 (center offset applied)", g.X)
	}
}

func TestPipelineDemoModeBlinkSource(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultPipelineConfig()
	cfg.Clock = clock
	cfg.Blink = NewSimulatedBlinkSource(time.Second)
	p := NewPipeline(cfg)
	obs := &captureObserver{}
	p.Subscribe(obs)

	// No frames at all: the demo source still produces blinks on schedule.
	p.ProcessFrame(nil)
	clock.Advance(time.Second)
	p.ProcessFrame(nil)

	if len(obs.blinks) != 1 {
		t.Fatalf("observed %d demo blinks, want 1", len(obs.blinks))
	}
}
