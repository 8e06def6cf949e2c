package face

import (
	"time"

	"github.com/bloomsight/blinkbloom/internal/config"
	"github.com/bloomsight/blinkbloom/internal/timeutil"
	"github.com/bloomsight/blinkbloom/internal/units"
)

// GazeUpdate is the per-frame gaze output consumed by game logic.
type GazeUpdate struct {
	X          float64   `json:"x"` // smoothed gaze
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	ScreenX    float64   `json:"screen_x"` // calibrated viewport pixels
	ScreenY    float64   `json:"screen_y"`
	At         time.Time `json:"at"`
}

// FrameSignals is the result of processing one landmark frame. Absent
// signals are nil pointers: "nothing happened" is the normal outcome, not
// an error.
type FrameSignals struct {
	Blink           *BlinkEvent
	DirectionChange *DirectionChangedEvent
	Gaze            *GazeUpdate
	Pose            *HeadPose
}

// Observer receives immutable event values as the pipeline emits them.
// Observers are one-way consumers: they must not reach back into pipeline
// state. They are invoked synchronously on the processing loop.
type Observer interface {
	OnBlink(BlinkEvent)
	OnDirectionChange(DirectionChangedEvent)
	OnGaze(GazeUpdate)
}

// PipelineConfig assembles the component configurations. A non-nil Blink
// replaces the landmark-driven detector, which is how demo mode (simulated
// blinks without a provider) is selected at construction time.
type PipelineConfig struct {
	Blink           BlinkSource
	Detector        BlinkDetectorConfig
	Estimator       EstimatorConfig
	Stabilizer      StabilizerConfig
	Calibration     EngineConfig
	SmoothingWindow int
	Clock           timeutil.Clock
}

// DefaultPipelineConfig returns a pipeline configuration with all component
// defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Detector:        DefaultBlinkDetectorConfig(),
		Estimator:       DefaultEstimatorConfig(),
		Stabilizer:      DefaultStabilizerConfig(),
		Calibration:     DefaultEngineConfig(),
		SmoothingWindow: 10,
		Clock:           timeutil.RealClock{},
	}
}

// PipelineConfigFromTuning builds a pipeline configuration from the tuning
// file, with demoMode selecting the simulated blink source.
func PipelineConfigFromTuning(t *config.TuningConfig, demoMode bool) PipelineConfig {
	cfg := PipelineConfig{
		Detector: BlinkDetectorConfig{
			ClosureThreshold: t.GetClosureThreshold(),
			FrameThreshold:   t.GetBlinkFrameThreshold(),
			Cooldown:         t.GetBlinkCooldown(),
		},
		Estimator: EstimatorConfig{
			SensitivityX:           t.GetGazeSensitivityX(),
			SensitivityY:           t.GetGazeSensitivityY(),
			HeadCorrectionGain:     t.GetHeadCorrectionGain(),
			ExpectedInterpupillary: t.GetExpectedInterpupillary(),
		},
		Stabilizer: StabilizerConfig{
			RollThreshold:      t.GetRollThreshold(),
			PitchThreshold:     t.GetPitchThreshold(),
			StabilityThreshold: t.GetStabilityThreshold(),
		},
		Calibration: EngineConfig{
			MinPointGroups:        t.GetMinPointGroups(),
			MinTotalSamples:       t.GetMinTotalSamples(),
			MinScale:              t.GetMinScale(),
			MaxScale:              t.GetMaxScale(),
			RangeWideningFraction: t.GetRangeWideningFraction(),
			Viewport: units.Viewport{
				Width:  t.GetViewportWidth(),
				Height: t.GetViewportHeight(),
			},
		},
		SmoothingWindow: t.GetSmoothingWindow(),
		Clock:           timeutil.RealClock{},
	}
	if demoMode {
		cfg.Blink = NewSimulatedBlinkSource(t.GetDemoBlinkInterval())
	}
	return cfg
}

// Pipeline orchestrates the per-frame signal flow: closure intensity into
// the blink source, landmarks into the pose estimator, pose into the
// direction stabilizer, raw gaze through the smoothing buffer and the
// calibration transform. It is single-threaded and frame-driven; each
// component owns its state exclusively and is touched once per frame.
type Pipeline struct {
	blink       BlinkSource
	estimator   *Estimator
	stabilizer  *Stabilizer
	buffer      *GazeBuffer
	calibration *Engine
	clock       timeutil.Clock

	observers []Observer
	smoothed  SmoothedGaze
	hasGaze   bool
}

// NewPipeline assembles a pipeline from the given configuration.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	blink := cfg.Blink
	if blink == nil {
		blink = NewBlinkDetector(cfg.Detector)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Pipeline{
		blink:       blink,
		estimator:   NewEstimator(cfg.Estimator),
		stabilizer:  NewStabilizer(cfg.Stabilizer),
		buffer:      NewGazeBuffer(cfg.SmoothingWindow),
		calibration: NewEngine(cfg.Calibration),
		clock:       clock,
	}
}

// Subscribe registers an observer for emitted events.
func (p *Pipeline) Subscribe(o Observer) {
	p.observers = append(p.observers, o)
}

// ProcessFrame runs one detection cycle. A nil frame is the no-face
// branch: the blink detector sees an open frame and everything else is
// skipped. The frame is not retained.
func (p *Pipeline) ProcessFrame(frame *LandmarkFrame) FrameSignals {
	now := p.clock.Now()
	if frame != nil && !frame.Timestamp.IsZero() {
		now = frame.Timestamp
	}

	var sig FrameSignals

	closure := 0.0
	if frame.HasMesh() {
		closure = frame.ClosureIntensity()
	}
	if ev, ok := p.blink.Observe(closure, now); ok {
		sig.Blink = &ev
		for _, o := range p.observers {
			o.OnBlink(ev)
		}
	}

	pose, gaze, ok := p.estimator.Estimate(frame, now)
	if !ok {
		return sig
	}
	sig.Pose = &pose

	dir := p.stabilizer.Classify(pose)
	if ev, changed := p.stabilizer.Update(dir, now); changed {
		sig.DirectionChange = &ev
		for _, o := range p.observers {
			o.OnDirectionChange(ev)
		}
	}

	p.smoothed = p.buffer.Push(gaze)
	p.hasGaze = true

	screenX, screenY := p.calibration.ToScreen(p.smoothed.X, p.smoothed.Y)
	update := GazeUpdate{
		X:          p.smoothed.X,
		Y:          p.smoothed.Y,
		Confidence: p.smoothed.Confidence,
		ScreenX:    screenX,
		ScreenY:    screenY,
		At:         now,
	}
	sig.Gaze = &update
	for _, o := range p.observers {
		o.OnGaze(update)
	}

	return sig
}

// Smoothed returns the most recent smoothed gaze value, for the
// calibration sampler.
func (p *Pipeline) Smoothed() (SmoothedGaze, bool) {
	return p.smoothed, p.hasGaze
}

// Calibration exposes the calibration engine.
func (p *Pipeline) Calibration() *Engine {
	return p.calibration
}

// Direction returns the current stabilized head direction.
func (p *Pipeline) Direction() Direction {
	return p.stabilizer.Current()
}

// FinishCalibration completes the in-flight session. On success the new
// transform becomes active and the estimator is re-zeroed on the measured
// center offset.
func (p *Pipeline) FinishCalibration() (ScreenTransform, error) {
	transform, err := p.calibration.Finish(p.clock.Now())
	if err != nil {
		return transform, err
	}
	if result := p.calibration.LastResult(); result != nil {
		if x, y, ok := result.CenterOffset(); ok {
			p.estimator.SetCenterOffset(x, y)
		}
	}
	return transform, nil
}
