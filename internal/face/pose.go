package face

import (
	"math"
	"time"

	"github.com/bloomsight/blinkbloom/internal/units"
)

// Confidence assigned to a pupil position by its source. A full iris
// cluster is trusted; the eye-corner midpoint fallback is a coarse proxy.
const (
	irisConfidence    = 1.0
	cornerConfidence  = 0.3
	minGazeConfidence = 0.1
	maxGazeConfidence = 1.0
	minFaceWidth      = 1e-6
	frameCenterX      = 0.5
	frameCenterY      = 0.5
)

// HeadPose holds per-frame head orientation proxies. Pitch and roll are
// dimensionless tilt ratios, not true angles; they rank directional
// magnitude but carry no metric meaning. Recomputed fully each frame.
type HeadPose struct {
	Pitch        float64 `json:"pitch"`
	Yaw          float64 `json:"yaw"`
	Roll         float64 `json:"roll"`
	TranslationX float64 `json:"translation_x"`
	TranslationY float64 `json:"translation_y"`
}

// GazeSample is one raw gaze reading. Immutable once produced.
type GazeSample struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// EstimatorConfig holds tuning parameters for the pose and gaze estimator.
type EstimatorConfig struct {
	SensitivityX           float64 // Per-axis gaze range amplification
	SensitivityY           float64
	HeadCorrectionGain     float64 // Fraction of nose displacement subtracted from gaze
	ExpectedInterpupillary float64 // Expected pupil separation as fraction of frame width
}

// DefaultEstimatorConfig returns default estimator configuration.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		SensitivityX:           2.0,
		SensitivityY:           2.0,
		HeadCorrectionGain:     0.5,
		ExpectedInterpupillary: 0.15,
	}
}

// Estimator turns landmark positions into a head pose estimate and a raw
// gaze vector. It is a pure per-frame geometric computation: no temporal
// smoothing, no debouncing. Those live downstream in the smoothing buffer
// and the direction stabilizer.
type Estimator struct {
	cfg EstimatorConfig

	// Active calibration center offset, subtracted from raw gaze.
	centerOffsetX float64
	centerOffsetY float64
	hasOffset     bool
}

// NewEstimator creates an estimator with the given configuration.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	if cfg.SensitivityX == 0 {
		cfg.SensitivityX = 2.0
	}
	if cfg.SensitivityY == 0 {
		cfg.SensitivityY = 2.0
	}
	if cfg.ExpectedInterpupillary <= 0 {
		cfg.ExpectedInterpupillary = 0.15
	}
	return &Estimator{cfg: cfg}
}

// SetCenterOffset installs the calibration center offset applied to all
// subsequent raw gaze vectors.
func (e *Estimator) SetCenterOffset(x, y float64) {
	e.centerOffsetX = x
	e.centerOffsetY = y
	e.hasOffset = true
}

// ClearCenterOffset removes any active center offset.
func (e *Estimator) ClearCenterOffset() {
	e.centerOffsetX = 0
	e.centerOffsetY = 0
	e.hasOffset = false
}

// Estimate computes head pose proxies and a raw gaze vector from one frame.
// Returns false when required landmarks are absent; the caller treats that
// as the no-face branch, never as an error.
func (e *Estimator) Estimate(frame *LandmarkFrame, now time.Time) (HeadPose, GazeSample, bool) {
	if !frame.HasMesh() {
		return HeadPose{}, GazeSample{}, false
	}

	nose := frame.Points[NoseTip]
	leftCorner := frame.Points[LeftEyeOuter]
	rightCorner := frame.Points[RightEyeOuter]

	faceWidth := math.Abs(rightCorner.X - leftCorner.X)
	if faceWidth < minFaceWidth {
		return HeadPose{}, GazeSample{}, false
	}

	faceCenterX := (leftCorner.X + rightCorner.X) / 2

	pose := HeadPose{
		Roll:         (rightCorner.Y - leftCorner.Y) / faceWidth,
		Pitch:        nose.Y - frameCenterY, // frame height is 1 in normalized coords
		Yaw:          (nose.X - faceCenterX) / faceWidth,
		TranslationX: nose.X - frameCenterX,
		TranslationY: nose.Y - frameCenterY,
	}

	leftPupil, leftConf := e.pupil(frame, LeftIrisStart, LeftEyeOuter, LeftEyeInner)
	rightPupil, rightConf := e.pupil(frame, RightIrisStart, RightEyeInner, RightEyeOuter)

	leftCenter := Midpoint(frame.Points[LeftEyeOuter], frame.Points[LeftEyeInner])
	rightCenter := Midpoint(frame.Points[RightEyeInner], frame.Points[RightEyeOuter])

	leftGazeX, leftGazeY := e.eyeGaze(leftPupil, leftCenter, pose)
	rightGazeX, rightGazeY := e.eyeGaze(rightPupil, rightCenter, pose)

	gazeX := (leftGazeX + rightGazeX) / 2
	gazeY := (leftGazeY + rightGazeY) / 2

	if e.hasOffset {
		gazeX -= e.centerOffsetX
		gazeY -= e.centerOffsetY
	}

	// Confidence: interpupillary distance relative to the expected
	// baseline, damped by the pupil source quality.
	ipd := Distance(leftPupil, rightPupil)
	ratio := ipd / e.cfg.ExpectedInterpupillary
	sourceConf := math.Min(leftConf, rightConf)
	confidence := units.Clamp(ratio*sourceConf, minGazeConfidence, maxGazeConfidence)

	sample := GazeSample{X: gazeX, Y: gazeY, Confidence: confidence, At: now}
	return pose, sample, true
}

// pupil locates one eye's pupil: iris cluster centroid when available,
// eye-corner midpoint otherwise with reduced confidence.
func (e *Estimator) pupil(frame *LandmarkFrame, irisStart, cornerA, cornerB int) (Point, float64) {
	if c, ok := frame.IrisCentroid(irisStart); ok {
		return c, irisConfidence
	}
	return Midpoint(frame.Points[cornerA], frame.Points[cornerB]), cornerConfidence
}

// eyeGaze computes one eye's gaze vector: pupil offset from eye center,
// amplified per axis, with a head-translation correction subtracted so
// moving the whole head reads less like moving the eyes.
func (e *Estimator) eyeGaze(pupil, eyeCenter Point, pose HeadPose) (x, y float64) {
	x = (pupil.X-eyeCenter.X)*e.cfg.SensitivityX - pose.TranslationX*e.cfg.HeadCorrectionGain
	y = (pupil.Y-eyeCenter.Y)*e.cfg.SensitivityY - pose.TranslationY*e.cfg.HeadCorrectionGain
	return x, y
}
