package face

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/bloomsight/blinkbloom/internal/units"
)

// Calibration point names, in presentation order.
const (
	PointCenter = "center"
	PointTop    = "top"
	PointBottom = "bottom"
	PointLeft   = "left"
	PointRight  = "right"
)

// Calibration errors. Finish keeps the previous transform on any of them;
// the caller is expected to surface a retry prompt.
var (
	ErrCalibrationInactive = errors.New("no calibration session is active")
	ErrUnknownTarget       = errors.New("unknown calibration target")
	ErrInsufficientSamples = errors.New("insufficient calibration data")
	ErrInvalidTransform    = errors.New("calibration produced an invalid transform")
)

// CalibrationTarget is one named fixation target at a normalized [0,1]
// screen fraction. The engine exposes targets for an external renderer to
// display; it renders nothing itself.
type CalibrationTarget struct {
	Name   string `json:"name"`
	Screen Point  `json:"screen"`
}

// CalibrationTargets returns the ordered five-point target sequence.
func CalibrationTargets() []CalibrationTarget {
	return []CalibrationTarget{
		{Name: PointCenter, Screen: Point{X: 0.5, Y: 0.5}},
		{Name: PointTop, Screen: Point{X: 0.5, Y: 0.1}},
		{Name: PointBottom, Screen: Point{X: 0.5, Y: 0.9}},
		{Name: PointLeft, Screen: Point{X: 0.1, Y: 0.5}},
		{Name: PointRight, Screen: Point{X: 0.9, Y: 0.5}},
	}
}

// ScreenTransform maps raw gaze coordinates to screen pixels with a
// per-axis affine fit. It is the only calibration state that outlives a
// session. IsValid must hold before the transform is applied; callers fall
// back to the default proportional mapping otherwise.
type ScreenTransform struct {
	ScaleX  float64 `json:"scale_x"`
	ScaleY  float64 `json:"scale_y"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`

	// Accepted gaze range per axis, widened from the observed sample range.
	// Apply clamps incoming gaze to this range before mapping.
	GazeMinX float64 `json:"gaze_min_x"`
	GazeMaxX float64 `json:"gaze_max_x"`
	GazeMinY float64 `json:"gaze_min_y"`
	GazeMaxY float64 `json:"gaze_max_y"`

	IsValid bool `json:"is_valid"`
}

// Apply converts a gaze coordinate to screen pixels.
func (t ScreenTransform) Apply(gazeX, gazeY float64) (screenX, screenY float64) {
	if t.GazeMaxX > t.GazeMinX {
		gazeX = units.Clamp(gazeX, t.GazeMinX, t.GazeMaxX)
	}
	if t.GazeMaxY > t.GazeMinY {
		gazeY = units.Clamp(gazeY, t.GazeMinY, t.GazeMaxY)
	}
	return t.ScaleX*gazeX + t.OffsetX, t.ScaleY*gazeY + t.OffsetY
}

// DefaultTransform returns the fallback proportional mapping for a
// viewport: gaze 0 maps to the screen center, a full-range gaze excursion
// sweeps the viewport. IsValid stays false to mark it as uncalibrated.
func DefaultTransform(vp units.Viewport) ScreenTransform {
	cx, cy := vp.Center()
	return ScreenTransform{
		ScaleX:  vp.Width,
		ScaleY:  vp.Height,
		OffsetX: cx,
		OffsetY: cy,
	}
}

// PointGroup is the per-target aggregate the regression works from.
type PointGroup struct {
	Name        string  `json:"name"`
	GazeMeanX   float64 `json:"gaze_mean_x"`
	GazeMeanY   float64 `json:"gaze_mean_y"`
	ScreenX     float64 `json:"screen_x"` // target position in pixels
	ScreenY     float64 `json:"screen_y"`
	SampleCount int     `json:"sample_count"`
}

// CalibrationResult archives a finished regression for review surfaces.
type CalibrationResult struct {
	SessionID    string          `json:"session_id"`
	Transform    ScreenTransform `json:"transform"`
	Groups       []PointGroup    `json:"groups"`
	TotalSamples int             `json:"total_samples"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// CenterOffset returns the mean raw gaze at the center target, used by the
// estimator to re-zero subsequent gaze vectors.
func (r *CalibrationResult) CenterOffset() (x, y float64, ok bool) {
	for _, g := range r.Groups {
		if g.Name == PointCenter {
			return g.GazeMeanX, g.GazeMeanY, true
		}
	}
	return 0, 0, false
}

// EngineConfig holds tuning parameters for the calibration engine.
type EngineConfig struct {
	MinPointGroups        int     // Valid point groups required to attempt regression
	MinTotalSamples       int     // Total samples required to attempt regression
	MinScale              float64 // Per-axis |scale| lower bound
	MaxScale              float64 // Per-axis |scale| upper bound
	RangeWideningFraction float64 // Post-fit widening of the accepted gaze range
	Viewport              units.Viewport
}

// DefaultEngineConfig returns default calibration engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinPointGroups:        3,
		MinTotalSamples:       10,
		MinScale:              0.1,
		MaxScale:              50000,
		RangeWideningFraction: 0.25,
		Viewport:              units.DefaultViewport(),
	}
}

// calibrationSession holds in-flight sample collection. Created by Start,
// destroyed by Finish or Cancel.
type calibrationSession struct {
	id        string
	samples   map[string][]GazeSample
	startedAt time.Time
}

// Engine runs interactive five-point calibration: it collects tagged gaze
// samples per target and fits a per-axis affine gaze-to-screen transform by
// least squares. A newly computed transform replaces the active one only if
// it passes validation; otherwise the previous (or default) transform
// remains active.
type Engine struct {
	cfg EngineConfig

	session *calibrationSession
	active  ScreenTransform
	last    *CalibrationResult
}

// NewEngine creates a calibration engine. Until a calibration succeeds, the
// active transform is invalid and ToScreen uses the default proportional
// mapping.
func NewEngine(cfg EngineConfig) *Engine {
	if !cfg.Viewport.IsValid() {
		cfg.Viewport = units.DefaultViewport()
	}
	if cfg.MinPointGroups < 1 {
		cfg.MinPointGroups = 3
	}
	if cfg.MinTotalSamples < 1 {
		cfg.MinTotalSamples = 10
	}
	return &Engine{cfg: cfg}
}

// Start begins a new calibration session, discarding any in-flight one.
// The active transform is untouched until Finish succeeds.
func (e *Engine) Start(now time.Time) {
	e.session = &calibrationSession{
		id:        uuid.NewString(),
		samples:   make(map[string][]GazeSample),
		startedAt: now,
	}
}

// IsActive reports whether a calibration session is collecting samples.
func (e *Engine) IsActive() bool {
	return e.session != nil
}

// SessionID returns the in-flight session id, or "" when inactive.
func (e *Engine) SessionID() string {
	if e.session == nil {
		return ""
	}
	return e.session.id
}

// RecordPointSamples appends gaze samples collected while the player
// fixated the named target.
func (e *Engine) RecordPointSamples(name string, samples []GazeSample) error {
	if e.session == nil {
		return ErrCalibrationInactive
	}
	if !knownTarget(name) {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	e.session.samples[name] = append(e.session.samples[name], samples...)
	return nil
}

// Cancel discards all collected samples and leaves the active transform
// untouched. Safe to call at any point in the sequence; calling it twice
// is a no-op the second time.
func (e *Engine) Cancel() {
	e.session = nil
}

// Finish runs the regression over the collected samples. On success the
// returned transform becomes active; on any error the previous transform is
// retained. The session is destroyed either way.
func (e *Engine) Finish(now time.Time) (ScreenTransform, error) {
	if e.session == nil {
		return e.active, ErrCalibrationInactive
	}
	session := e.session
	e.session = nil

	groups, total := buildGroups(session.samples, e.cfg.Viewport)
	if len(groups) < e.cfg.MinPointGroups || total < e.cfg.MinTotalSamples {
		return e.active, fmt.Errorf("%w: %d point groups, %d samples (need %d groups, %d samples)",
			ErrInsufficientSamples, len(groups), total, e.cfg.MinPointGroups, e.cfg.MinTotalSamples)
	}

	transform := e.regress(groups, session.samples)
	if err := e.validate(transform); err != nil {
		return e.active, err
	}

	transform.IsValid = true
	e.active = transform
	e.last = &CalibrationResult{
		SessionID:    session.id,
		Transform:    transform,
		Groups:       groups,
		TotalSamples: total,
		FinishedAt:   now,
	}
	return transform, nil
}

// Active returns the current transform; IsValid is false until a
// calibration has succeeded.
func (e *Engine) Active() ScreenTransform {
	return e.active
}

// LastResult returns the archived result of the most recent successful
// calibration, or nil.
func (e *Engine) LastResult() *CalibrationResult {
	return e.last
}

// ToScreen maps a gaze coordinate to screen pixels through the active
// transform, falling back to the default proportional mapping while
// uncalibrated. Output is clamped to the viewport.
func (e *Engine) ToScreen(gazeX, gazeY float64) (screenX, screenY float64) {
	t := e.active
	if !t.IsValid {
		t = DefaultTransform(e.cfg.Viewport)
	}
	x, y := t.Apply(gazeX, gazeY)
	return e.cfg.Viewport.ClampToViewport(x, y)
}

// Viewport returns the viewport the engine maps onto.
func (e *Engine) Viewport() units.Viewport {
	return e.cfg.Viewport
}

// regress fits per-axis scale and offset by least squares over the
// per-point means: scale = cov(gaze, screen) / var(gaze), offset =
// meanScreen - scale * meanGaze. Near-zero gaze variance falls back to the
// default proportional scale for that axis.
func (e *Engine) regress(groups []PointGroup, samples map[string][]GazeSample) ScreenTransform {
	const minVariance = 1e-12

	gx := make([]float64, len(groups))
	gy := make([]float64, len(groups))
	sx := make([]float64, len(groups))
	sy := make([]float64, len(groups))
	for i, g := range groups {
		gx[i] = g.GazeMeanX
		gy[i] = g.GazeMeanY
		sx[i] = g.ScreenX
		sy[i] = g.ScreenY
	}

	meanGX := stat.Mean(gx, nil)
	meanGY := stat.Mean(gy, nil)
	meanSX := stat.Mean(sx, nil)
	meanSY := stat.Mean(sy, nil)

	scaleX := e.cfg.Viewport.Width
	if v := stat.Variance(gx, nil); v > minVariance {
		scaleX = stat.Covariance(gx, sx, nil) / v
	}
	scaleY := e.cfg.Viewport.Height
	if v := stat.Variance(gy, nil); v > minVariance {
		scaleY = stat.Covariance(gy, sy, nil) / v
	}

	t := ScreenTransform{
		ScaleX:  scaleX,
		ScaleY:  scaleY,
		OffsetX: meanSX - scaleX*meanGX,
		OffsetY: meanSY - scaleY*meanGY,
	}
	t.GazeMinX, t.GazeMaxX, t.GazeMinY, t.GazeMaxY = widenedRange(samples, e.cfg.RangeWideningFraction)
	return t
}

// validate enforces the acceptance bounds on a freshly fitted transform.
func (e *Engine) validate(t ScreenTransform) error {
	for _, v := range []float64{t.ScaleX, t.ScaleY, t.OffsetX, t.OffsetY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidTransform)
		}
	}
	for _, s := range []float64{t.ScaleX, t.ScaleY} {
		if abs := math.Abs(s); abs < e.cfg.MinScale || abs > e.cfg.MaxScale {
			return fmt.Errorf("%w: scale %.4g outside [%.4g, %.4g]",
				ErrInvalidTransform, s, e.cfg.MinScale, e.cfg.MaxScale)
		}
	}
	return nil
}

// buildGroups averages samples per target, keeping only targets that
// collected at least one sample, in canonical target order.
func buildGroups(samples map[string][]GazeSample, vp units.Viewport) ([]PointGroup, int) {
	var groups []PointGroup
	total := 0
	for _, target := range CalibrationTargets() {
		pts := samples[target.Name]
		if len(pts) == 0 {
			continue
		}
		var sumX, sumY float64
		for _, s := range pts {
			sumX += s.X
			sumY += s.Y
		}
		px, py := vp.ToPixels(target.Screen.X, target.Screen.Y)
		groups = append(groups, PointGroup{
			Name:        target.Name,
			GazeMeanX:   sumX / float64(len(pts)),
			GazeMeanY:   sumY / float64(len(pts)),
			ScreenX:     px,
			ScreenY:     py,
			SampleCount: len(pts),
		})
		total += len(pts)
	}
	return groups, total
}

// widenedRange returns the observed gaze range across all samples, widened
// by the configured fraction of the range on each side.
func widenedRange(samples map[string][]GazeSample, fraction float64) (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, pts := range samples {
		for _, s := range pts {
			minX = math.Min(minX, s.X)
			maxX = math.Max(maxX, s.X)
			minY = math.Min(minY, s.Y)
			maxY = math.Max(maxY, s.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return 0, 0, 0, 0
	}
	padX := (maxX - minX) * fraction
	padY := (maxY - minY) * fraction
	return minX - padX, maxX + padX, minY - padY, maxY + padY
}

func knownTarget(name string) bool {
	for _, t := range CalibrationTargets() {
		if t.Name == name {
			return true
		}
	}
	return false
}
