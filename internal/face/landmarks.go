// Package face converts per-frame facial landmark sets into discrete,
// debounced gameplay signals: confirmed blink events, a smoothed gaze
// vector, a stabilized cardinal head direction, and a gaze-to-screen
// calibration transform.
//
// The landmark provider is external (MediaPipe FaceMesh running in the
// hosting page); this package only consumes its per-frame output and never
// blocks. A missing face or missing landmark subset is a normal branch,
// not an error.
package face

import (
	"math"
	"time"
)

// MediaPipe FaceMesh landmark indices for the reference points used here.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	NoseTip       = 1
	Chin          = 152
	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	LeftEyeUpper  = 159
	LeftEyeLower  = 145
	RightEyeInner = 362
	RightEyeOuter = 263
	RightEyeUpper = 386
	RightEyeLower = 374
	MouthLeft     = 61
	MouthRight    = 291

	// MeshLandmarks is the fixed size of the face mesh proper.
	MeshLandmarks = 468

	// Iris sub-landmarks are appended after the mesh when the provider has
	// iris refinement enabled: five points per eye.
	LeftIrisStart  = 468
	RightIrisStart = 473
	IrisClusterLen = 5

	// TotalLandmarks is the mesh plus both iris clusters.
	TotalLandmarks = MeshLandmarks + 2*IrisClusterLen
)

// fullyOpenLidRatio is the eyelid-gap to eye-width ratio of a typical fully
// open eye. Gaps at or above this map to closure intensity 0.
const fullyOpenLidRatio = 0.28

// Point is a normalized 2D landmark position in [0,1] frame coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Midpoint returns the point halfway between p and q.
func Midpoint(p, q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Distance returns the Euclidean distance between p and q.
func Distance(p, q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// LandmarkFrame is one detection cycle's landmark set: an ordered sequence
// of normalized [0,1] points in FaceMesh layout. Frames are produced once
// per cycle by the provider and are read-only to this package; nothing here
// retains a frame past the cycle that delivered it.
type LandmarkFrame struct {
	Points    []Point   `json:"points"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// HasMesh reports whether the frame carries the full face mesh.
func (f *LandmarkFrame) HasMesh() bool {
	return f != nil && len(f.Points) >= MeshLandmarks
}

// HasIris reports whether the frame carries iris sub-landmarks.
func (f *LandmarkFrame) HasIris() bool {
	return f != nil && len(f.Points) >= TotalLandmarks
}

// At returns the landmark at index i, or false if the frame does not
// carry it.
func (f *LandmarkFrame) At(i int) (Point, bool) {
	if f == nil || i < 0 || i >= len(f.Points) {
		return Point{}, false
	}
	return f.Points[i], true
}

// IrisCentroid returns the centroid of the iris cluster starting at the
// given index (LeftIrisStart or RightIrisStart), or false if the frame
// has no iris landmarks.
func (f *LandmarkFrame) IrisCentroid(start int) (Point, bool) {
	if !f.HasIris() {
		return Point{}, false
	}
	var sum Point
	for i := start; i < start+IrisClusterLen; i++ {
		sum.X += f.Points[i].X
		sum.Y += f.Points[i].Y
	}
	return Point{X: sum.X / IrisClusterLen, Y: sum.Y / IrisClusterLen}, true
}

// ClosureIntensity estimates how closed the eyes are this frame as a scalar
// in [0,1]: 0 fully open, 1 fully closed. It is derived from the eyelid gap
// relative to eye width, averaged over both eyes. Returns 0 (open) when the
// frame lacks the required landmarks, matching the no-face branch of the
// blink detector.
func (f *LandmarkFrame) ClosureIntensity() float64 {
	if !f.HasMesh() {
		return 0
	}

	left := eyeClosure(f.Points[LeftEyeUpper], f.Points[LeftEyeLower],
		f.Points[LeftEyeOuter], f.Points[LeftEyeInner])
	right := eyeClosure(f.Points[RightEyeUpper], f.Points[RightEyeLower],
		f.Points[RightEyeInner], f.Points[RightEyeOuter])

	return (left + right) / 2
}

// eyeClosure maps one eye's lid gap to a closure scalar. A degenerate eye
// width (face edge-on or tracker glitch) reads as open.
func eyeClosure(upper, lower, cornerA, cornerB Point) float64 {
	width := Distance(cornerA, cornerB)
	if width < 1e-9 {
		return 0
	}
	gap := math.Abs(upper.Y-lower.Y) / width
	if gap >= fullyOpenLidRatio {
		return 0
	}
	return 1 - gap/fullyOpenLidRatio
}
