// Package units provides shared screen-space types and conversions.
// Landmark and gaze coordinates are normalized [0,1] fractions; game
// consumers work in viewport pixels.
package units

// Default viewport dimensions (pixels) used when the hosting page has not
// reported its size yet.
const (
	DefaultViewportWidth  = 1280.0
	DefaultViewportHeight = 720.0
)

// Viewport describes the screen area gaze coordinates are mapped onto.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultViewport returns the fallback viewport.
func DefaultViewport() Viewport {
	return Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
}

// IsValid reports whether the viewport has positive dimensions.
func (v Viewport) IsValid() bool {
	return v.Width > 0 && v.Height > 0
}

// Center returns the pixel coordinates of the viewport center.
func (v Viewport) Center() (x, y float64) {
	return v.Width / 2, v.Height / 2
}

// ToPixels converts normalized [0,1] fractions to pixel coordinates.
func (v Viewport) ToPixels(nx, ny float64) (x, y float64) {
	return nx * v.Width, ny * v.Height
}

// ToNormalized converts pixel coordinates to [0,1] fractions.
// Returns (0, 0) for an invalid viewport.
func (v Viewport) ToNormalized(x, y float64) (nx, ny float64) {
	if !v.IsValid() {
		return 0, 0
	}
	return x / v.Width, y / v.Height
}

// ClampToViewport clips pixel coordinates to the viewport bounds.
func (v Viewport) ClampToViewport(x, y float64) (cx, cy float64) {
	return Clamp(x, 0, v.Width), Clamp(y, 0, v.Height)
}

// Clamp restricts value to the inclusive range [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
