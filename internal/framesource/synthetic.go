package framesource

import (
	"math"
	"math/rand"
	"time"

	"github.com/bloomsight/blinkbloom/internal/face"
)

// Synthetic scenario script, in frames at the nominal 30fps detection rate.
const (
	blinkPeriod   = 90 // one blink every three seconds
	blinkLength   = 3
	tiltPeriod    = 300 // one head tilt every ten seconds
	tiltLength    = 45
	gazeSweepSecs = 8.0 // full left-right gaze sweep
)

// SyntheticGenerator produces a deterministic, plausible landmark stream for
// development and fixtures: a neutral face with periodic blinks, a slow gaze
// sweep, periodic head tilts, and a little positional noise.
type SyntheticGenerator struct {
	frame int
	fps   float64
	start time.Time
	rng   *rand.Rand
}

// NewSyntheticGenerator creates a generator. The same seed reproduces the
// same stream.
func NewSyntheticGenerator(seed int64, fps float64, start time.Time) *SyntheticGenerator {
	if fps <= 0 {
		fps = 30
	}
	return &SyntheticGenerator{
		fps:   fps,
		start: start,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// NextFrame returns the next frame in the scripted scenario.
func (g *SyntheticGenerator) NextFrame() *face.LandmarkFrame {
	idx := g.frame
	g.frame++

	t := float64(idx) / g.fps

	pts := make([]face.Point, face.TotalLandmarks)
	for i := range pts {
		pts[i] = face.Point{X: 0.5, Y: 0.5}
	}

	noise := func() float64 { return (g.rng.Float64() - 0.5) * 0.002 }

	// Eye corners, nominal face geometry.
	pts[face.LeftEyeOuter] = face.Point{X: 0.35 + noise(), Y: 0.5 + noise()}
	pts[face.LeftEyeInner] = face.Point{X: 0.45 + noise(), Y: 0.5 + noise()}
	pts[face.RightEyeInner] = face.Point{X: 0.55 + noise(), Y: 0.5 + noise()}
	pts[face.RightEyeOuter] = face.Point{X: 0.65 + noise(), Y: 0.5 + noise()}
	pts[face.NoseTip] = face.Point{X: 0.5 + noise(), Y: 0.5 + noise()}

	// Head tilt episode: roll the eye line.
	if phase := idx % tiltPeriod; phase < tiltLength && idx >= tiltPeriod {
		tilt := 0.008
		if (idx/tiltPeriod)%2 == 0 {
			tilt = -tilt
		}
		pts[face.RightEyeInner].Y += tilt / 2
		pts[face.RightEyeOuter].Y += tilt
		pts[face.LeftEyeOuter].Y -= tilt
		pts[face.LeftEyeInner].Y -= tilt / 2
	}

	// Eyelids: open gap unless mid-blink.
	gap := 0.03
	if idx%blinkPeriod < blinkLength && idx >= blinkPeriod {
		gap = 0.0
	}
	pts[face.LeftEyeUpper] = face.Point{X: 0.40, Y: 0.5 - gap/2}
	pts[face.LeftEyeLower] = face.Point{X: 0.40, Y: 0.5 + gap/2}
	pts[face.RightEyeUpper] = face.Point{X: 0.60, Y: 0.5 - gap/2}
	pts[face.RightEyeLower] = face.Point{X: 0.60, Y: 0.5 + gap/2}

	// Gaze: iris clusters sweep slowly left to right and back.
	sweep := 0.012 * math.Sin(2*math.Pi*t/gazeSweepSecs)
	for i := 0; i < face.IrisClusterLen; i++ {
		pts[face.LeftIrisStart+i] = face.Point{X: 0.40 + sweep, Y: 0.5}
		pts[face.RightIrisStart+i] = face.Point{X: 0.60 + sweep, Y: 0.5}
	}

	frame := &face.LandmarkFrame{Points: pts}
	if !g.start.IsZero() {
		frame.Timestamp = g.start.Add(time.Duration(float64(idx) / g.fps * float64(time.Second)))
	}
	return frame
}
