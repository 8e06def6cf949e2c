// Package monitor provides debugging surfaces for the signal pipeline:
// calibration fit plots as PNG files and per-session HTML reports.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/bloomsight/blinkbloom/internal/face"
)

// CalibrationPlotter writes diagnostic plots for a finished calibration.
// One call produces two files under the output directory: the gaze-space
// point means per target, and the screen-space fit (targets as crosses,
// mapped means as circles).
type CalibrationPlotter struct {
	outputDir string
}

// NewCalibrationPlotter creates a plotter writing into outputDir. The
// directory is created on the first Plot call.
func NewCalibrationPlotter(outputDir string) *CalibrationPlotter {
	return &CalibrationPlotter{outputDir: outputDir}
}

// Plot renders both plots for the given result and returns the written file
// paths.
func (cp *CalibrationPlotter) Plot(result *face.CalibrationResult) ([]string, error) {
	if result == nil || len(result.Groups) == 0 {
		return nil, fmt.Errorf("no calibration result to plot")
	}
	if err := os.MkdirAll(cp.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	gazeFile := filepath.Join(cp.outputDir, fmt.Sprintf("calibration_%s_gaze.png", result.SessionID))
	if err := cp.plotGazeSpace(result, gazeFile); err != nil {
		return nil, err
	}

	fitFile := filepath.Join(cp.outputDir, fmt.Sprintf("calibration_%s_fit.png", result.SessionID))
	if err := cp.plotScreenFit(result, fitFile); err != nil {
		return []string{gazeFile}, err
	}

	return []string{gazeFile, fitFile}, nil
}

// plotGazeSpace draws the per-target mean gaze positions in raw gaze
// coordinates, one color per target.
func (cp *CalibrationPlotter) plotGazeSpace(result *face.CalibrationResult, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Calibration %s - Gaze Space", result.SessionID)
	p.X.Label.Text = "Gaze X"
	p.Y.Label.Text = "Gaze Y"

	colors := targetColors(len(result.Groups))
	for i, g := range result.Groups {
		pts := plotter.XYs{{X: g.GazeMeanX, Y: g.GazeMeanY}}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = colors[i]
		scatter.GlyphStyle.Radius = vg.Points(4)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%s (n=%d)", g.Name, g.SampleCount), scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save gaze plot: %w", err)
	}
	return nil
}

// plotScreenFit draws the target pixel positions against the positions the
// fitted transform maps each target's mean gaze to. A perfect fit lands each
// circle on its cross.
func (cp *CalibrationPlotter) plotScreenFit(result *face.CalibrationResult, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Calibration %s - Screen Fit", result.SessionID)
	p.X.Label.Text = "Screen X (px)"
	p.Y.Label.Text = "Screen Y (px)"
	// Screen y grows downward.
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	targetPts := make(plotter.XYs, 0, len(result.Groups))
	mappedPts := make(plotter.XYs, 0, len(result.Groups))
	for _, g := range result.Groups {
		targetPts = append(targetPts, plotter.XY{X: g.ScreenX, Y: g.ScreenY})
		mx, my := result.Transform.Apply(g.GazeMeanX, g.GazeMeanY)
		mappedPts = append(mappedPts, plotter.XY{X: mx, Y: my})
	}

	targets, err := plotter.NewScatter(targetPts)
	if err != nil {
		return err
	}
	targets.GlyphStyle.Shape = draw.CrossGlyph{}
	targets.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
	targets.GlyphStyle.Radius = vg.Points(6)
	p.Add(targets)
	p.Legend.Add("target", targets)

	mapped, err := plotter.NewScatter(mappedPts)
	if err != nil {
		return err
	}
	mapped.GlyphStyle.Color = color.RGBA{B: 200, A: 255}
	mapped.GlyphStyle.Radius = vg.Points(4)
	p.Add(mapped)
	p.Legend.Add("mapped gaze", mapped)

	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save fit plot: %w", err)
	}
	return nil
}

// targetColors creates a palette of distinct colors, one per target.
func targetColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// MakePlotOutputDir returns a timestamped output directory for one
// calibration run: <baseDir>/<sessionID>/<timestamp>.
func MakePlotOutputDir(baseDir, sessionID string) string {
	ts := time.Now().Format("20060102_150405")
	return filepath.Join(baseDir, sessionID, ts)
}
