package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bloomsight/blinkbloom/internal/face"
	"github.com/bloomsight/blinkbloom/internal/facedb"
)

func testResult() *face.CalibrationResult {
	return &face.CalibrationResult{
		SessionID: "test-session",
		Transform: face.ScreenTransform{
			ScaleX: 2000, ScaleY: 1500,
			OffsetX: 640, OffsetY: 360,
			GazeMinX: -0.3, GazeMaxX: 0.3,
			GazeMinY: -0.2, GazeMaxY: 0.2,
			IsValid: true,
		},
		Groups: []face.PointGroup{
			{Name: face.PointCenter, GazeMeanX: 0, GazeMeanY: 0, ScreenX: 640, ScreenY: 360, SampleCount: 15},
			{Name: face.PointTop, GazeMeanX: 0, GazeMeanY: -0.17, ScreenX: 640, ScreenY: 72, SampleCount: 15},
			{Name: face.PointBottom, GazeMeanX: 0, GazeMeanY: 0.17, ScreenX: 640, ScreenY: 648, SampleCount: 15},
			{Name: face.PointLeft, GazeMeanX: -0.25, GazeMeanY: 0, ScreenX: 128, ScreenY: 360, SampleCount: 15},
			{Name: face.PointRight, GazeMeanX: 0.25, GazeMeanY: 0, ScreenX: 1152, ScreenY: 360, SampleCount: 15},
		},
		TotalSamples: 75,
		FinishedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCalibrationPlotterWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	cp := NewCalibrationPlotter(dir)

	files, err := cp.Plot(testResult())
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			t.Fatalf("missing plot file %s: %v", f, err)
		}
		if info.Size() == 0 {
			t.Fatalf("plot file %s is empty", f)
		}
	}
}

func TestCalibrationPlotterRejectsEmptyResult(t *testing.T) {
	cp := NewCalibrationPlotter(t.TempDir())

	if _, err := cp.Plot(nil); err == nil {
		t.Fatal("Plot(nil) should fail")
	}
	if _, err := cp.Plot(&face.CalibrationResult{}); err == nil {
		t.Fatal("Plot of empty result should fail")
	}
}

func TestMakePlotOutputDir(t *testing.T) {
	dir := MakePlotOutputDir("plots", "abc123")
	if !strings.HasPrefix(dir, filepath.Join("plots", "abc123")) {
		t.Fatalf("unexpected dir %q", dir)
	}
}

func TestSessionReportRenders(t *testing.T) {
	db, err := facedb.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	const sessionID = "report-session"
	if err := db.CreateSession(sessionID, start, false); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordBlink(sessionID, face.BlinkEvent{At: start, ClosedFrames: 3}); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordDirectionChange(sessionID, face.DirectionChangedEvent{
		From: face.Center, To: face.East, StabilityConfidence: 1, At: start,
	}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := db.RecordGaze(sessionID, face.GazeUpdate{
			ScreenX: float64(i) * 100, ScreenY: 360,
			At: start.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := NewReporter(db).WriteSessionReport(&buf, sessionID); err != nil {
		t.Fatalf("WriteSessionReport failed: %v", err)
	}

	html := buf.String()
	for _, want := range []string{"Gaze Trace", "Blinks", "Direction Changes", sessionID} {
		if !strings.Contains(html, want) {
			t.Fatalf("report missing %q", want)
		}
	}
}

func TestSessionReportUnknownSession(t *testing.T) {
	db, err := facedb.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := NewReporter(db).WriteSessionReport(&buf, "missing"); err == nil {
		t.Fatal("report for unknown session should fail")
	}
}
