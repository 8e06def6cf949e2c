package framesource

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

const threeFrames = `{"points":[{"x":0.1,"y":0.2}]}
{"points":[{"x":0.3,"y":0.4}]}

{"points":[{"x":0.5,"y":0.6}]}
`

func TestReplayEmitsAllFrames(t *testing.T) {
	path := writeFixture(t, threeFrames)

	s, err := NewReplaySource(ReplayConfig{Path: path})
	if err != nil {
		t.Fatalf("NewReplaySource failed: %v", err)
	}
	defer s.Close()

	if s.FrameCount() != 3 {
		t.Fatalf("FrameCount = %d, want 3 (blank line skipped)", s.FrameCount())
	}

	var xs []float64
	for f := range s.Frames() {
		xs = append(xs, f.Points[0].X)
	}
	if len(xs) != 3 || xs[0] != 0.1 || xs[2] != 0.5 {
		t.Fatalf("unexpected frames: %v", xs)
	}
}

func TestReplayLoopStopsOnClose(t *testing.T) {
	path := writeFixture(t, threeFrames)

	s, err := NewReplaySource(ReplayConfig{Path: path, Loop: true})
	if err != nil {
		t.Fatalf("NewReplaySource failed: %v", err)
	}

	// Read past one full pass to prove looping, then close.
	for i := 0; i < 7; i++ {
		if _, ok := <-s.Frames(); !ok {
			t.Fatalf("channel closed after %d frames while looping", i)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	// The channel drains and closes shortly after Close.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after Close")
		}
	}
}

func TestReplayRejectsMalformedFixture(t *testing.T) {
	path := writeFixture(t, "{\"points\":[{\"x\":0.1}]}\nnot json\n")

	if _, err := NewReplaySource(ReplayConfig{Path: path}); err == nil {
		t.Fatal("malformed fixture should fail at open")
	}
}

func TestReplayRejectsEmptyFixture(t *testing.T) {
	path := writeFixture(t, "\n\n")

	if _, err := NewReplaySource(ReplayConfig{Path: path}); err == nil {
		t.Fatal("empty fixture should fail at open")
	}
}

func TestReplayMissingFile(t *testing.T) {
	if _, err := NewReplaySource(ReplayConfig{Path: "/no/such/file.jsonl"}); err == nil {
		t.Fatal("missing fixture should fail")
	}
}

func TestReplayPacing(t *testing.T) {
	path := writeFixture(t, threeFrames)

	s, err := NewReplaySource(ReplayConfig{Path: path, Interval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewReplaySource failed: %v", err)
	}
	defer s.Close()

	start := time.Now()
	n := 0
	for range s.Frames() {
		n++
	}
	if n != 3 {
		t.Fatalf("got %d frames, want 3", n)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("replay finished in %v, pacing not applied", elapsed)
	}
}
