package framesource

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bloomsight/blinkbloom/internal/face"
)

// Max size of one fixture line. A full mesh with iris refinement is 478
// points, well under this.
const maxFixtureLine = 1 << 20

// ReplayConfig configures a fixture replay.
type ReplayConfig struct {
	Path     string        // JSONL fixture file, one LandmarkFrame per line
	Interval time.Duration // Pacing between frames; 0 emits as fast as consumed
	Loop     bool          // Restart from the top when the fixture ends
}

// ReplaySource replays a recorded landmark fixture file. The whole fixture
// is parsed up front so malformed input fails at open time, not mid-replay.
type ReplaySource struct {
	cfg    ReplayConfig
	loaded []*face.LandmarkFrame

	frames chan *face.LandmarkFrame
	done   chan struct{}
	once   sync.Once
}

// NewReplaySource opens and parses the fixture, then starts emitting frames.
func NewReplaySource(cfg ReplayConfig) (*ReplaySource, error) {
	loaded, err := loadFixture(cfg.Path)
	if err != nil {
		return nil, err
	}

	s := &ReplaySource{
		cfg:    cfg,
		loaded: loaded,
		frames: make(chan *face.LandmarkFrame),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Frames implements Source.
func (s *ReplaySource) Frames() <-chan *face.LandmarkFrame {
	return s.frames
}

// Close implements Source. Safe to call more than once.
func (s *ReplaySource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// FrameCount returns the number of frames the fixture holds.
func (s *ReplaySource) FrameCount() int {
	return len(s.loaded)
}

func (s *ReplaySource) run() {
	defer close(s.frames)

	for {
		for _, f := range s.loaded {
			if s.cfg.Interval > 0 {
				select {
				case <-time.After(s.cfg.Interval):
				case <-s.done:
					return
				}
			}
			select {
			case s.frames <- f:
			case <-s.done:
				return
			}
		}
		if !s.cfg.Loop {
			return
		}
	}
}

// loadFixture parses a JSONL fixture file. Blank lines are skipped; any
// malformed line is an error.
func loadFixture(path string) ([]*face.LandmarkFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	var frames []*face.LandmarkFrame
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFixtureLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var frame face.LandmarkFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return nil, fmt.Errorf("fixture %s line %d: %w", path, lineNo, err)
		}
		frames = append(frames, &frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("fixture %s contains no frames", path)
	}
	return frames, nil
}
