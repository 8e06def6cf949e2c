package face

import (
	"math"
	"time"
)

// Direction is a cardinal head direction derived from head tilt.
type Direction string

const (
	North  Direction = "north"  // Looking up
	South  Direction = "south"  // Looking down
	East   Direction = "east"   // Head tilted right
	West   Direction = "west"   // Head tilted left
	Center Direction = "center" // Neutral
)

// DirectionChangedEvent fires when the stabilized direction changes.
type DirectionChangedEvent struct {
	From Direction `json:"from"`
	To   Direction `json:"to"`
	// StabilityConfidence is the fraction of the history window agreeing
	// with the new direction at the moment the change fired.
	StabilityConfidence float64   `json:"stability_confidence"`
	At                  time.Time `json:"at"`
}

// StabilizerConfig holds tuning parameters for direction classification
// and debouncing.
type StabilizerConfig struct {
	RollThreshold      float64 // Roll proxy magnitude for East/West
	PitchThreshold     float64 // Pitch proxy magnitude for North/South
	StabilityThreshold int     // Consecutive identical classifications to confirm a change
}

// DefaultStabilizerConfig returns default stabilizer configuration.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		RollThreshold:      0.015,
		PitchThreshold:     0.1,
		StabilityThreshold: 3,
	}
}

// Stabilizer turns continuous, noisy head-pose proxies into a debounced
// cardinal direction. Per-frame classifications are pushed into a fixed
// history (capacity 2x the stability threshold, oldest dropped on insert);
// a change event fires only when the most recent threshold entries all
// agree on a value different from the current direction. A single outlier
// frame can never toggle game mechanics.
type Stabilizer struct {
	cfg StabilizerConfig

	current Direction
	recent  []Direction
	head    int
	size    int
}

// NewStabilizer creates a stabilizer starting at Center.
func NewStabilizer(cfg StabilizerConfig) *Stabilizer {
	if cfg.StabilityThreshold < 1 {
		cfg.StabilityThreshold = 1
	}
	return &Stabilizer{
		cfg:     cfg,
		current: Center,
		recent:  make([]Direction, 2*cfg.StabilityThreshold),
	}
}

// Classify maps head pose proxies to a cardinal direction. The dominant
// axis wins; ties favor roll.
func (s *Stabilizer) Classify(pose HeadPose) Direction {
	if math.Abs(pose.Roll) >= math.Abs(pose.Pitch) {
		switch {
		case pose.Roll > s.cfg.RollThreshold:
			return East
		case pose.Roll < -s.cfg.RollThreshold:
			return West
		default:
			return Center
		}
	}
	switch {
	case pose.Pitch < -s.cfg.PitchThreshold:
		return North // nose above frame center: looking up
	case pose.Pitch > s.cfg.PitchThreshold:
		return South
	default:
		return Center
	}
}

// Update pushes one per-frame classification into the history and reports
// whether the stabilized direction changed on this frame.
func (s *Stabilizer) Update(dir Direction, now time.Time) (DirectionChangedEvent, bool) {
	s.recent[s.head] = dir
	s.head = (s.head + 1) % len(s.recent)
	if s.size < len(s.recent) {
		s.size++
	}

	if dir == s.current || s.size < s.cfg.StabilityThreshold {
		return DirectionChangedEvent{}, false
	}

	// The last StabilityThreshold entries must all equal the candidate.
	for n := 1; n <= s.cfg.StabilityThreshold; n++ {
		idx := (s.head - n + len(s.recent)) % len(s.recent)
		if s.recent[idx] != dir {
			return DirectionChangedEvent{}, false
		}
	}

	agree := 0
	for n := 1; n <= s.size; n++ {
		idx := (s.head - n + len(s.recent)) % len(s.recent)
		if s.recent[idx] == dir {
			agree++
		}
	}

	ev := DirectionChangedEvent{
		From:                s.current,
		To:                  dir,
		StabilityConfidence: float64(agree) / float64(s.size),
		At:                  now,
	}
	s.current = dir
	return ev, true
}

// Current returns the stabilized direction.
func (s *Stabilizer) Current() Direction {
	return s.current
}
