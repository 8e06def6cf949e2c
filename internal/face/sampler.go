package face

import "time"

// SamplerConfig holds tuning parameters for calibration sample collection.
type SamplerConfig struct {
	SamplesPerPoint int           // Samples collected per fixation target
	Interval        time.Duration // Spacing between samples
}

// DefaultSamplerConfig returns default sampler configuration.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		SamplesPerPoint: 15,
		Interval:        100 * time.Millisecond,
	}
}

// SamplerProgress describes where the sampler is in the target sequence,
// for the external renderer driving the fixation UI.
type SamplerProgress struct {
	Active      bool              `json:"active"`
	Target      CalibrationTarget `json:"target"`
	TargetIndex int               `json:"target_index"`
	TargetCount int               `json:"target_count"`
	Collected   int               `json:"collected"`
	PerPoint    int               `json:"per_point"`
	Complete    bool              `json:"complete"`
}

// Sampler walks the calibration target sequence, reading the most recently
// produced smoothed gaze on each tick and handing completed point batches
// to the engine. It runs cooperatively on the same loop as frame
// processing: Tick is called from the loop's timer, after the per-frame
// update for that tick has completed, so there is nothing to race with.
type Sampler struct {
	cfg    SamplerConfig
	engine *Engine

	targets   []CalibrationTarget
	idx       int
	collected []GazeSample
	lastTake  time.Time
	active    bool
	complete  bool
}

// NewSampler creates a sampler feeding the given engine.
func NewSampler(engine *Engine, cfg SamplerConfig) *Sampler {
	if cfg.SamplesPerPoint < 1 {
		cfg.SamplesPerPoint = 15
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &Sampler{cfg: cfg, engine: engine, targets: CalibrationTargets()}
}

// Begin starts a calibration session and positions the sampler at the
// first target.
func (s *Sampler) Begin(now time.Time) {
	s.engine.Start(now)
	s.idx = 0
	s.collected = s.collected[:0]
	s.lastTake = time.Time{}
	s.active = true
	s.complete = false
}

// Stop halts the target walk without touching the engine session. Used when
// the caller finishes the session itself with the samples collected so far.
func (s *Sampler) Stop() {
	s.active = false
	s.collected = s.collected[:0]
}

// Cancel abandons collection and the underlying session. Idempotent.
func (s *Sampler) Cancel() {
	if !s.active && !s.engine.IsActive() {
		return
	}
	s.engine.Cancel()
	s.active = false
	s.complete = false
	s.collected = s.collected[:0]
}

// Tick consumes the latest smoothed gaze value, if available. It records
// at most one sample per configured interval, advances to the next target
// when the current one has enough samples, and reports true once all
// targets are collected and the session is ready to Finish.
func (s *Sampler) Tick(now time.Time, gaze SmoothedGaze, ok bool) bool {
	if !s.active || s.complete {
		return s.complete
	}
	if !ok {
		return false
	}
	if !s.lastTake.IsZero() && now.Sub(s.lastTake) < s.cfg.Interval {
		return false
	}

	s.lastTake = now
	s.collected = append(s.collected, GazeSample{
		X:          gaze.X,
		Y:          gaze.Y,
		Confidence: gaze.Confidence,
		At:         now,
	})

	if len(s.collected) < s.cfg.SamplesPerPoint {
		return false
	}

	// Batch complete for the current target.
	target := s.targets[s.idx]
	if err := s.engine.RecordPointSamples(target.Name, s.collected); err != nil {
		// Session was cancelled out from under us; stop collecting.
		s.active = false
		s.collected = s.collected[:0]
		return false
	}
	s.collected = s.collected[:0]
	s.idx++

	if s.idx >= len(s.targets) {
		s.complete = true
		s.active = false
	}
	return s.complete
}

// Progress reports the sampler's position in the sequence.
func (s *Sampler) Progress() SamplerProgress {
	p := SamplerProgress{
		Active:      s.active,
		TargetIndex: s.idx,
		TargetCount: len(s.targets),
		Collected:   len(s.collected),
		PerPoint:    s.cfg.SamplesPerPoint,
		Complete:    s.complete,
	}
	if s.idx < len(s.targets) {
		p.Target = s.targets[s.idx]
	}
	return p
}
