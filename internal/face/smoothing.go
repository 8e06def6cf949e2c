package face

import "time"

// SmoothedGaze is the rolling average of the gaze buffer. Confidence is
// never averaged: it is the most recent sample's confidence, which callers
// use for gating decisions.
type SmoothedGaze struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// GazeBuffer is a fixed-capacity FIFO of raw gaze samples; on overflow the
// oldest sample is dropped. Output is the arithmetic mean over the buffer.
type GazeBuffer struct {
	samples  []GazeSample
	capacity int
	head     int // next write position
	size     int
}

// NewGazeBuffer creates a gaze smoothing buffer with the given capacity.
func NewGazeBuffer(capacity int) *GazeBuffer {
	if capacity < 1 {
		capacity = 10 // default
	}
	return &GazeBuffer{
		samples:  make([]GazeSample, capacity),
		capacity: capacity,
	}
}

// Push adds a sample, dropping the oldest if at capacity, and returns the
// new smoothed value.
func (b *GazeBuffer) Push(s GazeSample) SmoothedGaze {
	b.samples[b.head] = s
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}

	var sumX, sumY float64
	for n := 1; n <= b.size; n++ {
		idx := (b.head - n + b.capacity) % b.capacity
		sumX += b.samples[idx].X
		sumY += b.samples[idx].Y
	}

	return SmoothedGaze{
		X:          sumX / float64(b.size),
		Y:          sumY / float64(b.size),
		Confidence: s.Confidence,
		At:         s.At,
	}
}

// Latest returns the most recently pushed sample.
func (b *GazeBuffer) Latest() (GazeSample, bool) {
	if b.size == 0 {
		return GazeSample{}, false
	}
	idx := (b.head - 1 + b.capacity) % b.capacity
	return b.samples[idx], true
}

// Len returns the number of samples currently buffered.
func (b *GazeBuffer) Len() int {
	return b.size
}
