package face

import (
	"math"
	"testing"
	"time"
)

func gazeAt(x, y, conf float64) GazeSample {
	return GazeSample{X: x, Y: y, Confidence: conf, At: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestSmoothingMeanOverPartialBuffer(t *testing.T) {
	b := NewGazeBuffer(10)

	b.Push(gazeAt(1, 2, 0.9))
	got := b.Push(gazeAt(3, 4, 0.8))

	if got.X != 2 || got.Y != 3 {
		t.Fatalf("smoothed = (%v, %v), want (2, 3)", got.X, got.Y)
	}
	if got.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want latest sample's 0.8", got.Confidence)
	}
}

func TestSmoothingFIFOCorrectness(t *testing.T) {
	const capacity = 5
	b := NewGazeBuffer(capacity)

	// Push well past capacity; output must equal the mean of exactly the
	// most recent `capacity` samples.
	var last SmoothedGaze
	for i := 1; i <= 12; i++ {
		last = b.Push(gazeAt(float64(i), float64(2*i), 1))
	}

	// Most recent 5 samples are 8..12: mean x = 10, mean y = 20.
	if math.Abs(last.X-10) > 1e-12 || math.Abs(last.Y-20) > 1e-12 {
		t.Fatalf("smoothed = (%v, %v), want (10, 20)", last.X, last.Y)
	}
	if b.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", b.Len(), capacity)
	}
}

func TestSmoothingLatest(t *testing.T) {
	b := NewGazeBuffer(3)

	if _, ok := b.Latest(); ok {
		t.Fatal("Latest() on empty buffer should fail")
	}

	b.Push(gazeAt(1, 1, 0.5))
	b.Push(gazeAt(2, 2, 0.7))
	latest, ok := b.Latest()
	if !ok || latest.X != 2 || latest.Confidence != 0.7 {
		t.Fatalf("Latest() = %+v, %v", latest, ok)
	}
}

func TestSmoothingDefaultCapacity(t *testing.T) {
	b := NewGazeBuffer(0)
	for i := 0; i < 25; i++ {
		b.Push(gazeAt(1, 1, 1))
	}
	if b.Len() != 10 {
		t.Fatalf("Len() = %d, want default capacity 10", b.Len())
	}
}
