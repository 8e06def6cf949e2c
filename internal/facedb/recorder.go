package facedb

import (
	"log"

	"github.com/bloomsight/blinkbloom/internal/face"
)

// Recorder persists pipeline events for one session. It implements
// face.Observer and runs synchronously on the processing loop, so every
// write must be cheap: blinks and direction changes are rare and stored
// verbatim, while the gaze stream arrives at frame rate and is downsampled.
//
// A failed write is logged and dropped. Recording exists for post-session
// review; it must never stall or kill live signal processing.
type Recorder struct {
	db        *DB
	sessionID string

	gazeEvery int
	gazeCount int
}

// NewRecorder creates a recorder writing to the given session. gazeEvery
// controls gaze downsampling: one trace point is stored per gazeEvery
// updates.
func NewRecorder(db *DB, sessionID string, gazeEvery int) *Recorder {
	if gazeEvery < 1 {
		gazeEvery = 10
	}
	return &Recorder{db: db, sessionID: sessionID, gazeEvery: gazeEvery}
}

// OnBlink implements face.Observer.
func (r *Recorder) OnBlink(ev face.BlinkEvent) {
	if err := r.db.RecordBlink(r.sessionID, ev); err != nil {
		log.Printf("recorder: dropping blink event: %v", err)
	}
}

// OnDirectionChange implements face.Observer.
func (r *Recorder) OnDirectionChange(ev face.DirectionChangedEvent) {
	if err := r.db.RecordDirectionChange(r.sessionID, ev); err != nil {
		log.Printf("recorder: dropping direction change: %v", err)
	}
}

// OnGaze implements face.Observer.
func (r *Recorder) OnGaze(ev face.GazeUpdate) {
	r.gazeCount++
	if r.gazeCount%r.gazeEvery != 0 {
		return
	}
	if err := r.db.RecordGaze(r.sessionID, ev); err != nil {
		log.Printf("recorder: dropping gaze point: %v", err)
	}
}
