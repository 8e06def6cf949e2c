// Package framesource supplies landmark frames to the processing loop.
// The production source is the browser pushing FaceMesh output over a
// websocket; the replay source feeds recorded fixtures for development and
// soak testing without a camera.
package framesource

import (
	"github.com/bloomsight/blinkbloom/internal/face"
)

// Source delivers landmark frames. Frames returns a channel that is closed
// when the source is exhausted or closed; Close releases the source and is
// safe to call more than once.
type Source interface {
	Frames() <-chan *face.LandmarkFrame
	Close() error
}
