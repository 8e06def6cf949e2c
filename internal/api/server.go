// Package api exposes the signal pipeline over HTTP: a websocket carrying
// landmark frames in and gameplay events out, plus JSON endpoints for
// calibration control and session review.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bloomsight/blinkbloom/internal/face"
	"github.com/bloomsight/blinkbloom/internal/face/monitor"
	"github.com/bloomsight/blinkbloom/internal/facedb"
	"github.com/bloomsight/blinkbloom/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server owns the processing loop. All pipeline and sampler state is
// touched only from Run's goroutine: frames and HTTP commands arrive over
// channels, so no component behind the loop needs a lock.
type Server struct {
	pipeline *face.Pipeline
	sampler  *face.Sampler
	store    *facedb.DB // nil when recording is disabled
	reporter *monitor.Reporter
	plotDir  string // "" disables calibration plots
	clock    timeutil.Clock
	hub      *Hub

	sessionID       string
	samplerInterval time.Duration

	frames   chan *face.LandmarkFrame
	commands chan func()

	// Incremented by whichever goroutine delivers a frame, so unlike the
	// rest of the server state it is not owned by the loop goroutine.
	droppedFrames atomic.Int64
}

// ServerConfig assembles a Server.
type ServerConfig struct {
	Pipeline        *face.Pipeline
	Sampler         *face.Sampler
	Store           *facedb.DB // optional
	Clock           timeutil.Clock
	SessionID       string
	SamplerInterval time.Duration
	PlotDir         string // optional: write calibration fit plots here
}

// NewServer creates a server around an assembled pipeline. The pipeline's
// events are forwarded to websocket clients; the store, when present, gets
// them through its own recorder registered by the caller.
func NewServer(cfg ServerConfig) *Server {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	interval := cfg.SamplerInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	s := &Server{
		pipeline:        cfg.Pipeline,
		sampler:         cfg.Sampler,
		store:           cfg.Store,
		plotDir:         cfg.PlotDir,
		clock:           clock,
		sessionID:       cfg.SessionID,
		samplerInterval: interval,
		frames:          make(chan *face.LandmarkFrame, 8),
		commands:        make(chan func(), 16),
		hub:             NewHub(),
	}
	if cfg.Store != nil {
		s.reporter = monitor.NewReporter(cfg.Store)
	}
	s.pipeline.Subscribe(s.hub)
	return s
}

// Hub returns the websocket hub, for callers that broadcast their own
// events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SubmitFrame hands a landmark frame to the processing loop. Frames are
// dropped, not queued, when the loop is behind: gaze is a live signal and a
// stale frame is worse than a missing one.
func (s *Server) SubmitFrame(frame *face.LandmarkFrame) {
	select {
	case s.frames <- frame:
	default:
		s.droppedFrames.Add(1)
	}
}

// Run drives the processing loop until ctx is cancelled: landmark frames,
// posted commands, and the calibration sampler tick all execute here, one
// at a time.
func (s *Server) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.samplerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame := <-s.frames:
			s.pipeline.ProcessFrame(frame)

		case cmd := <-s.commands:
			cmd()

		case now := <-ticker.C():
			gaze, ok := s.pipeline.Smoothed()
			if s.sampler.Tick(now, gaze, ok) {
				s.finishCalibration(now)
			}
		}
	}
}

// finishCalibration completes the sampled session on the loop goroutine and
// announces the outcome.
func (s *Server) finishCalibration(now time.Time) {
	transform, err := s.pipeline.FinishCalibration()
	if err != nil {
		log.Printf("calibration failed: %v", err)
		s.hub.Broadcast(Event{Type: EventCalibration, Data: map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		}})
		return
	}

	s.recordCalibrationResult(transform, now)
	s.hub.Broadcast(Event{Type: EventCalibration, Data: map[string]interface{}{
		"ok":        true,
		"transform": transform,
	}})
}

// recordCalibrationResult persists a successful fit and, when a plot
// directory is configured, writes the gaze-space and screen-fit plots.
func (s *Server) recordCalibrationResult(transform face.ScreenTransform, now time.Time) {
	result := s.pipeline.Calibration().LastResult()
	if result == nil {
		return
	}
	if s.store != nil {
		if err := s.store.RecordCalibration(s.sessionID, result.SessionID, transform, result.TotalSamples, now); err != nil {
			log.Printf("failed to persist calibration: %v", err)
		}
	}
	if s.plotDir != "" {
		dir := monitor.MakePlotOutputDir(s.plotDir, s.sessionID)
		files, err := monitor.NewCalibrationPlotter(dir).Plot(result)
		if err != nil {
			log.Printf("failed to plot calibration: %v", err)
		} else {
			log.Printf("calibration plots written: %v", files)
		}
	}
}

// post runs fn on the loop goroutine and waits for it, bounded by the
// request context.
func (s *Server) post(r *http.Request, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case s.commands <- wrapped:
	case <-r.Context().Done():
		return r.Context().Err()
	}
	select {
	case <-done:
		return nil
	case <-r.Context().Done():
		return r.Context().Err()
	}
}

// ServeMux returns the HTTP routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.showStatus)
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/calibration/targets", s.showCalibrationTargets)
	mux.HandleFunc("/api/calibration/status", s.showCalibrationStatus)
	mux.HandleFunc("/api/calibration/start", s.startCalibration)
	mux.HandleFunc("/api/calibration/cancel", s.cancelCalibration)
	mux.HandleFunc("/api/calibration/finish", s.finishCalibrationNow)
	mux.HandleFunc("/api/report", s.showReport)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path != "/" {
		s.writeJSONError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var status map[string]interface{}
	err := s.post(r, func() {
		gaze, hasGaze := s.pipeline.Smoothed()
		status = map[string]interface{}{
			"session_id":     s.sessionID,
			"direction":      s.pipeline.Direction(),
			"calibrated":     s.pipeline.Calibration().Active().IsValid,
			"has_gaze":       hasGaze,
			"dropped_frames": s.droppedFrames.Load(),
			"clients":        s.hub.ClientCount(),
		}
		if hasGaze {
			status["gaze"] = gaze
		}
	})
	if err != nil {
		return
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
	}
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "Session recording is disabled")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 1000 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	blinks, err := s.store.RecentBlinks(s.sessionID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve blinks: %v", err))
		return
	}
	directions, err := s.store.RecentDirectionChanges(s.sessionID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve direction changes: %v", err))
		return
	}

	out := map[string]interface{}{
		"session_id": s.sessionID,
		"blinks":     blinks,
		"directions": directions,
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write events")
	}
}

func (s *Server) showCalibrationTargets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := json.NewEncoder(w).Encode(face.CalibrationTargets()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write targets")
	}
}

func (s *Server) showCalibrationStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var status map[string]interface{}
	err := s.post(r, func() {
		status = map[string]interface{}{
			"progress":   s.sampler.Progress(),
			"calibrated": s.pipeline.Calibration().Active().IsValid,
			"transform":  s.pipeline.Calibration().Active(),
		}
	})
	if err != nil {
		return
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write calibration status")
	}
}

func (s *Server) startCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var progress face.SamplerProgress
	err := s.post(r, func() {
		s.sampler.Begin(s.clock.Now())
		progress = s.sampler.Progress()
	})
	if err != nil {
		return
	}

	if err := json.NewEncoder(w).Encode(progress); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write progress")
	}
}

func (s *Server) cancelCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	err := s.post(r, func() {
		s.sampler.Cancel()
	})
	if err != nil {
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// finishCalibrationNow completes the in-flight session with whatever
// samples have been collected, without waiting for the sampler to walk all
// targets. Exposed for hosts that drive sample collection themselves.
func (s *Server) finishCalibrationNow(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var (
		transform face.ScreenTransform
		finishErr error
	)
	err := s.post(r, func() {
		now := s.clock.Now()
		// Stop the sampler walk but leave the engine session intact so the
		// samples collected so far go into the fit.
		s.sampler.Stop()
		transform, finishErr = s.pipeline.FinishCalibration()
		if finishErr == nil {
			s.recordCalibrationResult(transform, now)
		}
	})
	if err != nil {
		return
	}

	if finishErr != nil {
		s.writeJSONError(w, http.StatusConflict, finishErr.Error())
		return
	}
	if err := json.NewEncoder(w).Encode(transform); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write transform")
	}
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.reporter == nil {
		s.writeJSONError(w, http.StatusNotFound, "Session recording is disabled")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.sessionID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.reporter.WriteSessionReport(w, sessionID); err != nil {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Failed to render report: %v", err))
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
