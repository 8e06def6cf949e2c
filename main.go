// Command blinkbloom runs the gameplay signal server: it consumes facial
// landmark frames (from a browser over websocket, or a recorded fixture in
// dev mode) and emits blink, direction, and gaze events for the game.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bloomsight/blinkbloom/internal/api"
	"github.com/bloomsight/blinkbloom/internal/config"
	"github.com/bloomsight/blinkbloom/internal/face"
	"github.com/bloomsight/blinkbloom/internal/facedb"
	"github.com/bloomsight/blinkbloom/internal/framesource"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	devMode    = flag.Bool("dev", false, "Replay a recorded fixture instead of waiting for a websocket client")
	fixture    = flag.String("fixture", "frames.jsonl", "Landmark fixture for dev mode")
	demoMode   = flag.Bool("demo", false, "Emit simulated blinks on a schedule (no landmark provider needed)")
	dbPath     = flag.String("db", "sessions.db", "Session database path (empty disables recording)")
	plotDir    = flag.String("plots", "", "Directory for calibration fit plots (empty disables)")
	configPath = flag.String("config", "", "Tuning config file (JSON)")
)

// Gaze trace downsampling for the session recorder: one stored point per
// ten updates.
const gazeRecordEvery = 10

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		log.Printf("Loaded tuning config from %s", *configPath)
	}

	pipeline := face.NewPipeline(face.PipelineConfigFromTuning(tuning, *demoMode))
	sampler := face.NewSampler(pipeline.Calibration(), face.SamplerConfig{
		SamplesPerPoint: tuning.GetSamplesPerPoint(),
		Interval:        tuning.GetSampleInterval(),
	})

	sessionID := uuid.New().String()
	log.Printf("Session %s starting", sessionID)

	var store *facedb.DB
	if *dbPath != "" {
		var err error
		store, err = facedb.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open session database: %v", err)
		}
		defer store.Close()

		if err := store.CreateSession(sessionID, time.Now(), *demoMode); err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		pipeline.Subscribe(facedb.NewRecorder(store, sessionID, gazeRecordEvery))
	}

	server := api.NewServer(api.ServerConfig{
		Pipeline:        pipeline,
		Sampler:         sampler,
		Store:           store,
		SessionID:       sessionID,
		SamplerInterval: tuning.GetSampleInterval(),
		PlotDir:         *plotDir,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Processing loop: all pipeline state lives on this goroutine.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("processing loop error: %v", err)
		}
		log.Print("processing loop terminated")
	}()

	// Dev mode: feed the pipeline from a recorded fixture so the whole
	// stack runs without a browser or camera.
	if *devMode {
		src, err := framesource.NewReplaySource(framesource.ReplayConfig{
			Path:     *fixture,
			Interval: 33 * time.Millisecond,
			Loop:     true,
		})
		if err != nil {
			log.Fatalf("Failed to open fixture: %v", err)
		}
		log.Printf("Replaying %d fixture frames from %s", src.FrameCount(), *fixture)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer src.Close()
			for {
				select {
				case frame, ok := <-src.Frames():
					if !ok {
						log.Print("fixture replay finished")
						return
					}
					server.SubmitFrame(frame)
				case <-ctx.Done():
					log.Print("replay routine terminated")
					return
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(server.ServeMux()),
		}

		go func() {
			log.Printf("Listening on %s", *listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if store != nil {
		if err := store.EndSession(sessionID, time.Now()); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}
