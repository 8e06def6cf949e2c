// Command gen-fixture generates synthetic landmark fixtures (JSONL) for
// replay-mode development and soak testing.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/bloomsight/blinkbloom/internal/framesource"
)

func main() {
	output := flag.String("o", "frames.jsonl", "output path")
	frames := flag.Int("n", 900, "number of frames")
	fps := flag.Float64("fps", 30, "nominal detection rate")
	seed := flag.Int64("seed", 1, "generator seed")
	flag.Parse()

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	gen := framesource.NewSyntheticGenerator(*seed, *fps, time.Now())
	for i := 0; i < *frames; i++ {
		if err := enc.Encode(gen.NextFrame()); err != nil {
			log.Fatalf("Failed to write frame %d: %v", i, err)
		}
		if (i+1)%300 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to flush output: %v", err)
	}
	log.Printf("✓ Created: %s", *output)
}
