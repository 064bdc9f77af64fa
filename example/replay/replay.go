package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/swdee/go-dartscore"
	"github.com/swdee/go-dartscore/render"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	scriptFile := flag.String("s", "../data/replay/three-darts.yaml", "YAML replay script of recorded frames and detections")
	outDir := flag.String("o", "", "Directory to save annotated frames to, disabled when empty")
	verbose := flag.Bool("d", false, "Enable debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	script, err := LoadScript(*scriptFile)

	if err != nil {
		log.Fatal("Error loading replay script: ", err)
	}

	cfg := dartscore.DefaultConfig()

	if script.Config != "" {
		cfg, err = dartscore.LoadConfig(script.Config)

		if err != nil {
			log.Fatal("Error loading config: ", err)
		}
	}

	if script.GameMode != nil {
		cfg.GameMode = *script.GameMode
	}

	det := &replayDetector{classNames: cfg.ClassNames}

	opts := []dartscore.Option{dartscore.WithLogger(logger)}

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatal("Error creating output directory: ", err)
		}

		opts = append(opts, dartscore.WithAnnotator(render.NewAnnotator(2)))
	}

	session := dartscore.NewSession(cfg, det, opts...)

	start := time.Now()
	ctx := context.Background()
	throws := 0

	for i, step := range script.Frames {

		var img image.Image

		if step.Image != "" {
			img, err = loadImage(step.Image)

			if err != nil {
				log.Fatal("Error loading frame: ", err)
			}
		}

		det.current = step

		at := start.Add(time.Duration(step.At * float64(time.Second)))
		u := session.ProcessFrame(ctx, dartscore.Frame{Image: img, Time: at})

		if u.Dropped {
			fmt.Printf("%7.2fs  %-20s (dropped)\n", step.At, u.State)
			continue
		}

		fmt.Printf("%7.2fs  %-20s %s\n", step.At, u.State, firstLine(u.Text))

		if u.Finalized {
			throws++
			fmt.Printf("          throw %d: %s = %d\n", throws, strings.Join(u.Labels, " "), u.Total)
		}

		if *outDir != "" && u.Image != nil {
			file := filepath.Join(*outDir, fmt.Sprintf("frame-%04d.png", i))

			if err := imaging.Save(u.Image, file); err != nil {
				log.Printf("Failed to save annotated frame: %v\n", err)
			}
		}
	}

	g := session.Game()

	if g.Target > 0 {
		log.Printf("Replayed %d frames, %d throws, remaining=%d\n", len(script.Frames), throws, g.Remaining)
	} else {
		log.Printf("Replayed %d frames, %d throws\n", len(script.Frames), throws)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
