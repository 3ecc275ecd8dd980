package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/gographics/imagick.v3/imagick"

	"demosaic/internal/config"
	"demosaic/internal/imgio"
	"demosaic/internal/pipeline"
	"demosaic/internal/raster"
	"demosaic/internal/restore"
	"demosaic/internal/storage"
	"demosaic/internal/tasks"
)

// Manual end-to-end check: writes a synthetic reference, runs a full
// restoration through the pipeline, then watches a directory for new
// images. Useful when validating an ImageMagick or model installation.
func main() {
	fmt.Println("Testing restoration pipeline integration")

	imagick.Initialize()
	defer imagick.Terminate()

	workDir, err := os.MkdirTemp("", "demosaic-integration-*")
	if err != nil {
		log.Fatal("Failed to create work directory:", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "ramp.png")
	if err := imgio.Encode(inputPath, rampImage(96, 128), 8); err != nil {
		log.Fatal("Failed to write test image:", err)
	}
	fmt.Println("✅ Wrote synthetic reference:", inputPath)

	store, err := storage.New(filepath.Join(workDir, "runs.db"))
	if err != nil {
		log.Fatal("Failed to create storage:", err)
	}
	defer store.Close()

	cfg, err := config.Load(filepath.Join(workDir, "no-config.json"))
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	cfg.Output = filepath.Join(workDir, "out")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pipe := pipeline.New(ctx, 1, logger, store, cfg, restore.NewIdentity(0), nil)
	defer pipe.Stop()

	results, unsubscribe := pipe.Subscribe()
	defer unsubscribe()

	job := pipeline.Job{
		ID:        "integration-restore",
		Type:      pipeline.JobRestore,
		InputPath: inputPath,
		Output:    cfg.Output,
		Options:   map[string]any{"noise": 0.0},
	}
	if err := pipe.Submit(job); err != nil {
		log.Fatal("Failed to submit job:", err)
	}

	res := waitFor(ctx, results, job.ID)
	if res.Error != nil {
		log.Fatal("Restoration failed:", res.Error)
	}
	fmt.Printf("✅ Restoration completed: %v\n", res.Meta)

	strip := filepath.Join(cfg.Output, "ramp_restored.png")
	if _, err := os.Stat(strip); err != nil {
		log.Fatal("Missing comparison strip:", err)
	}
	fmt.Println("✅ Comparison strip written:", strip)

	images, err := store.RunImages(job.ID)
	if err != nil {
		log.Fatal("Failed to read run images:", err)
	}
	fmt.Printf("📊 Recorded images for %s:\n", job.ID)
	for _, img := range images {
		psnr := "-"
		if img.Exact {
			psnr = "exact"
		} else if img.HasPSNR {
			psnr = fmt.Sprintf("%.2f dB", img.PSNR)
		}
		fmt.Printf("   %s  %s  PSNR %s  %d tiles  %dms\n",
			filepath.Base(img.SourcePath), img.Status, psnr, img.Tiles, img.DurationMS)
	}

	// Watcher smoke test: drop a copy into a watched directory and wait
	// for the settle event.
	fmt.Println("\nStarting 10-second watcher test...")
	watchDir := filepath.Join(workDir, "incoming")
	if err := os.MkdirAll(watchDir, 0o755); err != nil {
		log.Fatal("Failed to create watch directory:", err)
	}
	watcher, err := tasks.NewWatcher(watchDir, logger)
	if err != nil {
		log.Fatal("Failed to create watcher:", err)
	}
	defer watcher.Stop()
	watcher.Start()

	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.Fatal("Failed to read test image:", err)
	}
	if err := os.WriteFile(filepath.Join(watchDir, "dropped.png"), data, 0o644); err != nil {
		log.Fatal("Failed to drop test image:", err)
	}

	select {
	case ev := <-watcher.Events():
		fmt.Printf("✅ Watcher event: %s %s\n", ev.Op, filepath.Base(ev.Path))
	case <-time.After(10 * time.Second):
		log.Fatal("Watcher produced no event within 10 seconds")
	}

	fmt.Println("\n✅ Integration test passed")
}

func rampImage(h, w int) *raster.Image {
	img := raster.New(h, w, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(y, x, 0, float32(x)/float32(w))
			img.Set(y, x, 1, float32(y)/float32(h))
			img.Set(y, x, 2, float32(x+y)/float32(w+h))
		}
	}
	return img
}

func waitFor(ctx context.Context, results <-chan pipeline.Result, jobID string) pipeline.Result {
	for {
		select {
		case <-ctx.Done():
			log.Fatal("Timed out waiting for restoration")
		case res, ok := <-results:
			if !ok {
				log.Fatal("Pipeline stopped before completion")
			}
			if res.Job.ID == jobID {
				return res
			}
		}
	}
}
