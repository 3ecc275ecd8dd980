package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/gographics/imagick.v3/imagick"

	"demosaic/internal/cli"
	"demosaic/internal/config"
	"demosaic/internal/logging"
	"demosaic/internal/pipeline"
	"demosaic/internal/restore"
	"demosaic/internal/storage"
	"demosaic/internal/web"
)

// jobConcurrency is the number of pipeline workers. Tile-level parallelism
// is configured separately through tile_workers.
const jobConcurrency = 2

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath, verbose := preScan(os.Args[1:])

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := logging.Setup(cfg.LogFile, level)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	imagick.Initialize()
	defer imagick.Terminate()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(cfg.DBPath, logger)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	hub := web.NewHub(cfg.WSAddr, logger)

	// Only commands that actually process images pay for model loading and
	// full validation. Catalog and config inspection work without either.
	var pipe *pipeline.Pipeline
	switch firstCommand(os.Args[1:]) {
	case "run", "watch", "serve":
		if err := cfg.Validate(); err != nil {
			return err
		}
		op, err := restore.Load(cfg.Model)
		if err != nil {
			return fmt.Errorf("failed to load model %q: %w", cfg.Model, err)
		}
		if closer, ok := op.(io.Closer); ok {
			defer func() { _ = closer.Close() }()
		}
		pipe = pipeline.New(ctx, jobConcurrency, logger, store, cfg, op, hub.PublishProgress)
		defer pipe.Stop()
	case "scan":
		pipe = pipeline.New(ctx, jobConcurrency, logger, store, cfg, restore.NewIdentity(0), hub.PublishProgress)
		defer pipe.Stop()
	}

	rootCmd := cli.NewRootCmd(cfg, logger, store, pipe, hub)
	return rootCmd.ExecuteContext(ctx)
}

func openStore(path string, logger *slog.Logger) *storage.Store {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("failed to create database directory", "path", path, "error", err.Error())
		return nil
	}
	store, err := storage.New(path)
	if err != nil {
		logger.Warn("run database unavailable, continuing without history", "path", path, "error", err.Error())
		return nil
	}
	return store
}

// preScan pulls the global flags out before cobra runs, since the config
// has to be loaded to provide flag defaults.
func preScan(args []string) (configPath string, verbose bool) {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			configPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--verbose":
			verbose = true
		}
	}
	return configPath, verbose
}

// firstCommand finds the subcommand name, skipping global flags.
func firstCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" {
			i++
			continue
		}
		if strings.HasPrefix(args[i], "-") {
			continue
		}
		return args[i]
	}
	return ""
}
