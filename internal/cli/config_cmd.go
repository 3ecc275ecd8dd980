package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"demosaic/internal/config"
)

func (r *Root) cmdConfig(ctx context.Context, args []string) error {
	_ = ctx
	if len(args) == 0 {
		return r.configShow()
	}
	switch args[0] {
	case "show":
		return r.configShow()
	case "validate":
		return r.configValidate()
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

func (r *Root) configShow() error {
	fmt.Printf("Current configuration:\n")
	cfgPath := os.Getenv("DEMOSAIC_CONFIG")
	if cfgPath == "" {
		cfgPath = "(default) ~/.config/demosaic/config.json"
	}
	fmt.Printf("Config file: %s\n", cfgPath)
	fmt.Printf("\nRestoration:\n")
	fmt.Printf("  Model: %s\n", r.cfg.Model)
	fmt.Printf("  Mosaic type: %s\n", r.cfg.MosaicType)
	fmt.Printf("  Noise sigma: %.4f (max %.4f)\n", r.cfg.Noise, config.MaxNoise)
	fmt.Printf("  Raw offsets: (%d, %d)\n", r.cfg.OffsetX, r.cfg.OffsetY)
	fmt.Printf("  Noise seed: %d\n", r.cfg.Seed)
	fmt.Printf("\nTiling:\n")
	fmt.Printf("  Tile size: %d\n", r.cfg.TileSize)
	fmt.Printf("  Tile workers: %d\n", r.cfg.TileWorkers)
	fmt.Printf("  Tile timeout: %ds\n", r.cfg.TileTimeoutSec)
	fmt.Printf("\nPaths:\n")
	fmt.Printf("  Input: %s\n", r.cfg.Input)
	fmt.Printf("  Output: %s\n", r.cfg.Output)
	fmt.Printf("  Database: %s\n", r.cfg.DBPath)
	fmt.Printf("  Log file: %s\n", r.cfg.LogFile)
	fmt.Printf("\nServers:\n")
	fmt.Printf("  Status API: %s\n", r.cfg.ListenAddr)
	fmt.Printf("  Progress dashboard: %s\n", r.cfg.WSAddr)
	return nil
}

func (r *Root) configValidate() error {
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	fmt.Printf("Configuration is valid\n")
	return nil
}

func (r *Root) cmdVersion() error {
	fmt.Printf("Demosaic v1.0.0-dev\n")
	fmt.Printf("Built with Go %s\n", runtime.Version())
	return nil
}
