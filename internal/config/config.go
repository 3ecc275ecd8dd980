// Package config loads and validates the JSON run configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"demosaic/internal/mosaic"
)

const (
	defaultConfigPath = "~/.config/demosaic/config.json"

	// MaxNoise is the ceiling of the supported degradation range, the
	// highest sigma the shipped networks were trained for (20/255).
	MaxNoise = 0.0784
)

// ErrNoiseRange is returned when the configured sigma falls outside the
// supported range.
var ErrNoiseRange = errors.New("noise level outside the supported range")

// Config holds user-editable settings for a restoration run. All fields
// are optional in the file; zero values fall back to defaults.
type Config struct {
	Input          string  `json:"input"`
	Output         string  `json:"output"`
	Model          string  `json:"model"`
	Noise          float64 `json:"noise"`
	OffsetX        int     `json:"offset_x"`
	OffsetY        int     `json:"offset_y"`
	TileSize       int     `json:"tile_size"`
	MosaicType     string  `json:"mosaic_type"`
	TileWorkers    int     `json:"tile_workers"`
	TileTimeoutSec int     `json:"tile_timeout_sec"`
	Seed           int64   `json:"seed"`
	DBPath         string  `json:"db_path"`
	LogFile        string  `json:"log_file"`
	ListenAddr     string  `json:"listen_addr"`
	WSAddr         string  `json:"ws_addr"`
}

// Load reads configuration from path, falling back to $DEMOSAIC_CONFIG and
// then the default location. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	configPath := path
	if configPath == "" {
		configPath = os.Getenv("DEMOSAIC_CONFIG")
	}
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := ExpandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return expandPaths(cfg)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return expandPaths(cfg)
}

// ValidateNoise checks a degradation sigma against the supported range.
// The CLI reuses it for flag overrides so a bad value is rejected before
// any image is opened.
func ValidateNoise(sigma float64) error {
	if sigma < 0 || sigma > MaxNoise {
		return fmt.Errorf("%w: %.4f not in [0.0000, %.4f]", ErrNoiseRange, sigma, MaxNoise)
	}
	return nil
}

// Validate checks the static constraints. It runs before any model is
// loaded or image opened, so a bad value never starts a run.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required (use \"identity\" for the pass-through backend)")
	}
	if err := ValidateNoise(c.Noise); err != nil {
		return err
	}
	if c.OffsetX < 0 || c.OffsetY < 0 {
		return fmt.Errorf("offsets must be non-negative, got (%d, %d)", c.OffsetX, c.OffsetY)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile_size must be positive, got %d", c.TileSize)
	}
	if _, err := mosaic.Lookup(c.MosaicType); err != nil {
		return err
	}
	if c.TileWorkers < 0 {
		return fmt.Errorf("tile_workers must be non-negative, got %d", c.TileWorkers)
	}
	if c.TileTimeoutSec <= 0 {
		return fmt.Errorf("tile_timeout_sec must be positive, got %d", c.TileTimeoutSec)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Output:         "./out",
		TileSize:       512,
		MosaicType:     "bayer",
		TileTimeoutSec: 120,
		Seed:           1,
		DBPath:         "~/.demosaic/catalog.db",
		LogFile:        "~/.demosaic/demosaic.log",
		ListenAddr:     ":8643",
		WSAddr:         ":8644",
	}
}

func expandPaths(cfg *Config) (*Config, error) {
	var err error
	if cfg.DBPath, err = ExpandUser(cfg.DBPath); err != nil {
		return nil, err
	}
	if cfg.LogFile, err = ExpandUser(cfg.LogFile); err != nil {
		return nil, err
	}
	if cfg.Input, err = ExpandUser(cfg.Input); err != nil {
		return nil, err
	}
	if cfg.Output, err = ExpandUser(cfg.Output); err != nil {
		return nil, err
	}
	if cfg.Model, err = ExpandUser(cfg.Model); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandUser resolves a leading ~ against the current home directory.
func ExpandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
