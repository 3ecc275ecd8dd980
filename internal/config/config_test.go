package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"demosaic/internal/mosaic"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("DEMOSAIC_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Output != "./out" {
		t.Fatalf("expected default output ./out, got %s", cfg.Output)
	}
	if cfg.TileSize != 512 {
		t.Fatalf("expected default tile size 512, got %d", cfg.TileSize)
	}
	if cfg.MosaicType != "bayer" {
		t.Fatalf("expected default pattern bayer, got %s", cfg.MosaicType)
	}
	if cfg.TileTimeoutSec != 120 {
		t.Fatalf("expected default timeout 120, got %d", cfg.TileTimeoutSec)
	}
	if cfg.Seed != 1 {
		t.Fatalf("expected default seed 1, got %d", cfg.Seed)
	}
	if cfg.ListenAddr != ":8643" || cfg.WSAddr != ":8644" {
		t.Fatalf("unexpected default addrs %s %s", cfg.ListenAddr, cfg.WSAddr)
	}
	if strings.HasPrefix(cfg.DBPath, "~") {
		t.Fatalf("db path was not expanded: %s", cfg.DBPath)
	}
}

func TestLoadReadsFileAndKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"input": "/data/frames",
		"model": "identity",
		"noise": 0.02,
		"tile_size": 256,
		"mosaic_type": "xtrans"
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Input != "/data/frames" || cfg.Model != "identity" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Noise != 0.02 || cfg.TileSize != 256 || cfg.MosaicType != "xtrans" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Seed != 1 || cfg.TileTimeoutSec != 120 {
		t.Fatalf("unset fields lost their defaults: %+v", cfg)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Model = "identity"
	return cfg
}

func TestValidateAcceptsNoiseRange(t *testing.T) {
	for _, noise := range []float64{0, 0.02, MaxNoise} {
		cfg := validConfig()
		cfg.Noise = noise
		if err := cfg.Validate(); err != nil {
			t.Fatalf("noise %v must validate, got %v", noise, err)
		}
	}
}

func TestValidateRejectsOverrangeNoise(t *testing.T) {
	cfg := validConfig()
	cfg.Noise = 0.09
	err := cfg.Validate()
	if !errors.Is(err, ErrNoiseRange) {
		t.Fatalf("expected ErrNoiseRange, got %v", err)
	}
	if !strings.Contains(err.Error(), "0.0784") {
		t.Fatalf("error must name the permitted range, got %q", err.Error())
	}

	cfg.Noise = -0.01
	if err := cfg.Validate(); !errors.Is(err, ErrNoiseRange) {
		t.Fatalf("expected ErrNoiseRange for negative sigma, got %v", err)
	}
}

func TestValidateFieldConstraints(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing model", func(c *Config) { c.Model = "" }},
		{"negative offset x", func(c *Config) { c.OffsetX = -1 }},
		{"negative offset y", func(c *Config) { c.OffsetY = -2 }},
		{"zero tile size", func(c *Config) { c.TileSize = 0 }},
		{"negative workers", func(c *Config) { c.TileWorkers = -1 }},
		{"zero timeout", func(c *Config) { c.TileTimeoutSec = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateUnknownPattern(t *testing.T) {
	cfg := validConfig()
	cfg.MosaicType = "foveon"
	if err := cfg.Validate(); !errors.Is(err, mosaic.ErrUnknownPattern) {
		t.Fatalf("expected ErrUnknownPattern, got %v", err)
	}
}

func TestExpandUser(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got, err := ExpandUser("~/cache/demosaic")
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if got != filepath.Join(home, "cache/demosaic") {
		t.Fatalf("unexpected expansion %s", got)
	}

	got, err = ExpandUser("/absolute/path")
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if got != "/absolute/path" {
		t.Fatalf("absolute path must pass through, got %s", got)
	}

	got, err = ExpandUser("~")
	if err != nil {
		t.Fatalf("expand failed: %v", err)
	}
	if got != home {
		t.Fatalf("expected home %s, got %s", home, got)
	}
}
