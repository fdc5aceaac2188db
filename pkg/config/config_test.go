package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Controller.Kind != "pretimed" || cfg.Vehicles.ReactionTime != 1 || !cfg.Vehicles.ReleaseAfter {
		t.Fatalf("defaults = %+v", cfg)
	}
	if l, _ := cfg.Level(); l != slog.LevelInfo {
		t.Fatalf("level = %v", l)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
tick_rate: 4
spawn_rate: 0.5
log_level: debug
controller:
  kind: adaptive
  max: 40
vehicles:
  release_after_reaction: false
stream:
  listen: ":8080"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TickRate != 4 || cfg.SpawnRate == nil || *cfg.SpawnRate != 0.5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Controller.Kind != "adaptive" || cfg.Controller.Max != 40 || cfg.Controller.Min != 5 {
		t.Fatalf("controller = %+v", cfg.Controller)
	}
	if cfg.Vehicles.ReleaseAfter || cfg.Vehicles.Jitter != 0.2 {
		t.Fatalf("vehicles = %+v", cfg.Vehicles)
	}
	if cfg.Stream.Listen != ":8080" || cfg.Stream.Every != 1 {
		t.Fatalf("stream = %+v", cfg.Stream)
	}
	if l, _ := cfg.Level(); l != slog.LevelDebug {
		t.Fatalf("level = %v", l)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Config)
	}{
		{"tick rate", func(c *Config) { c.TickRate = 0 }},
		{"tick length", func(c *Config) { c.TickLength = -1 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"controller kind", func(c *Config) { c.Controller.Kind = "random" }},
		{"pretimed order", func(c *Config) { c.Controller.Straight = c.Controller.Left }},
		{"adaptive bounds", func(c *Config) { c.Controller.Kind = "adaptive"; c.Controller.Max = 1 }},
		{"reaction time", func(c *Config) { c.Vehicles.ReactionTime = 0 }},
		{"stream every", func(c *Config) { c.Stream.Every = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.edit(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}
	if _, err := Load(writeFile(t, "tick_rate: [1, 2]\n")); err == nil {
		t.Fatal("bad yaml accepted")
	}
	if _, err := Load(writeFile(t, "tick_rate: -2\n")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("invalid value: %v", err)
	}
}
