// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/kelseyhightower/envconfig"
)

func validConfig() Config {
	return Config{
		Backend:  "auto",
		Frames:   8,
		Draws:    4,
		GrowStep: 64,
		LogLevel: "info",
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty backend", func(c *Config) { c.Backend = "" }, ErrInvalidBackend},
		{"zero frames", func(c *Config) { c.Frames = 0 }, ErrInvalidFrames},
		{"negative draws", func(c *Config) { c.Draws = -1 }, ErrInvalidDraws},
		{"zero grow step", func(c *Config) { c.GrowStep = 0 }, ErrInvalidGrowStep},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, ErrInvalidLogLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := ValidateConfig(&cfg); !errors.Is(err, tt.want) {
				t.Errorf("ValidateConfig() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigEnvVars(t *testing.T) {
	t.Setenv("QC_BACKEND", "sim")
	t.Setenv("QC_FRAMES", "3")
	t.Setenv("QC_METRICS_ADDR", "127.0.0.1:9100")

	var cfg Config
	if err := envconfig.Process("QC", &cfg); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if cfg.Backend != "sim" {
		t.Errorf("Backend = %q, want %q", cfg.Backend, "sim")
	}
	if cfg.Frames != 3 {
		t.Errorf("Frames = %d, want 3", cfg.Frames)
	}
	if cfg.Draws != 4 {
		t.Errorf("Draws default = %d, want 4", cfg.Draws)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("MetricsAddr = %q, want %q", cfg.MetricsAddr, "127.0.0.1:9100")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.name); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
