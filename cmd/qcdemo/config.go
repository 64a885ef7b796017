// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"errors"
	"log/slog"
)

// Config validation errors.
var (
	ErrInvalidBackend  = errors.New("backend cannot be empty")
	ErrInvalidFrames   = errors.New("frames must be positive")
	ErrInvalidDraws    = errors.New("draws must be positive")
	ErrInvalidGrowStep = errors.New("grow_step must be positive")
	ErrInvalidLogLevel = errors.New("log_level must be debug, info, warn, or error")
)

// Config holds the demo configuration. Values come from QC_* environment
// variables, optionally seeded from a .env file, with flags overriding
// both.
type Config struct {
	Backend     string `envconfig:"BACKEND" default:"auto"`
	Frames      int    `envconfig:"FRAMES" default:"8"`
	Draws       int    `envconfig:"DRAWS" default:"4"`
	GrowStep    int    `envconfig:"GROW_STEP" default:"64"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:""`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// ValidateConfig checks the configuration and returns the first problem
// found.
func ValidateConfig(cfg *Config) error {
	if cfg.Backend == "" {
		return ErrInvalidBackend
	}
	if cfg.Frames <= 0 {
		return ErrInvalidFrames
	}
	if cfg.Draws <= 0 {
		return ErrInvalidDraws
	}
	if cfg.GrowStep <= 0 {
		return ErrInvalidGrowStep
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// parseLogLevel maps a validated level name to its slog level.
func parseLogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
