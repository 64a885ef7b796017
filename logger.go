// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for the querycache package. By default
// the package produces no log output. Pass nil to disable logging again.
//
// The scheduler and backend packages carry their own SetLogger so each can
// be tuned independently; pointing them all at one logger is the usual
// setup:
//
//	log := slog.Default()
//	querycache.SetLogger(log)
//	scheduler.SetLogger(log)
//	wgpu.SetLogger(log)
//
// Log levels used:
//   - [slog.LevelDebug]: slot pool growth, counter lifecycle
//   - [slog.LevelWarn]: device loss observed during readback
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by querycache.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// slogger returns the current package logger.
func slogger() *slog.Logger { return loggerPtr.Load() }
