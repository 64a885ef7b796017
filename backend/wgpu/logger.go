// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// logger holds the package-level logger. Defaults to a no-op logger.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by the wgpu backend. Passing nil restores
// the no-op logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	logger.Store(l)
}

// slogger returns the current package logger.
func slogger() *slog.Logger {
	return logger.Load()
}

// nopHandler is a slog.Handler that discards all records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
