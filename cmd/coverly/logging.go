// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/coverly-dev/coverly/internal/config"
)

// newLogger builds the process logger from the logging section. verbose
// forces debug level.
func newLogger(w io.Writer, cfg config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
