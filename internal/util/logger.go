// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"io"
	"log/slog"
	"os"
)

var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// InitLogger initializes the global logger with appropriate log level
// Set KESTREL_DEBUG=1 environment variable to enable debug logging
func InitLogger() {
	Logger = NewLogger(os.Stderr, os.Getenv("KESTREL_DEBUG") != "")
}

// NewLogger builds a text logger without timestamps for CLI output.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo // Default: only show Info, Warn, Error
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time attribute for cleaner CLI output
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	return slog.New(handler)
}

// Debug logs a debug message (only shown when KESTREL_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
