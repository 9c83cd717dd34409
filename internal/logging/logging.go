// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging holds the diagnostic logger shared by every rigrun-setup
// package. User-facing progress lines are rendered by the cli package; this
// logger is for the trail an operator reads with --log-level=debug.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLevel keeps the diagnostic channel quiet unless asked.
const DefaultLevel = "warn"

var (
	// Log is the default logger for the application.
	Log = logrus.New()
)

// Init initializes the logger with the given log level.
func Init(level string) error {
	return InitWithOutput(level, os.Stderr)
}

// InitWithOutput is Init with an explicit destination, used by tests.
func InitWithOutput(level string, out io.Writer) error {
	if level == "" {
		level = DefaultLevel
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	Log.SetLevel(logLevel)
	Log.SetOutput(out)
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return nil
}
