// Copyright (c) 2024 Contributors to the Eclipse Foundation
//
// See the NOTICE file(s) distributed with this work for additional
// information regarding copyright ownership.
//
// This program and the accompanying materials are made available under the
// terms of the Apache Software License 2.0 which is available at
// https://www.apache.org/licenses/LICENSE-2.0, or the MIT license
// which is available at https://opensource.org/licenses/MIT.
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package log provides the structured logger used across the substrate.
//
// It wraps logrus with the level names the rest of the tree expects
// (Trace, Debug, Info, Warn, Error, Fatal), mirroring the verbosity scale
// of the original C-FFI's iox2_log_level_e.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors the C-FFI's iox2_log_level_e scale.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelTrace:
		return logrus.TraceLevel
	case LevelDebug:
		return logrus.DebugLevel
	case LevelInfo:
		return logrus.InfoLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

var (
	mu     sync.Mutex
	logger = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLevel sets the global log level.
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(level.logrusLevel())
}

// SetLevelFromEnvOr sets the log level from ICEORYX2_LOG_LEVEL, falling
// back to defaultLevel when the variable is unset or unrecognized.
func SetLevelFromEnvOr(defaultLevel Level) {
	v, ok := os.LookupEnv("ICEORYX2_LOG_LEVEL")
	if !ok {
		SetLevel(defaultLevel)
		return
	}
	switch v {
	case "trace", "TRACE":
		SetLevel(LevelTrace)
	case "debug", "DEBUG":
		SetLevel(LevelDebug)
	case "info", "INFO":
		SetLevel(LevelInfo)
	case "warn", "WARN":
		SetLevel(LevelWarn)
	case "error", "ERROR":
		SetLevel(LevelError)
	case "fatal", "FATAL":
		SetLevel(LevelFatal)
	default:
		SetLevel(defaultLevel)
	}
}

// Entry is the field-scoped logger handle the rest of the tree passes
// around.
type Entry = *logrus.Entry

// With returns a field-scoped entry, analogous to logrus.WithFields.
func With(fields map[string]any) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()
	return logger.WithFields(logrus.Fields(fields))
}

// Component returns a logger entry scoped to a single subsystem name
// (e.g. "registry", "arena"), used throughout internal/* for diagnostics.
func Component(name string) *logrus.Entry {
	return With(map[string]any{"component": name})
}
