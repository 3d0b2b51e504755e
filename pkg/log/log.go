// Copyright 2025 The DirentFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides a minimal leveled logging interface for the
// filesystem layer.
//
// The Logger interface is deliberately narrow so that a task or test
// context can satisfy it without pulling in the emission backend. The
// default backend is a zap SugaredLogger writing JSON to stdout.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a log level.
type Level uint32

// Available log levels.
const (
	// Warning indicates a problem that should be reported.
	Warning Level = iota

	// Info is informational.
	Info

	// Debug is for diagnostic detail; disabled by default.
	Debug
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

// Logger is a high-level logging interface. It is in fact, not used within
// this package. Rather it is provided for use by contexts, so that the same
// Logger travels with an operation across API boundaries.
type Logger interface {
	// Debugf logs a debug statement.
	Debugf(format string, v ...any)

	// Infof logs at an info level.
	Infof(format string, v ...any)

	// Warningf logs at a warning level.
	Warningf(format string, v ...any)

	// IsLogging returns true iff this level is being logged. This may be
	// used to short-circuit expensive operations for debugging calls.
	IsLogging(level Level) bool
}

// BasicLogger is the default implementation of Logger, backed by zap.
type BasicLogger struct {
	sugar *zap.SugaredLogger
	atom  zap.AtomicLevel
}

// Debugf implements Logger.Debugf.
func (l *BasicLogger) Debugf(format string, v ...any) {
	l.sugar.Debugf(format, v...)
}

// Infof implements Logger.Infof.
func (l *BasicLogger) Infof(format string, v ...any) {
	l.sugar.Infof(format, v...)
}

// Warningf implements Logger.Warningf.
func (l *BasicLogger) Warningf(format string, v ...any) {
	l.sugar.Warnf(format, v...)
}

// IsLogging implements Logger.IsLogging.
func (l *BasicLogger) IsLogging(level Level) bool {
	return l.atom.Enabled(zapLevel(level))
}

// Named returns a copy of l with the given component name attached to each
// log line.
func (l *BasicLogger) Named(name string) *BasicLogger {
	return &BasicLogger{sugar: l.sugar.Named(name), atom: l.atom}
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case Warning:
		return zapcore.WarnLevel
	case Info:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

func newBasicLogger(level Level) *BasicLogger {
	atom := zap.NewAtomicLevelAt(zapLevel(level))
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atom,
	)
	return &BasicLogger{sugar: zap.New(core).Sugar(), atom: atom}
}

// log is the default logger.
var log = newBasicLogger(Info)

// Log retrieves the global logger.
func Log() *BasicLogger {
	return log
}

// SetLevel sets the log level of the global logger.
func SetLevel(newLevel Level) {
	log.atom.SetLevel(zapLevel(newLevel))
}

// Debugf logs to the global logger.
func Debugf(format string, v ...any) {
	log.Debugf(format, v...)
}

// Infof logs to the global logger.
func Infof(format string, v ...any) {
	log.Infof(format, v...)
}

// Warningf logs to the global logger.
func Warningf(format string, v ...any) {
	log.Warningf(format, v...)
}

// IsLogging returns whether the global logger logs the given level.
func IsLogging(level Level) bool {
	return log.IsLogging(level)
}
