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

// Package contexttest builds a test context.Context.
package contexttest

import (
	gocontext "context"
	"testing"

	"go.uber.org/zap/zaptest"

	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/log"
)

// testLogger routes log lines through testing.TB so failures carry the
// relevant cache activity.
type testLogger struct {
	sugar interface {
		Debugf(format string, v ...any)
		Infof(format string, v ...any)
		Warnf(format string, v ...any)
	}
}

// Debugf implements log.Logger.Debugf.
func (l *testLogger) Debugf(format string, v ...any) { l.sugar.Debugf(format, v...) }

// Infof implements log.Logger.Infof.
func (l *testLogger) Infof(format string, v ...any) { l.sugar.Infof(format, v...) }

// Warningf implements log.Logger.Warningf.
func (l *testLogger) Warningf(format string, v ...any) { l.sugar.Warnf(format, v...) }

// IsLogging implements log.Logger.IsLogging.
func (l *testLogger) IsLogging(level log.Level) bool { return true }

type testContext struct {
	log.Logger
	gocontext.Context
}

// Context returns a Context that may be used in tests. Log output is
// attached to the test via zaptest.
func Context(tb testing.TB) context.Context {
	return &testContext{
		Logger:  &testLogger{sugar: zaptest.NewLogger(tb).Sugar()},
		Context: gocontext.Background(),
	}
}
