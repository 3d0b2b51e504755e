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

// Package context defines an internal context type.
//
// The given Context conforms to the standard Go context, but mandates
// additional methods that are specific to this layer: a Context carries the
// logger of the task or test on whose behalf an operation runs, so that log
// lines produced deep in the entry cache are attributed correctly.
package context

import (
	"context"

	"direntfs.dev/direntfs/pkg/log"
)

// A Context represents a thread of execution. It carries state associated
// with the operation across API boundaries.
//
// Unlike the standard context.Context, which "may be passed to functions
// running in different goroutines", it is not safe to use the same Context
// in multiple concurrent goroutines.
type Context interface {
	log.Logger
	context.Context
}

// logContext is the Context returned by Background.
type logContext struct {
	log.Logger
	context.Context
}

// bgContext is the context returned by Background.
var bgContext = &logContext{
	Logger:  log.Log(),
	Context: context.Background(),
}

// Background returns an empty context using the default logger.
//
// Generally, one should use a task-provided context when available, and
// fall back to Background only in tests and initialization paths where no
// values are needed from the context.
func Background() Context {
	return bgContext
}

// WithLogger returns a copy of parent using the given logger.
func WithLogger(parent Context, logger log.Logger) Context {
	return &logContext{
		Logger:  logger,
		Context: parent,
	}
}

// FromGoContext wraps a standard context, attaching the default logger.
func FromGoContext(ctx context.Context) Context {
	return &logContext{
		Logger:  log.Log(),
		Context: ctx,
	}
}

// Sanity check that logContext implements Context.
var _ Context = (*logContext)(nil)
