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

package refs

import (
	"testing"

	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/sync"
)

type testCounter struct {
	AtomicRefCount

	// mu protects destroyed.
	mu sync.Mutex

	// destroyed is true if the destructor has run.
	destroyed bool
}

func (t *testCounter) DecRef(ctx context.Context) {
	t.DecRefWithDestructor(ctx, t.destroy)
}

func (t *testCounter) destroy(context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
}

func (t *testCounter) IsDestroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

func newTestCounter() *testCounter {
	tc := &testCounter{}
	tc.EnableLeakCheck("refs.testCounter")
	return tc
}

func TestOneRef(t *testing.T) {
	ctx := context.Background()
	tc := newTestCounter()
	tc.DecRef(ctx)

	if !tc.IsDestroyed() {
		t.Errorf("object should have been destroyed")
	}
}

func TestTwoRefs(t *testing.T) {
	ctx := context.Background()
	tc := newTestCounter()
	tc.IncRef()
	tc.DecRef(ctx)
	if tc.IsDestroyed() {
		t.Errorf("object was destroyed with a reference outstanding")
	}
	tc.DecRef(ctx)
	if !tc.IsDestroyed() {
		t.Errorf("object should have been destroyed")
	}
}

func TestTryIncRef(t *testing.T) {
	ctx := context.Background()
	tc := newTestCounter()

	if !tc.TryIncRef() {
		t.Fatalf("TryIncRef on a live object failed")
	}
	tc.DecRef(ctx)
	tc.DecRef(ctx)

	if tc.TryIncRef() {
		t.Errorf("TryIncRef on a destroyed object succeeded")
	}
}

func TestWeakRefUpgrade(t *testing.T) {
	ctx := context.Background()
	tc := newTestCounter()
	w := NewWeakRef(tc, nil)

	if got := w.Get(); got != tc {
		t.Fatalf("Get() got %v, want the object", got)
	}
	tc.DecRef(ctx) // Drop the upgraded reference.

	tc.DecRef(ctx) // Drop the original reference; zaps w.
	if got := w.Get(); got != nil {
		t.Errorf("Get() after destruction got %v, want nil", got)
	}
	if !tc.IsDestroyed() {
		t.Errorf("object should have been destroyed")
	}
	w.Drop(ctx)
}

func TestWeakRefDropBeforeDestroy(t *testing.T) {
	ctx := context.Background()
	tc := newTestCounter()
	w := NewWeakRef(tc, nil)
	w.Drop(ctx)

	if tc.IsDestroyed() {
		t.Errorf("dropping a weak reference destroyed the object")
	}
	tc.DecRef(ctx)
	if !tc.IsDestroyed() {
		t.Errorf("object should have been destroyed")
	}
}

type testUser struct {
	mu sync.Mutex

	// gone counts WeakRefGone notifications.
	gone int
}

func (u *testUser) WeakRefGone(context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.gone++
}

func (u *testUser) goneCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.gone
}

func TestWeakRefUserNotified(t *testing.T) {
	ctx := context.Background()
	tc := newTestCounter()
	u := &testUser{}
	w := NewWeakRef(tc, u)

	tc.DecRef(ctx)
	if got := u.goneCount(); got != 1 {
		t.Errorf("WeakRefGone notifications got %d, want 1", got)
	}
	w.Drop(ctx)
}

func TestWeakRefUserNotNotifiedAfterDrop(t *testing.T) {
	ctx := context.Background()
	tc := newTestCounter()
	u := &testUser{}
	w := NewWeakRef(tc, u)
	w.Drop(ctx)

	tc.DecRef(ctx)
	if got := u.goneCount(); got != 0 {
		t.Errorf("WeakRefGone notifications after drop got %d, want 0", got)
	}
}
