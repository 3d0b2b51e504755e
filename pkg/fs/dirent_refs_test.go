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

package fs

import (
	"testing"

	"direntfs.dev/direntfs/pkg/context/contexttest"
)

func TestWalkGetPutRefs(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	if got := root.ReadRefs(); got != 1 {
		t.Fatalf("root refs got %d, want 1", got)
	}

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	if got := a.ReadRefs(); got != 1 {
		t.Fatalf("created child refs got %d, want 1", got)
	}
	// The child holds a strong reference to its parent.
	if got := root.ReadRefs(); got != 2 {
		t.Fatalf("root refs with live child got %d, want 2", got)
	}

	// Every walk hit takes another reference.
	for i := int64(2); i < 5; i++ {
		d, err := root.Walk(ctx, "a")
		if err != nil {
			t.Fatalf("Walk(a) got error %v", err)
		}
		if got := d.ReadRefs(); got != i {
			t.Fatalf("child refs after walk got %d, want %d", got, i)
		}
	}
	for i := 0; i < 4; i++ {
		a.DecRef(ctx)
	}

	// The child destructor released the parent reference.
	if got := root.ReadRefs(); got != 1 {
		t.Fatalf("root refs after child destroyed got %d, want 1", got)
	}
}

func TestCreateExtraRefsWithCache(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	// One reference for the caller, one pinned by the dirent cache.
	if got := a.ReadRefs(); got != 2 {
		t.Errorf("created child refs got %d, want 2", got)
	}

	a.DecRef(ctx)
	root.DecRef(ctx)
	msrc.FlushDirentRefs(ctx)
	AsyncBarrier()
}

func TestCacheKeepsDirentAlive(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	a.DecRef(ctx)

	// The cache pin keeps the entry live: walks hit without consulting
	// the filesystem.
	iops := root.Inode.InodeOperations.(*MockInodeOperations)
	d, err := root.Walk(ctx, "a")
	if err != nil {
		t.Fatalf("Walk(a) got error %v", err)
	}
	d.DecRef(ctx)
	iops.mu.Lock()
	calls := iops.lookupCalls
	iops.mu.Unlock()
	if calls != 0 {
		t.Errorf("lookup calls with pinned entry got %d, want 0", calls)
	}

	// Dropping the pin reclaims the entry; the next walk goes durable.
	msrc.FlushDirentRefs(ctx)
	AsyncBarrier()
	d, err = root.Walk(ctx, "a")
	if err != nil {
		t.Fatalf("Walk(a) after flush got error %v", err)
	}
	iops.mu.Lock()
	calls = iops.lookupCalls
	iops.mu.Unlock()
	if calls != 1 {
		t.Errorf("lookup calls after flush got %d, want 1", calls)
	}

	d.DecRef(ctx)
	root.DecRef(ctx)
	msrc.FlushDirentRefs(ctx)
	AsyncBarrier()
}

func TestDestroyPurgesParentSlot(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	if got := cachedNames(root); len(got) != 1 {
		t.Fatalf("cached children got %v, want [a]", got)
	}

	a.DecRef(ctx)
	if got := cachedNames(root); len(got) != 0 {
		t.Errorf("cached children after destroy got %v, want none", got)
	}
}

func TestMountSourceDirentRefs(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")

	if got := msrc.DirentRefs(); got != 1 {
		t.Fatalf("direntRefs got %d, want 1", got)
	}
	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	if got := msrc.DirentRefs(); got != 2 {
		t.Errorf("direntRefs with child got %d, want 2", got)
	}

	a.DecRef(ctx)
	if got := msrc.DirentRefs(); got != 1 {
		t.Errorf("direntRefs after child destroyed got %d, want 1", got)
	}
	root.DecRef(ctx)
	if got := msrc.DirentRefs(); got != 0 {
		t.Errorf("direntRefs after root destroyed got %d, want 0", got)
	}
}
