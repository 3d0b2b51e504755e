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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"direntfs.dev/direntfs/pkg/context/contexttest"
	"direntfs.dev/direntfs/pkg/errors/linuxerr"
)

func TestWalkPositive(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	if _, err := root.Create(ctx, "a"); err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}

	d, err := root.Walk(ctx, "a")
	if err != nil {
		t.Fatalf("Walk(a) got error %v, want nil", err)
	}
	if got := d.ReadRefs(); got != 2 {
		// One from creation, one from the walk hit.
		t.Errorf("child refs got %d, want 2", got)
	}
	if got := d.Name(); got != "a" {
		t.Errorf("Name() got %q, want %q", got, "a")
	}
	p := d.Parent()
	if p != root {
		t.Errorf("Parent() got %v, want root", p)
	}
	p.DecRef(ctx)
	d.DecRef(ctx)
	d.DecRef(ctx)
}

func TestWalkNegative(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	iops := root.Inode.InodeOperations.(*MockInodeOperations)
	for i := 0; i < 100; i++ {
		if _, err := root.Walk(ctx, "nothing"); !linuxerr.Equals(linuxerr.ENOENT, err) {
			t.Fatalf("Walk(nothing) got %v, want ENOENT", err)
		}
	}

	// Negative results are never cached, so every walk reached the
	// filesystem.
	iops.mu.Lock()
	calls := iops.lookupCalls
	iops.mu.Unlock()
	if calls != 100 {
		t.Errorf("lookup calls got %d, want 100", calls)
	}

	// And the children cache holds nothing.
	names := cachedNames(root)
	if len(names) != 0 {
		t.Errorf("cached children got %v, want none", names)
	}
}

func TestWalkCacheHit(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	defer a.DecRef(ctx)

	iops := root.Inode.InodeOperations.(*MockInodeOperations)
	for i := 0; i < 10; i++ {
		d, err := root.Walk(ctx, "a")
		if err != nil {
			t.Fatalf("Walk(a) got error %v", err)
		}
		if d != a {
			t.Fatalf("Walk(a) got %p, want the cached dirent %p", d, a)
		}
		d.DecRef(ctx)
	}

	// The live cache entry satisfied every walk.
	iops.mu.Lock()
	calls := iops.lookupCalls
	iops.mu.Unlock()
	if calls != 0 {
		t.Errorf("lookup calls got %d, want 0", calls)
	}
}

func TestWalkRevalidatesAfterEviction(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	inodeID := a.Inode.StableAttr.InodeID
	// Dropping the only reference reclaims the dirent; the durable entry
	// survives.
	a.DecRef(ctx)

	d, err := root.Walk(ctx, "a")
	if err != nil {
		t.Fatalf("Walk(a) after eviction got error %v", err)
	}
	defer d.DecRef(ctx)
	if got := d.Inode.StableAttr.InodeID; got != inodeID {
		t.Errorf("re-walked inode ID got %d, want %d", got, inodeID)
	}
}

func TestWalkNotDirectory(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	f, err := root.Create(ctx, "file")
	if err != nil {
		t.Fatalf("Create(file) got error %v", err)
	}
	defer f.DecRef(ctx)

	if _, err := f.Walk(ctx, "anything"); !linuxerr.Equals(linuxerr.ENOTDIR, err) {
		t.Errorf("Walk through a file got %v, want ENOTDIR", err)
	}
	if _, err := f.Create(ctx, "anything"); !linuxerr.Equals(linuxerr.ENOTDIR, err) {
		t.Errorf("Create under a file got %v, want ENOTDIR", err)
	}
}

func TestWalkDotAndDotDot(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	dir, err := root.CreateDirectory(ctx, "dir")
	if err != nil {
		t.Fatalf("CreateDirectory(dir) got error %v", err)
	}
	defer dir.DecRef(ctx)

	if d, err := dir.Walk(ctx, "."); err != nil || d != dir {
		t.Errorf("Walk(.) got (%p, %v), want (%p, nil)", d, err, dir)
	} else {
		d.DecRef(ctx)
	}
	if d, err := dir.Walk(ctx, ".."); err != nil || d != root {
		t.Errorf("Walk(..) got (%p, %v), want root", d, err)
	} else {
		d.DecRef(ctx)
	}
	// ".." of the root is the root itself.
	if d, err := root.Walk(ctx, ".."); err != nil || d != root {
		t.Errorf("root Walk(..) got (%p, %v), want root", d, err)
	} else {
		d.DecRef(ctx)
	}
}

func TestNameTooLong(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	long := strings.Repeat("x", NameMax+1)
	if _, err := root.Walk(ctx, long); !linuxerr.Equals(linuxerr.ENAMETOOLONG, err) {
		t.Errorf("Walk(long) got %v, want ENAMETOOLONG", err)
	}
	if _, err := root.Create(ctx, long); !linuxerr.Equals(linuxerr.ENAMETOOLONG, err) {
		t.Errorf("Create(long) got %v, want ENAMETOOLONG", err)
	}

	// Exactly NameMax is fine.
	ok, err := root.Create(ctx, strings.Repeat("x", NameMax))
	if err != nil {
		t.Fatalf("Create(NameMax) got error %v", err)
	}
	ok.DecRef(ctx)
}

func TestCreateReservedNames(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	for _, name := range []string{"", ".", ".."} {
		if _, err := root.Create(ctx, name); !linuxerr.Equals(linuxerr.EINVAL, err) {
			t.Errorf("Create(%q) got %v, want EINVAL", name, err)
		}
		if err := root.Remove(ctx, name); !linuxerr.Equals(linuxerr.EINVAL, err) {
			t.Errorf("Remove(%q) got %v, want EINVAL", name, err)
		}
	}
}

func TestCreateExisting(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	defer a.DecRef(ctx)

	iops := root.Inode.InodeOperations.(*MockInodeOperations)
	iops.mu.Lock()
	before := iops.createCalls
	iops.mu.Unlock()

	if _, err := root.Create(ctx, "a"); !linuxerr.Equals(linuxerr.EEXIST, err) {
		t.Fatalf("Create(a) again got %v, want EEXIST", err)
	}

	// The live cache entry short-circuits the durable create.
	iops.mu.Lock()
	after := iops.createCalls
	iops.mu.Unlock()
	if after != before {
		t.Errorf("durable create calls got %d, want %d", after, before)
	}
}

func TestCreateFailureLeavesCacheUntouched(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	iops := root.Inode.InodeOperations.(*MockInodeOperations)
	iops.setErr(linuxerr.EIO)
	if _, err := root.Create(ctx, "a"); !linuxerr.Equals(linuxerr.EIO, err) {
		t.Fatalf("Create(a) got %v, want EIO", err)
	}
	iops.setErr(nil)

	if names := cachedNames(root); len(names) != 0 {
		t.Errorf("cached children after failed create got %v, want none", names)
	}
}

func TestCreateLinkDirectory(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	dir, err := root.CreateDirectory(ctx, "dir")
	if err != nil {
		t.Fatalf("CreateDirectory(dir) got error %v", err)
	}
	defer dir.DecRef(ctx)

	if _, err := root.CreateLink(ctx, "link", dir); !linuxerr.Equals(linuxerr.EPERM, err) {
		t.Errorf("CreateLink to a directory got %v, want EPERM", err)
	}
}

func TestCreateLinkSharesInode(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	defer a.DecRef(ctx)

	b, err := root.CreateLink(ctx, "b", a)
	if err != nil {
		t.Fatalf("CreateLink(b, a) got error %v", err)
	}
	defer b.DecRef(ctx)

	if a.Inode.StableAttr.InodeID != b.Inode.StableAttr.InodeID {
		t.Errorf("hard link inode IDs differ: %d vs %d", a.Inode.StableAttr.InodeID, b.Inode.StableAttr.InodeID)
	}
}

func TestVisitChildren(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	var keep []*Dirent
	for _, name := range []string{"c", "a", "b"} {
		d, err := root.Create(ctx, name)
		if err != nil {
			t.Fatalf("Create(%s) got error %v", name, err)
		}
		keep = append(keep, d)
	}

	// Name order, regardless of creation order.
	if diff := cmp.Diff([]string{"a", "b", "c"}, cachedNames(root)); diff != "" {
		t.Errorf("cached children mismatch (-want +got):\n%s", diff)
	}

	// Reclaimed children disappear from the view.
	keep[1].DecRef(ctx) // "a"
	if diff := cmp.Diff([]string{"b", "c"}, cachedNames(root)); diff != "" {
		t.Errorf("cached children after release mismatch (-want +got):\n%s", diff)
	}

	keep[0].DecRef(ctx)
	keep[2].DecRef(ctx)
}

func TestRemoveChild(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}

	root.RemoveChild(ctx, "a")
	if names := cachedNames(root); len(names) != 0 {
		t.Errorf("cached children after RemoveChild got %v, want none", names)
	}

	// The durable entry survives a cache purge, so a fresh walk finds
	// it again.
	d, err := root.Walk(ctx, "a")
	if err != nil {
		t.Fatalf("Walk(a) after RemoveChild got error %v", err)
	}
	d.DecRef(ctx)
	a.DecRef(ctx)
}

func TestFlushKeepsLiveChildren(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	a, err := root.Create(ctx, "a")
	if err != nil {
		t.Fatalf("Create(a) got error %v", err)
	}
	defer a.DecRef(ctx)

	root.flush(ctx)
	if got := cachedNames(root); len(got) != 1 || got[0] != "a" {
		t.Errorf("cached children after flush got %v, want [a]", got)
	}
	if got := a.ReadRefs(); got != 1 {
		t.Errorf("child refs after flush got %d, want 1", got)
	}
}

func TestMountCountPanics(t *testing.T) {
	ctx := contexttest.Context(t)
	msrc := NewNonCachingMountSource("mock")
	root := NewDirent(NewMockDirInode(msrc), "root")
	defer root.DecRef(ctx)

	defer func() {
		if recover() == nil {
			t.Errorf("UnregisterMount with zero mounts did not panic")
		}
	}()
	root.UnregisterMount()
}

// cachedNames returns the names of the live cached children of d in
// iteration order.
func cachedNames(d *Dirent) []string {
	var names []string
	d.VisitChildren(func(name string, child *Dirent) bool {
		names = append(names, name)
		return true
	})
	return names
}
