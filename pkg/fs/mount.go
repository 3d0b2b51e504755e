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
	"fmt"
	"sync/atomic"

	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/refs"
	"direntfs.dev/direntfs/pkg/sync"
)

// DirentOperations provide filesystems greater control over how long a
// Dirent stays pinned in core. Implementations must not take Dirent.mu or
// any Dirent.dirMu: they are called from inside cache operations.
type DirentOperations interface {
	// Keep returns true if the Dirent should be kept in memory for as
	// long as possible beyond any active references.
	Keep(dirent *Dirent) bool
}

// MountSourceOperations contains filesystem specific operations.
type MountSourceOperations interface {
	// DirentOperations provide optional extra management of Dirents.
	DirentOperations

	// DidCreateDirent is called after a new Dirent is created and hashed
	// into its parent's children cache. It is invoked outside of any
	// dirent lock, so it may re-enter the cache (e.g. to look up
	// siblings).
	DidCreateDirent(ctx context.Context, dirent *Dirent)

	// WillDestroyDirent is called before a Dirent is removed from the
	// tree, either by unlink, by being replaced in a rename, or by an
	// explicit cache purge. It is invoked outside of any dirent lock.
	WillDestroyDirent(ctx context.Context, dirent *Dirent)

	// Destroy destroys the MountSource.
	Destroy()
}

// MountSource represents one filesystem instance.
//
// MountSource corresponds to struct super_block in Linux.
//
// It owns the per-filesystem rename mutex: all renames within one
// MountSource are serialized against each other, while distinct
// MountSources never serialize against one another.
type MountSource struct {
	refs.AtomicRefCount

	// MountSourceOperations defines filesystem specific behavior.
	MountSourceOperations

	// FilesystemType is the type of the filesystem backing this mount.
	FilesystemType string

	// renameMu serializes renames within this filesystem. It is the
	// outermost lock of the rename path; see the package documentation
	// for the full ordering.
	renameMu sync.Mutex

	// fscache keeps Dirents pinned beyond application references to
	// them. A nil fscache caches nothing.
	fscache *DirentCache

	// direntRefs is the sum of references on all Dirents in this
	// MountSource. It must be atomically changed.
	direntRefs uint64
}

// DefaultDirentCacheSize is the number of Dirents a MountSource can hold an
// extra reference on.
const DefaultDirentCacheSize uint64 = 1000

// NewMountSource returns a new MountSource.
func NewMountSource(mops MountSourceOperations, fsType string) *MountSource {
	msrc := &MountSource{
		MountSourceOperations: mops,
		FilesystemType:        fsType,
		fscache:               NewDirentCache(DefaultDirentCacheSize),
	}
	msrc.EnableLeakCheck("fs.MountSource")
	return msrc
}

// DirentRefs returns the current mount direntRefs.
func (msrc *MountSource) DirentRefs() uint64 {
	return atomic.LoadUint64(&msrc.direntRefs)
}

// IncDirentRefs increases direntRefs.
func (msrc *MountSource) IncDirentRefs() {
	atomic.AddUint64(&msrc.direntRefs, 1)
}

// DecDirentRefs decrements direntRefs.
func (msrc *MountSource) DecDirentRefs() {
	if atomic.AddUint64(&msrc.direntRefs, ^uint64(0)) == ^uint64(0) {
		panic("Decremented zero mount reference direntRefs")
	}
}

func (msrc *MountSource) destroy(ctx context.Context) {
	if c := msrc.DirentRefs(); c != 0 {
		panic(fmt.Sprintf("MountSource with non-zero direntRefs is being destroyed: %d", c))
	}
	msrc.MountSourceOperations.Destroy()
}

// DecRef drops a reference on the MountSource.
func (msrc *MountSource) DecRef(ctx context.Context) {
	msrc.DecRefWithDestructor(ctx, msrc.destroy)
}

// FlushDirentRefs drops all references held by the MountSource on Dirents.
func (msrc *MountSource) FlushDirentRefs(ctx context.Context) {
	msrc.fscache.Invalidate(ctx)
}

// SetDirentCacheMaxSize sets the max size of the dirent cache associated
// with this mount source.
func (msrc *MountSource) SetDirentCacheMaxSize(ctx context.Context, max uint64) {
	msrc.fscache.setMaxSize(ctx, max)
}

// SetDirentCacheLimiter sets the limiter object of the dirent cache
// associated with this mount source.
func (msrc *MountSource) SetDirentCacheLimiter(l *DirentCacheLimiter) {
	msrc.fscache.limit = l
}

// NewCachingMountSource returns a mount that will cache dirents
// aggressively.
func NewCachingMountSource(fsType string) *MountSource {
	return NewMountSource(&SimpleMountSourceOperations{keep: true}, fsType)
}

// NewNonCachingMountSource returns a mount that will never pin dirents.
func NewNonCachingMountSource(fsType string) *MountSource {
	return NewMountSource(&SimpleMountSourceOperations{keep: false}, fsType)
}

// NewPseudoMountSource returns a "pseudo" mount source that is not backed
// by an actual filesystem. It is always non-caching.
func NewPseudoMountSource() *MountSource {
	return NewMountSource(&SimpleMountSourceOperations{keep: false}, "none")
}

// SimpleMountSourceOperations implements MountSourceOperations.
type SimpleMountSourceOperations struct {
	keep bool
}

// Keep implements MountSourceOperations.Keep.
func (smo *SimpleMountSourceOperations) Keep(*Dirent) bool {
	return smo.keep
}

// DidCreateDirent implements MountSourceOperations.DidCreateDirent.
func (*SimpleMountSourceOperations) DidCreateDirent(context.Context, *Dirent) {}

// WillDestroyDirent implements MountSourceOperations.WillDestroyDirent.
func (*SimpleMountSourceOperations) WillDestroyDirent(context.Context, *Dirent) {}

// Destroy implements MountSourceOperations.Destroy.
func (*SimpleMountSourceOperations) Destroy() {}
