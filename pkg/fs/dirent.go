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
	"time"

	"github.com/google/btree"

	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/errors/linuxerr"
	"direntfs.dev/direntfs/pkg/fsmetric"
	"direntfs.dev/direntfs/pkg/refs"
	"direntfs.dev/direntfs/pkg/sync"
)

// NameMax is the maximum length of a path component, per Linux's NAME_MAX.
const NameMax = 255

// IsReservedName returns true if name is reserved and may never be created,
// removed, or stored as a children-cache key.
func IsReservedName(name string) bool {
	return name == "" || name == "." || name == ".."
}

// cachedChild is one slot of a directory's children cache: a name bound to
// a weak reference. Slots are kept in name order.
type cachedChild struct {
	name string
	w    *refs.WeakRef
}

func childLess(a, b cachedChild) bool {
	return a.name < b.name
}

// childrenDegree is the btree degree of the children cache.
const childrenDegree = 16

// Dirent holds an Inode in memory at a given name in a parent directory.
//
// The parent/child relationship is deliberately asymmetric: a Dirent holds
// a strong reference to its parent, while the parent caches only a weak
// reference to the child. Dropping the last strong reference to a child
// therefore reclaims it, and its destructor purges the now-stale slot from
// the parent's cache.
//
// Dirents are reference counted. Unless otherwise noted, all methods
// require that the caller holds a reference.
type Dirent struct {
	refs.AtomicRefCount

	// direntEntry links this Dirent into a DirentCache's eviction list.
	direntEntry

	// Inode is the strong reference to the backing filesystem object.
	// Shared by every Dirent that hard-links to the same object. It is
	// set at construction and cleared only by the destructor.
	Inode *Inode

	// mu is the state lock, guarding parent, name, mounts and cacheSlot.
	// It is a leaf lock: no other dirent lock may be acquired while it
	// is held.
	mu sync.Mutex

	// parent is a strong reference to the parent directory, nil only for
	// a filesystem root or an anonymous Dirent.
	parent *Dirent

	// name is the name (i.e. untrusted component of a path) of this
	// Dirent in its parent. It is authoritative only within this cache,
	// not across mount boundaries.
	name string

	// mounts is the number of filesystems mounted directly on this
	// Dirent. While non-zero the Dirent can be neither unlinked nor
	// replaced by a rename.
	mounts uint32

	// cacheSlot is the weak reference currently indexing this Dirent in
	// parent's children cache, or nil if this Dirent is not hashed. The
	// destructor uses it as an identity check so that it never purges a
	// slot that has already been taken over by a newer Dirent with the
	// same name.
	cacheSlot *refs.WeakRef

	// dirMu is the children lock. It may be held while acquiring a
	// different Dirent's dirMu only in the order computed by
	// lockForRename, and never while holding any Dirent's mu.
	dirMu sync.RWMutex

	// children maps names to weak references of cached child Dirents, in
	// name order. Entries are populated lazily by Walk and the creation
	// operations and are silently absent if never looked up or already
	// reclaimed. nil for non-directories.
	children *btree.BTreeG[cachedChild]
}

// NewDirent returns a new root (i.e. parentless) Dirent, taking the caller's
// reference on inode. The caller owns the returned reference.
func NewDirent(inode *Inode, name string) *Dirent {
	return newDirent(inode, nil, name)
}

// newDirent returns a new Dirent, taking the caller's reference on inode
// and acquiring a new reference on parent.
func newDirent(inode *Inode, parent *Dirent, name string) *Dirent {
	if parent != nil {
		parent.IncRef()
	}
	d := &Dirent{
		Inode:  inode,
		parent: parent,
		name:   name,
	}
	if inode.IsDir() {
		d.children = btree.NewG(childrenDegree, childLess)
	}
	d.EnableLeakCheck("fs.Dirent")
	inode.MountSource.IncDirentRefs()
	return d
}

// Name returns the name this Dirent's parent uses for it.
func (d *Dirent) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Parent returns this Dirent's parent with a new reference, or nil if this
// Dirent is the root or is otherwise unrooted.
func (d *Dirent) Parent() *Dirent {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.parent != nil {
		d.parent.IncRef()
	}
	return d.parent
}

// ParentOrSelf returns this Dirent's parent, or the Dirent itself when it
// has no parent, with a new reference. This is the ".." of a root.
func (d *Dirent) ParentOrSelf() *Dirent {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.parent == nil {
		d.IncRef()
		return d
	}
	d.parent.IncRef()
	return d.parent
}

// IsRoot returns true if this Dirent has no parent.
func (d *Dirent) IsRoot() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parent == nil
}

// parentDirent returns the parent without taking a reference. Only for
// pointer-identity use while the caller already keeps the chain alive.
func (d *Dirent) parentDirent() *Dirent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parent
}

// RegisterMount records that a filesystem has been mounted directly on
// this Dirent, pinning it against unlink and rename.
func (d *Dirent) RegisterMount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mounts++
}

// UnregisterMount undoes a previous RegisterMount. Unregistering with no
// mounts outstanding is a contract violation and panics.
func (d *Dirent) UnregisterMount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounts == 0 {
		panic("UnregisterMount: no mounts registered on dirent")
	}
	d.mounts--
}

// MountCount returns the number of filesystems mounted directly on this
// Dirent. The value is inherently racy absent external serialization.
func (d *Dirent) MountCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounts
}

func (d *Dirent) mounted() bool {
	return d.MountCount() != 0
}

// setCacheSlot records the weak reference indexing this Dirent in its
// parent's children cache.
func (d *Dirent) setCacheSlot(w *refs.WeakRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cacheSlot = w
}

// DecRef decrements the Dirent's reference count, destroying it when the
// last reference is dropped. The caller must not hold d's dirMu or d's
// parent's dirMu.
func (d *Dirent) DecRef(ctx context.Context) {
	d.DecRefWithDestructor(ctx, d.destroy)
}

// destroy runs when the last strong reference to d is dropped. It purges
// d's slot from the parent's children cache, but only if the slot still
// belongs to d: a newer Dirent may already have taken over the name, and
// its slot must not be disturbed.
func (d *Dirent) destroy(ctx context.Context) {
	d.mu.Lock()
	parent := d.parent
	name := d.name
	w := d.cacheSlot
	d.parent = nil
	d.cacheSlot = nil
	d.mu.Unlock()

	if parent != nil {
		if w != nil {
			var (
				resurrected refs.RefCounter
				stale       *refs.WeakRef
			)
			parent.dirMu.Lock()
			if c, ok := parent.children.Get(cachedChild{name: name}); ok && c.w == w {
				// The pointer matches, but the slot is only ours if it
				// cannot be upgraded: a pooled WeakRef may have been
				// reused for a live successor of the same name.
				if rc := c.w.Get(); rc != nil {
					resurrected = rc
				} else {
					parent.children.Delete(c)
					stale = c.w
				}
			}
			parent.dirMu.Unlock()
			if resurrected != nil {
				resurrected.DecRef(ctx)
			}
			if stale != nil {
				stale.Drop(ctx)
			}
		}
		parent.DecRef(ctx)
	}

	d.Inode.MountSource.DecDirentRefs()
	d.Inode.DecRef(ctx)
}

// Walk resolves a single path component under this directory, consulting
// the children cache and falling back to the Inode's Lookup operation. On
// success the returned Dirent carries a reference owned by the caller.
func (d *Dirent) Walk(ctx context.Context, name string) (*Dirent, error) {
	start := time.Now()
	child, err := d.walk(ctx, name)
	fsmetric.RecordOp("walk", start, err)
	return child, err
}

func (d *Dirent) walk(ctx context.Context, name string) (*Dirent, error) {
	if !d.Inode.IsDir() {
		return nil, linuxerr.ENOTDIR
	}
	if name == "" || name == "." {
		d.IncRef()
		return d, nil
	}
	if name == ".." {
		return d.ParentOrSelf(), nil
	}
	if len(name) > NameMax {
		return nil, linuxerr.ENAMETOOLONG
	}

	// Fast path: live cached entry.
	d.dirMu.RLock()
	if c, ok := d.children.Get(cachedChild{name: name}); ok {
		if rc := c.w.Get(); rc != nil {
			d.dirMu.RUnlock()
			fsmetric.CacheHit()
			return rc.(*Dirent), nil
		}
	}
	d.dirMu.RUnlock()
	fsmetric.CacheMiss()

	// Slow path: consult the filesystem with no locks held. A failed
	// lookup leaves the cache untouched; negative results are never
	// cached.
	childInode, err := d.Inode.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	d.dirMu.Lock()
	// Re-check under the write lock: another walk may have raced in
	// while the lock was released. If so, it wins and our inode is
	// discarded.
	if c, ok := d.children.Get(cachedChild{name: name}); ok {
		if rc := c.w.Get(); rc != nil {
			d.dirMu.Unlock()
			childInode.DecRef(ctx)
			return rc.(*Dirent), nil
		}
		// Stale slot; safe to reclaim inline since the target is dead.
		d.children.Delete(c)
		c.w.Drop(ctx)
	}
	child := d.hashChildLocked(childInode, name)
	d.dirMu.Unlock()
	return child, nil
}

// hashChildLocked wraps childInode into a new child Dirent, inserts its
// weak reference into the children cache and applies the mount source's
// pinning policy. It takes ownership of the caller's reference on
// childInode and returns a referenced Dirent.
//
// Preconditions: d.dirMu must be held for writing; no live slot exists for
// name.
func (d *Dirent) hashChildLocked(childInode *Inode, name string) *Dirent {
	child := newDirent(childInode, d, name)
	w := refs.NewWeakRef(child, nil)
	child.setCacheSlot(w)
	d.children.ReplaceOrInsert(cachedChild{name: name, w: w})

	// Optionally pin the child beyond active references.
	if msrc := d.Inode.MountSource; msrc.Keep(child) {
		msrc.fscache.Add(child)
	}
	return child
}

// findLocked resolves name to a referenced child Dirent, populating the
// cache from the filesystem if needed.
//
// Preconditions: d.dirMu must be held for writing.
func (d *Dirent) findLocked(ctx context.Context, name string) (*Dirent, error) {
	if c, ok := d.children.Get(cachedChild{name: name}); ok {
		if rc := c.w.Get(); rc != nil {
			fsmetric.CacheHit()
			return rc.(*Dirent), nil
		}
		d.children.Delete(c)
		c.w.Drop(ctx)
	}
	fsmetric.CacheMiss()
	childInode, err := d.Inode.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return d.hashChildLocked(childInode, name), nil
}

// createEntry implements the shared skeleton of all node-creating
// operations. create is invoked only after the name has been validated and
// found absent from the cache; on error the cache is left untouched.
func (d *Dirent) createEntry(ctx context.Context, op, name string, create func() (*Inode, error)) (*Dirent, error) {
	start := time.Now()
	child, err := d.createEntryInner(ctx, name, create)
	fsmetric.RecordOp(op, start, err)
	return child, err
}

func (d *Dirent) createEntryInner(ctx context.Context, name string, create func() (*Inode, error)) (*Dirent, error) {
	if IsReservedName(name) {
		return nil, linuxerr.EINVAL
	}
	if len(name) > NameMax {
		return nil, linuxerr.ENAMETOOLONG
	}
	if !d.Inode.IsDir() {
		return nil, linuxerr.ENOTDIR
	}

	d.dirMu.Lock()
	if c, ok := d.children.Get(cachedChild{name: name}); ok {
		if rc := c.w.Get(); rc != nil {
			// A live entry already binds this name; the constructor is
			// never invoked for a redundant creation attempt.
			d.dirMu.Unlock()
			rc.DecRef(ctx)
			return nil, linuxerr.EEXIST
		}
		d.children.Delete(c)
		c.w.Drop(ctx)
	}

	childInode, err := create()
	if err != nil {
		d.dirMu.Unlock()
		return nil, err
	}
	child := d.hashChildLocked(childInode, name)
	d.dirMu.Unlock()

	d.Inode.NotifyStatusChange(ctx)
	d.Inode.MountSource.DidCreateDirent(ctx, child)
	ctx.Debugf("created dirent %q", name)
	return child, nil
}

// Create creates a regular file under this directory.
func (d *Dirent) Create(ctx context.Context, name string) (*Dirent, error) {
	return d.createEntry(ctx, "create", name, func() (*Inode, error) {
		return d.Inode.Create(ctx, name)
	})
}

// CreateDirectory creates a directory under this directory.
func (d *Dirent) CreateDirectory(ctx context.Context, name string) (*Dirent, error) {
	return d.createEntry(ctx, "mkdir", name, func() (*Inode, error) {
		return d.Inode.CreateDirectory(ctx, name)
	})
}

// CreateSymlink creates a symbolic link under this directory.
func (d *Dirent) CreateSymlink(ctx context.Context, name, target string) (*Dirent, error) {
	return d.createEntry(ctx, "symlink", name, func() (*Inode, error) {
		return d.Inode.CreateSymlink(ctx, name, target)
	})
}

// CreateLink creates a hard link to target under this directory.
func (d *Dirent) CreateLink(ctx context.Context, name string, target *Dirent) (*Dirent, error) {
	if target.Inode.IsDir() {
		// Directories cannot be hard-linked.
		return nil, linuxerr.EPERM
	}
	return d.createEntry(ctx, "link", name, func() (*Inode, error) {
		return d.Inode.CreateLink(ctx, name, target.Inode)
	})
}

// Remove removes the non-directory name from this directory.
func (d *Dirent) Remove(ctx context.Context, name string) error {
	start := time.Now()
	err := d.removeEntry(ctx, name, false /* dir */)
	fsmetric.RecordOp("unlink", start, err)
	return err
}

// RemoveDirectory removes the directory name from this directory.
func (d *Dirent) RemoveDirectory(ctx context.Context, name string) error {
	start := time.Now()
	err := d.removeEntry(ctx, name, true /* dir */)
	fsmetric.RecordOp("rmdir", start, err)
	return err
}

func (d *Dirent) removeEntry(ctx context.Context, name string, dir bool) error {
	if IsReservedName(name) {
		return linuxerr.EINVAL
	}
	if !d.Inode.IsDir() {
		return linuxerr.ENOTDIR
	}

	// References upgraded below are released only after dirMu is dropped:
	// DecRef of a child while holding its parent's dirMu can deadlock
	// against the child's destructor.
	var extraRefs []*Dirent
	d.dirMu.Lock()
	err := func() error {
		child, err := d.findLocked(ctx, name)
		if err != nil {
			return err
		}
		extraRefs = append(extraRefs, child)

		if child.mounted() {
			return linuxerr.EBUSY
		}
		if dir {
			if !child.Inode.IsDir() {
				return linuxerr.ENOTDIR
			}
			// Conservative, cache-only pre-check; the Inode performs the
			// authoritative one.
			child.dirMu.RLock()
			live := child.liveChildren()
			child.dirMu.RUnlock()
			extraRefs = append(extraRefs, live...)
			if len(live) != 0 {
				return linuxerr.ENOTEMPTY
			}
			if err := d.Inode.RemoveDirectory(ctx, name, child.Inode); err != nil {
				return err
			}
		} else {
			if child.Inode.IsDir() {
				return linuxerr.EISDIR
			}
			if err := d.Inode.Remove(ctx, name, child.Inode); err != nil {
				return err
			}
		}

		// The durable removal committed; everything below is
		// infallible.
		if c, ok := d.children.Get(cachedChild{name: name}); ok {
			d.children.Delete(c)
			child.setCacheSlot(nil)
			// The target is live (we hold a reference), so the net
			// reference change of Drop is zero.
			c.w.Drop(ctx)
		}
		d.Inode.MountSource.fscache.Remove(ctx, child)
		return nil
	}()
	d.dirMu.Unlock()

	if err == nil {
		d.Inode.NotifyStatusChange(ctx)
		if len(extraRefs) != 0 {
			d.Inode.MountSource.WillDestroyDirent(ctx, extraRefs[0])
		}
		ctx.Debugf("removed dirent %q", name)
	}
	for _, e := range extraRefs {
		e.DecRef(ctx)
	}
	return err
}

// liveChildren upgrades every cached child that is still alive and returns
// them. The caller owns the returned references and must release them only
// after dropping d.dirMu.
//
// Preconditions: d.dirMu must be held (read suffices).
func (d *Dirent) liveChildren() []*Dirent {
	var live []*Dirent
	d.children.Ascend(func(c cachedChild) bool {
		if rc := c.w.Get(); rc != nil {
			live = append(live, rc.(*Dirent))
		}
		return true
	})
	return live
}

// VisitChildren calls fn for every live cached child, in name order,
// stopping early if fn returns false. The children cache reflects only
// entries that have been looked up and are still in memory; it is a
// diagnostic view, not an authoritative directory listing.
//
// fn must not retain child beyond the call.
func (d *Dirent) VisitChildren(fn func(name string, child *Dirent) bool) {
	type pair struct {
		name  string
		child *Dirent
	}
	var pairs []pair
	d.dirMu.RLock()
	if d.children != nil {
		d.children.Ascend(func(c cachedChild) bool {
			if rc := c.w.Get(); rc != nil {
				pairs = append(pairs, pair{c.name, rc.(*Dirent)})
			}
			return true
		})
	}
	d.dirMu.RUnlock()

	cont := true
	ctx := context.Background()
	for _, p := range pairs {
		if cont {
			cont = fn(p.name, p.child)
		}
		p.child.DecRef(ctx)
	}
}

// RemoveChild purges the cache slot for name, if any. If the slot still
// resolved to a live Dirent, the filesystem is notified that the entry is
// going away. The backing store is not consulted.
func (d *Dirent) RemoveChild(ctx context.Context, name string) {
	if !d.Inode.IsDir() {
		return
	}
	var child *Dirent
	d.dirMu.Lock()
	if c, ok := d.children.Get(cachedChild{name: name}); ok {
		d.children.Delete(c)
		if rc := c.w.Get(); rc != nil {
			child = rc.(*Dirent)
			child.setCacheSlot(nil)
		}
		c.w.Drop(ctx)
	}
	d.dirMu.Unlock()

	if child != nil {
		d.Inode.MountSource.WillDestroyDirent(ctx, child)
		d.Inode.MountSource.fscache.Remove(ctx, child)
		child.DecRef(ctx)
	}
}

// flush drops all stale cache slots. Live entries are left in place.
func (d *Dirent) flush(ctx context.Context) {
	var (
		stale []*refs.WeakRef
		live  []*Dirent
	)
	d.dirMu.Lock()
	if d.children != nil {
		var dead []cachedChild
		d.children.Ascend(func(c cachedChild) bool {
			if rc := c.w.Get(); rc != nil {
				live = append(live, rc.(*Dirent))
			} else {
				dead = append(dead, c)
			}
			return true
		})
		for _, c := range dead {
			d.children.Delete(c)
			stale = append(stale, c.w)
		}
	}
	d.dirMu.Unlock()

	for _, w := range stale {
		w.Drop(ctx)
	}
	for _, child := range live {
		child.DecRef(ctx)
	}
}
