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

	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/errors/linuxerr"
	"direntfs.dev/direntfs/pkg/fsmetric"
	"direntfs.dev/direntfs/pkg/refs"
)

// ancestorChain returns d followed by each of its ancestors up to the
// root. The chain is stable only while the mount source's renameMu is
// held, which excludes concurrent re-parenting. The entries carry no
// references; the caller's reference on d keeps the whole chain alive
// through the strong parent pointers.
func (d *Dirent) ancestorChain() []*Dirent {
	var chain []*Dirent
	for p := d; p != nil; p = p.parentDirent() {
		chain = append(chain, p)
	}
	return chain
}

func chainContains(chain []*Dirent, d *Dirent) bool {
	for _, p := range chain {
		if p == d {
			return true
		}
	}
	return false
}

// renameGuard holds the children locks of the one or two directories
// involved in a rename, acquired in a deterministic order.
type renameGuard struct {
	first  *Dirent
	second *Dirent
}

func (g renameGuard) unlock() {
	if g.second != nil {
		g.second.dirMu.Unlock()
	}
	g.first.dirMu.Unlock()
}

// lockForRename acquires the children locks of oldParent and newParent.
// If one directory is an ancestor of the other, the ancestor is locked
// first; otherwise ties are broken by stable inode identity, which is
// total within a mount source.
//
// Preconditions: the mount source's renameMu must be held; oldAnc and
// newAnc are the ancestor chains of the two parents.
func lockForRename(oldParent, newParent *Dirent, oldAnc, newAnc []*Dirent) renameGuard {
	if oldParent == newParent {
		oldParent.dirMu.Lock()
		return renameGuard{first: oldParent}
	}
	lockFirst := oldParent
	lockSecond := newParent
	switch {
	case chainContains(newAnc, oldParent):
		// oldParent is an ancestor of newParent; already in order.
	case chainContains(oldAnc, newParent):
		lockFirst, lockSecond = newParent, oldParent
	default:
		// Disjoint subtrees: order by inode identity.
		oldID := oldParent.Inode.StableAttr
		newID := newParent.Inode.StableAttr
		if newID.DeviceID < oldID.DeviceID ||
			(newID.DeviceID == oldID.DeviceID && newID.InodeID < oldID.InodeID) {
			lockFirst, lockSecond = newParent, oldParent
		}
	}
	lockFirst.dirMu.Lock()
	lockSecond.dirMu.Lock()
	return renameGuard{first: lockFirst, second: lockSecond}
}

// Rename atomically moves oldName in oldParent to newName in newParent,
// replacing any existing entry at the destination. Both directories must
// belong to the same mount source. Renaming an entry onto itself (same
// parent and same name, or a hard link of the same inode) succeeds without
// consulting the filesystem.
func Rename(ctx context.Context, oldParent *Dirent, oldName string, newParent *Dirent, newName string) error {
	start := time.Now()
	err := rename(ctx, oldParent, oldName, newParent, newName)
	fsmetric.RecordOp("rename", start, err)
	return err
}

func rename(ctx context.Context, oldParent *Dirent, oldName string, newParent *Dirent, newName string) error {
	if oldParent == newParent && oldName == newName {
		return nil
	}
	if IsReservedName(oldName) || IsReservedName(newName) {
		return linuxerr.EBUSY
	}
	if len(newName) > NameMax {
		return linuxerr.ENAMETOOLONG
	}
	if !oldParent.Inode.IsDir() || !newParent.Inode.IsDir() {
		return linuxerr.ENOTDIR
	}
	msrc := oldParent.Inode.MountSource
	if newParent.Inode.MountSource != msrc {
		return linuxerr.EXDEV
	}

	// Serialize against every other rename in this mount source. This
	// keeps ancestor chains stable for the cycle check and makes the
	// two-directory lock order below deadlock-free.
	msrc.renameMu.Lock()
	defer msrc.renameMu.Unlock()

	oldAnc := oldParent.ancestorChain()
	newAnc := newParent.ancestorChain()

	guard := lockForRename(oldParent, newParent, oldAnc, newAnc)

	// References upgraded while the guard is held are released only
	// after it is dropped; see removeEntry for why.
	var extraRefs []*Dirent
	defer func() {
		for _, e := range extraRefs {
			e.DecRef(ctx)
		}
	}()

	renamed, err := oldParent.findLocked(ctx, oldName)
	if err != nil {
		guard.unlock()
		return err
	}
	extraRefs = append(extraRefs, renamed)

	// Moving a directory into itself or its own subtree would detach it
	// from the tree.
	if renamed.Inode.IsDir() && chainContains(newAnc, renamed) {
		guard.unlock()
		return linuxerr.EINVAL
	}
	if renamed.mounted() {
		guard.unlock()
		return linuxerr.EBUSY
	}

	// Resolve the destination, tolerating its absence.
	var replaced *Dirent
	switch r, err := newParent.findLocked(ctx, newName); {
	case err == nil:
		replaced = r
		extraRefs = append(extraRefs, replaced)
	case linuxerr.Equals(linuxerr.ENOENT, err):
		// Nothing at the destination.
	default:
		guard.unlock()
		return err
	}

	var replacedInode *Inode
	if replaced != nil {
		if replaced.Inode == renamed.Inode {
			// Hard links to the same inode; POSIX requires success with
			// no effect.
			guard.unlock()
			return nil
		}
		if replaced.mounted() {
			guard.unlock()
			return linuxerr.EBUSY
		}
		if replaced.Inode.IsDir() {
			if !renamed.Inode.IsDir() {
				guard.unlock()
				return linuxerr.EISDIR
			}
			// A destination directory that is an ancestor of the source
			// necessarily contains it; avoid touching its lock.
			if chainContains(oldAnc, replaced) {
				guard.unlock()
				return linuxerr.ENOTEMPTY
			}
			replaced.dirMu.RLock()
			live := replaced.liveChildren()
			replaced.dirMu.RUnlock()
			extraRefs = append(extraRefs, live...)
			if len(live) != 0 {
				guard.unlock()
				return linuxerr.ENOTEMPTY
			}
		} else if renamed.Inode.IsDir() {
			guard.unlock()
			return linuxerr.ENOTDIR
		}
		replacedInode = replaced.Inode
	}

	// Durable rename; the only fallible step left.
	if err := renamed.Inode.Rename(ctx, oldParent.Inode, oldName, newParent.Inode, newName, replacedInode); err != nil {
		guard.unlock()
		return err
	}

	// Commit. Nothing below may fail.
	w := refs.NewWeakRef(renamed, nil)
	var droppedWeaks []*refs.WeakRef
	if c, ok := newParent.children.Get(cachedChild{name: newName}); ok {
		newParent.children.Delete(c)
		droppedWeaks = append(droppedWeaks, c.w)
	}
	newParent.children.ReplaceOrInsert(cachedChild{name: newName, w: w})
	if c, ok := oldParent.children.Get(cachedChild{name: oldName}); ok {
		oldParent.children.Delete(c)
		droppedWeaks = append(droppedWeaks, c.w)
	}
	if replaced != nil {
		replaced.setCacheSlot(nil)
	}

	newParent.IncRef()
	renamed.mu.Lock()
	oldParentRef := renamed.parent
	renamed.parent = newParent
	renamed.name = newName
	renamed.cacheSlot = w
	renamed.mu.Unlock()

	guard.unlock()

	// The superseded weak references are dropped with the guard
	// released; the replaced entry is live (we hold a reference), so the
	// net reference change is zero.
	for _, dw := range droppedWeaks {
		dw.Drop(ctx)
	}
	if oldParentRef != nil {
		oldParentRef.DecRef(ctx)
	}
	if replaced != nil {
		msrc.WillDestroyDirent(ctx, replaced)
		msrc.fscache.Remove(ctx, replaced)
	}
	oldParent.Inode.NotifyStatusChange(ctx)
	newParent.Inode.NotifyStatusChange(ctx)
	ctx.Debugf("renamed dirent %q to %q", oldName, newName)
	return nil
}
