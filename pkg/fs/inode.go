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
	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/errors/linuxerr"
	"direntfs.dev/direntfs/pkg/refs"
)

// Inode is a filesystem object that can be simultaneously referenced by
// different components of the VFS (multiple Dirents hard-linking to one
// file, open file descriptions, and so on).
//
// The entry cache treats the Inode as a black box: all durable effects
// happen through InodeOperations, and the cache only updates its own
// structures after those operations commit.
type Inode struct {
	// AtomicRefCount is our reference count.
	refs.AtomicRefCount

	// InodeOperations is the filesystem specific behavior of the Inode.
	InodeOperations InodeOperations

	// StableAttr are stable cached attributes of the Inode.
	StableAttr StableAttr

	// MountSource is the mount source this Inode is a part of.
	MountSource *MountSource
}

// InodeOperations are the operations the entry cache consumes from a
// concrete filesystem. Implementations must perform their own
// authoritative checks (e.g. directory emptiness on RemoveDirectory); the
// cache's pre-checks consult only cached state.
type InodeOperations interface {
	// Lookup loads an Inode at name into a Dirent-ready Inode. The
	// returned Inode carries its own reference; the caller owns it.
	Lookup(ctx context.Context, dir *Inode, name string) (*Inode, error)

	// Create creates a regular file in directory dir.
	Create(ctx context.Context, dir *Inode, name string) (*Inode, error)

	// CreateDirectory creates a directory in directory dir.
	CreateDirectory(ctx context.Context, dir *Inode, name string) (*Inode, error)

	// CreateSymlink creates a symbolic link under dir pointing at target.
	CreateSymlink(ctx context.Context, dir *Inode, name, target string) (*Inode, error)

	// CreateLink creates a hard link to target under dir. The returned
	// Inode shares target's backing object.
	CreateLink(ctx context.Context, dir *Inode, name string, target *Inode) (*Inode, error)

	// Remove removes the name from dir. victim is the Inode the name
	// currently refers to.
	Remove(ctx context.Context, dir *Inode, name string, victim *Inode) error

	// RemoveDirectory removes the directory name from dir. The
	// implementation performs the authoritative emptiness check.
	RemoveDirectory(ctx context.Context, dir *Inode, name string, victim *Inode) error

	// Rename atomically moves oldName under oldParent to newName under
	// newParent, replacing replaced if it is non-nil. This is the durable
	// commit of a rename: once it returns nil, the cache update is
	// unconditional.
	Rename(ctx context.Context, oldParent *Inode, oldName string, newParent *Inode, newName string, renamed, replaced *Inode) error

	// NotifyStatusChange updates the inode's change time.
	NotifyStatusChange(ctx context.Context)

	// Release releases all resources of the backing object. Called when
	// the last reference to the owning Inode is dropped.
	Release(ctx context.Context)
}

// NewInode constructs an Inode from InodeOperations, a MountSource, and
// stable attributes.
//
// NewInode takes a reference on msrc.
func NewInode(iops InodeOperations, msrc *MountSource, sattr StableAttr) *Inode {
	msrc.IncRef()
	i := Inode{
		InodeOperations: iops,
		StableAttr:      sattr,
		MountSource:     msrc,
	}
	i.EnableLeakCheck("fs.Inode")
	return &i
}

// DecRef drops a reference on the Inode.
func (i *Inode) DecRef(ctx context.Context) {
	i.DecRefWithDestructor(ctx, i.destroy)
}

// destroy releases the Inode and the msrc reference taken at construction.
func (i *Inode) destroy(ctx context.Context) {
	i.InodeOperations.Release(ctx)
	i.MountSource.DecRef(ctx)
}

// IsDir returns true if the Inode is a directory.
func (i *Inode) IsDir() bool {
	return IsDir(i.StableAttr)
}

// Lookup calls i.InodeOperations.Lookup with i as the directory.
func (i *Inode) Lookup(ctx context.Context, name string) (*Inode, error) {
	if !i.IsDir() {
		return nil, linuxerr.ENOTDIR
	}
	return i.InodeOperations.Lookup(ctx, i, name)
}

// Create calls i.InodeOperations.Create with i as the directory.
func (i *Inode) Create(ctx context.Context, name string) (*Inode, error) {
	return i.InodeOperations.Create(ctx, i, name)
}

// CreateDirectory calls i.InodeOperations.CreateDirectory with i as the
// directory.
func (i *Inode) CreateDirectory(ctx context.Context, name string) (*Inode, error) {
	return i.InodeOperations.CreateDirectory(ctx, i, name)
}

// CreateSymlink calls i.InodeOperations.CreateSymlink with i as the
// directory.
func (i *Inode) CreateSymlink(ctx context.Context, name, target string) (*Inode, error) {
	return i.InodeOperations.CreateSymlink(ctx, i, name, target)
}

// CreateLink calls i.InodeOperations.CreateLink with i as the directory.
func (i *Inode) CreateLink(ctx context.Context, name string, target *Inode) (*Inode, error) {
	return i.InodeOperations.CreateLink(ctx, i, name, target)
}

// Remove calls i.InodeOperations.Remove with i as the directory.
func (i *Inode) Remove(ctx context.Context, name string, victim *Inode) error {
	return i.InodeOperations.Remove(ctx, i, name, victim)
}

// RemoveDirectory calls i.InodeOperations.RemoveDirectory with i as the
// directory.
func (i *Inode) RemoveDirectory(ctx context.Context, name string, victim *Inode) error {
	return i.InodeOperations.RemoveDirectory(ctx, i, name, victim)
}

// Rename calls i.InodeOperations.Rename with i as the inode being renamed.
func (i *Inode) Rename(ctx context.Context, oldParent *Inode, oldName string, newParent *Inode, newName string, replaced *Inode) error {
	return i.InodeOperations.Rename(ctx, oldParent, oldName, newParent, newName, i, replaced)
}

// NotifyStatusChange calls i.InodeOperations.NotifyStatusChange.
func (i *Inode) NotifyStatusChange(ctx context.Context) {
	i.InodeOperations.NotifyStatusChange(ctx)
}
