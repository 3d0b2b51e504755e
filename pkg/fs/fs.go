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

// Package fs implements the in-memory directory-entry cache of a virtual
// filesystem layer.
//
// Specific filesystem implementations must implement the InodeOperations
// interface (inode.go).
//
// Dirents (dirent.go) wrap Inodes in a caching layer: each directory Dirent
// holds weak references to its cached children, while children hold strong
// references to their parent. MountSources (mount.go) tie a tree of Dirents
// to one filesystem instance and own the per-filesystem rename mutex.
//
// When multiple locks are to be held at the same time, they must be
// acquired in the following order:
//
//	MountSource.renameMu
//	  Dirent.dirMu
//	    Dirent.mu
//	      DirentCache.mu
//	      Locks in InodeOperations implementations
//	        MountSource.mu
//
// Dirent.mu is a leaf lock with respect to other dirent locks: no other
// dirent lock may be acquired while it is held.
//
// If children locks of two Dirents must be taken, renameMu must be taken
// first and the two dirMu in the order computed by renameGuard: the
// ancestor's lock before the descendant's, with inode numbers breaking the
// tie between unrelated directories.
//
// A Dirent must never be DecRef'd while holding its own dirMu or its
// parent's dirMu: the destructor re-enters the parent's dirMu to purge the
// stale cache slot.
package fs

import (
	"direntfs.dev/direntfs/pkg/sync"
)

// work is a sync.WaitGroup that can be used to queue asynchronous
// operations via Async. Callers can use AsyncBarrier to ensure no
// operations are outstanding.
var work sync.WaitGroup

// AsyncBarrier waits for all outstanding asynchronous work to complete.
func AsyncBarrier() {
	work.Wait()
}

// Async executes a function asynchronously.
func Async(f func()) {
	work.Add(1)
	go func() {
		defer work.Done() // Ensure Done in case of panic.
		f()
	}()
}
