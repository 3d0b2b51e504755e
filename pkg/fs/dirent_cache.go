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

	"direntfs.dev/direntfs/pkg/context"
	"direntfs.dev/direntfs/pkg/sync"
)

// DirentCache is an LRU cache of strong Dirent references, pinning dirents
// until they are evicted. Since parents only cache weak references to
// their children, the pin is what keeps recently used dirents in memory
// across drops of the last external reference.
//
// A nil DirentCache corresponds to a cache with size 0.
type DirentCache struct {
	// mu protects currentSize and the list. It is the innermost lock in
	// the package and may be acquired while holding any Dirent lock.
	mu sync.Mutex

	// maxSize is the maximum number of entries. If maxSize is 0, the
	// cache is disabled and Add is a no-op.
	maxSize uint64

	// currentSize is the number of entries in the cache. Always less
	// than or equal to maxSize unless limit shrank underneath us.
	currentSize uint64

	// list is the eviction order, most recently used at the front.
	list direntList

	// limit restricts the number of entries across caches sharing it.
	// May be nil.
	limit *DirentCacheLimiter
}

// NewDirentCache returns a DirentCache with a size limit of maxSize.
func NewDirentCache(maxSize uint64) *DirentCache {
	return &DirentCache{
		maxSize: maxSize,
	}
}

// Add adds the element to the cache, taking a reference on d that the
// cache owns until eviction. Any existing entry for d is refreshed to most
// recently used.
func (c *DirentCache) Add(d *Dirent) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.contains(d) {
		// Already in cache; bump to front.
		c.list.Remove(d)
		c.list.PushFront(d)
		c.mu.Unlock()
		return
	}
	if c.maxSize == 0 {
		c.mu.Unlock()
		return
	}
	if c.limit != nil && !c.limit.tryInc() {
		// The global limit is reached; make room.
		c.evictLocked(context.Background())
		if !c.limit.tryInc() {
			c.mu.Unlock()
			return
		}
	}
	d.IncRef()
	c.list.PushFront(d)
	c.currentSize++
	for c.currentSize > c.maxSize {
		c.evictLocked(context.Background())
	}
	c.mu.Unlock()
}

// contains reports whether d is in the cache.
//
// Preconditions: c.mu must be held.
func (c *DirentCache) contains(d *Dirent) bool {
	return d.Next() != nil || d.Prev() != nil || c.list.Front() == d
}

// evictLocked evicts the least recently used entry.
//
// Preconditions: c.mu must be held.
func (c *DirentCache) evictLocked(ctx context.Context) {
	victim := c.list.Back()
	if victim == nil {
		return
	}
	c.list.Remove(victim)
	c.currentSize--
	if c.limit != nil {
		c.limit.dec()
	}
	// Release the pin asynchronously: the victim's destructor acquires
	// its parent's dirMu, which a caller of Add may already hold.
	Async(func() {
		victim.DecRef(ctx)
	})
}

// Remove removes the element from the cache and drops the cache's
// reference, if it was cached.
func (c *DirentCache) Remove(ctx context.Context, d *Dirent) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if !c.contains(d) {
		c.mu.Unlock()
		return
	}
	c.list.Remove(d)
	c.currentSize--
	if c.limit != nil {
		c.limit.dec()
	}
	c.mu.Unlock()
	Async(func() {
		d.DecRef(ctx)
	})
}

// Invalidate removes all entries from the cache.
func (c *DirentCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	for !c.list.Empty() {
		c.evictLocked(ctx)
	}
	c.mu.Unlock()
}

// Size returns the number of entries in the cache.
func (c *DirentCache) Size() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// setMaxSize sets cache max size, evicting as needed to fit.
func (c *DirentCache) setMaxSize(ctx context.Context, max uint64) {
	c.mu.Lock()
	c.maxSize = max
	for c.currentSize > max {
		c.evictLocked(ctx)
	}
	c.mu.Unlock()
}

func (c *DirentCache) String() string {
	if c == nil {
		return "DirentCache(nil)"
	}
	return fmt.Sprintf("DirentCache(%d/%d)", c.Size(), c.maxSize)
}
