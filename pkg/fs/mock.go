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
	"direntfs.dev/direntfs/pkg/device"
	"direntfs.dev/direntfs/pkg/errors/linuxerr"
	"direntfs.dev/direntfs/pkg/sync"
)

// mockDevice is the mock filesystem device.
var mockDevice = device.SimpleDevices.NewAnonDevice()

// mockEntry is party to a MockInodeOperations directory: enough state to
// reconstruct the child Inode on demand, the way a real filesystem reloads
// an inode from its backing store.
type mockEntry struct {
	ops   *MockInodeOperations
	sattr StableAttr
}

// MockInodeOperations implements InodeOperations for testing. Directories
// keep a durable name table independent of the entry cache, so cached
// state and durable state can be compared by tests.
type MockInodeOperations struct {
	// mu protects everything below. It nests inside all dirent locks.
	mu sync.Mutex

	// entries is the durable name table. Non-nil iff this is a
	// directory.
	entries map[string]*mockEntry

	// target is the symlink target, if any.
	target string

	// err, if non-nil, is returned by every mutating operation. Used to
	// verify that failed durable operations leave the cache untouched.
	err error

	// Counters observed by tests.
	lookupCalls   int
	createCalls   int
	renameCalls   int
	statusTouches int

	releaseCalled bool
}

// statusChangeCount returns how often NotifyStatusChange fired.
func (m *MockInodeOperations) statusChangeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusTouches
}

func (m *MockInodeOperations) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func mockAttr(t InodeType) StableAttr {
	return StableAttr{
		Type:     t,
		DeviceID: mockDevice.DeviceID(),
		InodeID:  mockDevice.NextIno(),
	}
}

// NewMockDirInode returns an Inode for a new empty mock directory.
func NewMockDirInode(msrc *MountSource) *Inode {
	return NewInode(&MockInodeOperations{entries: make(map[string]*mockEntry)}, msrc, mockAttr(Directory))
}

// NewMockFileInode returns an Inode for a new mock regular file.
func NewMockFileInode(msrc *MountSource) *Inode {
	return NewInode(&MockInodeOperations{}, msrc, mockAttr(RegularFile))
}

// Lookup implements InodeOperations.Lookup.
func (m *MockInodeOperations) Lookup(ctx context.Context, dir *Inode, name string) (*Inode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupCalls++
	e, ok := m.entries[name]
	if !ok {
		return nil, linuxerr.ENOENT
	}
	return NewInode(e.ops, dir.MountSource, e.sattr), nil
}

// Create implements InodeOperations.Create.
func (m *MockInodeOperations) Create(ctx context.Context, dir *Inode, name string) (*Inode, error) {
	return m.createEntry(dir, name, &MockInodeOperations{}, mockAttr(RegularFile))
}

// CreateDirectory implements InodeOperations.CreateDirectory.
func (m *MockInodeOperations) CreateDirectory(ctx context.Context, dir *Inode, name string) (*Inode, error) {
	return m.createEntry(dir, name, &MockInodeOperations{entries: make(map[string]*mockEntry)}, mockAttr(Directory))
}

// CreateSymlink implements InodeOperations.CreateSymlink.
func (m *MockInodeOperations) CreateSymlink(ctx context.Context, dir *Inode, name, target string) (*Inode, error) {
	return m.createEntry(dir, name, &MockInodeOperations{target: target}, mockAttr(Symlink))
}

// CreateLink implements InodeOperations.CreateLink.
func (m *MockInodeOperations) CreateLink(ctx context.Context, dir *Inode, name string, target *Inode) (*Inode, error) {
	return m.createEntry(dir, name, target.InodeOperations.(*MockInodeOperations), target.StableAttr)
}

func (m *MockInodeOperations) createEntry(dir *Inode, name string, ops *MockInodeOperations, sattr StableAttr) (*Inode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.entries[name]; ok {
		return nil, linuxerr.EEXIST
	}
	m.entries[name] = &mockEntry{ops: ops, sattr: sattr}
	return NewInode(ops, dir.MountSource, sattr), nil
}

// Remove implements InodeOperations.Remove.
func (m *MockInodeOperations) Remove(ctx context.Context, dir *Inode, name string, victim *Inode) error {
	return m.removeEntry(name, false)
}

// RemoveDirectory implements InodeOperations.RemoveDirectory.
func (m *MockInodeOperations) RemoveDirectory(ctx context.Context, dir *Inode, name string, victim *Inode) error {
	return m.removeEntry(name, true)
}

func (m *MockInodeOperations) removeEntry(name string, dir bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e, ok := m.entries[name]
	if !ok {
		return linuxerr.ENOENT
	}
	if dir {
		if !IsDir(e.sattr) {
			return linuxerr.ENOTDIR
		}
		e.ops.mu.Lock()
		empty := len(e.ops.entries) == 0
		e.ops.mu.Unlock()
		if !empty {
			return linuxerr.ENOTEMPTY
		}
	} else if IsDir(e.sattr) {
		return linuxerr.EISDIR
	}
	delete(m.entries, name)
	return nil
}

// Rename implements InodeOperations.Rename. The receiver is the renamed
// node's operations; the durable move happens in the two parents' tables.
func (m *MockInodeOperations) Rename(ctx context.Context, oldParent *Inode, oldName string, newParent *Inode, newName string, renamed, replaced *Inode) error {
	m.mu.Lock()
	m.renameCalls++
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return err
	}

	oldOps := oldParent.InodeOperations.(*MockInodeOperations)
	newOps := newParent.InodeOperations.(*MockInodeOperations)

	oldOps.mu.Lock()
	e, ok := oldOps.entries[oldName]
	if ok {
		delete(oldOps.entries, oldName)
	}
	oldOps.mu.Unlock()
	if !ok {
		return linuxerr.ENOENT
	}

	newOps.mu.Lock()
	newOps.entries[newName] = e
	newOps.mu.Unlock()
	return nil
}

// NotifyStatusChange implements InodeOperations.NotifyStatusChange.
func (m *MockInodeOperations) NotifyStatusChange(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusTouches++
}

// Release implements InodeOperations.Release.
func (m *MockInodeOperations) Release(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalled = true
}
