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

// direntList is an intrusive doubly-linked list of Dirents. A Dirent may
// be a member of at most one direntList at a time.
//
// The zero value is an empty list.
type direntList struct {
	head *Dirent
	tail *Dirent
}

// Empty returns true iff the list contains no entries.
func (l *direntList) Empty() bool {
	return l.head == nil
}

// Front returns the first entry, or nil.
func (l *direntList) Front() *Dirent {
	return l.head
}

// Back returns the last entry, or nil.
func (l *direntList) Back() *Dirent {
	return l.tail
}

// PushFront inserts d at the front of the list.
func (l *direntList) PushFront(d *Dirent) {
	d.SetNext(l.head)
	d.SetPrev(nil)
	if l.head != nil {
		l.head.SetPrev(d)
	} else {
		l.tail = d
	}
	l.head = d
}

// Remove unlinks d from the list.
func (l *direntList) Remove(d *Dirent) {
	prev := d.Prev()
	next := d.Next()
	if prev != nil {
		prev.SetNext(next)
	} else if l.head == d {
		l.head = next
	}
	if next != nil {
		next.SetPrev(prev)
	} else if l.tail == d {
		l.tail = prev
	}
	d.SetNext(nil)
	d.SetPrev(nil)
}

// direntEntry provides the linkage embedded in Dirent.
type direntEntry struct {
	next *Dirent
	prev *Dirent
}

// Next returns the following Dirent in the list.
func (e *direntEntry) Next() *Dirent {
	return e.next
}

// Prev returns the preceding Dirent in the list.
func (e *direntEntry) Prev() *Dirent {
	return e.prev
}

// SetNext assigns next to the entry.
func (e *direntEntry) SetNext(d *Dirent) {
	e.next = d
}

// SetPrev assigns prev to the entry.
func (e *direntEntry) SetPrev(d *Dirent) {
	e.prev = d
}
