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

package refs

// weakRefList is an intrusive list of WeakRefs. Entries can be added to or
// removed from the list in O(1) time and with no additional memory
// allocations.
//
// The zero value for weakRefList is an empty list ready to use.
type weakRefList struct {
	head *WeakRef
	tail *WeakRef
}

// weakRefEntry is the linkage embedded in WeakRef.
type weakRefEntry struct {
	next *WeakRef
	prev *WeakRef
}

// Empty returns true iff the list is empty.
func (l *weakRefList) Empty() bool {
	return l.head == nil
}

// Front returns the first element of list l or nil.
func (l *weakRefList) Front() *WeakRef {
	return l.head
}

// PushBack inserts the element e at the back of list l.
func (l *weakRefList) PushBack(e *WeakRef) {
	e.prev = l.tail
	e.next = nil
	if l.tail != nil {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
}

// Remove removes e from l.
func (l *weakRefList) Remove(e *WeakRef) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
