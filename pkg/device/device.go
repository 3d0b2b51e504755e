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

// Package device defines anonymous virtual devices and structures for
// managing them. A Device hands out stable inode numbers; those numbers
// double as the total-order tiebreak used when two unrelated directories
// must be locked for a rename.
package device

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"direntfs.dev/direntfs/pkg/sync"
)

// Registry tracks all simple devices on the system.
type Registry struct {
	// lastAnonDeviceMinor is the last minor device number used for an
	// anonymous device. Must be accessed atomically.
	lastAnonDeviceMinor uint64

	// mu protects the fields below.
	mu sync.Mutex

	devices map[ID]*Device
}

// SimpleDevices is the system-wide simple device registry.
var SimpleDevices = newRegistry()

func newRegistry() *Registry {
	return &Registry{
		devices: make(map[ID]*Device),
	}
}

// newAnonID assigns a major and minor number to an anonymous device ID.
func (r *Registry) newAnonID() ID {
	return ID{
		// Anon devices always have a major number of 0.
		Major: 0,
		// Use the next minor number.
		Minor: atomic.AddUint64(&r.lastAnonDeviceMinor, 1),
	}
}

// NewAnonDevice allocates a new anonymous device with a unique minor device
// number, and registers it with r.
func (r *Registry) NewAnonDevice() *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &Device{
		ID: r.newAnonID(),
	}
	r.devices[d.ID] = d
	return d
}

// ID identifies a device.
type ID struct {
	Major uint64
	Minor uint64
}

// DeviceID formats a major and minor device number into a standard device
// number.
func (i *ID) DeviceID() uint64 {
	return uint64(linuxMakeDev(i.Major, i.Minor))
}

// linuxMakeDev encodes a major and minor the way Linux's MKDEV does.
func linuxMakeDev(major, minor uint64) uint64 {
	return (minor & 0xff) | ((major & 0xfff) << 8) |
		((minor &^ 0xff) << 12) | ((major &^ 0xfff) << 32)
}

// Device is a simple virtual device.
type Device struct {
	// ID is the device ID.
	ID

	// last is the last generated inode number. Must be accessed
	// atomically.
	last uint64
}

// NextIno generates a new inode number.
func (d *Device) NextIno() uint64 {
	return atomic.AddUint64(&d.last, 1)
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "device(%d:%d)", d.Major, d.Minor)
	return buf.String()
}
