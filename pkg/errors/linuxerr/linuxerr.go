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

// Package linuxerr contains syscall error codes exported as error
// interface pointers. This allows for fast pointer comparison and return
// operations comparable to unix.Errno constants.
//
// Errors are returned, never wrapped: the entry cache propagates the
// sentinel from the layer that produced it, so callers compare with ==.
package linuxerr

import (
	"golang.org/x/sys/unix"

	"direntfs.dev/direntfs/pkg/errors"
)

// The following errors are semantically identical to Errno of type
// unix.Errno. However, since the types are distinct (these are
// *errors.Error), they are not directly comparable. The Errno method
// returns a number such that unix.Errno(EPERM.Errno()) == unix.EPERM.
var (
	EPERM        = errors.New(unix.EPERM, "operation not permitted")
	ENOENT       = errors.New(unix.ENOENT, "no such file or directory")
	EINTR        = errors.New(unix.EINTR, "interrupted system call")
	EIO          = errors.New(unix.EIO, "I/O error")
	EBADF        = errors.New(unix.EBADF, "bad file number")
	EAGAIN       = errors.New(unix.EAGAIN, "try again")
	ENOMEM       = errors.New(unix.ENOMEM, "out of memory")
	EACCES       = errors.New(unix.EACCES, "permission denied")
	EBUSY        = errors.New(unix.EBUSY, "device or resource busy")
	EEXIST       = errors.New(unix.EEXIST, "file exists")
	EXDEV        = errors.New(unix.EXDEV, "cross-device link")
	ENODEV       = errors.New(unix.ENODEV, "no such device")
	ENOTDIR      = errors.New(unix.ENOTDIR, "not a directory")
	EISDIR       = errors.New(unix.EISDIR, "is a directory")
	EINVAL       = errors.New(unix.EINVAL, "invalid argument")
	ENOSPC       = errors.New(unix.ENOSPC, "no space left on device")
	EROFS        = errors.New(unix.EROFS, "read-only file system")
	EMLINK       = errors.New(unix.EMLINK, "too many links")
	ENAMETOOLONG = errors.New(unix.ENAMETOOLONG, "file name too long")
	ENOSYS       = errors.New(unix.ENOSYS, "function not implemented")
	ENOTEMPTY    = errors.New(unix.ENOTEMPTY, "directory not empty")
	ELOOP        = errors.New(unix.ELOOP, "too many symbolic links encountered")
	EOPNOTSUPP   = errors.New(unix.EOPNOTSUPP, "operation not supported")
)

// Equals compares a sentinel error to any error, matching either the
// sentinel itself or a raw unix.Errno with the same number.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == nil
	}
	if e == nil {
		return false
	}
	if err == error(e) {
		return true
	}
	if errno, ok := err.(unix.Errno); ok {
		return errno == e.Errno()
	}
	return false
}
