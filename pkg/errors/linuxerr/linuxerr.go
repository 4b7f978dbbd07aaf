// Copyright 2021 The gVisor Authors.
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

// Package linuxerr contains syscall error codes exported as error interface
// pointers. This allows for fast comparison and return operations comparable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"golang.org/x/sys/unix"
	"gvisor.dev/ukernel/pkg/abi/linux/errno"
	"gvisor.dev/ukernel/pkg/errors"
)

// The following errors are semantically identical to Errno of type unix.Errno.
// The Errno method returns an Errno number such that the error can be compared
// to unix.Errno (e.g. unix.Errno(EPERM.Errno()) == unix.EPERM is true).
var (
	noError *errors.Error = nil
	EPERM                 = errors.New(errno.EPERM, "operation not permitted")
	ENOENT                = errors.New(errno.ENOENT, "no such file or directory")
	ESRCH                 = errors.New(errno.ESRCH, "no such process")
	EINTR                 = errors.New(errno.EINTR, "interrupted system call")
	EIO                   = errors.New(errno.EIO, "I/O error")
	EBADF                 = errors.New(errno.EBADF, "bad file number")
	EAGAIN                = errors.New(errno.EAGAIN, "try again")
	ENOMEM                = errors.New(errno.ENOMEM, "out of memory")
	EACCES                = errors.New(errno.EACCES, "permission denied")
	EFAULT                = errors.New(errno.EFAULT, "bad address")
	EEXIST                = errors.New(errno.EEXIST, "file exists")
	ENOTDIR               = errors.New(errno.ENOTDIR, "not a directory")
	EISDIR                = errors.New(errno.EISDIR, "is a directory")
	EINVAL                = errors.New(errno.EINVAL, "invalid argument")
	EMFILE                = errors.New(errno.EMFILE, "too many open files")
	ENOSPC                = errors.New(errno.ENOSPC, "no space left on device")
	EMLINK                = errors.New(errno.EMLINK, "too many links")

	// Errno values from include/uapi/asm-generic/errno.h.
	ENAMETOOLONG = errors.New(errno.ENAMETOOLONG, "file name too long")
	ENOSYS       = errors.New(errno.ENOSYS, "invalid system call number")
)

var (
	// ErrWouldBlock is an internal error used to indicate that an operation
	// cannot be satisfied immediately, and should be retried at a later time,
	// once the scheduler has run other tasks.
	ErrWouldBlock = errors.New(errno.EWOULDBLOCK, "request would block")
)

var errorSlice = []*errors.Error{
	errno.EPERM:        EPERM,
	errno.ENOENT:       ENOENT,
	errno.ESRCH:        ESRCH,
	errno.EINTR:        EINTR,
	errno.EIO:          EIO,
	errno.EBADF:        EBADF,
	errno.EAGAIN:       EAGAIN,
	errno.ENOMEM:       ENOMEM,
	errno.EACCES:       EACCES,
	errno.EFAULT:       EFAULT,
	errno.EEXIST:       EEXIST,
	errno.ENOTDIR:      ENOTDIR,
	errno.EISDIR:       EISDIR,
	errno.EINVAL:       EINVAL,
	errno.EMFILE:       EMFILE,
	errno.ENOSPC:       ENOSPC,
	errno.EMLINK:       EMLINK,
	errno.ENAMETOOLONG: ENAMETOOLONG,
	errno.ENOSYS:       ENOSYS,
}

// ErrorFromUnix returns a linuxerr from a unix.Errno. Errnos the kernel never
// produces map to EIO.
func ErrorFromUnix(err unix.Errno) error {
	if err == unix.Errno(0) {
		return nil
	}
	if int(err) < len(errorSlice) {
		if e := errorSlice[err]; e != nil {
			return e
		}
	}
	return EIO
}

// ToUnix converts a linuxerr to a unix.Errno.
func ToUnix(e *errors.Error) unix.Errno {
	var unixErr unix.Errno
	if e != noError {
		unixErr = unix.Errno(e.Errno())
	}
	return unixErr
}

// Equals compares a linuxerr to a given error.
func Equals(e *errors.Error, err error) bool {
	var unixErr unix.Errno
	if e != noError {
		unixErr = unix.Errno(e.Errno())
	}
	if err == nil {
		err = noError
	}
	return e == err || unixErr == err
}

// Translate extracts the *errors.Error carried by err, looking through
// wrapping. It returns false if err carries no errno.
func Translate(err error) (*errors.Error, bool) {
	var e *errors.Error
	if goerrors.As(err, &e) {
		return e, true
	}
	var ue unix.Errno
	if goerrors.As(err, &ue) {
		if le, ok := ErrorFromUnix(ue).(*errors.Error); ok {
			return le, true
		}
	}
	return nil, false
}
