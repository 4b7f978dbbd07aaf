// Copyright 2019 The gVisor Authors.
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

// Package vfs implements the file-like objects tasks hold in their file
// descriptor tables, and the interface to the file system behind open(2).
package vfs

import (
	"fmt"

	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/refs"
	"gvisor.dev/ukernel/pkg/safemem"
)

// A FileDescription represents an open file description, which is the entity
// referred to by a file descriptor (POSIX.1-2017 3.258 "Open File
// Description").
//
// FileDescriptions are reference-counted. Unless otherwise specified, all
// FileDescription methods require that a reference is held.
//
// FileDescription is analogous to Linux's struct file.
type FileDescription struct {
	refs refs.Refs

	// statusFlags contains the flags passed to open, minus the file
	// creation flags. statusFlags is immutable.
	statusFlags linux.OpenFlags

	// readable and writable are the capabilities granted by the access
	// mode. They are immutable.
	readable bool
	writable bool

	// impl is the FileDescriptionImpl associated with this FileDescription.
	// impl is immutable. This should be the last field in FileDescription.
	impl FileDescriptionImpl
}

// FileCreationFlags are the set of flags passed to FileDescription.Init() but
// omitted from FileDescription.StatusFlags().
const FileCreationFlags = linux.O_CREAT | linux.O_TRUNC

// Init must be called before first use of fd. flags is the initial file
// description flags, which is usually the full set of flags passed to open.
// On return fd holds one reference, owned by the caller.
func (fd *FileDescription) Init(impl FileDescriptionImpl, flags linux.OpenFlags) {
	fd.statusFlags = flags &^ FileCreationFlags
	fd.readable = flags.Readable()
	fd.writable = flags.Writable()
	fd.impl = impl
	refs.Register(fd)
}

// IncRef increments fd's reference count.
func (fd *FileDescription) IncRef() {
	fd.refs.IncRef()
}

// TryIncRef increments fd's reference count unless it has already dropped to
// zero.
func (fd *FileDescription) TryIncRef() bool {
	return fd.refs.TryIncRef()
}

// ReadRefs returns the current number of references.
func (fd *FileDescription) ReadRefs() int64 {
	return fd.refs.ReadRefs()
}

// DecRef decrements fd's reference count. Dropping the last reference
// releases the implementation.
func (fd *FileDescription) DecRef(ctx context.Context) {
	fd.refs.DecRef(func() {
		refs.Unregister(fd)
		fd.impl.Release(ctx)
	})
}

// RefType implements refs.CheckedObject.RefType.
func (fd *FileDescription) RefType() string {
	return "vfs.FileDescription"
}

// LeakMessage implements refs.CheckedObject.LeakMessage.
func (fd *FileDescription) LeakMessage() string {
	return fmt.Sprintf("[vfs.FileDescription %p] %T reference count of %d instead of 0", fd, fd.impl, fd.ReadRefs())
}

// StatusFlags returns file description status flags, as for fcntl(F_GETFL).
func (fd *FileDescription) StatusFlags() linux.OpenFlags {
	return fd.statusFlags
}

// IsReadable returns true if fd was opened for reading.
func (fd *FileDescription) IsReadable() bool {
	return fd.readable
}

// IsWritable returns true if fd was opened for writing.
func (fd *FileDescription) IsWritable() bool {
	return fd.writable
}

// Impl returns the FileDescriptionImpl associated with fd.
func (fd *FileDescription) Impl() FileDescriptionImpl {
	return fd.impl
}

// Read reads into dst at the file's current position. It fails with EBADF if
// fd is not readable.
func (fd *FileDescription) Read(ctx context.Context, dst safemem.BlockSeq) (int64, error) {
	if !fd.readable {
		return 0, linuxerr.EBADF
	}
	return fd.impl.Read(ctx, dst)
}

// Write writes src at the file's current position. It fails with EBADF if fd
// is not writable.
func (fd *FileDescription) Write(ctx context.Context, src safemem.BlockSeq) (int64, error) {
	if !fd.writable {
		return 0, linuxerr.EBADF
	}
	return fd.impl.Write(ctx, src)
}

// Stat returns metadata for the file represented by fd. It fails with EBADF
// if the implementation has no inode behind it.
func (fd *FileDescription) Stat(ctx context.Context) (Statx, error) {
	s, ok := fd.impl.(Stater)
	if !ok {
		return Statx{}, linuxerr.EBADF
	}
	return s.Stat(ctx)
}

// FileDescriptionImpl contains implementation details for a FileDescription.
// Implementations of FileDescriptionImpl should contain their associated
// FileDescription by value as their first field.
//
// All methods that take a context.Context must be called by a task goroutine.
type FileDescriptionImpl interface {
	// Release is called when the associated FileDescription reaches zero
	// references.
	Release(ctx context.Context)

	// Read reads from the file into dst.
	//
	// For files with an implicit FileDescription offset (e.g. regular
	// files), Read begins at the FileDescription offset, and advances the
	// offset by the number of bytes read. A Read with nothing to return yet
	// fails with linuxerr.ErrWouldBlock; the caller may yield and retry.
	Read(ctx context.Context, dst safemem.BlockSeq) (int64, error)

	// Write writes src to the file, at an offset implied as for Read.
	Write(ctx context.Context, src safemem.BlockSeq) (int64, error)
}

// Stater is implemented by FileDescriptionImpls backed by an inode.
type Stater interface {
	// Stat returns a snapshot of the file's metadata.
	Stat(ctx context.Context) (Statx, error)
}

// Statx holds file metadata.
type Statx struct {
	// Dev is the device ID.
	Dev uint64

	// Ino is the inode number.
	Ino uint64

	// Mode is the file type, as in linux.S_IFMT.
	Mode uint32

	// Nlink is the number of hard links.
	Nlink uint32

	// Size is the file size in bytes.
	Size uint64
}
