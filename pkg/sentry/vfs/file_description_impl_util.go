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

package vfs

import (
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/safemem"
)

// FileDescriptionDefaultImpl may be embedded by implementations of
// FileDescriptionImpl to obtain implementations of many FileDescriptionImpl
// methods with default behavior analogous to Linux's.
type FileDescriptionDefaultImpl struct{}

// Release implements FileDescriptionImpl.Release.
func (FileDescriptionDefaultImpl) Release(ctx context.Context) {}

// Read implements FileDescriptionImpl.Read analogously to
// file_operations::read == file_operations::read_iter == NULL in Linux.
func (FileDescriptionDefaultImpl) Read(ctx context.Context, dst safemem.BlockSeq) (int64, error) {
	return 0, linuxerr.EINVAL
}

// Write implements FileDescriptionImpl.Write analogously to
// file_operations::write == file_operations::write_iter == NULL in Linux.
func (FileDescriptionDefaultImpl) Write(ctx context.Context, src safemem.BlockSeq) (int64, error) {
	return 0, linuxerr.EINVAL
}

// ReadOnlyFileDescriptionImpl may be embedded by implementations of
// FileDescriptionImpl that rejects writes.
type ReadOnlyFileDescriptionImpl struct{}

// Write implements FileDescriptionImpl.Write.
func (ReadOnlyFileDescriptionImpl) Write(ctx context.Context, src safemem.BlockSeq) (int64, error) {
	return 0, linuxerr.EBADF
}

// WriteOnlyFileDescriptionImpl may be embedded by implementations of
// FileDescriptionImpl that rejects reads.
type WriteOnlyFileDescriptionImpl struct{}

// Read implements FileDescriptionImpl.Read.
func (WriteOnlyFileDescriptionImpl) Read(ctx context.Context, dst safemem.BlockSeq) (int64, error) {
	return 0, linuxerr.EBADF
}
