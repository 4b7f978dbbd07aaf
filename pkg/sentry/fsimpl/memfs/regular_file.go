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

package memfs

import (
	"math"
	"sync"

	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/safemem"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// regularFileFD implements vfs.FileDescriptionImpl and vfs.Stater for
// regular files.
type regularFileFD struct {
	vfsfd vfs.FileDescription
	vfs.FileDescriptionDefaultImpl

	// inode holds a reference for the lifetime of the file description.
	inode *inode

	// offMu serializes operations that may mutate off.
	offMu sync.Mutex
	off   int64
}

var _ vfs.Stater = (*regularFileFD)(nil)

// Release implements vfs.FileDescriptionImpl.Release.
func (fd *regularFileFD) Release(ctx context.Context) {
	fd.inode.DecRef()
}

// Read implements vfs.FileDescriptionImpl.Read.
func (fd *regularFileFD) Read(ctx context.Context, dst safemem.BlockSeq) (int64, error) {
	fd.offMu.Lock()
	defer fd.offMu.Unlock()
	i := fd.inode
	i.mu.Lock()
	defer i.mu.Unlock()
	if fd.off >= int64(len(i.data)) {
		return 0, nil
	}
	src := safemem.BlockSeqOf(safemem.BlockFromSafeSlice(i.data[fd.off:]))
	n, err := safemem.CopySeq(dst, src)
	fd.off += int64(n)
	return int64(n), err
}

// Write implements vfs.FileDescriptionImpl.Write.
func (fd *regularFileFD) Write(ctx context.Context, src safemem.BlockSeq) (int64, error) {
	n := src.NumBytes()
	if n == 0 {
		return 0, nil
	}
	if n > math.MaxInt64 {
		return 0, linuxerr.EINVAL
	}
	fd.offMu.Lock()
	defer fd.offMu.Unlock()
	end := fd.off + int64(n)
	if end < fd.off {
		return 0, linuxerr.EINVAL
	}
	i := fd.inode
	i.mu.Lock()
	defer i.mu.Unlock()
	oldLen := int64(len(i.data))
	if end > oldLen {
		if end <= int64(cap(i.data)) {
			i.data = i.data[:end]
			clear(i.data[oldLen:])
		} else {
			grown := make([]byte, end, 2*end)
			copy(grown, i.data)
			i.data = grown
		}
	}
	dst := safemem.BlockSeqOf(safemem.BlockFromSafeSlice(i.data[fd.off:end]))
	done, err := safemem.CopySeq(dst, src)
	fd.off += int64(done)
	if fd.off < end && end > oldLen {
		i.data = i.data[:max(oldLen, fd.off)]
	}
	return int64(done), err
}

// Stat implements vfs.Stater.Stat.
func (fd *regularFileFD) Stat(ctx context.Context) (vfs.Statx, error) {
	i := fd.inode
	return vfs.Statx{
		Ino:   i.ino,
		Mode:  i.mode(),
		Nlink: i.links(),
		Size:  i.size(),
	}, nil
}
