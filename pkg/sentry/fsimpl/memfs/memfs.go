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

// Package memfs provides an in-memory filesystem with a single flat root
// directory: the directory map is the sole source of truth for the state of
// the filesystem.
//
// Lock order:
//
// Filesystem.mu
//
//	regularFileFD.offMu
//	  inode.mu
package memfs

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/refs"
)

// Filesystem implements vfs.FileSystem.
type Filesystem struct {
	// mu serializes changes to the root directory and to link counts.
	mu sync.Mutex

	// root maps names to inodes. Multiple names may share one inode (hard
	// links). root is protected by mu.
	root map[string]*inode

	nextInoMinusOne atomic.Uint64

	// live counts inodes that have not been reclaimed.
	live atomic.Int64
}

// New returns an empty Filesystem.
func New() *Filesystem {
	return &Filesystem{
		root: make(map[string]*inode),
	}
}

// Names returns the number of directory entries.
func (fs *Filesystem) Names() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.root)
}

// LiveInodes returns the number of inodes whose storage has not been
// reclaimed, linked or not.
func (fs *Filesystem) LiveInodes() int64 {
	return fs.live.Load()
}

// inode represents a regular file.
//
// inode implements refs.RefCounter.
type inode struct {
	// refs is a reference count. One reference is held while nlink > 0, and
	// one by every open regularFileFD. The inode's data is released when the
	// last reference is dropped.
	refs refs.Refs

	fs *Filesystem

	// nlink is protected by Filesystem.mu.
	nlink uint32

	ino uint64 // immutable

	// mu protects data.
	mu   sync.Mutex
	data []byte
}

var _ refs.RefCounter = (*inode)(nil)

func (fs *Filesystem) newInode() *inode {
	i := &inode{
		fs:    fs,
		nlink: 1,
		ino:   fs.nextInoMinusOne.Add(1),
	}
	fs.live.Add(1)
	refs.Register(i)
	return i
}

// Preconditions: Filesystem.mu must be locked.
func (i *inode) incLinksLocked() {
	if i.nlink == 0 {
		panic("memfs.inode.incLinksLocked() called with no existing links")
	}
	i.nlink++
}

// Preconditions: Filesystem.mu must be locked.
func (i *inode) decLinksLocked() {
	if i.nlink == 0 {
		panic("memfs.inode.decLinksLocked() called with no existing links")
	}
	i.nlink--
	if i.nlink == 0 {
		i.DecRef()
	}
}

// IncRef implements refs.RefCounter.IncRef.
func (i *inode) IncRef() {
	i.refs.IncRef()
}

// TryIncRef implements refs.RefCounter.TryIncRef.
func (i *inode) TryIncRef() bool {
	return i.refs.TryIncRef()
}

// DecRef implements refs.RefCounter.DecRef.
func (i *inode) DecRef() {
	i.refs.DecRef(func() {
		i.mu.Lock()
		i.data = nil
		i.mu.Unlock()
		i.fs.live.Add(-1)
		refs.Unregister(i)
	})
}

// RefType implements refs.CheckedObject.RefType.
func (i *inode) RefType() string {
	return "memfs.inode"
}

// LeakMessage implements refs.CheckedObject.LeakMessage.
func (i *inode) LeakMessage() string {
	return fmt.Sprintf("[memfs.inode %p] ino %d reference count of %d instead of 0", i, i.ino, i.refs.ReadRefs())
}

// truncate discards the file's contents.
func (i *inode) truncate() {
	i.mu.Lock()
	i.data = nil
	i.mu.Unlock()
}

func (i *inode) size() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return uint64(len(i.data))
}

// links returns the current link count.
func (i *inode) links() uint32 {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	return i.nlink
}

// mode returns the file type bits of the inode.
func (i *inode) mode() uint32 {
	return linux.S_IFREG
}
