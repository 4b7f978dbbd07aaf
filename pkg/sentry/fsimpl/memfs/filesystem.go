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
	"strings"

	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// checkName returns ENOENT for names that can't exist in a flat directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return linuxerr.ENOENT
	}
	return nil
}

// OpenFile implements vfs.FileSystem.OpenFile.
//
// O_CREAT creates the file if it is missing and truncates it otherwise.
// O_TRUNC truncates an existing file.
func (fs *Filesystem) OpenFile(ctx context.Context, path string, opts vfs.OpenOptions) (*vfs.FileDescription, error) {
	if err := checkName(path); err != nil {
		return nil, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	i, ok := fs.root[path]
	switch {
	case ok:
		if opts.Flags&(linux.O_CREAT|linux.O_TRUNC) != 0 {
			i.truncate()
		}
	case opts.Flags&linux.O_CREAT != 0:
		i = fs.newInode()
		fs.root[path] = i
		ctx.Debugf("memfs: created %q ino %d", path, i.ino)
	default:
		return nil, linuxerr.ENOENT
	}
	i.IncRef()
	fd := &regularFileFD{inode: i}
	fd.vfsfd.Init(fd, opts.Flags)
	return &fd.vfsfd, nil
}

// LinkAt implements vfs.FileSystem.LinkAt.
func (fs *Filesystem) LinkAt(ctx context.Context, oldname, newname string) error {
	if err := checkName(oldname); err != nil {
		return err
	}
	if err := checkName(newname); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	i, ok := fs.root[oldname]
	if !ok {
		return linuxerr.ENOENT
	}
	if _, ok := fs.root[newname]; ok {
		return linuxerr.EEXIST
	}
	i.incLinksLocked()
	fs.root[newname] = i
	return nil
}

// UnlinkAt implements vfs.FileSystem.UnlinkAt.
func (fs *Filesystem) UnlinkAt(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	i, ok := fs.root[name]
	if !ok {
		return linuxerr.ENOENT
	}
	delete(fs.root, name)
	i.decLinksLocked()
	if i.nlink == 0 {
		ctx.Debugf("memfs: ino %d has no links left", i.ino)
	}
	return nil
}
