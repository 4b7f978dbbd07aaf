// Copyright 2018 The gVisor Authors.
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

package linux

import (
	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/sentry/arch"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// copyInPath copies a NUL-terminated path of at most linux.PathMax bytes,
// terminator included.
func copyInPath(t *kernel.Task, addr hostarch.Addr) (string, error) {
	return t.CopyInString(addr, linux.PathMax)
}

// Open implements linux syscall open(2).
func Open(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	flags := linux.OpenFlags(args[1].Uint())

	path, err := copyInPath(t, addr)
	if err != nil {
		return 0, nil, err
	}

	file, err := t.Kernel().FileSystem().OpenFile(t, path, vfs.OpenOptions{Flags: flags})
	if err != nil {
		return 0, nil, err
	}
	defer file.DecRef(t)

	fd, err := t.NewFDFrom(0, file)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(fd), nil, nil
}

// Close implements linux syscall close(2).
func Close(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()

	// Note that Remove provides a reference on the file. The file is
	// released when that is the last one, which may not be the case if the
	// file is installed at another descriptor.
	file := t.RemoveFD(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	file.DecRef(t)
	return 0, nil, nil
}

// Linkat implements linux syscall linkat(2).
func Linkat(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	oldAddr := args[0].Pointer()
	newAddr := args[1].Pointer()

	oldPath, err := copyInPath(t, oldAddr)
	if err != nil {
		return 0, nil, err
	}
	newPath, err := copyInPath(t, newAddr)
	if err != nil {
		return 0, nil, err
	}

	// A name cannot be linked to itself, whether or not it exists.
	if oldPath == newPath {
		return 0, nil, linuxerr.EEXIST
	}
	return 0, nil, t.Kernel().FileSystem().LinkAt(t, oldPath, newPath)
}

// Unlinkat implements linux syscall unlinkat(2).
func Unlinkat(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()

	path, err := copyInPath(t, addr)
	if err != nil {
		return 0, nil, err
	}
	return 0, nil, t.Kernel().FileSystem().UnlinkAt(t, path)
}

// Fstat implements linux syscall fstat(2).
func Fstat(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	statAddr := args[1].Pointer()

	file := t.GetFile(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef(t)

	statx, err := file.Stat(t)
	if err != nil {
		return 0, nil, err
	}
	stat := linux.Stat{
		Dev:   statx.Dev,
		Ino:   statx.Ino,
		Mode:  statx.Mode,
		Nlink: statx.Nlink,
	}
	_, err = stat.CopyOut(t, statAddr)
	return 0, nil, err
}
