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
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/safemem"
	"gvisor.dev/ukernel/pkg/sentry/arch"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
)

// Read implements linux syscall read(2).
func Read(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()

	file := t.GetFile(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the file is readable.
	if !file.IsReadable() {
		return 0, nil, linuxerr.EBADF
	}

	// Check that the size is legitimate.
	si := int(size)
	if si < 0 {
		return 0, nil, linuxerr.EINVAL
	}
	if si == 0 {
		return 0, nil, nil
	}

	// Get the destination of the read.
	dst, err := t.SingleIOSequence(addr, si, hostarch.Write)
	if err != nil {
		return 0, nil, err
	}

	n, err := transfer(t, dst, file.Read)
	return uintptr(n), nil, handleIOError(t, n != 0, err, "read", file)
}

// Write implements linux syscall write(2).
func Write(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].SizeT()

	file := t.GetFile(fd)
	if file == nil {
		return 0, nil, linuxerr.EBADF
	}
	defer file.DecRef(t)

	// Check that the file is writable.
	if !file.IsWritable() {
		return 0, nil, linuxerr.EBADF
	}

	// Check that the size is legitimate.
	si := int(size)
	if si < 0 {
		return 0, nil, linuxerr.EINVAL
	}
	if si == 0 {
		return 0, nil, nil
	}

	// Get the source of the write.
	src, err := t.SingleIOSequence(addr, si, hostarch.Read)
	if err != nil {
		return 0, nil, err
	}

	n, err := transfer(t, src, file.Write)
	return uintptr(n), nil, handleIOError(t, n != 0, err, "write", file)
}

// transfer calls op until it makes progress or fails. While op would block,
// the task yields; if the kernel is shutting down, transfer gives up with
// EINTR.
func transfer(t *kernel.Task, bs safemem.BlockSeq, op func(context.Context, safemem.BlockSeq) (int64, error)) (int64, error) {
	for {
		n, err := op(t, bs)
		if n != 0 || !linuxerr.Equals(linuxerr.ErrWouldBlock, err) {
			return n, err
		}
		if t.Interrupted() {
			return 0, linuxerr.EINTR
		}
		t.Yield()
	}
}
