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
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
	"gvisor.dev/ukernel/pkg/sentry/arch"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
	"gvisor.dev/ukernel/pkg/sentry/mm"
)

// protToPerms returns the user page flags for prot, or false if prot is
// empty or has bits outside PROT_MASK.
func protToPerms(prot uint64) (pagetables.PTEFlags, bool) {
	if prot&^linux.PROT_MASK != 0 || prot&linux.PROT_MASK == 0 {
		return 0, false
	}
	at := hostarch.AccessType{
		Read:    prot&linux.PROT_READ != 0,
		Write:   prot&linux.PROT_WRITE != 0,
		Execute: prot&linux.PROT_EXEC != 0,
	}
	return pagetables.FlagsFromAccessType(at) | pagetables.User, true
}

// Mmap implements linux syscall mmap(2).
func Mmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	addr := args[0].Pointer()
	length := args[1].Uint64()
	prot := args[2].Uint64()

	if !addr.IsPageAligned() {
		return 0, nil, linuxerr.EINVAL
	}
	perms, ok := protToPerms(prot)
	if !ok {
		return 0, nil, linuxerr.EINVAL
	}

	err := t.MemoryManager().MMap(mm.MMapOpts{
		Addr:   addr,
		Length: length,
		Perms:  perms,
	})
	return 0, nil, err
}

// Munmap implements linux syscall munmap(2).
func Munmap(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	return 0, nil, t.MemoryManager().MUnmap(args[0].Pointer(), args[1].Uint64())
}

// Sbrk moves the program break by a signed number of bytes and returns the
// previous break.
func Sbrk(t *kernel.Task, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	old, err := t.MemoryManager().Sbrk(args[0].Int64())
	if err != nil {
		return 0, nil, err
	}
	return uintptr(old), nil, nil
}
