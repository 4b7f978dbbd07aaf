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

// Package linux provides the syscall table of the kernel and its handlers.
package linux

import (
	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
	"gvisor.dev/ukernel/pkg/sentry/syscalls"
)

// TableName is the name the table is registered under.
const TableName = "linux"

// Table is the syscall table, using the generic Linux numbering. The
// entries not listed are not supported.
var Table = &kernel.SyscallTable{
	Name: TableName,
	Table: map[uintptr]kernel.Syscall{
		linux.SYS_UNLINKAT:  syscalls.PartiallySupported("unlinkat", Unlinkat, "Takes only the path; there is no dirfd and no flags."),
		linux.SYS_LINKAT:    syscalls.PartiallySupported("linkat", Linkat, "Takes only the two paths; there are no dirfds and no flags."),
		linux.SYS_OPEN:      syscalls.PartiallySupported("open", Open, "Only O_RDONLY, O_WRONLY, O_RDWR, O_CREAT and O_TRUNC are honored."),
		linux.SYS_CLOSE:     syscalls.Supported("close", Close),
		linux.SYS_READ:      syscalls.Supported("read", Read),
		linux.SYS_WRITE:     syscalls.Supported("write", Write),
		linux.SYS_FSTAT:     syscalls.Supported("fstat", Fstat),
		linux.SYS_EXIT:      syscalls.Supported("exit", Exit),
		linux.SYS_YIELD:     syscalls.Supported("sched_yield", SchedYield),
		linux.SYS_GET_TIME:  syscalls.PartiallySupported("get_time", GetTime, "The timezone argument is ignored."),
		linux.SYS_SBRK:      syscalls.Supported("sbrk", Sbrk),
		linux.SYS_MUNMAP:    syscalls.PartiallySupported("munmap", Munmap, "Only areas created by mmap can be unmapped."),
		linux.SYS_MMAP:      syscalls.PartiallySupported("mmap", Mmap, "Anonymous fixed mappings only; the address must be free."),
		linux.SYS_TASK_INFO: syscalls.Supported("task_info", TaskInfo),
	},
}

func init() {
	kernel.RegisterSyscallTable(Table)
}
