// Copyright 2026 The gVisor Authors.
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

// Package linux contains the constants and types of the user/kernel ABI
// served by the kernel: syscall numbers, flag bits and the fixed byte layouts
// of the records copied out to user memory.
package linux

// Syscall numbers. They follow the RISC-V Linux numbering where a
// counterpart exists.
const (
	SYS_UNLINKAT  = 35
	SYS_LINKAT    = 37
	SYS_OPEN      = 56
	SYS_CLOSE     = 57
	SYS_READ      = 63
	SYS_WRITE     = 64
	SYS_FSTAT     = 80
	SYS_EXIT      = 93
	SYS_YIELD     = 124
	SYS_GET_TIME  = 169
	SYS_SBRK      = 214
	SYS_MUNMAP    = 215
	SYS_MMAP      = 222
	SYS_TASK_INFO = 410
)

// MaxSyscallNum bounds the syscall numbers that are counted per task. It is
// also the length of TaskInfo.SyscallTimes.
const MaxSyscallNum = 500

// PathMax is the longest path, including its terminating NUL, that open,
// linkat and unlinkat copy in from user memory.
const PathMax = 256
