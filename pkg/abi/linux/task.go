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

package linux

import (
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/marshal"
)

// TaskStatus is the scheduling state of a task as reported by task_info.
type TaskStatus uint32

// Task states.
const (
	TaskUnInit TaskStatus = iota
	TaskReady
	TaskRunning
	TaskZombie
)

// String implements fmt.Stringer.String.
func (s TaskStatus) String() string {
	switch s {
	case TaskUnInit:
		return "UnInit"
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// SizeOfTaskInfo is the size of a TaskInfo struct in bytes: the status word,
// the counters, four bytes of padding and the 8-byte aligned elapsed time.
const SizeOfTaskInfo = 4 + 4*MaxSyscallNum + 4 + 8

// TaskInfo is the record task_info copies out.
type TaskInfo struct {
	Status TaskStatus

	// SyscallTimes[n] is the number of times syscall n was invoked.
	SyscallTimes [MaxSyscallNum]uint32

	// Time is the number of milliseconds since the task was first
	// scheduled.
	Time uint64
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (*TaskInfo) SizeBytes() int {
	return SizeOfTaskInfo
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (ti *TaskInfo) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint32(dst[:4], uint32(ti.Status))
	dst = dst[4:]
	for idx := 0; idx < MaxSyscallNum; idx++ {
		hostarch.ByteOrder.PutUint32(dst[:4], ti.SyscallTimes[idx])
		dst = dst[4:]
	}
	// Padding: dst[:sizeof(uint32)] ~= uint32(0)
	hostarch.ByteOrder.PutUint32(dst[:4], 0)
	dst = dst[4:]
	hostarch.ByteOrder.PutUint64(dst[:8], ti.Time)
	return dst[8:]
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (ti *TaskInfo) UnmarshalBytes(src []byte) []byte {
	ti.Status = TaskStatus(hostarch.ByteOrder.Uint32(src[:4]))
	src = src[4:]
	for idx := 0; idx < MaxSyscallNum; idx++ {
		ti.SyscallTimes[idx] = hostarch.ByteOrder.Uint32(src[:4])
		src = src[4:]
	}
	// Padding: var _ uint32 ~= src[:sizeof(uint32)]
	src = src[4:]
	ti.Time = hostarch.ByteOrder.Uint64(src[:8])
	return src[8:]
}

// CopyOut implements marshal.Marshallable.CopyOut.
func (ti *TaskInfo) CopyOut(cc marshal.CopyContext, addr hostarch.Addr) (int, error) {
	return marshal.CopyOut(cc, addr, ti)
}

// CopyIn implements marshal.Marshallable.CopyIn.
func (ti *TaskInfo) CopyIn(cc marshal.CopyContext, addr hostarch.Addr) (int, error) {
	return marshal.CopyIn(cc, addr, ti)
}
