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

package kernel

import (
	"sync"
	"time"

	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/sentry/ktime"
	"gvisor.dev/ukernel/pkg/sentry/mm"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// Program is the application code run by a task. It makes requests of the
// kernel through Task.Syscall. A Program that returns exits the task with
// code 0.
type Program func(t *Task)

// copyScratchBufferLen is the length of Task.copyScratchBuffer.
const copyScratchBufferLen = 144

// Task represents a single thread of execution in the emulated kernel.
//
// Task implements context.Context and marshal.CopyContext. Except where
// noted, methods may only be called from the task goroutine.
type Task struct {
	// Context carries the task's logger and ID.
	context.Context

	// The following fields are immutable.
	k       *Kernel
	tid     int32
	name    string
	program Program

	// mm is the task's address space. mm is released when the task exits;
	// accesses after that fault.
	mm *mm.MemoryManager

	// wake receives the baton when the scheduler picks this task.
	wake chan struct{}

	// copyScratchBuffer is a buffer available to CopyIn/CopyOut
	// implementations that require an intermediate buffer to copy data
	// into/out of. It prevents these buffers from being allocated on each
	// CopyIn/CopyOut call.
	//
	// copyScratchBuffer is exclusive to the task goroutine.
	copyScratchBuffer [copyScratchBufferLen]byte

	// mu protects state.
	mu    sync.Mutex
	state TaskState
}

// TaskState is the part of a task guarded by the task's lock. It is only
// reachable through Task.WithState.
type TaskState struct {
	// FDTable is nil once the task has exited.
	FDTable *FDTable

	// SyscallCounts[n] is the number of times syscall n was invoked,
	// including calls that failed.
	SyscallCounts [linux.MaxSyscallNum]uint32

	// Status is the task's scheduling state.
	Status linux.TaskStatus

	// Started is set when the task is first scheduled; StartTime is the
	// kernel clock reading at that moment.
	Started   bool
	StartTime ktime.Time

	// ExitCode is the code passed to exit. It is meaningful once Status is
	// linux.TaskZombie.
	ExitCode int32
}

// WithState runs f with the task's lock held. f must not block, yield or
// call back into the task's syscall path.
//
// WithState may be called from any goroutine.
func (t *Task) WithState(f func(s *TaskState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f(&t.state)
}

// Kernel returns the Kernel containing t.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// ThreadID returns t's ID.
func (t *Task) ThreadID() int32 {
	return t.tid
}

// Name returns the name t was created with.
func (t *Task) Name() string {
	return t.name
}

// MemoryManager returns t's address space.
func (t *Task) MemoryManager() *mm.MemoryManager {
	return t.mm
}

// Status returns t's scheduling state. It may be called from any goroutine.
func (t *Task) Status() linux.TaskStatus {
	var s linux.TaskStatus
	t.WithState(func(ts *TaskState) { s = ts.Status })
	return s
}

// ExitCode returns the code t exited with, and whether it has exited. It
// may be called from any goroutine.
func (t *Task) ExitCode() (int32, bool) {
	var (
		code   int32
		exited bool
	)
	t.WithState(func(ts *TaskState) {
		code, exited = ts.ExitCode, ts.Status == linux.TaskZombie
	})
	return code, exited
}

// CopyScratchBuffer returns a scratch buffer to be used in CopyIn/CopyOut
// functions. It must only be used within those functions and can only be used
// by the task goroutine; it exists to improve performance and thus
// intentionally lacks any synchronization.
//
// Callers should pass a constant value as an argument if possible, which will
// allow the compiler to inline and optimize out the if statement below.
func (t *Task) CopyScratchBuffer(size int) []byte {
	if size > copyScratchBufferLen {
		return make([]byte, size)
	}
	return t.copyScratchBuffer[:size]
}

// CopyOutBytes is a fast version of CopyOut if the caller can serialize the
// data without reflection and pass in a byte slice.
func (t *Task) CopyOutBytes(addr hostarch.Addr, src []byte) (int, error) {
	return t.mm.CopyOut(addr, src)
}

// CopyInBytes is a fast version of CopyIn if the caller can serialize the
// data without reflection and pass in a byte slice.
func (t *Task) CopyInBytes(addr hostarch.Addr, dst []byte) (int, error) {
	return t.mm.CopyIn(addr, dst)
}

// GetFile is a convenience wrapper for the FDTable's Get.
//
// N.B. Callers are required to use DecRef when they are done.
func (t *Task) GetFile(fd int32) *vfs.FileDescription {
	var file *vfs.FileDescription
	t.WithState(func(ts *TaskState) {
		if ts.FDTable != nil {
			file = ts.FDTable.Get(fd)
		}
	})
	return file
}

// NewFDFrom installs file at the lowest free descriptor not below fd. The
// table takes its own reference.
func (t *Task) NewFDFrom(fd int32, file *vfs.FileDescription) (int32, error) {
	var (
		fds []int32
		err error
	)
	t.WithState(func(ts *TaskState) {
		if ts.FDTable == nil {
			err = linuxerr.EBADF
			return
		}
		fds, err = ts.FDTable.NewFDs(t, fd, []*vfs.FileDescription{file})
	})
	if err != nil {
		return 0, err
	}
	return fds[0], nil
}

// RemoveFD empties the slot fd and returns the file it held, or nil.
//
// N.B. Callers are required to use DecRef when they are done.
func (t *Task) RemoveFD(fd int32) *vfs.FileDescription {
	var file *vfs.FileDescription
	t.WithState(func(ts *TaskState) {
		if ts.FDTable != nil {
			file = ts.FDTable.Remove(fd)
		}
	})
	return file
}

// Elapsed returns the time since t was first scheduled.
func (t *Task) Elapsed() time.Duration {
	var start ktime.Time
	t.WithState(func(ts *TaskState) { start = ts.StartTime })
	return t.k.clock.Now().Sub(start)
}
