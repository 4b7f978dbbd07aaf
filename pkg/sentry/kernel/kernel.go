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

// Package kernel provides an emulation of a small kernel: tasks, their file
// descriptor tables and address spaces, a cooperative scheduler, and the
// dispatch of system calls.
//
// Tasks run application code on their own goroutines, but only the task
// holding the scheduler's baton runs at any time. A task gives up the baton
// by yielding, by blocking in a syscall, or by exiting.
//
// Lock order:
//
// Kernel.schedMu
//
//	Task.mu
//	  FDTable.mu
//	    mm.MemoryManager.mappingMu
//	      pgalloc.MemoryFile.mu
package kernel

import (
	gocontext "context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/sentry/ktime"
	"gvisor.dev/ukernel/pkg/sentry/mm"
	"gvisor.dev/ukernel/pkg/sentry/pgalloc"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// warnEvery bounds how often repeated kernel warnings are logged.
const warnEvery = time.Second

// InitKernelArgs holds arguments to NewKernel.
type InitKernelArgs struct {
	// MemoryFile provides the frames backing every task's page tables and
	// mappings.
	MemoryFile *pgalloc.MemoryFile

	// FileSystem is the file system open, linkat and unlinkat resolve names
	// against.
	FileSystem vfs.FileSystem

	// Clock is the kernel's time source. If nil, a MonotonicClock is used.
	Clock ktime.Clock

	// SyscallTable is the table used by every task.
	SyscallTable *SyscallTable

	// MaxFDs is the size of each task's FDTable. A non-positive value means
	// no limit.
	MaxFDs int

	// Strace enables logging of every syscall at the info level.
	Strace bool
}

// Kernel represents an emulated kernel.
type Kernel struct {
	// The following fields are immutable.
	mf     *pgalloc.MemoryFile
	fs     vfs.FileSystem
	clock  ktime.Clock
	table  *SyscallTable
	maxFDs int
	strace bool

	// unsupported and faults rate limit warnings about unknown syscalls and
	// killed tasks.
	unsupported log.Logger
	faults      log.Logger

	// schedMu protects the scheduler state below.
	schedMu sync.Mutex

	// nextTID is the ID of the next task created.
	nextTID int32

	// tasks holds every task ever created, by ID.
	tasks map[int32]*Task

	// runQueue holds Ready tasks in the order they will run.
	runQueue []*Task

	// current is the task holding the baton, or nil.
	current *Task

	// group runs task goroutines once Run has been called; ctx is its
	// context. Both are nil before Run.
	group *errgroup.Group
	ctx   gocontext.Context
}

// NewKernel returns a Kernel with no tasks.
func NewKernel(args InitKernelArgs) (*Kernel, error) {
	if args.MemoryFile == nil {
		return nil, fmt.Errorf("no MemoryFile: %w", linuxerr.EINVAL)
	}
	if args.FileSystem == nil {
		return nil, fmt.Errorf("no FileSystem: %w", linuxerr.EINVAL)
	}
	if args.SyscallTable == nil {
		return nil, fmt.Errorf("no SyscallTable: %w", linuxerr.EINVAL)
	}
	args.SyscallTable.Init()
	clock := args.Clock
	if clock == nil {
		clock = ktime.NewMonotonicClock()
	}
	return &Kernel{
		mf:          args.MemoryFile,
		fs:          args.FileSystem,
		clock:       clock,
		table:       args.SyscallTable,
		maxFDs:      args.MaxFDs,
		strace:      args.Strace,
		unsupported: log.BasicRateLimitedLogger(warnEvery),
		faults:      log.BasicRateLimitedLogger(warnEvery),
		nextTID:     1,
		tasks:       make(map[int32]*Task),
	}, nil
}

// MemoryFile returns the frame allocator.
func (k *Kernel) MemoryFile() *pgalloc.MemoryFile {
	return k.mf
}

// FileSystem returns the file system tasks resolve paths against.
func (k *Kernel) FileSystem() vfs.FileSystem {
	return k.fs
}

// Clock returns the kernel's time source.
func (k *Kernel) Clock() ktime.Clock {
	return k.clock
}

// SyscallTable returns the syscall table used by all tasks.
func (k *Kernel) SyscallTable() *SyscallTable {
	return k.table
}

// TaskSpec describes a task to create.
type TaskSpec struct {
	// Name is used in logs.
	Name string

	// Program is the application code the task runs.
	Program Program

	// Layout describes the task's address space.
	Layout mm.Layout

	// Mappings are set up before the task first runs and cannot be removed
	// by munmap, like the loader's stack mapping.
	Mappings []mm.MMapOpts

	// Files are installed at descriptors 0, 1, ... in order. The table takes
	// its own references; the caller keeps theirs.
	Files []*vfs.FileDescription
}

// NewTask creates a Ready task and queues it to run. If the kernel is
// already running, the task's goroutine is started immediately.
func (k *Kernel) NewTask(ctx context.Context, spec TaskSpec) (*Task, error) {
	if spec.Program == nil {
		return nil, fmt.Errorf("task %q has no program: %w", spec.Name, linuxerr.EINVAL)
	}
	m, err := mm.NewMemoryManager(k.mf, spec.Layout)
	if err != nil {
		return nil, err
	}
	for _, opts := range spec.Mappings {
		if err := m.MapFixed(opts); err != nil {
			m.Release()
			return nil, fmt.Errorf("mapping %q at %v: %w", opts.Hint, opts.Addr, err)
		}
	}
	fdTable := NewFDTable(k.maxFDs)
	for i, file := range spec.Files {
		if err := fdTable.NewFDAt(ctx, int32(i), file); err != nil {
			fdTable.RemoveAll(ctx)
			m.Release()
			return nil, fmt.Errorf("installing descriptor %d: %w", i, err)
		}
	}

	k.schedMu.Lock()
	defer k.schedMu.Unlock()
	tid := k.nextTID
	k.nextTID++
	t := &Task{
		Context: context.WithValue(context.Background(), context.CtxTaskID, tid),
		k:       k,
		tid:     tid,
		name:    spec.Name,
		program: spec.Program,
		mm:      m,
		wake:    make(chan struct{}, 1),
	}
	t.state.FDTable = fdTable
	t.state.Status = linux.TaskReady
	k.tasks[tid] = t
	k.runQueue = append(k.runQueue, t)
	if k.group != nil {
		k.group.Go(t.start)
	}
	ctx.Debugf("created task %d %q", tid, spec.Name)
	return t, nil
}

// Run runs tasks until all of them have exited, or until ctx is cancelled
// and the remaining tasks give up. Run may be called only once.
func (k *Kernel) Run(ctx gocontext.Context) error {
	k.schedMu.Lock()
	if k.group != nil {
		k.schedMu.Unlock()
		return fmt.Errorf("kernel already running: %w", linuxerr.EINVAL)
	}
	g, gctx := errgroup.WithContext(ctx)
	k.group, k.ctx = g, gctx
	for _, t := range k.runQueue {
		g.Go(t.start)
	}
	k.switchLocked()
	k.schedMu.Unlock()

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Task returns the task with the given ID.
func (k *Kernel) Task(tid int32) (*Task, bool) {
	k.schedMu.Lock()
	defer k.schedMu.Unlock()
	t, ok := k.tasks[tid]
	return t, ok
}

// Tasks returns every task created, in creation order.
func (k *Kernel) Tasks() []*Task {
	k.schedMu.Lock()
	defer k.schedMu.Unlock()
	ts := make([]*Task, 0, len(k.tasks))
	for tid := int32(1); tid < k.nextTID; tid++ {
		if t, ok := k.tasks[tid]; ok {
			ts = append(ts, t)
		}
	}
	return ts
}

// interrupted returns true once the context passed to Run is done.
func (k *Kernel) interrupted() bool {
	k.schedMu.Lock()
	ctx := k.ctx
	k.schedMu.Unlock()
	return ctx != nil && ctx.Err() != nil
}
