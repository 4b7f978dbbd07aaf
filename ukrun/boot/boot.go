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

// Package boot loads a kernel from a configuration and runs built-in
// workloads on it.
package boot

import (
	gocontext "context"
	"fmt"
	"io"

	"github.com/mohae/deepcopy"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/refs"
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
	"gvisor.dev/ukernel/pkg/sentry/devices/ttydev"
	"gvisor.dev/ukernel/pkg/sentry/fsimpl/memfs"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
	"gvisor.dev/ukernel/pkg/sentry/ktime"
	"gvisor.dev/ukernel/pkg/sentry/mm"
	"gvisor.dev/ukernel/pkg/sentry/pgalloc"
	"gvisor.dev/ukernel/pkg/sentry/syscalls/linux"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
	"gvisor.dev/ukernel/ukrun/config"
)

// Args are the arguments for New.
type Args struct {
	// Config is the kernel configuration. New keeps a copy, so later
	// changes to Config have no effect.
	Config *config.Config

	// Stdin is read into the console until EOF. If nil, the console
	// starts with no input and end of input already reached.
	Stdin io.Reader

	// Stdout receives everything tasks write to the console.
	Stdout io.Writer

	// Clock overrides the kernel clock. If nil, a MonotonicClock is used.
	Clock ktime.Clock
}

// Loader keeps state needed to run workloads on a kernel.
type Loader struct {
	conf    *config.Config
	mf      *pgalloc.MemoryFile
	fs      *memfs.Filesystem
	console *ttydev.Console
	k       *kernel.Kernel
	stdin   io.Reader
}

// Result is the outcome of one workload.
type Result struct {
	Name     string
	TID      int32
	ExitCode int32
}

// OK returns true if the workload exited successfully.
func (r Result) OK() bool {
	return r.ExitCode == exitOK
}

// New boots a kernel with no tasks.
func New(args Args) (*Loader, error) {
	if args.Config == nil {
		return nil, fmt.Errorf("no config")
	}
	conf := deepcopy.Copy(args.Config).(*config.Config)
	if conf.StackPages < minStackPages {
		return nil, fmt.Errorf("workloads need at least %d stack pages, have %d", minStackPages, conf.StackPages)
	}

	mf, err := pgalloc.NewMemoryFile(pgalloc.MemoryFileOpts{
		Frames:    uint32(conf.Frames),
		Direction: pgalloc.BottomUp,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memory file: %w", err)
	}
	stdout := args.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	l := &Loader{
		conf:    conf,
		mf:      mf,
		fs:      memfs.New(),
		console: ttydev.NewConsole(stdout),
		stdin:   args.Stdin,
	}
	l.k, err = kernel.NewKernel(kernel.InitKernelArgs{
		MemoryFile:   mf,
		FileSystem:   l.fs,
		Clock:        args.Clock,
		SyscallTable: linux.Table,
		MaxFDs:       conf.MaxFDs,
		Strace:       conf.Strace,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kernel: %w", err)
	}
	log.Infof("Kernel booted: %d frames, %d FDs per task, table %q", mf.TotalFrames(), conf.MaxFDs, linux.TableName)
	return l, nil
}

// Kernel returns the loader's kernel.
func (l *Loader) Kernel() *kernel.Kernel {
	return l.k
}

// MemoryFile returns the frames backing every task.
func (l *Loader) MemoryFile() *pgalloc.MemoryFile {
	return l.mf
}

// FileSystem returns the kernel's file system.
func (l *Loader) FileSystem() *memfs.Filesystem {
	return l.fs
}

// Start creates a task running the named workload, with the console at
// descriptors 0 and 1.
func (l *Loader) Start(ctx context.Context, name string) (*kernel.Task, error) {
	w, ok := LookupWorkload(name)
	if !ok {
		return nil, fmt.Errorf("unknown workload %q", name)
	}
	stdin, stdout := l.console.NewStdin(), l.console.NewStdout()
	defer stdin.DecRef(ctx)
	defer stdout.DecRef(ctx)

	stackBase := hostarch.Addr(l.conf.StackBase)
	heapBase := hostarch.Addr(l.conf.HeapBase)
	t, err := l.k.NewTask(ctx, kernel.TaskSpec{
		Name: name,
		Program: func(t *kernel.Task) {
			w.run(newProc(t, name, stackBase, heapBase))
		},
		Layout: mm.Layout{HeapBase: heapBase},
		Mappings: []mm.MMapOpts{{
			Addr:   stackBase,
			Length: uint64(l.conf.StackPages) * hostarch.PageSize,
			Perms:  pagetables.Readable | pagetables.Writable | pagetables.User,
			Hint:   "[stack]",
		}},
		Files: []*vfs.FileDescription{stdin, stdout},
	})
	if err != nil {
		return nil, fmt.Errorf("starting workload %q: %w", name, err)
	}
	return t, nil
}

// Run feeds the console, runs all tasks to completion and returns the
// result of every workload started. Leaked references are reported
// according to the configured leak mode.
func (l *Loader) Run(ctx gocontext.Context) ([]Result, error) {
	if l.stdin != nil {
		go l.feed()
	} else {
		l.console.CloseInput()
	}

	if err := l.k.Run(ctx); err != nil {
		return nil, err
	}

	tasks := l.k.Tasks()
	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		code, ok := t.ExitCode()
		if !ok {
			return nil, fmt.Errorf("task %d (%s) did not exit", t.ThreadID(), t.Name())
		}
		results = append(results, Result{Name: t.Name(), TID: t.ThreadID(), ExitCode: code})
		log.Infof("Workload %q (task %d) exited with code %d", t.Name(), t.ThreadID(), code)
	}
	if used := l.mf.TotalFrames() - l.mf.Available(); used != 0 {
		log.Warningf("%d frames still allocated after all tasks exited", used)
	}
	log.Debugf("File system holds %d names, %d live inodes", l.fs.Names(), l.fs.LiveInodes())
	if n := refs.DoLeakCheck(); n != 0 {
		log.Warningf("%d objects leaked", n)
	}
	return results, nil
}

// feed copies stdin into the console until EOF or an error.
func (l *Loader) feed() {
	defer l.console.CloseInput()
	buf := make([]byte, hostarch.PageSize)
	for {
		n, err := l.stdin.Read(buf)
		if n > 0 {
			l.console.Feed(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				log.Warningf("Reading stdin: %v", err)
			}
			return
		}
	}
}
