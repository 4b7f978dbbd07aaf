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
	"runtime"

	"gvisor.dev/ukernel/pkg/abi/linux"
)

// start runs the task goroutine and waits for it to end. It is run by the
// kernel's errgroup.
func (t *Task) start() error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.run()
	}()
	<-done
	return nil
}

// run is the body of the task goroutine. It always ends through exit.
func (t *Task) run() {
	t.waitForBaton()
	t.Debugf("task %d %q running", t.tid, t.name)
	t.program(t)
	t.exit(0)
}

// PrepareExit records code as t's exit status. The exit itself happens when
// the syscall returns CtrlDoExit.
func (t *Task) PrepareExit(code int32) {
	t.WithState(func(ts *TaskState) {
		ts.ExitCode = code
	})
}

// exit ends t: it becomes a Zombie with the given code, its descriptors and
// address space are released, the baton passes to the next Ready task, and
// the task goroutine terminates. exit never returns.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) exit(code int32) {
	var fdTable *FDTable
	t.WithState(func(ts *TaskState) {
		ts.Status = linux.TaskZombie
		ts.ExitCode = code
		fdTable, ts.FDTable = ts.FDTable, nil
	})
	if fdTable != nil {
		t.Debugf("task %d %q closing descriptors %v", t.tid, t.name, fdTable.GetFDs())
		fdTable.RemoveAll(t)
	}
	t.mm.Release()
	t.Debugf("task %d %q exited with code %d", t.tid, t.name, code)

	k := t.k
	k.schedMu.Lock()
	k.switchLocked()
	k.schedMu.Unlock()

	// Deferred calls on the task goroutine, including those of the syscall
	// in progress, still run.
	runtime.Goexit()
}

// exitCode returns the exit code recorded by PrepareExit.
func (t *Task) exitCode() int32 {
	var code int32
	t.WithState(func(ts *TaskState) { code = ts.ExitCode })
	return code
}
