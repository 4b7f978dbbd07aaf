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

// Cooperative round-robin scheduling.

import (
	"gvisor.dev/ukernel/pkg/abi/linux"
)

// switchLocked hands the baton to the task at the head of the run queue. If
// the queue is empty, no task runs.
//
// Preconditions: k.schedMu must be locked. The caller must not be holding
// the baton, or must be giving it up.
func (k *Kernel) switchLocked() {
	if len(k.runQueue) == 0 {
		k.current = nil
		return
	}
	next := k.runQueue[0]
	k.runQueue[0] = nil
	k.runQueue = k.runQueue[1:]
	k.current = next
	next.wake <- struct{}{}
}

// waitForBaton blocks until t is scheduled, then marks it Running. The first
// time t runs, its start time is recorded.
func (t *Task) waitForBaton() {
	<-t.wake
	now := t.k.clock.Now()
	t.WithState(func(ts *TaskState) {
		ts.Status = linux.TaskRunning
		if !ts.Started {
			ts.Started = true
			ts.StartTime = now
		}
	})
}

// Yield gives up the processor to the next Ready task and returns when t is
// scheduled again. If no other task is Ready, Yield returns immediately.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) Yield() {
	t.WithState(func(ts *TaskState) {
		ts.Status = linux.TaskReady
	})
	k := t.k
	k.schedMu.Lock()
	k.runQueue = append(k.runQueue, t)
	k.switchLocked()
	k.schedMu.Unlock()
	t.waitForBaton()
}

// Interrupted returns true if the kernel is shutting down, in which case
// blocking syscalls give up instead of yielding.
func (t *Task) Interrupted() bool {
	return t.k.interrupted()
}
