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
	goerrors "errors"

	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/sentry/arch"
	"gvisor.dev/ukernel/pkg/sentry/mm"
)

// FaultExitCode is the exit code of a task killed by a memory fault in a
// syscall.
const FaultExitCode = -2

// Syscall is the trap into the kernel: it runs syscall sysno with the given
// raw arguments on behalf of t and returns the value the caller sees. Any
// error is reported as -1.
//
// Syscall does not return if the syscall exits the task, or if it touches
// user memory that is not mapped with the required permissions; the task is
// then killed with FaultExitCode.
//
// Preconditions: The caller must be running on the task goroutine.
func (t *Task) Syscall(sysno uintptr, rawArgs ...uintptr) int64 {
	args := arch.MakeSyscallArguments(rawArgs...)
	fn := t.k.table.Lookup(sysno)
	if fn == nil {
		t.k.unsupported.Warningf("task %d: unsupported syscall %d(%v)", t.tid, sysno, args)
		return -1
	}
	if sysno < linux.MaxSyscallNum {
		t.WithState(func(ts *TaskState) {
			ts.SyscallCounts[sysno]++
		})
	}
	name := t.k.table.LookupName(sysno)
	if t.k.strace {
		t.Infof("[%4d] %s(%v)", t.tid, name, args)
	}

	rval, ctrl, err := fn(t, args)
	if ctrl != nil && ctrl.exit {
		if t.k.strace {
			t.Infof("[%4d] %s exiting", t.tid, name)
		}
		t.exit(t.exitCode())
	}
	if err != nil {
		var fault *mm.FaultError
		if goerrors.As(err, &fault) {
			t.k.faults.Warningf("task %d %q killed: %s in %s", t.tid, t.name, fault, name)
			if log.IsLogging(log.Debug) {
				t.debugDump()
			}
			t.exit(FaultExitCode)
		}
		if e, ok := linuxerr.Translate(err); ok {
			t.Debugf("[%4d] %s failed: %v (errno %d)", t.tid, name, err, linuxerr.ToUnix(e))
		} else {
			t.Warningf("[%4d] %s failed: %v", t.tid, name, err)
		}
		if t.k.strace {
			t.Infof("[%4d] %s = -1", t.tid, name)
		}
		return -1
	}
	if t.k.strace {
		t.Infof("[%4d] %s = %#x", t.tid, name, rval)
	}
	return int64(rval)
}

// debugDump logs the address space and open descriptors of t.
func (t *Task) debugDump() {
	var fdTable *FDTable
	t.WithState(func(ts *TaskState) { fdTable = ts.FDTable })
	t.Debugf("task %d address space, brk %v:\n%s", t.tid, t.mm.Brk(), t.mm.Maps())
	if fdTable != nil {
		t.Debugf("task %d descriptors:\n%s", t.tid, fdTable.String())
	}
}
