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
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/safemem"
	"gvisor.dev/ukernel/pkg/usermem"
)

// CopyInString copies a NUL-terminated string of length at most maxlen in from
// the task's memory. The copy will fail with syscall.EFAULT if it traverses
// user memory that is unmapped or not readable by the user.
//
// This Task method does not access the task's address space directly; it is
// a convenience wrapper for usermem.CopyStringIn.
func (t *Task) CopyInString(addr hostarch.Addr, maxlen int) (string, error) {
	return usermem.CopyStringIn(t.mm, addr, maxlen)
}

// SingleIOSequence returns the user buffer [addr, addr+length) as a sequence
// of blocks, one per page touched. Every page must permit access at; the
// returned error is then a *mm.FaultError.
//
// The blocks alias the task's memory. They must not be used after the task
// unmaps them.
func (t *Task) SingleIOSequence(addr hostarch.Addr, length int, at hostarch.AccessType) (safemem.BlockSeq, error) {
	return t.mm.Translate(addr, uint64(length), at)
}
