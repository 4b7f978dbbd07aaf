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
	"fmt"
	"sort"
	"sync"

	"gvisor.dev/ukernel/pkg/sentry/arch"
)

// SyscallFn is a syscall implementation.
type SyscallFn func(t *Task, args arch.SyscallArguments) (uintptr, *SyscallControl, error)

// SyscallControl is returned by syscalls to control the behavior of
// Task.Syscall.
type SyscallControl struct {
	// exit is true if the task goroutine should exit instead of returning
	// to the caller.
	exit bool
}

// CtrlDoExit is returned by the implementations of the exit syscall to
// enter the task exit path.
var CtrlDoExit = &SyscallControl{exit: true}

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation of the syscall.
	Fn SyscallFn

	// Note describes the behavior of the implementation.
	Note string
}

// SyscallTable is a lookup table of system calls.
//
// Table must not be modified after Init.
type SyscallTable struct {
	// Name identifies the table.
	Name string

	// Table is the collection of functions.
	Table map[uintptr]Syscall

	// lookup is a fixed-size array that holds the syscalls (indexed by
	// their numbers). It is used for fast look ups.
	lookup []SyscallFn
}

// allSyscallTables contains all known tables.
var (
	allSyscallTablesMu sync.Mutex
	allSyscallTables   []*SyscallTable
)

// SyscallTables returns a read-only slice of registered SyscallTables.
func SyscallTables() []*SyscallTable {
	allSyscallTablesMu.Lock()
	defer allSyscallTablesMu.Unlock()
	return append([]*SyscallTable(nil), allSyscallTables...)
}

// LookupSyscallTable returns the SyscallTable registered under name.
func LookupSyscallTable(name string) (*SyscallTable, bool) {
	allSyscallTablesMu.Lock()
	defer allSyscallTablesMu.Unlock()
	for _, s := range allSyscallTables {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// RegisterSyscallTable registers a new syscall table for use by a Kernel.
func RegisterSyscallTable(s *SyscallTable) {
	s.Init()
	allSyscallTablesMu.Lock()
	defer allSyscallTablesMu.Unlock()
	for _, other := range allSyscallTables {
		if other.Name == s.Name {
			panic(fmt.Sprintf("syscall table %q registered twice", s.Name))
		}
	}
	allSyscallTables = append(allSyscallTables, s)
}

// Init initializes the system call table. It is idempotent.
func (s *SyscallTable) Init() {
	if s.lookup != nil {
		return
	}
	maxNum := uintptr(0)
	for num := range s.Table {
		if num > maxNum {
			maxNum = num
		}
	}
	s.lookup = make([]SyscallFn, maxNum+1)
	for num, sc := range s.Table {
		s.lookup[num] = sc.Fn
	}
}

// Lookup returns the syscall implementation, if one exists.
func (s *SyscallTable) Lookup(sysno uintptr) SyscallFn {
	if sysno < uintptr(len(s.lookup)) {
		return s.lookup[sysno]
	}
	return nil
}

// LookupName looks up a syscall name.
func (s *SyscallTable) LookupName(sysno uintptr) string {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Name
	}
	return fmt.Sprintf("sys_%d", sysno)
}

// Numbers returns the syscall numbers in the table in increasing order.
func (s *SyscallTable) Numbers() []uintptr {
	nums := make([]uintptr, 0, len(s.Table))
	for num := range s.Table {
		nums = append(nums, num)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}
