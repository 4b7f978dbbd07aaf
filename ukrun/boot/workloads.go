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

package boot

import (
	"bytes"
	"fmt"
	"sort"

	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
)

// Workload exit codes.
const (
	exitOK     = 0
	exitFailed = 1
)

// minStackPages is the stack size the workloads' scratch layout needs.
const minStackPages = 4

// Workload is a built-in program exercising the syscall interface.
type Workload struct {
	// Name identifies the workload on the command line.
	Name string

	// Description is shown by the run command's usage.
	Description string

	// ReadsStdin is true if the workload consumes console input.
	ReadsStdin bool

	run func(p *proc)
}

var workloads = map[string]*Workload{}

func register(w *Workload) {
	if _, ok := workloads[w.Name]; ok {
		panic(fmt.Sprintf("workload %q registered twice", w.Name))
	}
	workloads[w.Name] = w
}

// LookupWorkload returns the workload with the given name.
func LookupWorkload(name string) (*Workload, bool) {
	w, ok := workloads[name]
	return w, ok
}

// Workloads returns all workloads sorted by name.
func Workloads() []*Workload {
	ws := make([]*Workload, 0, len(workloads))
	for _, w := range workloads {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].Name < ws[j].Name })
	return ws
}

func init() {
	register(&Workload{Name: "hello", Description: "write a greeting to stdout", run: hello})
	register(&Workload{Name: "echo", Description: "copy stdin to stdout until end of input", ReadsStdin: true, run: echo})
	register(&Workload{Name: "file", Description: "create, write, read back, link and unlink a file", run: fileRoundTrip})
	register(&Workload{Name: "mmap", Description: "map two pages, use them across the boundary, unmap them", run: mmapPages})
	register(&Workload{Name: "sbrk", Description: "grow the heap, use it and shrink it back", run: growHeap})
	register(&Workload{Name: "task_info", Description: "report the task's own syscall counts and run time", run: taskInfo})
}

// proc is the user side of a workload task: a task and the scratch layout
// of its stack.
type proc struct {
	t        *kernel.Task
	name     string
	heapBase hostarch.Addr

	// Scratch locations inside the stack mapping.
	path    hostarch.Addr
	path2   hostarch.Addr
	buf     hostarch.Addr
	out     hostarch.Addr
	scratch hostarch.Addr
}

func newProc(t *kernel.Task, name string, stackBase, heapBase hostarch.Addr) *proc {
	return &proc{
		t:        t,
		name:     name,
		heapBase: heapBase,
		path:     stackBase,
		path2:    stackBase + 0x400,
		buf:      stackBase + hostarch.PageSize,
		out:      stackBase + 2*hostarch.PageSize,
		scratch:  stackBase + 3*hostarch.PageSize,
	}
}

func (p *proc) syscall(sysno uintptr, args ...uintptr) int64 {
	return p.t.Syscall(sysno, args...)
}

// poke stores b at addr as application code would.
func (p *proc) poke(addr hostarch.Addr, b []byte) uintptr {
	if _, err := p.t.CopyOutBytes(addr, b); err != nil {
		p.fail("store at %v: %v", addr, err)
	}
	return uintptr(addr)
}

func (p *proc) peek(addr hostarch.Addr, n int) []byte {
	b := make([]byte, n)
	if _, err := p.t.CopyInBytes(addr, b); err != nil {
		p.fail("load at %v: %v", addr, err)
	}
	return b
}

func (p *proc) cstring(addr hostarch.Addr, s string) uintptr {
	return p.poke(addr, append([]byte(s), 0))
}

// printf writes to stdout through the write syscall.
func (p *proc) printf(format string, v ...any) {
	msg := []byte(fmt.Sprintf(format, v...))
	for len(msg) > 0 {
		chunk := msg
		if len(chunk) > hostarch.PageSize {
			chunk = chunk[:hostarch.PageSize]
		}
		n := p.syscall(linux.SYS_WRITE, 1, p.poke(p.out, chunk), uintptr(len(chunk)))
		if n <= 0 {
			p.exit(exitFailed)
		}
		msg = msg[n:]
	}
}

func (p *proc) exit(code int) {
	p.syscall(linux.SYS_EXIT, uintptr(code))
}

// fail reports a failed step and exits the task.
func (p *proc) fail(format string, v ...any) {
	p.printf("%s: FAIL: %s\n", p.name, fmt.Sprintf(format, v...))
	p.exit(exitFailed)
}

// check fails unless the syscall result is want.
func (p *proc) check(what string, got, want int64) {
	if got != want {
		p.fail("%s = %d, want %d", what, got, want)
	}
}

// checkOK fails if the syscall result is negative and returns it otherwise.
func (p *proc) checkOK(what string, got int64) int64 {
	if got < 0 {
		p.fail("%s = %d", what, got)
	}
	return got
}

func (p *proc) stat(fd int64) linux.Stat {
	p.check("fstat", p.syscall(linux.SYS_FSTAT, uintptr(fd), uintptr(p.scratch)), 0)
	var s linux.Stat
	if _, err := s.CopyIn(p.t, p.scratch); err != nil {
		p.fail("load stat: %v", err)
	}
	return s
}

func hello(p *proc) {
	p.printf("Hello from task %d!\n", p.t.ThreadID())
}

func echo(p *proc) {
	for {
		n := p.checkOK("read(stdin)", p.syscall(linux.SYS_READ, 0, uintptr(p.buf), hostarch.PageSize))
		if n == 0 {
			return
		}
		p.check("write(stdout)", p.syscall(linux.SYS_WRITE, 1, uintptr(p.buf), uintptr(n)), n)
	}
}

func fileRoundTrip(p *proc) {
	const (
		name = "ukrun.txt"
		link = "ukrun.lnk"
	)
	data := []byte("the quick brown fox jumps over the lazy dog\n")

	fd := p.checkOK("open(O_CREAT)", p.syscall(linux.SYS_OPEN, p.cstring(p.path, name), linux.O_WRONLY|linux.O_CREAT))
	p.check("write", p.syscall(linux.SYS_WRITE, uintptr(fd), p.poke(p.buf, data), uintptr(len(data))), int64(len(data)))
	p.check("close", p.syscall(linux.SYS_CLOSE, uintptr(fd)), 0)

	p.check("linkat", p.syscall(linux.SYS_LINKAT, p.cstring(p.path, name), p.cstring(p.path2, link)), 0)
	fd = p.checkOK("open(link)", p.syscall(linux.SYS_OPEN, p.cstring(p.path, link), linux.O_RDONLY))
	if s := p.stat(fd); s.Nlink != 2 || s.Mode&linux.S_IFMT != linux.S_IFREG {
		p.fail("stat after link = %+v, want 2 links of a regular file", s)
	}
	got := make([]byte, 0, len(data))
	for {
		n := p.checkOK("read", p.syscall(linux.SYS_READ, uintptr(fd), uintptr(p.buf), hostarch.PageSize))
		if n == 0 {
			break
		}
		got = append(got, p.peek(p.buf, int(n))...)
	}
	if !bytes.Equal(got, data) {
		p.fail("read back %q, want %q", got, data)
	}

	p.check("unlinkat(name)", p.syscall(linux.SYS_UNLINKAT, p.cstring(p.path, name)), 0)
	p.check("unlinkat(link)", p.syscall(linux.SYS_UNLINKAT, p.cstring(p.path, link)), 0)
	if s := p.stat(fd); s.Nlink != 0 {
		p.fail("stat after unlink has %d links, want 0", s.Nlink)
	}
	p.check("close", p.syscall(linux.SYS_CLOSE, uintptr(fd)), 0)
	p.check("open(unlinked)", p.syscall(linux.SYS_OPEN, p.cstring(p.path, name), linux.O_RDONLY), -1)
	p.printf("file: wrote, read back and removed %d bytes\n", len(data))
}

// mmapOffset places workload mappings well above the heap.
const mmapOffset = 0x100000

func mmapPages(p *proc) {
	addr := p.heapBase + mmapOffset
	length := uintptr(2 * hostarch.PageSize)
	p.check("mmap", p.syscall(linux.SYS_MMAP, uintptr(addr), length, linux.PROT_READ|linux.PROT_WRITE), 0)
	p.check("mmap(overlap)", p.syscall(linux.SYS_MMAP, uintptr(addr+hostarch.PageSize), length, linux.PROT_READ), -1)

	// Write across the page boundary through a descriptor, so the kernel
	// scatters into both pages.
	data := []byte("spanning two pages")
	at := addr + hostarch.PageSize - 4
	p.poke(at, data)
	if got := p.peek(at, len(data)); !bytes.Equal(got, data) {
		p.fail("mapped memory holds %q, want %q", got, data)
	}
	p.check("write(mapped)", p.syscall(linux.SYS_WRITE, 1, uintptr(at), uintptr(len(data))), int64(len(data)))
	p.printf("\n")

	p.check("munmap", p.syscall(linux.SYS_MUNMAP, uintptr(addr), length), 0)
	p.check("munmap(again)", p.syscall(linux.SYS_MUNMAP, uintptr(addr), length), -1)
	p.printf("mmap: mapped and unmapped %d bytes at %v\n", length, addr)
}

func growHeap(p *proc) {
	const grow = 3 * hostarch.PageSize
	base := p.checkOK("sbrk(0)", p.syscall(linux.SYS_SBRK, 0))
	if hostarch.Addr(base) != p.heapBase {
		p.fail("initial break %#x, want %v", base, p.heapBase)
	}
	p.check("sbrk(grow)", p.syscall(linux.SYS_SBRK, grow), base)

	data := []byte("heap data")
	end := hostarch.Addr(base) + grow - hostarch.Addr(len(data))
	p.poke(end, data)
	if got := p.peek(end, len(data)); !bytes.Equal(got, data) {
		p.fail("heap holds %q, want %q", got, data)
	}

	shrink := -int64(grow)
	p.check("sbrk(shrink)", p.syscall(linux.SYS_SBRK, uintptr(shrink)), base+grow)
	p.check("sbrk(below base)", p.syscall(linux.SYS_SBRK, uintptr(shrink)), -1)
	p.check("sbrk(0)", p.syscall(linux.SYS_SBRK, 0), base)
	p.printf("sbrk: grew the heap at %#x by %d bytes and shrank it back\n", base, grow)
}

func taskInfo(p *proc) {
	const yields = 3
	for i := 0; i < yields; i++ {
		p.check("yield", p.syscall(linux.SYS_YIELD), 0)
	}
	p.check("get_time", p.syscall(linux.SYS_GET_TIME, uintptr(p.scratch), 0), 0)
	var tv linux.Timeval
	if _, err := tv.CopyIn(p.t, p.scratch); err != nil {
		p.fail("load timeval: %v", err)
	}

	p.check("task_info", p.syscall(linux.SYS_TASK_INFO, uintptr(p.scratch)), 0)
	var info linux.TaskInfo
	if _, err := info.CopyIn(p.t, p.scratch); err != nil {
		p.fail("load task info: %v", err)
	}
	if info.Status != linux.TaskRunning {
		p.fail("status %v, want %v", info.Status, linux.TaskRunning)
	}
	if got := info.SyscallTimes[linux.SYS_YIELD]; got != yields {
		p.fail("%d yields counted, want %d", got, yields)
	}
	if got := info.SyscallTimes[linux.SYS_TASK_INFO]; got != 1 {
		p.fail("%d task_info calls counted, want 1", got)
	}
	p.printf("task_info: %v, yield=%d get_time=%d task_info=%d, %dms, clock %d.%06d\n",
		info.Status, info.SyscallTimes[linux.SYS_YIELD], info.SyscallTimes[linux.SYS_GET_TIME],
		info.SyscallTimes[linux.SYS_TASK_INFO], info.Time, tv.Sec, tv.Usec)
}
