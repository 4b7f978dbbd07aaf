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

package linux

import (
	"bytes"
	gocontext "context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
	"gvisor.dev/ukernel/pkg/sentry/devices/ttydev"
	"gvisor.dev/ukernel/pkg/sentry/fsimpl/memfs"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
	"gvisor.dev/ukernel/pkg/sentry/ktime"
	"gvisor.dev/ukernel/pkg/sentry/mm"
	"gvisor.dev/ukernel/pkg/sentry/pgalloc"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// Address space layout of test tasks.
const (
	stackBase  = hostarch.Addr(0x10000)
	stackPages = 4
	heapBase   = hostarch.Addr(0x80000)

	// Scratch locations inside the stack.
	pathAddr  = stackBase
	path2Addr = stackBase + 0x400
	bufAddr   = stackBase + hostarch.PageSize
	outAddr   = stackBase + 2*hostarch.PageSize
	infoAddr  = stackBase + 3*hostarch.PageSize
)

const (
	rdwrCreat   = linux.O_RDWR | linux.O_CREAT
	wronlyCreat = linux.O_WRONLY | linux.O_CREAT
)

type harness struct {
	k       *kernel.Kernel
	mf      *pgalloc.MemoryFile
	fs      *memfs.Filesystem
	clock   *ktime.SyntheticClock
	console *ttydev.Console
	out     bytes.Buffer
}

// newHarness returns a kernel running this package's table over memfs, with
// a synthetic clock. opts may adjust the kernel arguments.
func newHarness(t *testing.T, opts ...func(*kernel.InitKernelArgs)) *harness {
	t.Helper()
	h := &harness{
		fs:    memfs.New(),
		clock: &ktime.SyntheticClock{},
	}
	h.console = ttydev.NewConsole(&h.out)
	mf, err := pgalloc.NewMemoryFile(pgalloc.MemoryFileOpts{Frames: 512, Direction: pgalloc.TopDown})
	if err != nil {
		t.Fatalf("NewMemoryFile: %v", err)
	}
	h.mf = mf
	args := kernel.InitKernelArgs{
		MemoryFile:   mf,
		FileSystem:   h.fs,
		Clock:        h.clock,
		SyscallTable: Table,
		MaxFDs:       16,
	}
	for _, opt := range opts {
		opt(&args)
	}
	k, err := kernel.NewKernel(args)
	if err != nil {
		t.Fatalf("NewKernel: %v", err)
	}
	h.k = k
	return h
}

// spawn creates a task with the console at descriptors 0 and 1.
func (h *harness) spawn(t *testing.T, name string, program kernel.Program) *kernel.Task {
	t.Helper()
	ctx := context.Background()
	stdin, stdout := h.console.NewStdin(), h.console.NewStdout()
	defer stdin.DecRef(ctx)
	defer stdout.DecRef(ctx)
	task, err := h.k.NewTask(ctx, kernel.TaskSpec{
		Name:    name,
		Program: program,
		Layout:  mm.Layout{HeapBase: heapBase},
		Mappings: []mm.MMapOpts{{
			Addr:   stackBase,
			Length: stackPages * hostarch.PageSize,
			Perms:  pagetables.Readable | pagetables.Writable | pagetables.User,
			Hint:   "[stack]",
		}},
		Files: []*vfs.FileDescription{stdin, stdout},
	})
	if err != nil {
		t.Fatalf("NewTask(%s): %v", name, err)
	}
	return task
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := gocontext.WithTimeout(gocontext.Background(), 10*time.Second)
	defer cancel()
	if err := h.k.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// runOne runs program as the only task and returns it once it has exited.
func (h *harness) runOne(t *testing.T, program kernel.Program) *kernel.Task {
	t.Helper()
	task := h.spawn(t, t.Name(), program)
	h.run(t)
	return task
}

// putString stores s NUL-terminated at addr in the task's memory.
func putString(tk *kernel.Task, addr hostarch.Addr, s string) uintptr {
	if _, err := tk.CopyOutBytes(addr, append([]byte(s), 0)); err != nil {
		panic(err)
	}
	return uintptr(addr)
}

func putBytes(tk *kernel.Task, addr hostarch.Addr, b []byte) uintptr {
	if _, err := tk.CopyOutBytes(addr, b); err != nil {
		panic(err)
	}
	return uintptr(addr)
}

func getBytes(tk *kernel.Task, addr hostarch.Addr, n int) []byte {
	b := make([]byte, n)
	if _, err := tk.CopyInBytes(addr, b); err != nil {
		panic(err)
	}
	return b
}

func getStat(tk *kernel.Task, addr hostarch.Addr) linux.Stat {
	var s linux.Stat
	if _, err := s.CopyIn(tk, addr); err != nil {
		panic(err)
	}
	return s
}

func open(tk *kernel.Task, name string, flags linux.OpenFlags) int64 {
	return tk.Syscall(linux.SYS_OPEN, putString(tk, pathAddr, name), uintptr(flags))
}

func TestTableRegistered(t *testing.T) {
	table, ok := kernel.LookupSyscallTable(TableName)
	if !ok || table != Table {
		t.Fatalf("LookupSyscallTable(%q) = %v, %t", TableName, table, ok)
	}
	for sysno, name := range map[uintptr]string{
		linux.SYS_READ:      "read",
		linux.SYS_MMAP:      "mmap",
		linux.SYS_TASK_INFO: "task_info",
	} {
		if got := table.LookupName(sysno); got != name {
			t.Errorf("LookupName(%d) = %q, want %q", sysno, got, name)
		}
		if table.Lookup(sysno) == nil {
			t.Errorf("Lookup(%d) = nil", sysno)
		}
	}
	if got := len(table.Numbers()); got != 14 {
		t.Errorf("table has %d syscalls, want 14", got)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	h := newHarness(t)
	data := []byte("hello, world")
	var n1, n2 int64
	var got []byte
	h.runOne(t, func(tk *kernel.Task) {
		fd := open(tk, "f", rdwrCreat)
		n1 = tk.Syscall(linux.SYS_WRITE, uintptr(fd), putBytes(tk, bufAddr, data), uintptr(len(data)))
		tk.Syscall(linux.SYS_CLOSE, uintptr(fd))

		fd = open(tk, "f", linux.O_RDONLY)
		n2 = tk.Syscall(linux.SYS_READ, uintptr(fd), uintptr(outAddr), uintptr(hostarch.PageSize))
		got = getBytes(tk, outAddr, int(n2))
	})
	if n1 != int64(len(data)) || n2 != int64(len(data)) {
		t.Fatalf("write = %d, read = %d, want %d", n1, n2, len(data))
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back %q, want %q", got, data)
	}
}

// TestCrossPageBuffers transfers buffers that straddle a page boundary whose
// pages have non-adjacent frames.
func TestCrossPageBuffers(t *testing.T) {
	h := newHarness(t)
	const region = hostarch.Addr(0x100000)
	src := region + hostarch.PageSize - 7
	dst := region + 2*hostarch.PageSize - 5
	data := []byte("0123456789abcdef")
	var (
		mapped, written, read int64
		blocks                int
		got                   []byte
		stat                  linux.Stat
	)
	h.runOne(t, func(tk *kernel.Task) {
		mapped = tk.Syscall(linux.SYS_MMAP, uintptr(region), 3*hostarch.PageSize, linux.PROT_READ|linux.PROT_WRITE)
		bs, err := tk.SingleIOSequence(src, len(data), hostarch.Read)
		if err == nil {
			blocks = bs.NumBlocks()
		}

		fd := open(tk, "x", rdwrCreat)
		written = tk.Syscall(linux.SYS_WRITE, uintptr(fd), putBytes(tk, src, data), uintptr(len(data)))
		tk.Syscall(linux.SYS_CLOSE, uintptr(fd))
		fd = open(tk, "x", linux.O_RDONLY)
		read = tk.Syscall(linux.SYS_READ, uintptr(fd), uintptr(dst), uintptr(len(data)))
		got = getBytes(tk, dst, len(data))

		// The stat record is scattered across the same boundary.
		tk.Syscall(linux.SYS_FSTAT, uintptr(fd), uintptr(region+hostarch.PageSize-40))
		stat = getStat(tk, region+hostarch.PageSize-40)
	})
	if mapped != 0 {
		t.Fatalf("mmap = %d, want 0", mapped)
	}
	if blocks != 2 {
		t.Errorf("buffer translated to %d blocks, want 2", blocks)
	}
	if written != int64(len(data)) || read != int64(len(data)) {
		t.Fatalf("write = %d, read = %d, want %d", written, read, len(data))
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read back %q, want %q", got, data)
	}
	want := linux.Stat{Ino: 1, Mode: linux.S_IFREG, Nlink: 1}
	if stat != want {
		t.Errorf("fstat = %+v, want %+v", stat, want)
	}
}

// TestCreateWriteCloseFstat is the create, write, close, fstat scenario.
func TestCreateWriteCloseFstat(t *testing.T) {
	h := newHarness(t)
	var fd, written, closed, fstat, readClosed, writeClosed, reopened, fstatReopened int64
	h.runOne(t, func(tk *kernel.Task) {
		fd = open(tk, "a", wronlyCreat)
		written = tk.Syscall(linux.SYS_WRITE, uintptr(fd), putBytes(tk, bufAddr, []byte("12345")), 5)
		closed = tk.Syscall(linux.SYS_CLOSE, uintptr(fd))
		fstat = tk.Syscall(linux.SYS_FSTAT, uintptr(fd), uintptr(outAddr))
		readClosed = tk.Syscall(linux.SYS_READ, uintptr(fd), uintptr(outAddr), 5)
		writeClosed = tk.Syscall(linux.SYS_WRITE, uintptr(fd), uintptr(bufAddr), 5)
		reopened = open(tk, "a", linux.O_RDONLY)
		fstatReopened = tk.Syscall(linux.SYS_FSTAT, uintptr(reopened), uintptr(outAddr))
	})
	if fd < 0 {
		t.Fatalf("open = %d, want a descriptor", fd)
	}
	if fd != 2 {
		t.Errorf("open = %d, want the lowest free descriptor 2", fd)
	}
	if written != 5 {
		t.Errorf("write = %d, want 5", written)
	}
	if closed != 0 {
		t.Errorf("close = %d, want 0", closed)
	}
	if fstat != -1 || readClosed != -1 || writeClosed != -1 {
		t.Errorf("on a closed fd: fstat = %d, read = %d, write = %d, want -1", fstat, readClosed, writeClosed)
	}
	if reopened != fd || fstatReopened != 0 {
		t.Errorf("reopen = %d, fstat = %d, want %d, 0", reopened, fstatReopened, fd)
	}
}

func TestFileErrors(t *testing.T) {
	h := newHarness(t)
	long := string(bytes.Repeat([]byte("x"), linux.PathMax))
	results := map[string]int64{}
	h.runOne(t, func(tk *kernel.Task) {
		results["open missing"] = open(tk, "missing", linux.O_RDONLY)
		results["open long path"] = open(tk, long, rdwrCreat)
		results["close empty"] = tk.Syscall(linux.SYS_CLOSE, 9)
		results["close negative"] = tk.Syscall(linux.SYS_CLOSE, uintptr(^uint64(0)))
		results["read stdout"] = tk.Syscall(linux.SYS_READ, 1, uintptr(bufAddr), 1)
		results["write stdin"] = tk.Syscall(linux.SYS_WRITE, 0, uintptr(bufAddr), 1)
		results["fstat console"] = tk.Syscall(linux.SYS_FSTAT, 1, uintptr(outAddr))
		results["fstat out of range"] = tk.Syscall(linux.SYS_FSTAT, 1000, uintptr(outAddr))

		fd := open(tk, "ro", rdwrCreat)
		tk.Syscall(linux.SYS_CLOSE, uintptr(fd))
		fd = open(tk, "ro", linux.O_RDONLY)
		results["write read-only"] = tk.Syscall(linux.SYS_WRITE, uintptr(fd), uintptr(bufAddr), 1)
		fd = open(tk, "ro", linux.O_WRONLY)
		results["read write-only"] = tk.Syscall(linux.SYS_READ, uintptr(fd), uintptr(bufAddr), 1)
	})
	for name, got := range results {
		if got != -1 {
			t.Errorf("%s = %d, want -1", name, got)
		}
	}
	if got := h.fs.Names(); got != 1 {
		t.Errorf("file system has %d names, want 1", got)
	}
}

func TestDescriptorLimit(t *testing.T) {
	h := newHarness(t)
	var fds []int64
	h.runOne(t, func(tk *kernel.Task) {
		for {
			fd := open(tk, "many", rdwrCreat)
			fds = append(fds, fd)
			if fd < 0 {
				return
			}
		}
	})
	// Descriptors 0 and 1 hold the console.
	if got, want := len(fds), 16-2+1; got != want {
		t.Fatalf("opened %d descriptors before failing, want %d", got-1, want-1)
	}
	for i, fd := range fds[:len(fds)-1] {
		if fd != int64(i+2) {
			t.Errorf("open #%d = %d, want %d", i, fd, i+2)
		}
	}
}

func TestLinkat(t *testing.T) {
	h := newHarness(t)
	var selfMissing, selfExisting, link, linkAgain, linkMissing int64
	var stat linux.Stat
	var content []byte
	h.runOne(t, func(tk *kernel.Task) {
		selfMissing = tk.Syscall(linux.SYS_LINKAT, putString(tk, pathAddr, "p"), putString(tk, path2Addr, "p"))

		fd := open(tk, "p", rdwrCreat)
		tk.Syscall(linux.SYS_WRITE, uintptr(fd), putBytes(tk, bufAddr, []byte("shared")), 6)
		selfExisting = tk.Syscall(linux.SYS_LINKAT, putString(tk, pathAddr, "p"), putString(tk, path2Addr, "p"))
		link = tk.Syscall(linux.SYS_LINKAT, putString(tk, pathAddr, "p"), putString(tk, path2Addr, "q"))
		linkAgain = tk.Syscall(linux.SYS_LINKAT, putString(tk, pathAddr, "p"), putString(tk, path2Addr, "q"))
		linkMissing = tk.Syscall(linux.SYS_LINKAT, putString(tk, pathAddr, "nope"), putString(tk, path2Addr, "r"))
		tk.Syscall(linux.SYS_FSTAT, uintptr(fd), uintptr(outAddr))
		stat = getStat(tk, outAddr)

		q := open(tk, "q", linux.O_RDONLY)
		n := tk.Syscall(linux.SYS_READ, uintptr(q), uintptr(bufAddr), 64)
		content = getBytes(tk, bufAddr, int(n))
	})
	if selfMissing != -1 || selfExisting != -1 {
		t.Errorf("linkat(p, p) = %d before and %d after creating p, want -1", selfMissing, selfExisting)
	}
	if link != 0 {
		t.Errorf("linkat(p, q) = %d, want 0", link)
	}
	if linkAgain != -1 || linkMissing != -1 {
		t.Errorf("linkat onto an existing name = %d, from a missing name = %d, want -1", linkAgain, linkMissing)
	}
	if stat.Nlink != 2 {
		t.Errorf("nlink = %d, want 2", stat.Nlink)
	}
	if string(content) != "shared" {
		t.Errorf("read through the link = %q, want %q", content, "shared")
	}
}

func TestUnlinkat(t *testing.T) {
	h := newHarness(t)
	var missing, unlinked, reopen, writeAfter, fstatAfter int64
	var stat linux.Stat
	var liveWhileOpen int64
	h.runOne(t, func(tk *kernel.Task) {
		missing = tk.Syscall(linux.SYS_UNLINKAT, putString(tk, pathAddr, "u"))

		fd := open(tk, "u", rdwrCreat)
		tk.Syscall(linux.SYS_WRITE, uintptr(fd), putBytes(tk, bufAddr, []byte("abc")), 3)
		unlinked = tk.Syscall(linux.SYS_UNLINKAT, putString(tk, pathAddr, "u"))
		reopen = open(tk, "u", linux.O_RDONLY)

		fstatAfter = tk.Syscall(linux.SYS_FSTAT, uintptr(fd), uintptr(outAddr))
		stat = getStat(tk, outAddr)
		other := open(tk, "v", rdwrCreat)
		tk.Syscall(linux.SYS_CLOSE, uintptr(other))
		liveWhileOpen = h.fs.LiveInodes()
		writeAfter = tk.Syscall(linux.SYS_WRITE, uintptr(fd), uintptr(bufAddr), 3)
		tk.Syscall(linux.SYS_CLOSE, uintptr(fd))
		tk.Syscall(linux.SYS_UNLINKAT, putString(tk, pathAddr, "v"))
	})
	if missing != -1 {
		t.Errorf("unlinkat of a missing name = %d, want -1", missing)
	}
	if unlinked != 0 {
		t.Errorf("unlinkat = %d, want 0", unlinked)
	}
	if reopen != -1 {
		t.Errorf("open after unlink = %d, want -1", reopen)
	}
	if fstatAfter != 0 || stat.Nlink != 0 {
		t.Errorf("fstat after unlink = %d with nlink %d, want 0 and 0", fstatAfter, stat.Nlink)
	}
	if liveWhileOpen != 2 {
		t.Errorf("%d live inodes while the unlinked file is open, want 2", liveWhileOpen)
	}
	if writeAfter != 3 {
		t.Errorf("write to the unlinked file = %d, want 3", writeAfter)
	}
	if got := h.fs.LiveInodes(); got != 0 {
		t.Errorf("%d inodes live after the last close, want 0", got)
	}
}

// TestMmapTwoPages is the mmap(0x1000, 0x2000, R|W) scenario.
func TestMmapTwoPages(t *testing.T) {
	h := newHarness(t)
	var ret int64
	var ptes []pagetables.PTE
	var oks []bool
	h.runOne(t, func(tk *kernel.Task) {
		ret = tk.Syscall(linux.SYS_MMAP, 0x1000, 0x2000, 0x3)
		for _, addr := range []hostarch.Addr{0x0, 0x1000, 0x2000, 0x3000} {
			pte, ok := tk.MemoryManager().Lookup(addr.PageNumber())
			ptes = append(ptes, pte)
			oks = append(oks, ok)
		}
	})
	if ret != 0 {
		t.Fatalf("mmap = %d, want 0", ret)
	}
	if oks[0] || oks[3] {
		t.Errorf("pages outside the range are mapped")
	}
	want := pagetables.Valid | pagetables.Readable | pagetables.Writable | pagetables.User
	for i := 1; i <= 2; i++ {
		if !oks[i] {
			t.Errorf("page %d is not mapped", i)
			continue
		}
		if got := ptes[i].Flags(); got != want {
			t.Errorf("page %d flags = %v, want %v", i, got, want)
		}
	}
}

func TestMmapPerms(t *testing.T) {
	for prot := uint64(0); prot < 16; prot++ {
		perms, ok := protToPerms(prot)
		valid := prot != 0 && prot < 8
		if ok != valid {
			t.Errorf("protToPerms(%d) ok = %t, want %t", prot, ok, valid)
			continue
		}
		if valid && perms != pagetables.PTEFlags((prot|8)<<1) {
			t.Errorf("protToPerms(%d) = %v, want %v", prot, perms, pagetables.PTEFlags((prot|8)<<1))
		}
	}
}

func TestMmapErrors(t *testing.T) {
	h := newHarness(t)
	const region = hostarch.Addr(0x200000)
	results := map[string]int64{}
	var first, before, after int64
	leaked := false
	h.runOne(t, func(tk *kernel.Task) {
		before = int64(h.mf.Available())
		results["unaligned"] = tk.Syscall(linux.SYS_MMAP, uintptr(region+1), hostarch.PageSize, linux.PROT_READ)
		results["no prot"] = tk.Syscall(linux.SYS_MMAP, uintptr(region), hostarch.PageSize, 0)
		results["bad prot"] = tk.Syscall(linux.SYS_MMAP, uintptr(region), hostarch.PageSize, 0x8|linux.PROT_READ)
		results["over the stack"] = tk.Syscall(linux.SYS_MMAP, uintptr(stackBase-hostarch.PageSize), 2*hostarch.PageSize, linux.PROT_READ)
		after = int64(h.mf.Available())

		first = tk.Syscall(linux.SYS_MMAP, uintptr(region), 2*hostarch.PageSize, linux.PROT_READ|linux.PROT_WRITE)
		results["overlapping"] = tk.Syscall(linux.SYS_MMAP, uintptr(region+hostarch.PageSize), 2*hostarch.PageSize, linux.PROT_READ)
		leaked = tk.MemoryManager().IsMapped((region+2*hostarch.PageSize).PageNumber()) ||
			tk.MemoryManager().IsMapped((stackBase - hostarch.PageSize).PageNumber())
	})
	for name, got := range results {
		if got != -1 {
			t.Errorf("mmap %s = %d, want -1", name, got)
		}
	}
	if before != after {
		t.Errorf("failed mmaps changed free frames from %d to %d", before, after)
	}
	if first != 0 {
		t.Errorf("first mmap = %d, want 0", first)
	}
	if leaked {
		t.Errorf("a failed mmap left pages mapped")
	}
}

func TestMunmap(t *testing.T) {
	h := newHarness(t)
	const region = hostarch.Addr(0x300000)
	page := func(i int) hostarch.Addr { return region + hostarch.Addr(i)*hostarch.PageSize }
	var mapped, middle, again, stack, partial, zero int64
	var state []bool
	h.runOne(t, func(tk *kernel.Task) {
		mapped = tk.Syscall(linux.SYS_MMAP, uintptr(region), 4*hostarch.PageSize, linux.PROT_READ|linux.PROT_WRITE)
		middle = tk.Syscall(linux.SYS_MUNMAP, uintptr(page(1)), 2*hostarch.PageSize)
		again = tk.Syscall(linux.SYS_MUNMAP, uintptr(page(1)), hostarch.PageSize)
		stack = tk.Syscall(linux.SYS_MUNMAP, uintptr(stackBase), hostarch.PageSize)
		partial = tk.Syscall(linux.SYS_MUNMAP, uintptr(page(0)), 2*hostarch.PageSize)
		zero = tk.Syscall(linux.SYS_MUNMAP, uintptr(page(0)), 0)
		for i := 0; i < 4; i++ {
			state = append(state, tk.MemoryManager().IsMapped(page(i).PageNumber()))
		}
	})
	if mapped != 0 || middle != 0 || zero != 0 {
		t.Fatalf("mmap = %d, munmap(middle) = %d, munmap(len 0) = %d, want 0", mapped, middle, zero)
	}
	if again != -1 || stack != -1 || partial != -1 {
		t.Errorf("munmap of unmapped = %d, of the stack = %d, of a partly mapped range = %d, want -1", again, stack, partial)
	}
	if diff := cmp.Diff([]bool{true, false, false, true}, state); diff != "" {
		t.Errorf("mapped pages mismatch (-want +got):\n%s", diff)
	}
}

func TestSbrk(t *testing.T) {
	h := newHarness(t)
	const n = 3*hostarch.PageSize + 10
	var zero1, zero2, grow, shrink, zero3, under int64
	var heapWrite int
	h.runOne(t, func(tk *kernel.Task) {
		zero1 = tk.Syscall(linux.SYS_SBRK, 0)
		zero2 = tk.Syscall(linux.SYS_SBRK, 0)
		grow = tk.Syscall(linux.SYS_SBRK, n)
		heapWrite, _ = tk.CopyOutBytes(heapBase+n-4, []byte("end!"))
		delta := int64(n)
		shrink = tk.Syscall(linux.SYS_SBRK, uintptr(-delta))
		zero3 = tk.Syscall(linux.SYS_SBRK, 0)
		under = tk.Syscall(linux.SYS_SBRK, uintptr(^uint64(0)))
	})
	if zero1 != int64(heapBase) || zero2 != zero1 {
		t.Errorf("sbrk(0) = %#x then %#x, want %#x twice", zero1, zero2, heapBase)
	}
	if grow != int64(heapBase) {
		t.Errorf("sbrk(%d) = %#x, want the old break %#x", n, grow, heapBase)
	}
	if heapWrite != 4 {
		t.Errorf("wrote %d bytes at the end of the heap, want 4", heapWrite)
	}
	if shrink != int64(heapBase)+n {
		t.Errorf("sbrk(-%d) = %#x, want %#x", n, shrink, int64(heapBase)+n)
	}
	if zero3 != int64(heapBase) {
		t.Errorf("break after grow and shrink = %#x, want %#x", zero3, heapBase)
	}
	if under != -1 {
		t.Errorf("sbrk below the heap base = %d, want -1", under)
	}
}

func TestGetTime(t *testing.T) {
	h := newHarness(t)
	var first, second linux.Timeval
	var ret int64
	h.clock.Store(ktime.FromNanoseconds(1_500_000_000))
	h.runOne(t, func(tk *kernel.Task) {
		ret = tk.Syscall(linux.SYS_GET_TIME, uintptr(outAddr), 0)
		first.CopyIn(tk, outAddr)
		h.clock.Add(2 * time.Millisecond)
		tk.Syscall(linux.SYS_GET_TIME, uintptr(outAddr), 0)
		second.CopyIn(tk, outAddr)
	})
	if ret != 0 {
		t.Errorf("get_time = %d, want 0", ret)
	}
	if want := (linux.Timeval{Sec: 1, Usec: 500000}); first != want {
		t.Errorf("first get_time = %+v, want %+v", first, want)
	}
	if want := (linux.Timeval{Sec: 1, Usec: 502000}); second != want {
		t.Errorf("second get_time = %+v, want %+v", second, want)
	}
}

func TestGetTimeMonotonic(t *testing.T) {
	h := newHarness(t, func(args *kernel.InitKernelArgs) {
		args.Clock = ktime.NewMonotonicClock()
	})
	var prev, cur linux.Timeval
	decreased := false
	h.runOne(t, func(tk *kernel.Task) {
		for i := 0; i < 100; i++ {
			tk.Syscall(linux.SYS_GET_TIME, uintptr(outAddr), 0)
			cur.CopyIn(tk, outAddr)
			if cur.Sec < prev.Sec || (cur.Sec == prev.Sec && cur.Usec < prev.Usec) {
				decreased = true
			}
			prev = cur
		}
	})
	if decreased {
		t.Errorf("get_time went backwards")
	}
}

func TestTaskInfo(t *testing.T) {
	h := newHarness(t)
	var info linux.TaskInfo
	var ret int64
	h.runOne(t, func(tk *kernel.Task) {
		h.clock.Add(42 * time.Millisecond)
		for i := 0; i < 3; i++ {
			tk.Syscall(linux.SYS_GET_TIME, uintptr(outAddr), 0)
		}
		tk.Syscall(linux.SYS_YIELD)
		tk.Syscall(linux.MaxSyscallNum - 1)
		tk.Syscall(linux.SYS_CLOSE, 12)
		ret = tk.Syscall(linux.SYS_TASK_INFO, uintptr(infoAddr))
		info.CopyIn(tk, infoAddr)
	})
	if ret != 0 {
		t.Fatalf("task_info = %d, want 0", ret)
	}
	if info.Status != linux.TaskRunning {
		t.Errorf("status = %v, want Running", info.Status)
	}
	if info.Time != 42 {
		t.Errorf("time = %dms, want 42ms", info.Time)
	}
	want := map[int]uint32{
		linux.SYS_GET_TIME:  3,
		linux.SYS_YIELD:     1,
		linux.SYS_CLOSE:     1,
		linux.SYS_TASK_INFO: 1,
	}
	for sysno, count := range info.SyscallTimes {
		if count != want[sysno] {
			t.Errorf("SyscallTimes[%d] = %d, want %d", sysno, count, want[sysno])
		}
	}
}

func TestExit(t *testing.T) {
	h := newHarness(t)
	after := false
	task := h.runOne(t, func(tk *kernel.Task) {
		open(tk, "kept", rdwrCreat)
		tk.Syscall(linux.SYS_EXIT, 3)
		after = true
	})
	if after {
		t.Errorf("exit returned to the caller")
	}
	if code, exited := task.ExitCode(); !exited || code != 3 {
		t.Errorf("ExitCode() = %d, %t, want 3, true", code, exited)
	}
	if got := h.fs.LiveInodes(); got != 1 {
		t.Errorf("%d live inodes, want 1 (the name keeps it)", got)
	}
	if got := h.mf.Available(); got != h.mf.TotalFrames() {
		t.Errorf("%d frames leaked by the exited task", h.mf.TotalFrames()-got)
	}
}

func TestFaultKillsTask(t *testing.T) {
	const unmapped = 0x900000
	for _, tc := range []struct {
		name  string
		sysno uintptr
		args  []uintptr
	}{
		{name: "write from unmapped", sysno: linux.SYS_WRITE, args: []uintptr{1, unmapped, 4}},
		{name: "read into unmapped", sysno: linux.SYS_READ, args: []uintptr{0, unmapped, 4}},
		{name: "fstat out unmapped", sysno: linux.SYS_FSTAT, args: []uintptr{2, unmapped}},
		{name: "open path unmapped", sysno: linux.SYS_OPEN, args: []uintptr{unmapped, 0}},
		{name: "get_time out unmapped", sysno: linux.SYS_GET_TIME, args: []uintptr{unmapped, 0}},
		{name: "task_info out unmapped", sysno: linux.SYS_TASK_INFO, args: []uintptr{unmapped}},
		{name: "read with huge length", sysno: linux.SYS_READ, args: []uintptr{2, uintptr(bufAddr), 1 << 62}},
		{name: "write with huge length", sysno: linux.SYS_WRITE, args: []uintptr{2, uintptr(bufAddr), 1 << 62}},
		{name: "read past the mapped stack", sysno: linux.SYS_READ, args: []uintptr{2, uintptr(bufAddr), 1 << 38}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.console.Feed([]byte("data"))
			after := false
			task := h.runOne(t, func(tk *kernel.Task) {
				open(tk, "file", rdwrCreat)
				tk.Syscall(tc.sysno, tc.args...)
				after = true
			})
			if after {
				t.Errorf("task continued after a fault")
			}
			if code, exited := task.ExitCode(); !exited || code != kernel.FaultExitCode {
				t.Errorf("ExitCode() = %d, %t, want %d, true", code, exited, kernel.FaultExitCode)
			}
		})
	}
}

func TestFaultReadOnlyPage(t *testing.T) {
	h := newHarness(t)
	const region = hostarch.Addr(0x400000)
	var mapped int64
	task := h.runOne(t, func(tk *kernel.Task) {
		mapped = tk.Syscall(linux.SYS_MMAP, uintptr(region), hostarch.PageSize, linux.PROT_READ)
		tk.Syscall(linux.SYS_GET_TIME, uintptr(region), 0)
	})
	if mapped != 0 {
		t.Fatalf("mmap = %d, want 0", mapped)
	}
	if code, _ := task.ExitCode(); code != kernel.FaultExitCode {
		t.Errorf("writing to a read-only page exited with %d, want %d", code, kernel.FaultExitCode)
	}
}

func TestConsole(t *testing.T) {
	h := newHarness(t)
	var n int64
	var got []byte
	var order []string
	h.spawn(t, "reader", func(tk *kernel.Task) {
		order = append(order, "read")
		n = tk.Syscall(linux.SYS_READ, 0, uintptr(bufAddr), 16)
		got = getBytes(tk, bufAddr, int(n))
		order = append(order, "got")
		tk.Syscall(linux.SYS_WRITE, 1, uintptr(bufAddr), uintptr(n))
	})
	h.spawn(t, "feeder", func(tk *kernel.Task) {
		order = append(order, "feed")
		h.console.Feed([]byte("hi"))
	})
	h.run(t)

	if string(got) != "hi" || n != 2 {
		t.Errorf("read from the console = %d, %q, want 2, %q", n, got, "hi")
	}
	if want := []string{"read", "feed", "got"}; len(order) != 3 || order[0] != want[0] || order[1] != want[1] || order[2] != want[2] {
		t.Errorf("order = %v, want %v", order, want)
	}
	if h.out.String() != "hi" {
		t.Errorf("console output = %q, want %q", h.out.String(), "hi")
	}
}

func TestConsoleEOF(t *testing.T) {
	h := newHarness(t)
	h.console.CloseInput()
	var n int64 = -100
	h.runOne(t, func(tk *kernel.Task) {
		n = tk.Syscall(linux.SYS_READ, 0, uintptr(bufAddr), 16)
	})
	if n != 0 {
		t.Errorf("read at end of input = %d, want 0", n)
	}
}

func TestStrace(t *testing.T) {
	h := newHarness(t, func(args *kernel.InitKernelArgs) {
		args.Strace = true
	})
	var yield, unknown int64 = -100, -100
	h.runOne(t, func(tk *kernel.Task) {
		yield = tk.Syscall(linux.SYS_YIELD)
		unknown = tk.Syscall(linux.MaxSyscallNum + 1)
	})
	if yield != 0 || unknown != -1 {
		t.Errorf("traced yield = %d, unknown = %d, want 0, -1", yield, unknown)
	}
}
