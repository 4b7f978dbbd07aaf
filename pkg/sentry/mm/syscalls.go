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

package mm

import (
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
)

// MMapOpts specifies a mapping.
type MMapOpts struct {
	// Addr is the page-aligned start of the mapping.
	Addr hostarch.Addr

	// Length is the length in bytes. The mapping covers every page touched
	// by [Addr, Addr+Length).
	Length uint64

	// Perms are the leaf entry flags. They must include User and at least
	// one of Readable, Writable and Executable, and nothing else.
	Perms pagetables.PTEFlags

	// Hint is the name shown in the maps listing.
	Hint string
}

const (
	rwx       = pagetables.Readable | pagetables.Writable | pagetables.Executable
	heapPerms = pagetables.Readable | pagetables.Writable | pagetables.User
)

// MMap creates an anonymous mapping of zeroed frames. It fails with EEXIST,
// leaving the address space unchanged, if any page in the range is already
// mapped; and with ENOMEM if frames run out. A zero Length maps nothing.
func (mm *MemoryManager) MMap(opts MMapOpts) error {
	return mm.mapArea(opts, vmaAnon)
}

// MapFixed is MMap for areas set up by the loader, such as the stack. Such
// areas cannot be removed by MUnmap.
func (mm *MemoryManager) MapFixed(opts MMapOpts) error {
	return mm.mapArea(opts, vmaFixed)
}

func (mm *MemoryManager) mapArea(opts MMapOpts, kind vmaKind) error {
	if !opts.Addr.IsPageAligned() {
		return linuxerr.EINVAL
	}
	if opts.Perms&^(rwx|pagetables.User) != 0 || opts.Perms&rwx == 0 || opts.Perms&pagetables.User == 0 {
		return linuxerr.EINVAL
	}
	if opts.Length == 0 {
		return nil
	}
	ar, ok := opts.Addr.ToRange(opts.Length)
	if !ok {
		return linuxerr.ENOMEM
	}
	pr := ar.Pages()
	if pr.End > pagetables.MaxVPN {
		return linuxerr.ENOMEM
	}

	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	if mm.pt == nil {
		return linuxerr.EFAULT
	}
	if err := mm.mapPagesLocked(pr, opts.Perms); err != nil {
		return err
	}
	mm.vmas.insert(&vma{
		pages: pr,
		perms: opts.Perms,
		kind:  kind,
		hint:  opts.Hint,
	})
	log.Debugf("mm: mapped %v %v", pr.AddrRange(), opts.Perms)
	return nil
}

// MUnmap removes exactly the pages touched by [addr, addr+length). Every such
// page must belong to an area created by MMap; otherwise MUnmap fails with
// EINVAL and changes nothing. Areas extending past the range are split. A
// zero length unmaps nothing.
func (mm *MemoryManager) MUnmap(addr hostarch.Addr, length uint64) error {
	if !addr.IsPageAligned() {
		return linuxerr.EINVAL
	}
	if length == 0 {
		return nil
	}
	ar, ok := addr.ToRange(length)
	if !ok {
		return linuxerr.EINVAL
	}
	pr := ar.Pages()

	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	if mm.pt == nil {
		return linuxerr.EFAULT
	}
	if !mm.vmas.covers(pr, vmaAnon) {
		return linuxerr.EINVAL
	}
	mm.unmapPagesLocked(pr)
	mm.vmas.carve(pr)
	log.Debugf("mm: unmapped %v", pr.AddrRange())
	return nil
}

// Brk returns the current program break.
func (mm *MemoryManager) Brk() hostarch.Addr {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	return mm.brk
}

// Sbrk moves the program break by delta bytes and returns the previous
// break. Growth maps the newly touched pages read-write; shrinking unmaps the
// pages no longer touched. It fails with EINVAL if the break would drop below
// the heap base, and with ENOMEM or EEXIST if growth cannot be backed; the
// break is unchanged on failure.
func (mm *MemoryManager) Sbrk(delta int64) (hostarch.Addr, error) {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	old := mm.brk
	if mm.pt == nil {
		return old, linuxerr.EFAULT
	}
	var newBrk hostarch.Addr
	if delta >= 0 {
		end, ok := old.AddLength(uint64(delta))
		if !ok {
			return old, linuxerr.ENOMEM
		}
		newBrk = end
	} else {
		shrink := uint64(-delta)
		if shrink > uint64(old-mm.layout.HeapBase) {
			return old, linuxerr.EINVAL
		}
		newBrk = old - hostarch.Addr(shrink)
	}
	if err := mm.setBrkLocked(newBrk); err != nil {
		return old, err
	}
	return old, nil
}

// Preconditions: mm.mappingMu must be locked. newBrk >= mm.layout.HeapBase.
func (mm *MemoryManager) setBrkLocked(newBrk hostarch.Addr) error {
	base := mm.layout.HeapBase.PageNumber()
	oldEnd := mm.brk.CeilPageNumber()
	newEnd := newBrk.CeilPageNumber()
	switch {
	case newEnd > oldEnd:
		if newEnd > pagetables.MaxVPN {
			return linuxerr.ENOMEM
		}
		if err := mm.mapPagesLocked(hostarch.PageRange{Start: oldEnd, End: newEnd}, heapPerms); err != nil {
			return err
		}
	case newEnd < oldEnd:
		mm.unmapPagesLocked(hostarch.PageRange{Start: newEnd, End: oldEnd})
	}
	if newEnd != oldEnd {
		if h := mm.vmas.heap(); h != nil {
			mm.vmas.remove(h)
		}
		mm.vmas.insert(&vma{
			pages: hostarch.PageRange{Start: base, End: newEnd},
			perms: heapPerms,
			kind:  vmaHeap,
			hint:  "[heap]",
		})
	}
	mm.brk = newBrk
	return nil
}
