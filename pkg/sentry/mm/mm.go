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

// Package mm provides a memory management subsystem: per-task address spaces
// built from memory areas, each page backed by a frame and recorded in a
// page table.
//
// Lock order:
//
//	kernel.Task.mu
//		mm.MemoryManager.mappingMu
//			pgalloc.MemoryFile.mu
package mm

import (
	"fmt"
	"sync"

	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
	"gvisor.dev/ukernel/pkg/sentry/pgalloc"
)

// Layout describes the fixed parts of an address space.
type Layout struct {
	// HeapBase is the initial program break. The break never moves below it.
	HeapBase hostarch.Addr
}

// MemoryManager implements a virtual address space.
type MemoryManager struct {
	// mf provides frames for both user pages and page tables. mf is
	// immutable.
	mf *pgalloc.MemoryFile

	// layout is immutable.
	layout Layout

	// mappingMu protects all fields below.
	mappingMu sync.Mutex

	// pt is the page table. pt is nil after Release.
	pt *pagetables.PageTables

	// vmas are the memory areas of the address space.
	vmas vmaSet

	// brk is the program break. Pages in [HeapBase rounded down, brk
	// rounded up) are mapped as the heap area.
	brk hostarch.Addr
}

// NewMemoryManager returns a new MemoryManager with no mappings and the
// program break at layout.HeapBase.
func NewMemoryManager(mf *pgalloc.MemoryFile, layout Layout) (*MemoryManager, error) {
	if !layout.HeapBase.IsPageAligned() {
		return nil, fmt.Errorf("heap base %v is not page-aligned", layout.HeapBase)
	}
	pt, err := pagetables.New(mf)
	if err != nil {
		return nil, err
	}
	return &MemoryManager{
		mf:     mf,
		layout: layout,
		pt:     pt,
		vmas:   newVMASet(),
		brk:    layout.HeapBase,
	}, nil
}

// Token returns the page table token of the address space.
func (mm *MemoryManager) Token() uint64 {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	if mm.pt == nil {
		return 0
	}
	return mm.pt.Token()
}

// Release unmaps everything and frees all frames, including page tables.
// The MemoryManager is unusable afterwards; further calls fail with EFAULT.
func (mm *MemoryManager) Release() {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	if mm.pt == nil {
		return
	}
	log.Debugf("mm: releasing %d mapped pages", mm.pt.Mapped())
	for _, v := range mm.vmas.all() {
		mm.unmapPagesLocked(v.pages)
		mm.vmas.remove(v)
	}
	mm.pt.Release()
	mm.pt = nil
}

// IsMapped returns true if vpn has a valid page table entry.
func (mm *MemoryManager) IsMapped(vpn hostarch.PageNumber) bool {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	if mm.pt == nil {
		return false
	}
	_, ok := mm.pt.Translate(vpn)
	return ok
}

// Lookup returns the page table entry for vpn.
func (mm *MemoryManager) Lookup(vpn hostarch.PageNumber) (pagetables.PTE, bool) {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	if mm.pt == nil {
		return 0, false
	}
	return mm.pt.Translate(vpn)
}

// mapPagesLocked allocates a frame for every page of pr and maps it with
// flags. Either every page is mapped or none is.
//
// Preconditions: mm.mappingMu must be locked. mm.pt != nil.
func (mm *MemoryManager) mapPagesLocked(pr hostarch.PageRange, flags pagetables.PTEFlags) error {
	if pr.Len() > mm.mf.Available() {
		return linuxerr.ENOMEM
	}
	for vpn := pr.Start; vpn < pr.End; vpn++ {
		if _, ok := mm.pt.Translate(vpn); ok {
			log.Debugf("mm: page %#x is already mapped", uint64(vpn))
			return linuxerr.EEXIST
		}
	}
	fns, err := mm.mf.AllocateN(pr.Len())
	if err != nil {
		return err
	}
	for i, fn := range fns {
		vpn := pr.Start + hostarch.PageNumber(i)
		if err := mm.pt.Map(vpn, fn, flags); err != nil {
			mm.unmapPagesLocked(hostarch.PageRange{Start: pr.Start, End: vpn})
			for _, fn := range fns[i:] {
				mm.mf.Free(fn)
			}
			return err
		}
	}
	return nil
}

// unmapPagesLocked unmaps every mapped page of pr and frees its frame.
//
// Preconditions: mm.mappingMu must be locked. mm.pt != nil.
func (mm *MemoryManager) unmapPagesLocked(pr hostarch.PageRange) {
	for vpn := pr.Start; vpn < pr.End; vpn++ {
		if pte, ok := mm.pt.Unmap(vpn); ok {
			mm.mf.Free(pte.Frame())
		}
	}
}
