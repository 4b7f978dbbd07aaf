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

// Package pagetables provides a three-level (Sv39) page table whose entries
// live in frames of simulated physical memory.
//
// A PageTables is not safe for concurrent use; the owning memory manager
// serializes access.
package pagetables

import (
	"fmt"

	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/sentry/pgalloc"
)

const (
	// levels is the depth of the tree.
	levels = 3

	// entryShift is the binary log of entriesPerTable.
	entryShift = 9

	// entriesPerTable is the number of PTEs held by one table frame.
	entriesPerTable = 1 << entryShift

	// pteSize is the size of one encoded PTE in bytes.
	pteSize = 8

	// MaxVPN is one past the largest mappable virtual page number.
	MaxVPN = hostarch.PageNumber(1) << (levels * entryShift)

	// modeSv39 is the translation mode stored in the top bits of a token.
	modeSv39 = 8
)

// Allocator provides frames for table pages. *pgalloc.MemoryFile implements
// Allocator.
type Allocator interface {
	Allocate() (pgalloc.FrameNumber, error)
	Free(fn pgalloc.FrameNumber)
	Slice(fn pgalloc.FrameNumber) []byte
}

// PageTables is a page table tree.
type PageTables struct {
	// Allocator is used to allocate table frames.
	Allocator Allocator

	// root is the top-level table frame.
	root pgalloc.FrameNumber

	// tables records every table frame, including root, so that Release
	// can free them.
	tables []pgalloc.FrameNumber

	// mapped is the number of valid leaf entries.
	mapped uint64
}

// New returns new PageTables with an empty root table.
func New(a Allocator) (*PageTables, error) {
	root, err := a.Allocate()
	if err != nil {
		return nil, err
	}
	return &PageTables{
		Allocator: a,
		root:      root,
		tables:    []pgalloc.FrameNumber{root},
	}, nil
}

// Token returns the value a hart would load into satp to activate these
// tables: the Sv39 mode in bits 63:60 and the root frame number below.
func (p *PageTables) Token() uint64 {
	return modeSv39<<60 | uint64(p.root)
}

// index returns the table index of vpn at level, where level 0 is the root.
func index(vpn hostarch.PageNumber, level int) int {
	shift := uint((levels - 1 - level) * entryShift)
	return int((vpn >> shift) & (entriesPerTable - 1))
}

func (p *PageTables) load(table pgalloc.FrameNumber, i int) PTE {
	b := p.Allocator.Slice(table)
	return PTE(hostarch.ByteOrder.Uint64(b[i*pteSize:]))
}

func (p *PageTables) store(table pgalloc.FrameNumber, i int, pte PTE) {
	b := p.Allocator.Slice(table)
	hostarch.ByteOrder.PutUint64(b[i*pteSize:], uint64(pte))
}

// walk returns the leaf table holding vpn's entry. If alloc is true, missing
// intermediate tables are created; otherwise ok is false when one is missing.
func (p *PageTables) walk(vpn hostarch.PageNumber, alloc bool) (table pgalloc.FrameNumber, ok bool, err error) {
	table = p.root
	for level := 0; level < levels-1; level++ {
		i := index(vpn, level)
		pte := p.load(table, i)
		if !pte.Valid() {
			if !alloc {
				return 0, false, nil
			}
			next, err := p.Allocator.Allocate()
			if err != nil {
				return 0, false, err
			}
			p.tables = append(p.tables, next)
			pte = NewPTE(next, Valid)
			p.store(table, i, pte)
		}
		table = pte.Frame()
	}
	return table, true, nil
}

// Map installs a leaf entry mapping vpn to fn with flags. Valid is implied.
//
// It returns EEXIST if vpn already has a valid entry, EFAULT if vpn is not
// representable, and ENOMEM if an intermediate table cannot be allocated.
func (p *PageTables) Map(vpn hostarch.PageNumber, fn pgalloc.FrameNumber, flags PTEFlags) error {
	if vpn >= MaxVPN {
		return linuxerr.EFAULT
	}
	table, _, err := p.walk(vpn, true)
	if err != nil {
		return err
	}
	i := index(vpn, levels-1)
	if p.load(table, i).Valid() {
		return linuxerr.EEXIST
	}
	p.store(table, i, NewPTE(fn, flags|Valid))
	p.mapped++
	return nil
}

// Unmap clears the leaf entry for vpn and returns the entry it held. ok is
// false if vpn was not mapped. The frame is not freed.
func (p *PageTables) Unmap(vpn hostarch.PageNumber) (PTE, bool) {
	if vpn >= MaxVPN {
		return 0, false
	}
	table, ok, _ := p.walk(vpn, false)
	if !ok {
		return 0, false
	}
	i := index(vpn, levels-1)
	pte := p.load(table, i)
	if !pte.Valid() {
		return 0, false
	}
	p.store(table, i, 0)
	p.mapped--
	return pte, true
}

// Translate returns the leaf entry for vpn, if valid.
func (p *PageTables) Translate(vpn hostarch.PageNumber) (PTE, bool) {
	if vpn >= MaxVPN {
		return 0, false
	}
	table, ok, _ := p.walk(vpn, false)
	if !ok {
		return 0, false
	}
	pte := p.load(table, index(vpn, levels-1))
	if !pte.Valid() {
		return 0, false
	}
	return pte, true
}

// Mapped returns the number of valid leaf entries.
func (p *PageTables) Mapped() uint64 {
	return p.mapped
}

// Release frees all table frames. Leaf frames are owned by the caller and
// must be unmapped and freed first.
func (p *PageTables) Release() {
	if p.mapped != 0 {
		panic(fmt.Sprintf("releasing page tables with %d live mappings", p.mapped))
	}
	for _, fn := range p.tables {
		p.Allocator.Free(fn)
	}
	p.tables = nil
}
