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
	"fmt"

	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
	"gvisor.dev/ukernel/pkg/safemem"
)

// FaultError is returned when an access touches a page that is unmapped or
// does not permit the access. It unwraps to EFAULT.
type FaultError struct {
	// Addr is the first faulting address.
	Addr hostarch.Addr

	// Access is the attempted access.
	Access hostarch.AccessType
}

// Error implements error.Error.
func (e *FaultError) Error() string {
	return fmt.Sprintf("page fault at %v (%v)", e.Addr, e.Access)
}

// Unwrap returns EFAULT.
func (e *FaultError) Unwrap() error {
	return linuxerr.EFAULT
}

// permits returns true if a user access of type at is allowed by flags.
func permits(flags pagetables.PTEFlags, at hostarch.AccessType) bool {
	return flags&pagetables.User != 0 && flags.AccessType().SupersetOf(at)
}

// Translate returns the frame slices backing [addr, addr+length) in ascending
// address order: the in-page part of the first page, then one block per
// following page, each looked up independently in the page table. Every
// touched page must be mapped with at least access at; otherwise Translate
// returns a *FaultError and no blocks.
//
// The returned blocks alias user memory and remain valid until the pages are
// unmapped.
func (mm *MemoryManager) Translate(addr hostarch.Addr, length uint64, at hostarch.AccessType) (safemem.BlockSeq, error) {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	bs, err := mm.translateLocked(addr, length, at)
	if err != nil {
		return safemem.BlockSeq{}, err
	}
	return bs, nil
}

// translateLocked is Translate, except that on a fault it also returns the
// blocks of the mapped prefix.
//
// Preconditions: mm.mappingMu must be locked.
func (mm *MemoryManager) translateLocked(addr hostarch.Addr, length uint64, at hostarch.AccessType) (safemem.BlockSeq, error) {
	if length == 0 {
		return safemem.BlockSeq{}, nil
	}
	end, ok := addr.AddLength(length)
	if !ok || mm.pt == nil || end.CeilPageNumber() > pagetables.MaxVPN {
		return safemem.BlockSeq{}, &FaultError{Addr: addr, Access: at}
	}
	// Grown by append; the range may be far larger than what is mapped.
	blocks := make([]safemem.Block, 0, 4)
	for cur := addr; cur < end; {
		pte, ok := mm.pt.Translate(cur.PageNumber())
		if !ok || !permits(pte.Flags(), at) {
			return safemem.BlockSeqFromSlice(blocks), &FaultError{Addr: cur, Access: at}
		}
		off := cur.PageOffset()
		n := hostarch.PageSize - off
		if rem := uint64(end - cur); rem < n {
			n = rem
		}
		frame := mm.mf.Slice(pte.Frame())
		blocks = append(blocks, safemem.BlockFromSafeSlice(frame[off:off+n]))
		cur += hostarch.Addr(n)
	}
	return safemem.BlockSeqFromSlice(blocks), nil
}

// withBlocks translates [addr, addr+length) and calls f on the mapped prefix
// after dropping mappingMu. It returns f's count and the first error of f or
// the translation.
func (mm *MemoryManager) withBlocks(addr hostarch.Addr, length uint64, at hostarch.AccessType, f func(safemem.BlockSeq) (uint64, error)) (uint64, error) {
	mm.mappingMu.Lock()
	bs, terr := mm.translateLocked(addr, length, at)
	mm.mappingMu.Unlock()
	n, err := f(bs)
	if err != nil {
		return n, err
	}
	return n, terr
}

// CopyOut implements usermem.IO.CopyOut.
func (mm *MemoryManager) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	n, err := mm.withBlocks(addr, uint64(len(src)), hostarch.Write, func(dsts safemem.BlockSeq) (uint64, error) {
		return safemem.CopySeq(dsts, safemem.BlockSeqOf(safemem.BlockFromSafeSlice(src)))
	})
	return int(n), err
}

// CopyIn implements usermem.IO.CopyIn.
func (mm *MemoryManager) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	n, err := mm.withBlocks(addr, uint64(len(dst)), hostarch.Read, func(srcs safemem.BlockSeq) (uint64, error) {
		return safemem.CopySeq(safemem.BlockSeqOf(safemem.BlockFromSafeSlice(dst)), srcs)
	})
	return int(n), err
}

// ZeroOut implements usermem.IO.ZeroOut.
func (mm *MemoryManager) ZeroOut(addr hostarch.Addr, toZero int64) (int64, error) {
	if toZero < 0 {
		return 0, linuxerr.EINVAL
	}
	n, err := mm.withBlocks(addr, uint64(toZero), hostarch.Write, safemem.ZeroSeq)
	return int64(n), err
}

// CopyOutFrom implements usermem.IO.CopyOutFrom.
func (mm *MemoryManager) CopyOutFrom(ar hostarch.AddrRange, src safemem.Reader) (int64, error) {
	if !ar.WellFormed() {
		return 0, linuxerr.EINVAL
	}
	n, err := mm.withBlocks(ar.Start, ar.Length(), hostarch.Write, src.ReadToBlocks)
	return int64(n), err
}

// CopyInTo implements usermem.IO.CopyInTo.
func (mm *MemoryManager) CopyInTo(ar hostarch.AddrRange, dst safemem.Writer) (int64, error) {
	if !ar.WellFormed() {
		return 0, linuxerr.EINVAL
	}
	n, err := mm.withBlocks(ar.Start, ar.Length(), hostarch.Read, dst.WriteFromBlocks)
	return int64(n), err
}
