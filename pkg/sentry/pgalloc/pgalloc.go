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

// Package pgalloc contains the page frame allocator. A MemoryFile simulates
// physical memory: a fixed number of page-sized frames, each handed out whole.
package pgalloc

import (
	"fmt"
	"sync"

	"gvisor.dev/ukernel/pkg/bitmap"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/log"
)

// FrameNumber is the index of a physical page frame within a MemoryFile.
type FrameNumber uint64

// Addr returns the physical address of the first byte of the frame.
func (fn FrameNumber) Addr() uint64 {
	return uint64(fn) << hostarch.PageShift
}

// Direction describes how to allocate frames from a MemoryFile.
type Direction int

const (
	// BottomUp allocates the lowest free frame.
	BottomUp Direction = iota
	// TopDown allocates the highest free frame.
	TopDown
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case BottomUp:
		return "up"
	case TopDown:
		return "down"
	}
	panic(fmt.Sprintf("invalid direction: %d", d))
}

// MemoryFileOpts provides options to NewMemoryFile.
type MemoryFileOpts struct {
	// Frames is the number of page frames in the file.
	Frames uint32

	// Direction is the allocation direction.
	Direction Direction
}

// MemoryFile is a fixed pool of page frames.
type MemoryFile struct {
	opts MemoryFileOpts

	// mu protects used and data contents of unallocated frames.
	mu sync.Mutex

	// used has a bit set for each allocated frame.
	used bitmap.Bitmap

	// data backs all frames, contiguously. Callers only ever see
	// frame-sized slices of it.
	data []byte
}

// NewMemoryFile creates a MemoryFile holding opts.Frames frames.
func NewMemoryFile(opts MemoryFileOpts) (*MemoryFile, error) {
	if opts.Frames == 0 {
		return nil, fmt.Errorf("memory file needs at least one frame")
	}
	if opts.Frames > bitmap.MaxBitEntryLimit {
		return nil, fmt.Errorf("memory file of %d frames is too large", opts.Frames)
	}
	switch opts.Direction {
	case BottomUp, TopDown:
	default:
		return nil, fmt.Errorf("invalid direction: %d", opts.Direction)
	}
	return &MemoryFile{
		opts: opts,
		used: bitmap.New(opts.Frames),
		data: make([]byte, uint64(opts.Frames)*hostarch.PageSize),
	}, nil
}

// Allocate returns a single zeroed frame.
func (f *MemoryFile) Allocate() (FrameNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allocateLocked()
}

// AllocateN returns n zeroed frames. Either all n frames are allocated or
// none is.
func (f *MemoryFile) AllocateN(n uint64) ([]FrameNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > uint64(f.opts.Frames-f.used.GetNumOnes()) {
		return nil, linuxerr.ENOMEM
	}
	fns := make([]FrameNumber, 0, n)
	for i := uint64(0); i < n; i++ {
		fn, err := f.allocateLocked()
		if err != nil {
			// Unreachable given the check above.
			for _, fn := range fns {
				f.used.Remove(uint32(fn))
			}
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

// Preconditions: f.mu must be locked.
func (f *MemoryFile) allocateLocked() (FrameNumber, error) {
	var (
		idx uint32
		err error
	)
	if f.opts.Direction == TopDown {
		idx, err = f.used.LastZero(f.opts.Frames)
	} else {
		idx, err = f.used.FirstZero(0)
	}
	if err != nil {
		log.Debugf("pgalloc: out of frames (%d in use)", f.used.GetNumOnes())
		return 0, linuxerr.ENOMEM
	}
	f.used.Add(idx)
	fn := FrameNumber(idx)
	clear(f.frameLocked(fn))
	return fn, nil
}

// Free returns fn to the pool. Freeing a frame that is not allocated panics.
func (f *MemoryFile) Free(fn FrameNumber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if uint64(fn) >= uint64(f.opts.Frames) || !f.used.Contains(uint32(fn)) {
		panic(fmt.Sprintf("freeing unallocated frame %d", fn))
	}
	f.used.Remove(uint32(fn))
}

// Slice returns the bytes backing the allocated frame fn. The returned slice
// aliases the frame and is only valid while fn remains allocated.
func (f *MemoryFile) Slice(fn FrameNumber) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if uint64(fn) >= uint64(f.opts.Frames) || !f.used.Contains(uint32(fn)) {
		panic(fmt.Sprintf("slice of unallocated frame %d", fn))
	}
	return f.frameLocked(fn)
}

func (f *MemoryFile) frameLocked(fn FrameNumber) []byte {
	off := fn.Addr()
	return f.data[off : off+hostarch.PageSize : off+hostarch.PageSize]
}

// Available returns the number of free frames.
func (f *MemoryFile) Available() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(f.opts.Frames - f.used.GetNumOnes())
}

// TotalFrames returns the size of the file in frames.
func (f *MemoryFile) TotalFrames() uint64 {
	return uint64(f.opts.Frames)
}
