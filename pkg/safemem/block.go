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

// Package safemem provides the scatter/gather primitives the kernel uses to
// move bytes between its own buffers and user memory.
//
// A user buffer that spans several virtual pages is generally not contiguous
// in physical memory, so it is represented as a BlockSeq: an ordered sequence
// of Blocks, one per physical page touched. Every Block is a view of a Go
// byte slice; copies never use pointer arithmetic.
package safemem

import (
	"fmt"
)

// A Block is a contiguous run of memory. The zero value of Block is an empty
// block.
//
// Blocks are immutable and may be copied by value, but two Blocks may alias
// the same memory.
type Block struct {
	data []byte
}

// BlockFromSafeSlice returns a Block equivalent to slice.
func BlockFromSafeSlice(slice []byte) Block {
	return Block{data: slice}
}

// Len returns b's length in bytes.
func (b Block) Len() int {
	return len(b.data)
}

// ToSlice returns the slice b views. Writes through the returned slice are
// visible to every Block aliasing the same memory.
func (b Block) ToSlice() []byte {
	return b.data
}

// DropFirst returns a Block equivalent to b, but with the first n bytes
// omitted. It is analogous to the [n:] operation on a slice, except that if n
// > b.Len(), DropFirst returns an empty Block instead of panicking.
//
// Preconditions: n >= 0.
func (b Block) DropFirst(n int) Block {
	if n < 0 {
		panic(fmt.Sprintf("invalid n: %d", n))
	}
	return b.DropFirst64(uint64(n))
}

// DropFirst64 is equivalent to DropFirst but takes a uint64.
func (b Block) DropFirst64(n uint64) Block {
	if n >= uint64(len(b.data)) {
		return Block{}
	}
	return Block{data: b.data[n:]}
}

// TakeFirst returns a Block equivalent to the first n bytes of b. It is
// analogous to the [:n] operation on a slice, except that if n > b.Len(),
// TakeFirst returns a copy of b instead of panicking.
//
// Preconditions: n >= 0.
func (b Block) TakeFirst(n int) Block {
	if n < 0 {
		panic(fmt.Sprintf("invalid n: %d", n))
	}
	return b.TakeFirst64(uint64(n))
}

// TakeFirst64 is equivalent to TakeFirst but takes a uint64.
func (b Block) TakeFirst64(n uint64) Block {
	if n == 0 {
		return Block{}
	}
	if n >= uint64(len(b.data)) {
		return b
	}
	return Block{data: b.data[:n:n]}
}

// String implements fmt.Stringer.String.
func (b Block) String() string {
	if len(b.data) == 0 {
		return "<nil>"
	}
	return fmt.Sprintf("[%p:%p]", &b.data[0], &b.data[len(b.data)-1])
}

// Copy copies src.Len() or dst.Len() bytes, whichever is less, from the
// memory mapped at src to the memory mapped at dst. It returns the number of
// bytes copied.
//
// If src and dst overlap, the data stored in dst is unspecified.
func Copy(dst, src Block) (int, error) {
	return copy(dst.data, src.data), nil
}

// Zero sets all bytes in dst to 0 and returns the number of bytes zeroed.
func Zero(dst Block) (int, error) {
	clear(dst.data)
	return len(dst.data), nil
}
