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

package pagetables

import (
	"fmt"
	"strings"

	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/sentry/pgalloc"
)

// PTEFlags are the low bits of a page table entry.
type PTEFlags uint8

// Bits in page table entries.
const (
	Valid      PTEFlags = 1 << 0
	Readable   PTEFlags = 1 << 1
	Writable   PTEFlags = 1 << 2
	Executable PTEFlags = 1 << 3
	User       PTEFlags = 1 << 4
	Global     PTEFlags = 1 << 5
	Accessed   PTEFlags = 1 << 6
	Dirty      PTEFlags = 1 << 7
)

// String implements fmt.Stringer.
func (f PTEFlags) String() string {
	var b strings.Builder
	for _, bit := range []struct {
		flag PTEFlags
		c    byte
	}{
		{Dirty, 'D'}, {Accessed, 'A'}, {Global, 'G'}, {User, 'U'},
		{Executable, 'X'}, {Writable, 'W'}, {Readable, 'R'}, {Valid, 'V'},
	} {
		if f&bit.flag != 0 {
			b.WriteByte(bit.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// AccessType returns the access permitted by f.
func (f PTEFlags) AccessType() hostarch.AccessType {
	return hostarch.AccessType{
		Read:    f&Readable != 0,
		Write:   f&Writable != 0,
		Execute: f&Executable != 0,
	}
}

// FlagsFromAccessType returns the leaf flags for a user mapping with access
// at.
func FlagsFromAccessType(at hostarch.AccessType) PTEFlags {
	f := User
	if at.Read {
		f |= Readable
	}
	if at.Write {
		f |= Writable
	}
	if at.Execute {
		f |= Executable
	}
	return f
}

// ppnShift is the position of the frame number within a PTE.
const ppnShift = 10

// PTE is a page table entry: a frame number and flag bits.
type PTE uint64

// NewPTE returns an entry pointing at fn.
func NewPTE(fn pgalloc.FrameNumber, flags PTEFlags) PTE {
	return PTE(uint64(fn)<<ppnShift | uint64(flags))
}

// Frame returns the frame the entry points at.
func (p PTE) Frame() pgalloc.FrameNumber {
	return pgalloc.FrameNumber(uint64(p) >> ppnShift)
}

// Flags returns the flag bits.
func (p PTE) Flags() PTEFlags {
	return PTEFlags(p)
}

// Valid returns true if the valid bit is set.
func (p PTE) Valid() bool {
	return p.Flags()&Valid != 0
}

// String implements fmt.Stringer.
func (p PTE) String() string {
	if !p.Valid() {
		return "none"
	}
	return fmt.Sprintf("frame %#x %s", uint64(p.Frame()), p.Flags())
}
