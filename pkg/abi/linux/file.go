// Copyright 2026 The gVisor Authors.
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
	"fmt"
	"strings"

	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/marshal"
)

// Constants for open(2).
const (
	O_RDONLY = 0
	O_WRONLY = 1 << 0
	O_RDWR   = 1 << 1
	O_CREAT  = 1 << 9
	O_TRUNC  = 1 << 10

	// O_ACCMODE is the mask for the access mode.
	O_ACCMODE = O_WRONLY | O_RDWR
)

// OpenFlags is the flags argument of open(2).
type OpenFlags uint32

// Readable returns true if the access mode permits reading. O_WRONLY and
// O_RDWR both set is treated as write-only.
func (f OpenFlags) Readable() bool {
	return f&O_WRONLY == 0
}

// Writable returns true if the access mode permits writing.
func (f OpenFlags) Writable() bool {
	return f&(O_WRONLY|O_RDWR) != 0
}

// String implements fmt.Stringer.String.
func (f OpenFlags) String() string {
	var parts []string
	switch {
	case f&O_WRONLY != 0:
		parts = append(parts, "O_WRONLY")
	case f&O_RDWR != 0:
		parts = append(parts, "O_RDWR")
	default:
		parts = append(parts, "O_RDONLY")
	}
	if f&O_CREAT != 0 {
		parts = append(parts, "O_CREAT")
	}
	if f&O_TRUNC != 0 {
		parts = append(parts, "O_TRUNC")
	}
	if rest := f &^ (O_ACCMODE | O_CREAT | O_TRUNC); rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// File types, the S_IFMT bits of Stat.Mode.
const (
	S_IFMT  = 0o170000
	S_IFDIR = 0o040000
	S_IFREG = 0o100000
)

// SizeOfStat is the size of a Stat struct in bytes.
const SizeOfStat = 80

// Stat is the record fstat copies out: device, inode number, file type and
// link count, followed by reserved words that are always zero.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32
	Nlink uint32
	Pad   [7]uint64
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (*Stat) SizeBytes() int {
	return SizeOfStat
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (s *Stat) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[:8], s.Dev)
	dst = dst[8:]
	hostarch.ByteOrder.PutUint64(dst[:8], s.Ino)
	dst = dst[8:]
	hostarch.ByteOrder.PutUint32(dst[:4], s.Mode)
	dst = dst[4:]
	hostarch.ByteOrder.PutUint32(dst[:4], s.Nlink)
	dst = dst[4:]
	for idx := 0; idx < len(s.Pad); idx++ {
		hostarch.ByteOrder.PutUint64(dst[:8], s.Pad[idx])
		dst = dst[8:]
	}
	return dst
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (s *Stat) UnmarshalBytes(src []byte) []byte {
	s.Dev = hostarch.ByteOrder.Uint64(src[:8])
	src = src[8:]
	s.Ino = hostarch.ByteOrder.Uint64(src[:8])
	src = src[8:]
	s.Mode = hostarch.ByteOrder.Uint32(src[:4])
	src = src[4:]
	s.Nlink = hostarch.ByteOrder.Uint32(src[:4])
	src = src[4:]
	for idx := 0; idx < len(s.Pad); idx++ {
		s.Pad[idx] = hostarch.ByteOrder.Uint64(src[:8])
		src = src[8:]
	}
	return src
}

// CopyOut implements marshal.Marshallable.CopyOut.
func (s *Stat) CopyOut(cc marshal.CopyContext, addr hostarch.Addr) (int, error) {
	return marshal.CopyOut(cc, addr, s)
}

// CopyIn implements marshal.Marshallable.CopyIn.
func (s *Stat) CopyIn(cc marshal.CopyContext, addr hostarch.Addr) (int, error) {
	return marshal.CopyIn(cc, addr, s)
}
