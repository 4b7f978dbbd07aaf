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
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/marshal"
)

// SizeOfTimeval is the size of a Timeval struct in bytes.
const SizeOfTimeval = 16

// Timeval represents struct timeval in <time.h>.
type Timeval struct {
	Sec  int64
	Usec int64
}

// MicrosecondsToTimeval splits a microsecond count into whole seconds and the
// remaining microseconds.
func MicrosecondsToTimeval(us int64) Timeval {
	return Timeval{Sec: us / 1e6, Usec: us % 1e6}
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (*Timeval) SizeBytes() int {
	return SizeOfTimeval
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (tv *Timeval) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[:8], uint64(tv.Sec))
	dst = dst[8:]
	hostarch.ByteOrder.PutUint64(dst[:8], uint64(tv.Usec))
	return dst[8:]
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (tv *Timeval) UnmarshalBytes(src []byte) []byte {
	tv.Sec = int64(hostarch.ByteOrder.Uint64(src[:8]))
	src = src[8:]
	tv.Usec = int64(hostarch.ByteOrder.Uint64(src[:8]))
	return src[8:]
}

// CopyOut implements marshal.Marshallable.CopyOut.
func (tv *Timeval) CopyOut(cc marshal.CopyContext, addr hostarch.Addr) (int, error) {
	return marshal.CopyOut(cc, addr, tv)
}

// CopyIn implements marshal.Marshallable.CopyIn.
func (tv *Timeval) CopyIn(cc marshal.CopyContext, addr hostarch.Addr) (int, error) {
	return marshal.CopyIn(cc, addr, tv)
}
