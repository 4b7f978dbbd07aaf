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

// Package usermem governs access to user memory.
package usermem

import (
	"bytes"

	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/safemem"
)

// IO provides access to the contents of a virtual memory space.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(src), it returns a non-nil error explaining why.
	CopyOut(addr hostarch.Addr, src []byte) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst.
	// It returns the number of bytes copied. If the number of bytes copied is
	// < len(dst), it returns a non-nil error explaining why.
	CopyIn(addr hostarch.Addr, dst []byte) (int, error)

	// ZeroOut sets toZero bytes to 0, starting at addr. It returns the number
	// of bytes zeroed. If the number of bytes zeroed is < toZero, it returns a
	// non-nil error explaining why.
	ZeroOut(addr hostarch.Addr, toZero int64) (int64, error)

	// CopyOutFrom copies ar.Length() bytes from src to the memory mapped at
	// ar. It returns the number of bytes copied, which may be less than the
	// number of bytes read from src if copying fails.
	//
	// CopyOutFrom calls src.ReadToBlocks at most once.
	CopyOutFrom(ar hostarch.AddrRange, src safemem.Reader) (int64, error)

	// CopyInTo copies ar.Length() bytes from the memory mapped at ar to dst.
	// It returns the number of bytes copied. CopyInTo may return a partial
	// copy without an error iff dst.WriteFromBlocks returns a partial write.
	//
	// CopyInTo calls dst.WriteFromBlocks at most once.
	CopyInTo(ar hostarch.AddrRange, dst safemem.Writer) (int64, error)
}

const (
	// copyStringIncrement is the maximum number of bytes that are copied from
	// virtual memory at a time by CopyStringIn.
	copyStringIncrement = 64

	// copyStringMaxInitBufLen is the maximum initial length of a buffer
	// allocated by CopyStringIn.
	copyStringMaxInitBufLen = 256
)

// CopyStringIn copies a NUL-terminated string of at most maxlen bytes
// (including the terminator) from uio at addr into a Go string.
//
// If a NUL is found it returns the string before it. If the copy fails first
// it returns the bytes read so far with the copy error. If maxlen bytes are
// read without finding a NUL it returns linuxerr.ENAMETOOLONG.
func CopyStringIn(uio IO, addr hostarch.Addr, maxlen int) (string, error) {
	initLen := maxlen
	if initLen > copyStringMaxInitBufLen {
		initLen = copyStringMaxInitBufLen
	}
	buf := make([]byte, initLen)
	var done int
	for done < maxlen {
		start, ok := addr.AddLength(uint64(done))
		if !ok {
			// Last page of kernel memory. The application can't use this
			// anyway.
			return string(buf[:done]), linuxerr.EFAULT
		}
		// Read up to copyStringIncrement bytes at a time.
		readlen := copyStringIncrement
		if readlen > maxlen-done {
			readlen = maxlen - done
		}
		end, ok := start.AddLength(uint64(readlen))
		if !ok {
			return string(buf[:done]), linuxerr.EFAULT
		}
		// Shorten the read to avoid crossing page boundaries, since faulting
		// in a page unnecessarily is expensive.
		if start.RoundDown() != end.RoundDown() {
			readlen = int(end.RoundDown() - start)
		}
		// Ensure that our buffer is large enough to accommodate the read.
		if done+readlen > len(buf) {
			newBufLen := len(buf) * 2
			if newBufLen > maxlen {
				newBufLen = maxlen
			}
			buf = append(buf, make([]byte, newBufLen-len(buf))...)
		}
		n, err := uio.CopyIn(start, buf[done:done+readlen])
		if i := bytes.IndexByte(buf[done:done+n], 0); i >= 0 {
			return string(buf[:done+i]), nil
		}
		done += n
		if err != nil {
			return string(buf[:done]), err
		}
	}
	return string(buf), linuxerr.ENAMETOOLONG
}

// IOReadWriter is an io.ReadWriter that reads from / writes to addresses
// starting at addr in IO. The preconditions that apply to IO.CopyIn and
// IO.CopyOut also apply to IOReadWriter.Read and IOReadWriter.Write
// respectively.
type IOReadWriter struct {
	IO   IO
	Addr hostarch.Addr
}

// Read implements io.Reader.Read.
//
// Note that an address space does not have an "end of file", so Read can only
// return io.EOF if IO.CopyIn returns io.EOF. Attempts to read unmapped or
// unreadable memory, or beyond the end of the address space, should return
// EFAULT.
func (rw *IOReadWriter) Read(dst []byte) (int, error) {
	n, err := rw.IO.CopyIn(rw.Addr, dst)
	end, ok := rw.Addr.AddLength(uint64(n))
	if ok {
		rw.Addr = end
	} else {
		// Disallow wraparound.
		rw.Addr = ^hostarch.Addr(0)
		if err != nil {
			err = linuxerr.EFAULT
		}
	}
	return n, err
}

// Write implements io.Writer.Write.
func (rw *IOReadWriter) Write(src []byte) (int, error) {
	n, err := rw.IO.CopyOut(rw.Addr, src)
	end, ok := rw.Addr.AddLength(uint64(n))
	if ok {
		rw.Addr = end
	} else {
		// Disallow wraparound.
		rw.Addr = ^hostarch.Addr(0)
		if err != nil {
			err = linuxerr.EFAULT
		}
	}
	return n, err
}
