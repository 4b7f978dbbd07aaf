// Copyright 2020 The gVisor Authors.
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

// Package ttydev implements the console that backs a task's standard input
// and output descriptors.
package ttydev

import (
	"bytes"
	"io"
	"sync"

	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/safemem"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// Console is a byte stream terminal. Input is queued with Feed; output goes
// to an io.Writer.
type Console struct {
	// mu protects in and eof.
	mu  sync.Mutex
	in  bytes.Buffer
	eof bool

	// outMu serializes writes to out.
	outMu sync.Mutex
	out   io.Writer
}

// NewConsole returns a Console writing output to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Feed queues p as input.
func (c *Console) Feed(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in.Write(p)
}

// CloseInput marks the end of input. Reads of an empty console then return
// 0 instead of blocking.
func (c *Console) CloseInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eof = true
}

// NewStdin returns a read-only file description reading from c.
func (c *Console) NewStdin() *vfs.FileDescription {
	fd := &stdinFD{console: c}
	fd.vfsfd.Init(fd, linux.O_RDONLY)
	return &fd.vfsfd
}

// NewStdout returns a write-only file description writing to c.
func (c *Console) NewStdout() *vfs.FileDescription {
	fd := &stdoutFD{console: c}
	fd.vfsfd.Init(fd, linux.O_WRONLY)
	return &fd.vfsfd
}

// stdinFD implements vfs.FileDescriptionImpl for console input.
type stdinFD struct {
	vfsfd vfs.FileDescription
	vfs.ReadOnlyFileDescriptionImpl

	console *Console
}

// Release implements vfs.FileDescriptionImpl.Release.
func (fd *stdinFD) Release(ctx context.Context) {}

// Read implements vfs.FileDescriptionImpl.Read. It returns
// linuxerr.ErrWouldBlock while no input is queued.
func (fd *stdinFD) Read(ctx context.Context, dst safemem.BlockSeq) (int64, error) {
	if dst.IsEmpty() {
		return 0, nil
	}
	c := fd.console
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.in.Len() == 0 {
		if c.eof {
			return 0, nil
		}
		return 0, linuxerr.ErrWouldBlock
	}
	n, err := safemem.FromIOReader{Reader: &c.in}.ReadToBlocks(dst)
	if err == io.EOF {
		err = nil
	}
	return int64(n), err
}

// stdoutFD implements vfs.FileDescriptionImpl for console output.
type stdoutFD struct {
	vfsfd vfs.FileDescription
	vfs.WriteOnlyFileDescriptionImpl

	console *Console
}

// Release implements vfs.FileDescriptionImpl.Release.
func (fd *stdoutFD) Release(ctx context.Context) {}

// Write implements vfs.FileDescriptionImpl.Write.
func (fd *stdoutFD) Write(ctx context.Context, src safemem.BlockSeq) (int64, error) {
	c := fd.console
	c.outMu.Lock()
	defer c.outMu.Unlock()
	n, err := safemem.FromIOWriter{Writer: c.out}.WriteFromBlocks(src)
	if err != nil {
		ctx.Warningf("console write failed after %d bytes: %v", n, err)
		if n == 0 {
			return 0, linuxerr.EIO
		}
	}
	return int64(n), nil
}
