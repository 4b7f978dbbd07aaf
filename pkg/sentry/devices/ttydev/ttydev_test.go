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

package ttydev

import (
	"bytes"
	"errors"
	"testing"

	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/safemem"
)

func seqOf(b []byte) safemem.BlockSeq {
	return safemem.BlockSeqOf(safemem.BlockFromSafeSlice(b))
}

func TestStdinBlocksUntilFed(t *testing.T) {
	ctx := context.Background()
	c := NewConsole(&bytes.Buffer{})
	stdin := c.NewStdin()
	defer stdin.DecRef(ctx)

	buf := make([]byte, 8)
	if _, err := stdin.Read(ctx, seqOf(buf)); err != linuxerr.ErrWouldBlock {
		t.Fatalf("Read of empty console err = %v, want ErrWouldBlock", err)
	}
	c.Feed([]byte("hi"))
	n, err := stdin.Read(ctx, seqOf(buf))
	if err != nil || string(buf[:n]) != "hi" {
		t.Fatalf("Read = %q, %v, want %q", buf[:n], err, "hi")
	}
	c.CloseInput()
	if n, err := stdin.Read(ctx, seqOf(buf)); n != 0 || err != nil {
		t.Errorf("Read at end of input = %d, %v, want 0, nil", n, err)
	}
}

func TestStdinExactFill(t *testing.T) {
	ctx := context.Background()
	c := NewConsole(&bytes.Buffer{})
	stdin := c.NewStdin()
	defer stdin.DecRef(ctx)

	c.Feed([]byte("abc"))
	a, b := make([]byte, 3), make([]byte, 3)
	dst := safemem.BlockSeqFromSlice([]safemem.Block{safemem.BlockFromSafeSlice(a), safemem.BlockFromSafeSlice(b)})
	n, err := stdin.Read(ctx, dst)
	if n != 3 || err != nil {
		t.Errorf("Read = %d, %v, want 3, nil", n, err)
	}
}

func TestStdout(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	c := NewConsole(&out)
	stdout := c.NewStdout()
	defer stdout.DecRef(ctx)

	if n, err := stdout.Write(ctx, seqOf([]byte("Hello, world!\n"))); n != 14 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if got := out.String(); got != "Hello, world!\n" {
		t.Errorf("console output %q", got)
	}
	if _, err := stdout.Read(ctx, seqOf(make([]byte, 1))); !linuxerr.Equals(linuxerr.EBADF, err) {
		t.Errorf("Read of stdout err = %v, want EBADF", err)
	}
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken")
}

func TestStdoutWriteError(t *testing.T) {
	ctx := context.Background()
	stdout := NewConsole(brokenWriter{}).NewStdout()
	defer stdout.DecRef(ctx)
	if _, err := stdout.Write(ctx, seqOf([]byte("x"))); !linuxerr.Equals(linuxerr.EIO, err) {
		t.Errorf("Write err = %v, want EIO", err)
	}
}

func TestStdinRejectsWrite(t *testing.T) {
	ctx := context.Background()
	stdin := NewConsole(&bytes.Buffer{}).NewStdin()
	defer stdin.DecRef(ctx)
	if _, err := stdin.Write(ctx, seqOf([]byte("x"))); !linuxerr.Equals(linuxerr.EBADF, err) {
		t.Errorf("Write to stdin err = %v, want EBADF", err)
	}
}
