// Copyright 2019 The gVisor Authors.
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

package memfs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/safemem"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

func open(t *testing.T, fs *Filesystem, name string, flags linux.OpenFlags) *vfs.FileDescription {
	t.Helper()
	fd, err := fs.OpenFile(context.Background(), name, vfs.OpenOptions{Flags: flags})
	if err != nil {
		t.Fatalf("OpenFile(%q, %v) failed: %v", name, flags, err)
	}
	return fd
}

func write(t *testing.T, fd *vfs.FileDescription, data string) {
	t.Helper()
	src := safemem.BlockSeqOf(safemem.BlockFromSafeSlice([]byte(data)))
	n, err := fd.Write(context.Background(), src)
	if err != nil || n != int64(len(data)) {
		t.Fatalf("Write(%q) = %d, %v", data, n, err)
	}
}

func readAll(t *testing.T, fd *vfs.FileDescription) string {
	t.Helper()
	var out []byte
	for {
		buf := make([]byte, 3)
		n, err := fd.Read(context.Background(), safemem.BlockSeqOf(safemem.BlockFromSafeSlice(buf)))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if n == 0 {
			return string(out)
		}
		out = append(out, buf[:n]...)
	}
}

func stat(t *testing.T, fd *vfs.FileDescription) vfs.Statx {
	t.Helper()
	s, err := fd.Stat(context.Background())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	return s
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	fs := New()
	w := open(t, fs, "hello", linux.O_WRONLY|linux.O_CREAT)
	write(t, w, "hello, ")
	write(t, w, "world")
	w.DecRef(ctx)

	r := open(t, fs, "hello", linux.O_RDONLY)
	defer r.DecRef(ctx)
	if got, want := readAll(t, r), "hello, world"; got != want {
		t.Errorf("read %q, want %q", got, want)
	}
	want := vfs.Statx{Ino: 1, Mode: linux.S_IFREG, Nlink: 1, Size: 12}
	if diff := cmp.Diff(want, stat(t, r)); diff != "" {
		t.Errorf("Stat mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenMissing(t *testing.T) {
	fs := New()
	for _, name := range []string{"missing", "", "a/b", "."} {
		if _, err := fs.OpenFile(context.Background(), name, vfs.OpenOptions{}); !linuxerr.Equals(linuxerr.ENOENT, err) {
			t.Errorf("OpenFile(%q) err = %v, want ENOENT", name, err)
		}
	}
	if fs.Names() != 0 {
		t.Errorf("failed opens created %d names", fs.Names())
	}
}

func TestCreateTruncatesExisting(t *testing.T) {
	ctx := context.Background()
	fs := New()
	w := open(t, fs, "f", linux.O_WRONLY|linux.O_CREAT)
	write(t, w, "old contents")
	w.DecRef(ctx)

	w = open(t, fs, "f", linux.O_WRONLY|linux.O_CREAT)
	write(t, w, "new")
	w.DecRef(ctx)

	r := open(t, fs, "f", linux.O_RDONLY)
	defer r.DecRef(ctx)
	if got := readAll(t, r); got != "new" {
		t.Errorf("read %q after O_CREAT on existing file, want %q", got, "new")
	}
}

func TestTruncKeepsInode(t *testing.T) {
	ctx := context.Background()
	fs := New()
	w := open(t, fs, "f", linux.O_RDWR|linux.O_CREAT)
	write(t, w, "abc")
	ino := stat(t, w).Ino
	w.DecRef(ctx)

	r := open(t, fs, "f", linux.O_RDWR|linux.O_TRUNC)
	defer r.DecRef(ctx)
	s := stat(t, r)
	if s.Ino != ino || s.Size != 0 {
		t.Errorf("after O_TRUNC got ino %d size %d, want ino %d size 0", s.Ino, s.Size, ino)
	}
}

func TestLinkAt(t *testing.T) {
	ctx := context.Background()
	fs := New()
	w := open(t, fs, "a", linux.O_WRONLY|linux.O_CREAT)
	write(t, w, "shared")
	defer w.DecRef(ctx)

	if err := fs.LinkAt(ctx, "a", "b"); err != nil {
		t.Fatalf("LinkAt(a, b) failed: %v", err)
	}
	if got := stat(t, w).Nlink; got != 2 {
		t.Errorf("Nlink = %d, want 2", got)
	}
	r := open(t, fs, "b", linux.O_RDONLY)
	defer r.DecRef(ctx)
	if got := readAll(t, r); got != "shared" {
		t.Errorf("read %q through link, want %q", got, "shared")
	}
	if stat(t, r).Ino != stat(t, w).Ino {
		t.Errorf("link has a different inode")
	}

	if err := fs.LinkAt(ctx, "missing", "c"); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("LinkAt(missing) err = %v, want ENOENT", err)
	}
	if err := fs.LinkAt(ctx, "a", "b"); !linuxerr.Equals(linuxerr.EEXIST, err) {
		t.Errorf("LinkAt(a, b) again err = %v, want EEXIST", err)
	}
	if got := stat(t, w).Nlink; got != 2 {
		t.Errorf("failed links changed Nlink to %d", got)
	}
}

func TestUnlinkAt(t *testing.T) {
	ctx := context.Background()
	fs := New()
	open(t, fs, "a", linux.O_WRONLY|linux.O_CREAT).DecRef(ctx)
	if err := fs.LinkAt(ctx, "a", "b"); err != nil {
		t.Fatalf("LinkAt failed: %v", err)
	}

	if err := fs.UnlinkAt(ctx, "a"); err != nil {
		t.Fatalf("UnlinkAt(a) failed: %v", err)
	}
	if _, err := fs.OpenFile(ctx, "a", vfs.OpenOptions{}); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("OpenFile(a) after unlink err = %v, want ENOENT", err)
	}
	if got := fs.LiveInodes(); got != 1 {
		t.Errorf("LiveInodes() = %d with one link left, want 1", got)
	}
	if err := fs.UnlinkAt(ctx, "b"); err != nil {
		t.Fatalf("UnlinkAt(b) failed: %v", err)
	}
	if got := fs.LiveInodes(); got != 0 {
		t.Errorf("LiveInodes() = %d after last unlink, want 0", got)
	}
	if err := fs.UnlinkAt(ctx, "b"); !linuxerr.Equals(linuxerr.ENOENT, err) {
		t.Errorf("UnlinkAt(b) again err = %v, want ENOENT", err)
	}
}

func TestUnlinkWhileOpen(t *testing.T) {
	ctx := context.Background()
	fs := New()
	fd := open(t, fs, "tmp", linux.O_RDWR|linux.O_CREAT)
	write(t, fd, "still here")
	if err := fs.UnlinkAt(ctx, "tmp"); err != nil {
		t.Fatalf("UnlinkAt failed: %v", err)
	}
	if fs.Names() != 0 {
		t.Errorf("Names() = %d after unlink, want 0", fs.Names())
	}
	if got := fs.LiveInodes(); got != 1 {
		t.Fatalf("inode reclaimed while open: LiveInodes() = %d", got)
	}
	if got := stat(t, fd).Nlink; got != 0 {
		t.Errorf("Nlink = %d after unlink, want 0", got)
	}
	write(t, fd, "!")
	fd.DecRef(ctx)
	if got := fs.LiveInodes(); got != 0 {
		t.Errorf("LiveInodes() = %d after last close, want 0", got)
	}
}

func TestIndependentOffsets(t *testing.T) {
	ctx := context.Background()
	fs := New()
	w := open(t, fs, "f", linux.O_WRONLY|linux.O_CREAT)
	write(t, w, "abcdef")
	defer w.DecRef(ctx)

	r1 := open(t, fs, "f", linux.O_RDONLY)
	defer r1.DecRef(ctx)
	r2 := open(t, fs, "f", linux.O_RDONLY)
	defer r2.DecRef(ctx)

	buf := make([]byte, 2)
	if _, err := r1.Read(ctx, safemem.BlockSeqOf(safemem.BlockFromSafeSlice(buf))); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := readAll(t, r2); got != "abcdef" {
		t.Errorf("second description read %q, want %q", got, "abcdef")
	}
	if got := readAll(t, r1); got != "cdef" {
		t.Errorf("first description read %q, want %q", got, "cdef")
	}
}

func TestScatteredWrite(t *testing.T) {
	ctx := context.Background()
	fs := New()
	fd := open(t, fs, "f", linux.O_RDWR|linux.O_CREAT)
	defer fd.DecRef(ctx)

	src := safemem.BlockSeqFromSlice([]safemem.Block{
		safemem.BlockFromSafeSlice([]byte("ab")),
		safemem.BlockFromSafeSlice([]byte("cde")),
	})
	if n, err := fd.Write(ctx, src); err != nil || n != 5 {
		t.Fatalf("Write = %d, %v, want 5, nil", n, err)
	}
	r := open(t, fs, "f", linux.O_RDONLY)
	defer r.DecRef(ctx)

	a, b := make([]byte, 1), make([]byte, 4)
	dst := safemem.BlockSeqFromSlice([]safemem.Block{
		safemem.BlockFromSafeSlice(a),
		safemem.BlockFromSafeSlice(b),
	})
	if n, err := r.Read(ctx, dst); err != nil || n != 5 {
		t.Fatalf("Read = %d, %v, want 5, nil", n, err)
	}
	if got := string(a) + string(b); got != "abcde" {
		t.Errorf("gathered %q, want %q", got, "abcde")
	}
}
