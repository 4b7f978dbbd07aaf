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

package kernel

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// FDTable is used to manage File references.
//
// Each occupied slot holds one reference on its file, owned by the table. A
// slot's index is stable for as long as it is occupied.
type FDTable struct {
	// limit is the number of slots the table may use. limit is immutable.
	limit int32

	// mu protects below.
	mu sync.Mutex

	// used contains the number of non-nil entries.
	used int32

	// files holds descriptors. A nil entry is a free slot.
	files []*vfs.FileDescription
}

// NewFDTable allocates a new FDTable of at most limit slots. A non-positive
// limit means no limit.
func NewFDTable(limit int) *FDTable {
	f := &FDTable{limit: math.MaxInt32}
	if limit > 0 && limit < math.MaxInt32 {
		f.limit = int32(limit)
	}
	return f
}

// Size returns the number of file descriptor slots currently occupied.
func (f *FDTable) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.used)
}

// get returns the file at fd, or nil if the slot is out of range or empty.
//
// Precondition: mu must be held.
func (f *FDTable) get(fd int32) *vfs.FileDescription {
	if fd < 0 || fd >= int32(len(f.files)) {
		return nil
	}
	return f.files[fd]
}

// set sets an entry.
//
// This handles accounting changes, as well as acquiring the reference needed
// by the table for file and dropping the table's reference on whatever the
// slot held.
//
// Precondition: mu must be held.
func (f *FDTable) set(ctx context.Context, fd int32, file *vfs.FileDescription) {
	// Grow the table as required.
	if last := int32(len(f.files)); fd >= last {
		end := fd + 1
		if end < 2*last {
			end = 2 * last
		}
		if end > f.limit {
			end = f.limit
		}
		f.files = append(f.files, make([]*vfs.FileDescription, end-last)...)
	}

	if file != nil {
		file.IncRef()
		f.used++
	}
	orig := f.files[fd]
	f.files[fd] = file
	if orig != nil {
		f.used--
		orig.DecRef(ctx)
	}
}

// NewFDs allocates new FDs guaranteed to be the lowest number available
// greater than or equal to the fd parameter. Success is guaranteed to be all
// or none.
func (f *FDTable) NewFDs(ctx context.Context, fd int32, files []*vfs.FileDescription) (fds []int32, err error) {
	if fd < 0 {
		// Don't accept negative FDs.
		return nil, linuxerr.EINVAL
	}
	if fd >= f.limit {
		return nil, linuxerr.EMFILE
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Install all entries.
	for i := fd; i < f.limit && len(fds) < len(files); i++ {
		if d := f.get(i); d == nil {
			f.set(ctx, i, files[len(fds)]) // Set the descriptor.
			fds = append(fds, i)           // Record the file descriptor.
		}
	}

	// Failure? Unwind existing FDs.
	if len(fds) < len(files) {
		for _, i := range fds {
			f.set(ctx, i, nil) // Zap entry.
		}
		return nil, linuxerr.EMFILE
	}

	return fds, nil
}

// NewFDAt sets the file reference for the given FD. If there is an active
// reference for that FD, the table's reference on it is dropped.
func (f *FDTable) NewFDAt(ctx context.Context, fd int32, file *vfs.FileDescription) error {
	if fd < 0 {
		// Don't accept negative FDs.
		return linuxerr.EBADF
	}
	if fd >= f.limit {
		return linuxerr.EMFILE
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Install the entry.
	f.set(ctx, fd, file)
	return nil
}

// Get returns a reference to the file for the FD, or nil if no file is
// defined for the given fd.
//
// N.B. Callers are required to use DecRef when they are done.
func (f *FDTable) Get(fd int32) *vfs.FileDescription {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		file := f.get(fd)
		if file != nil {
			if !file.TryIncRef() {
				continue // Race caught.
			}
			// Reference acquired.
			return file
		}
		// No file available.
		return nil
	}
}

// GetFDs returns a list of valid fds in increasing order.
func (f *FDTable) GetFDs() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	fds := make([]int32, 0, f.used)
	for fd, file := range f.files {
		if file != nil {
			fds = append(fds, int32(fd))
		}
	}
	return fds
}

// Remove removes an FD from the table and returns the file it held, or nil if
// the slot was out of range or empty. The table's reference is transferred to
// the caller.
//
// N.B. Callers are required to use DecRef when they are done.
func (f *FDTable) Remove(fd int32) *vfs.FileDescription {
	f.mu.Lock()
	defer f.mu.Unlock()

	orig := f.get(fd)
	if orig != nil {
		f.files[fd] = nil // Zap entry.
		f.used--
	}
	return orig
}

// RemoveAll removes every FD, dropping the table's references.
func (f *FDTable) RemoveAll(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fd, file := range f.files {
		if file != nil {
			f.set(ctx, int32(fd), nil)
		}
	}
}

// String is a stringer for FDTable.
func (f *FDTable) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b bytes.Buffer
	for fd, file := range f.files {
		if file == nil {
			continue
		}
		fmt.Fprintf(&b, "\tfd:%d => %T flags %v\n", fd, file.Impl(), file.StatusFlags())
	}
	return b.String()
}
