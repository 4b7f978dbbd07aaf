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

package vfs

import (
	"gvisor.dev/ukernel/pkg/abi/linux"
	"gvisor.dev/ukernel/pkg/context"
)

// OpenOptions contains options to FileSystem.OpenFile.
type OpenOptions struct {
	// Flags contains access mode and flags as specified for open(2).
	Flags linux.OpenFlags
}

// FileSystem is the file system tasks resolve paths against. Paths are names
// in a single flat root directory.
//
// All methods may be called concurrently.
type FileSystem interface {
	// OpenFile opens the file at path. On success the caller owns the one
	// reference held by the returned FileDescription. OpenFile fails with
	// ENOENT if path does not exist and O_CREAT is not set.
	OpenFile(ctx context.Context, path string, opts OpenOptions) (*FileDescription, error)

	// LinkAt creates a new directory entry newname for the file at oldname.
	// It fails with ENOENT if oldname does not exist and EEXIST if newname
	// does.
	LinkAt(ctx context.Context, oldname, newname string) error

	// UnlinkAt removes the directory entry name. The file is destroyed once
	// it has no links and is no longer open. UnlinkAt fails with ENOENT if
	// name does not exist.
	UnlinkAt(ctx context.Context, name string) error
}
