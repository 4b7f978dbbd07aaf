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

package linux

import (
	"io"

	"gvisor.dev/ukernel/pkg/errors/linuxerr"
	"gvisor.dev/ukernel/pkg/sentry/kernel"
	"gvisor.dev/ukernel/pkg/sentry/vfs"
)

// handleIOError handles special error cases for partial results. For some
// errors, we may consume the error and return only the partial read/write.
//
// op and f are used only for logging.
func handleIOError(t *kernel.Task, partialResult bool, err error, op string, f *vfs.FileDescription) error {
	switch {
	case err == nil:
		// Typical successful syscall.
		return nil
	case err == io.EOF:
		// EOF is always consumed. If this is a partial read/write
		// (result != 0), the application will see that, otherwise
		// they will see 0.
		return nil
	case !partialResult:
		// Typical syscall error.
		return err
	case linuxerr.Equals(linuxerr.EINTR, err), linuxerr.Equals(linuxerr.ErrWouldBlock, err):
		// The transfer was cut short but made progress. Like Linux, the
		// application sees the partial result.
		return nil
	}

	// An unknown error is encountered with a partial read/write.
	t.Warningf("Invalid request partialResult %v and err (type %T) %v for %s operation on %T", partialResult, err, err, op, f.Impl())
	return nil
}
