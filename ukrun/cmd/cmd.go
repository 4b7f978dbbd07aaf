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

// Package cmd holds implementations of the ukrun commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"gvisor.dev/ukernel/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages
// are consumed by the user, in addition to the debug log.
var ErrorLogger io.Writer

// Fatalf logs to stderr and exits with a failure status code.
func Fatalf(format string, args ...any) {
	log.Warningf("FATAL ERROR: "+format, args...)
	writeError(fmt.Sprintf(format, args...))
	os.Exit(128)
}

func writeError(msg string) {
	w := ErrorLogger
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintln(w, "ukrun: "+msg)
}
