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

// Package config provides basic infrastructure to set configuration settings
// for ukrun. Each setting is a command line flag, and may also be given in a
// TOML configuration file.
package config

import (
	"fmt"
	"reflect"
	"strings"

	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/refs"
)

// Config holds configuration that is not part of the workload itself.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name.
//  3. Register the flag in flags.go, with its default value.
//  4. Add any validation to validate.
type Config struct {
	// ConfigFile is the path of a TOML file holding flag values. Values
	// given on the command line take precedence.
	ConfigFile string `flag:"config"`

	// LogFilename is the file where internal logs are written. Empty means
	// stderr.
	LogFilename string `flag:"log"`

	// LogFormat is the log format: text, json, logrus or logrus-json.
	LogFormat string `flag:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// AlsoLogToStderr copies logs to stderr when LogFilename is set.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// Strace indicates that every syscall should be logged.
	Strace bool `flag:"strace"`

	// Frames is the number of page frames backing all tasks.
	Frames uint `flag:"frames"`

	// MaxFDs is the size of each task's descriptor table.
	MaxFDs int `flag:"max-fds"`

	// StackBase is the address of each task's stack mapping.
	StackBase uint64 `flag:"stack-base"`

	// StackPages is the size of each task's stack mapping in pages.
	StackPages uint `flag:"stack-pages"`

	// HeapBase is each task's initial program break.
	HeapBase uint64 `flag:"heap-base"`

	// Workload is a comma-separated list of built-in workloads that run
	// uses when given no arguments.
	Workload string `flag:"workload"`

	// ReferenceLeak sets the reference leak check mode.
	ReferenceLeak refs.LeakMode `flag:"ref-leak-mode"`
}

var validLogFormats = []string{"text", "json", "logrus", "logrus-json"}

func (c *Config) validate() error {
	found := false
	for _, f := range validLogFormats {
		if c.LogFormat == f {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format %q, must be one of %s", c.LogFormat, strings.Join(validLogFormats, ", "))
	}
	if c.Frames == 0 {
		return fmt.Errorf("frames must be positive")
	}
	if c.StackPages == 0 {
		return fmt.Errorf("stack-pages must be positive")
	}
	if !hostarch.Addr(c.StackBase).IsPageAligned() {
		return fmt.Errorf("stack-base %#x is not page-aligned", c.StackBase)
	}
	if !hostarch.Addr(c.HeapBase).IsPageAligned() {
		return fmt.Errorf("heap-base %#x is not page-aligned", c.HeapBase)
	}
	stackEnd := c.StackBase + uint64(c.StackPages)*hostarch.PageSize
	if c.HeapBase >= c.StackBase && c.HeapBase < stackEnd {
		return fmt.Errorf("heap-base %#x lies inside the stack [%#x, %#x)", c.HeapBase, c.StackBase, stackEnd)
	}
	return nil
}

// Log logs every field of the configuration.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Infof("\t%s: %s", name, getVal(obj.Field(i)))
	}
}
