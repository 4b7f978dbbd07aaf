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

// Package cli is the main entrypoint for ukrun.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/pkg/refs"
	"gvisor.dev/ukernel/ukrun/cmd"
	"gvisor.dev/ukernel/ukrun/config"
)

// version is set at link time.
var version = "devel"

// versionFlagName is the name of a flag that triggers printing the version.
const versionFlagName = "version"

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)
	flag.Bool(versionFlagName, false, "show version and exit.")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	if flag.Lookup(versionFlagName).Value.(flag.Getter).Get().(bool) {
		fmt.Fprintf(os.Stdout, "ukrun version %s\n", version)
		os.Exit(0)
	}

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf(err.Error())
	}

	subcommand := flag.CommandLine.Arg(0)

	var logFile io.Writer
	if conf.LogFilename != "" {
		f, err := log.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.FileOpts{
			Command:   subcommand,
			Timestamp: time.Now(),
		})
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		cmd.ErrorLogger = f
	}
	e, err := logTarget(conf, logFile, os.Stderr)
	if err != nil {
		cmd.Fatalf("%v", err)
	}
	log.SetTarget(e)
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	refs.SetLeakMode(conf.ReferenceLeak)

	const delimString = `**************** ukrun ****************`
	log.Infof(delimString)
	log.Infof("Version %s, %s, %s, %d CPUs, %s, PID %d", version, runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	// Call the subcommand and pass in the configuration.
	var status int
	subcmdCode := subcommands.Execute(context.Background(), conf, &status)
	if subcmdCode == subcommands.ExitSuccess {
		log.Infof("Exiting with status: %d", status)
		os.Exit(status)
	}
	log.Warningf("Failure to execute command, err: %v", subcmdCode)
	os.Exit(128)
}

// logTarget returns the emitter for the log settings of conf. logFile is nil
// when logs go to stderr only.
func logTarget(conf *config.Config, logFile, stderr io.Writer) (log.Emitter, error) {
	if logFile == nil {
		return log.NewEmitter(conf.LogFormat, stderr)
	}
	e, err := log.NewEmitter(conf.LogFormat, logFile)
	if err != nil {
		return nil, err
	}
	if !conf.AlsoLogToStderr {
		return e, nil
	}
	se, err := log.NewEmitter(conf.LogFormat, stderr)
	if err != nil {
		return nil, err
	}
	return &log.MultiEmitter{e, se}, nil
}

// forEachCmd invokes the passed callback for each command supported by ukrun.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Run), "")
	cb(new(cmd.Syscalls), "")
}
