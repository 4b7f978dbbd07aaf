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

package cmd

import (
	gocontext "context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/term"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/log"
	"gvisor.dev/ukernel/ukrun/boot"
	"gvisor.dev/ukernel/ukrun/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	// timeout bounds the whole run. Zero means no limit.
	timeout time.Duration

	// list prints the workloads instead of running them.
	list bool

	// stdin, stdout and stderr default to the process's own.
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot a kernel and run built-in workloads on it"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	var b strings.Builder
	b.WriteString(`run [flags] [workload...] - boot a kernel and run each workload as a task.

Workloads run concurrently, one task each. With no arguments, the workloads
named by --workload are run. The exit status is that of the first workload
that failed, or 0. Available workloads:

`)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, w := range boot.Workloads() {
		fmt.Fprintf(tw, "  %s\t%s\n", w.Name, w.Description)
	}
	tw.Flush()
	b.WriteString("\n")
	return b.String()
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&r.timeout, "timeout", 0, "stop the run after this long, e.g. \"10s\". Zero means no limit.")
	f.BoolVar(&r.list, "list", false, "list the workloads and exit.")
}

// Execute implements subcommands.Command.Execute. args[0] is the Config and
// args[1] an *int receiving the exit status.
func (r *Run) Execute(ctx gocontext.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	status := args[1].(*int)
	stdin, stdout, stderr := r.stdio()

	if r.list {
		for _, w := range boot.Workloads() {
			fmt.Fprintln(stdout, w.Name)
		}
		return subcommands.ExitSuccess
	}

	names := f.Args()
	if len(names) == 0 && conf.Workload != "" {
		names = strings.Split(conf.Workload, ",")
	}
	if len(names) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	readsStdin := false
	for _, name := range names {
		w, ok := boot.LookupWorkload(name)
		if !ok {
			fmt.Fprintf(stderr, "unknown workload %q\n", name)
			return subcommands.ExitUsageError
		}
		readsStdin = readsStdin || w.ReadsStdin
	}
	// Leave an interactive terminal alone unless a workload wants input.
	if in, ok := stdin.(*os.File); ok && !readsStdin && term.IsTerminal(int(in.Fd())) {
		log.Debugf("Not reading terminal input, no workload consumes it")
		stdin = nil
	}

	l, err := boot.New(boot.Args{
		Config: conf,
		Stdin:  stdin,
		Stdout: stdout,
	})
	if err != nil {
		Fatalf("booting kernel: %v", err)
	}
	kctx := context.Background()
	for _, name := range names {
		if _, err := l.Start(kctx, name); err != nil {
			Fatalf("%v", err)
		}
	}

	if r.timeout > 0 {
		var cancel gocontext.CancelFunc
		ctx, cancel = gocontext.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	results, err := l.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "run failed: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, res := range results {
		if !res.OK() {
			log.Warningf("Workload %q failed with exit code %d", res.Name, res.ExitCode)
			if *status == 0 {
				*status = int(res.ExitCode)
			}
		}
	}
	return subcommands.ExitSuccess
}

func (r *Run) stdio() (io.Reader, io.Writer, io.Writer) {
	stdin, stdout, stderr := r.stdin, r.stdout, r.stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdin, stdout, stderr
}
