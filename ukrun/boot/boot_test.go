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

package boot

import (
	"bytes"
	gocontext "context"
	"flag"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukernel/pkg/context"
	"gvisor.dev/ukernel/pkg/sentry/ktime"
	"gvisor.dev/ukernel/ukrun/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(flags)
	flags.Set("frames", "256")
	conf, err := config.NewFromFlags(flags)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	return conf
}

func newTestLoader(t *testing.T, conf *config.Config, stdin io.Reader, out *bytes.Buffer) *Loader {
	t.Helper()
	l, err := New(Args{
		Config: conf,
		Stdin:  stdin,
		Stdout: out,
		Clock:  &ktime.SyntheticClock{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func run(t *testing.T, l *Loader, names ...string) []Result {
	t.Helper()
	ctx := context.Background()
	for _, name := range names {
		if _, err := l.Start(ctx, name); err != nil {
			t.Fatalf("Start(%q): %v", name, err)
		}
	}
	runCtx, cancel := gocontext.WithTimeout(gocontext.Background(), 10*time.Second)
	defer cancel()
	results, err := l.Run(runCtx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return results
}

func checkReleased(t *testing.T, l *Loader) {
	t.Helper()
	if avail, total := l.MemoryFile().Available(), l.MemoryFile().TotalFrames(); avail != total {
		t.Errorf("%d of %d frames still allocated", total-avail, total)
	}
	if n := l.FileSystem().Names(); n != 0 {
		t.Errorf("%d names left in the file system", n)
	}
	if n := l.FileSystem().LiveInodes(); n != 0 {
		t.Errorf("%d inodes still live", n)
	}
}

func TestWorkloads(t *testing.T) {
	for _, tc := range []struct {
		name string
		want string
	}{
		{name: "hello", want: "Hello from task 1!\n"},
		{name: "echo", want: ""},
		{name: "file", want: "file: wrote, read back and removed 44 bytes\n"},
		{name: "mmap", want: "spanning two pages\nmmap: mapped and unmapped 8192 bytes at 0x500000\n"},
		{name: "sbrk", want: "sbrk: grew the heap at 0x400000 by 12288 bytes and shrank it back\n"},
		{name: "task_info", want: "task_info: Running, yield=3 get_time=1 task_info=1, 0ms, clock 0.000000\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			l := newTestLoader(t, newTestConfig(t), nil, &out)
			results := run(t, l, tc.name)
			want := []Result{{Name: tc.name, TID: 1, ExitCode: 0}}
			if diff := cmp.Diff(want, results); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s\noutput: %q", diff, out.String())
			}
			if got := out.String(); got != tc.want {
				t.Errorf("output = %q, want %q", got, tc.want)
			}
			checkReleased(t, l)
		})
	}
}

func TestWorkloadsListed(t *testing.T) {
	var names []string
	for _, w := range Workloads() {
		names = append(names, w.Name)
		if w.Description == "" {
			t.Errorf("workload %q has no description", w.Name)
		}
	}
	want := []string{"echo", "file", "hello", "mmap", "sbrk", "task_info"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Workloads() mismatch (-want +got):\n%s", diff)
	}
}

func TestAllWorkloadsTogether(t *testing.T) {
	var out bytes.Buffer
	l := newTestLoader(t, newTestConfig(t), nil, &out)
	var names []string
	for _, w := range Workloads() {
		names = append(names, w.Name)
	}
	results := run(t, l, names...)
	if len(results) != len(names) {
		t.Fatalf("got %d results, want %d", len(results), len(names))
	}
	for i, r := range results {
		if r.Name != names[i] || r.TID != int32(i+1) || !r.OK() {
			t.Errorf("result %d = %+v, want %q with TID %d exiting 0", i, r, names[i], i+1)
		}
	}
	if strings.Contains(out.String(), "FAIL") {
		t.Errorf("output reports a failure:\n%s", out.String())
	}
	checkReleased(t, l)
}

func TestEcho(t *testing.T) {
	var out bytes.Buffer
	input := strings.Repeat("ping pong\n", 1000)
	l := newTestLoader(t, newTestConfig(t), strings.NewReader(input), &out)
	results := run(t, l, "echo")
	if !results[0].OK() {
		t.Errorf("echo exited with %d", results[0].ExitCode)
	}
	if got := out.String(); got != input {
		t.Errorf("echo wrote %d bytes, want %d", len(got), len(input))
	}
}

func TestFailingWorkload(t *testing.T) {
	register(&Workload{
		Name:        "failing",
		Description: "calls an unknown syscall",
		run: func(p *proc) {
			p.check("unknown", p.syscall(499), 0)
			p.printf("not reached\n")
		},
	})
	defer delete(workloads, "failing")

	var out bytes.Buffer
	l := newTestLoader(t, newTestConfig(t), nil, &out)
	results := run(t, l, "failing", "hello")
	want := []Result{
		{Name: "failing", TID: 1, ExitCode: exitFailed},
		{Name: "hello", TID: 2, ExitCode: exitOK},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if got, want := out.String(), "failing: FAIL: unknown = -1, want 0\nHello from task 2!\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	checkReleased(t, l)
}

func TestUnknownWorkload(t *testing.T) {
	l := newTestLoader(t, newTestConfig(t), nil, &bytes.Buffer{})
	if _, err := l.Start(context.Background(), "nosuch"); err == nil {
		t.Errorf("Start(nosuch) succeeded")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(Args{}); err == nil {
		t.Errorf("New without a config succeeded")
	}
	conf := newTestConfig(t)
	conf.StackPages = minStackPages - 1
	if _, err := New(Args{Config: conf}); err == nil {
		t.Errorf("New with %d stack pages succeeded", conf.StackPages)
	}
}

func TestConfigCopied(t *testing.T) {
	conf := newTestConfig(t)
	var out bytes.Buffer
	l := newTestLoader(t, conf, nil, &out)
	conf.HeapBase = 0x900000
	conf.StackPages = 1
	results := run(t, l, "sbrk")
	if !results[0].OK() {
		t.Errorf("sbrk exited with %d: %s", results[0].ExitCode, out.String())
	}
}

func TestOutOfFrames(t *testing.T) {
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(flags)
	// Enough for one task's page tables and stack, not for two.
	flags.Set("frames", "12")
	conf, err := config.NewFromFlags(flags)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	l := newTestLoader(t, conf, nil, &bytes.Buffer{})
	ctx := context.Background()
	if _, err := l.Start(ctx, "hello"); err != nil {
		t.Fatalf("Start(hello): %v", err)
	}
	if _, err := l.Start(ctx, "hello"); err == nil {
		t.Errorf("second Start(hello) succeeded with %d frames", conf.Frames)
	}
}
