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

package ktime

import (
	"math"
	"testing"
	"time"

	"gvisor.dev/ukernel/pkg/abi/linux"
)

func TestTimeval(t *testing.T) {
	for _, tc := range []struct {
		ns   int64
		want linux.Timeval
	}{
		{ns: 0, want: linux.Timeval{}},
		{ns: 999, want: linux.Timeval{}},
		{ns: 1_500_000, want: linux.Timeval{Usec: 1500}},
		{ns: 3_000_250_000, want: linux.Timeval{Sec: 3, Usec: 250}},
	} {
		if got := FromNanoseconds(tc.ns).Timeval(); got != tc.want {
			t.Errorf("FromNanoseconds(%d).Timeval() = %+v, want %+v", tc.ns, got, tc.want)
		}
	}
}

func TestAddSaturates(t *testing.T) {
	if got := MaxTime.Add(time.Second); got != MaxTime {
		t.Errorf("MaxTime.Add(1s) = %v, want MaxTime", got)
	}
	if got := MinTime.Add(-time.Second); got != MinTime {
		t.Errorf("MinTime.Add(-1s) = %v, want MinTime", got)
	}
	if got := MaxTime.Sub(MinTime); got != math.MaxInt64 {
		t.Errorf("MaxTime.Sub(MinTime) = %v, want max duration", got)
	}
}

func TestSyntheticClock(t *testing.T) {
	var c SyntheticClock
	if !c.Now().IsZero() {
		t.Fatalf("new clock reads %v", c.Now())
	}
	c.Add(1500 * time.Millisecond)
	if got := c.Now().Milliseconds(); got != 1500 {
		t.Errorf("Milliseconds() = %d, want 1500", got)
	}
	c.Store(FromSeconds(10))
	if got := c.Now().Seconds(); got != 10 {
		t.Errorf("Seconds() = %d, want 10", got)
	}
}

func TestSyntheticClockBackwardsPanics(t *testing.T) {
	var c SyntheticClock
	c.Store(FromSeconds(2))
	defer func() {
		if recover() == nil {
			t.Errorf("Store into the past did not panic")
		}
	}()
	c.Store(FromSeconds(1))
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	b := c.Now()
	if b.Before(a) {
		t.Errorf("clock went backwards: %v then %v", a, b)
	}
	if a.Before(ZeroTime) {
		t.Errorf("clock reads %v before its zero time", a)
	}
}
