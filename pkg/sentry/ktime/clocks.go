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
	"sync/atomic"
	"time"
)

// MonotonicClock is a Clock whose zero time is the instant it was created.
// It never goes backwards.
type MonotonicClock struct {
	// base is immutable and carries a monotonic reading.
	base time.Time
}

// NewMonotonicClock returns a MonotonicClock reading zero now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{base: time.Now()}
}

// Now implements Clock.Now.
func (c *MonotonicClock) Now() Time {
	return FromNanoseconds(time.Since(c.base).Nanoseconds())
}

// SyntheticClock is a Clock whose current time is set manually by calling
// Store or Add.
type SyntheticClock struct {
	now atomic.Int64
}

// Now implements Clock.Now.
func (c *SyntheticClock) Now() Time {
	return FromNanoseconds(c.now.Load())
}

// Store sets the clock's current time to t. Store panics if t is before the
// current time.
func (c *SyntheticClock) Store(t Time) {
	for {
		old := c.now.Load()
		if t.ns < old {
			panic("ktime.SyntheticClock.Store: time went backwards")
		}
		if c.now.CompareAndSwap(old, t.ns) {
			return
		}
	}
}

// Add advances the clock's current time by d, which must be non-negative.
func (c *SyntheticClock) Add(d time.Duration) {
	if d < 0 {
		panic("ktime.SyntheticClock.Add: negative duration")
	}
	for {
		old := c.now.Load()
		if c.now.CompareAndSwap(old, FromNanoseconds(old).Add(d).ns) {
			return
		}
	}
}
