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

package arch

import (
	"math"
	"testing"
)

func TestMakeSyscallArguments(t *testing.T) {
	args := MakeSyscallArguments(1, 2, 3)
	for i, want := range []uintptr{1, 2, 3, 0, 0, 0} {
		if got := args[i].Value; got != want {
			t.Errorf("args[%d] = %d, want %d", i, got, want)
		}
	}

	args = MakeSyscallArguments(1, 2, 3, 4, 5, 6, 7)
	if got := args[5].Value; got != 6 {
		t.Errorf("args[5] = %d, want 6", got)
	}

	if got, want := MakeSyscallArguments(0x10, 0xff).String(), "0x10, 0xff, 0x0, 0x0, 0x0, 0x0"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAccessors(t *testing.T) {
	neg := SyscallArgument{Value: math.MaxUint64} // -1 in a 64-bit register.
	if got := neg.Int(); got != -1 {
		t.Errorf("Int() = %d, want -1", got)
	}
	if got := neg.Int64(); got != -1 {
		t.Errorf("Int64() = %d, want -1", got)
	}
	if got := neg.Uint(); got != math.MaxUint32 {
		t.Errorf("Uint() = %d, want %d", got, uint32(math.MaxUint32))
	}

	big := SyscallArgument{Value: 1<<32 + 5}
	if got := big.Int(); got != 5 {
		t.Errorf("Int() = %d, want 5 (truncated)", got)
	}
	if got := big.Uint64(); got != 1<<32+5 {
		t.Errorf("Uint64() = %d, want %d", got, uint64(1<<32+5))
	}
	if got := big.Pointer(); uint64(got) != 1<<32+5 {
		t.Errorf("Pointer() = %v", got)
	}
	if got := big.SizeT(); got != 1<<32+5 {
		t.Errorf("SizeT() = %d", got)
	}
}
