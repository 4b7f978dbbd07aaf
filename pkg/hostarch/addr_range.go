// Copyright 2026 The gVisor Authors.
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

package hostarch

import "fmt"

// AddrRange is a range of Addrs, [Start, End).
type AddrRange struct {
	Start Addr
	End   Addr
}

// WellFormed returns true if r.Start <= r.End.
func (r AddrRange) WellFormed() bool {
	return r.Start <= r.End
}

// Length returns the length of the range.
func (r AddrRange) Length() uint64 {
	return uint64(r.End - r.Start)
}

// Contains returns true if r contains x.
func (r AddrRange) Contains(x Addr) bool {
	return r.Start <= x && x < r.End
}

// Overlaps returns true if r and r2 overlap.
func (r AddrRange) Overlaps(r2 AddrRange) bool {
	return r.Start < r2.End && r2.Start < r.End
}

// IsPageAligned returns true if both the start and end of r are page-aligned.
func (r AddrRange) IsPageAligned() bool {
	return r.Start.IsPageAligned() && r.End.IsPageAligned()
}

// Pages returns the virtual page numbers touched by r: [floor(Start),
// ceil(End)).
func (r AddrRange) Pages() PageRange {
	return PageRange{Start: r.Start.PageNumber(), End: r.End.CeilPageNumber()}
}

// String implements fmt.Stringer.String.
func (r AddrRange) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}

// PageRange is a range of virtual page numbers, [Start, End).
type PageRange struct {
	Start PageNumber
	End   PageNumber
}

// Len returns the number of pages in the range.
func (r PageRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return uint64(r.End - r.Start)
}

// Contains returns true if r contains vpn.
func (r PageRange) Contains(vpn PageNumber) bool {
	return r.Start <= vpn && vpn < r.End
}

// Overlaps returns true if r and r2 overlap.
func (r PageRange) Overlaps(r2 PageRange) bool {
	return r.Start < r2.End && r2.Start < r.End
}

// AddrRange returns the byte range covered by r.
func (r PageRange) AddrRange() AddrRange {
	return AddrRange{Start: r.Start.Addr(), End: r.End.Addr()}
}

// String implements fmt.Stringer.String.
func (r PageRange) String() string {
	return fmt.Sprintf("[vpn %#x, vpn %#x)", uint64(r.Start), uint64(r.End))
}
