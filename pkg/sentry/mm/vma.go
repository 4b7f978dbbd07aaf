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

package mm

import (
	"github.com/google/btree"
	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
)

// vmaKind identifies who created a vma.
type vmaKind int

const (
	// vmaFixed areas are installed by the loader (text, data, stack).
	vmaFixed vmaKind = iota

	// vmaAnon areas are created by mmap and may be removed by munmap.
	vmaAnon

	// vmaHeap is the single area between the heap base and the break.
	vmaHeap
)

// A vma represents a virtual memory area: a contiguous run of pages with
// uniform permissions, every page backed by its own frame.
type vma struct {
	pages hostarch.PageRange
	perms pagetables.PTEFlags
	kind  vmaKind

	// hint is the name shown in the maps listing.
	hint string
}

// vmaSet is the ordered set of non-overlapping, non-empty vmas of an
// address space, keyed by first page.
type vmaSet struct {
	tree *btree.BTreeG[*vma]
}

// vmaDegree is the btree degree.
const vmaDegree = 8

func vmaLess(a, b *vma) bool {
	return a.pages.Start < b.pages.Start
}

func newVMASet() vmaSet {
	return vmaSet{tree: btree.NewG(vmaDegree, vmaLess)}
}

func pivot(vpn hostarch.PageNumber) *vma {
	return &vma{pages: hostarch.PageRange{Start: vpn, End: vpn}}
}

// find returns the vma containing vpn, or nil.
func (s vmaSet) find(vpn hostarch.PageNumber) *vma {
	var found *vma
	s.tree.DescendLessOrEqual(pivot(vpn), func(v *vma) bool {
		if v.pages.Contains(vpn) {
			found = v
		}
		return false
	})
	return found
}

// overlapping returns the vmas overlapping pr in ascending order.
func (s vmaSet) overlapping(pr hostarch.PageRange) []*vma {
	if pr.Len() == 0 {
		return nil
	}
	var vs []*vma
	if v := s.find(pr.Start); v != nil {
		vs = append(vs, v)
	}
	s.tree.AscendRange(pivot(pr.Start+1), pivot(pr.End), func(v *vma) bool {
		vs = append(vs, v)
		return true
	})
	return vs
}

// covers returns true if every page of pr lies in a vma of kind k.
func (s vmaSet) covers(pr hostarch.PageRange, k vmaKind) bool {
	next := pr.Start
	for _, v := range s.overlapping(pr) {
		if v.kind != k || v.pages.Start > next {
			return false
		}
		next = v.pages.End
	}
	return next >= pr.End
}

// insert adds v. v must not overlap any vma in s.
func (s vmaSet) insert(v *vma) {
	if v.pages.Len() == 0 {
		return
	}
	s.tree.ReplaceOrInsert(v)
}

func (s vmaSet) remove(v *vma) {
	s.tree.Delete(v)
}

// all returns every vma in ascending order.
func (s vmaSet) all() []*vma {
	vs := make([]*vma, 0, s.tree.Len())
	s.tree.Ascend(func(v *vma) bool {
		vs = append(vs, v)
		return true
	})
	return vs
}

// heap returns the heap vma, or nil if the heap is empty.
func (s vmaSet) heap() *vma {
	var h *vma
	s.tree.Ascend(func(v *vma) bool {
		if v.kind == vmaHeap {
			h = v
			return false
		}
		return true
	})
	return h
}

// carve removes pr from every vma it overlaps, splitting a vma that extends
// past both ends of pr into two.
func (s vmaSet) carve(pr hostarch.PageRange) {
	for _, v := range s.overlapping(pr) {
		s.remove(v)
		if v.pages.Start < pr.Start {
			left := *v
			left.pages.End = pr.Start
			s.insert(&left)
		}
		if pr.End < v.pages.End {
			right := *v
			right.pages.Start = pr.End
			s.insert(&right)
		}
	}
}
