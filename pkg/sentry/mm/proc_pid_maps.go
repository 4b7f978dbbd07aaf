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
	"bytes"
	"fmt"
	"strings"

	"gvisor.dev/ukernel/pkg/hostarch"
	"gvisor.dev/ukernel/pkg/ring0/pagetables"
)

// Area describes one memory area.
type Area struct {
	Range hostarch.AddrRange
	Perms pagetables.PTEFlags
	Name  string
}

// Areas returns the memory areas in ascending address order.
func (mm *MemoryManager) Areas() []Area {
	mm.mappingMu.Lock()
	defer mm.mappingMu.Unlock()
	vmas := mm.vmas.all()
	areas := make([]Area, 0, len(vmas))
	for _, v := range vmas {
		areas = append(areas, Area{
			Range: v.pages.AddrRange(),
			Perms: v.perms,
			Name:  v.hint,
		})
	}
	return areas
}

// Maps returns the address space in the format of /proc/[pid]/maps.
func (mm *MemoryManager) Maps() string {
	var b bytes.Buffer
	for _, a := range mm.Areas() {
		a.writeMapsEntry(&b)
	}
	return b.String()
}

// writeMapsEntry writes the /proc/[pid]/maps entry for a, including the
// trailing newline.
func (a Area) writeMapsEntry(b *bytes.Buffer) {
	start := b.Len()
	// Anonymous memory: no offset, device or inode.
	fmt.Fprintf(b, "%08x-%08x %sp %08x %02x:%02x %d ",
		uintptr(a.Range.Start), uintptr(a.Range.End), a.Perms.AccessType(), 0, 0, 0, 0)
	if a.Name != "" {
		// Per linux, we pad until the 74th character.
		if pad := 73 - (b.Len() - start); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteString(a.Name)
	}
	b.WriteString("\n")
}
