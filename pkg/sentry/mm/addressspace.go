// Copyright 2024 The Nachos-Go Authors.
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

// Package mm builds and tears down a single process's address space: its
// page table, the object-file image and argv page loaded into it, and
// the bounded copy-in/copy-out paths every syscall crosses the
// user/kernel boundary through.
package mm

import (
	"bytes"
	"fmt"

	"github.com/suica-choo/nachos/pkg/sentry/pgalloc"
	"github.com/suica-choo/nachos/pkg/sentry/platform"
)

// StackPages is the fixed number of stack pages appended below the argv
// page.
const StackPages = 8

// AddressSpace is one process's virtual memory: a contiguous page table
// built from an object file's sections, StackPages of stack, and one
// argv page on top.
type AddressSpace struct {
	proc  platform.Processor
	alloc *pgalloc.Allocator

	pageTable []platform.TranslationEntry
	numPages  int32

	InitialPC uint32
	InitialSP uint32
	Argc      int32
	ArgvAddr  uint32
}

// Load constructs an AddressSpace for the executable named name with the
// given argv, on top of proc's physical memory. Frames are allocated in
// one batch: a late failure never leaves earlier frames stranded.
func Load(proc platform.Processor, alloc *pgalloc.Allocator, loader platform.Loader, fs platform.FileSystem, name string, args []string) (*AddressSpace, error) {
	obj, err := loader.Load(fs, name)
	if err != nil {
		return nil, fmt.Errorf("mm: loading %q: %w", name, err)
	}
	sections := obj.Sections()

	var total int32
	for _, s := range sections {
		if s.FirstVPN != total {
			return nil, fmt.Errorf("mm: %q has a non-contiguous section at VPN %d, expected %d", name, s.FirstVPN, total)
		}
		total += s.NumPages
	}

	ps := proc.PageSize()
	numPages := total + StackPages + 1
	argvVPN := total + StackPages
	ptrBase := uint32(argvVPN) * uint32(ps)

	argvPage, _, ok := packArgv(args, ptrBase, ps)
	if !ok {
		return nil, fmt.Errorf("mm: argv for %q does not fit in one page", name)
	}

	frames, ok := alloc.AcquireN(int(numPages))
	if !ok {
		return nil, fmt.Errorf("mm: out of physical memory loading %q (need %d frames)", name, numPages)
	}

	pt := make([]platform.TranslationEntry, numPages)
	mem := proc.Memory()

	vpn := int32(0)
	for _, s := range sections {
		for i := int32(0); i < s.NumPages; i++ {
			ppn := frames[vpn]
			pt[vpn] = platform.TranslationEntry{VPN: vpn, PPN: ppn, Valid: true, ReadOnly: s.ReadOnly}
			dst := int64(ppn) * int64(ps)
			src := i * ps
			copy(mem[dst:dst+int64(ps)], s.Data[src:src+ps])
			vpn++
		}
	}
	for ; vpn < argvVPN; vpn++ {
		pt[vpn] = platform.TranslationEntry{VPN: vpn, PPN: frames[vpn], Valid: true}
	}
	pt[argvVPN] = platform.TranslationEntry{VPN: argvVPN, PPN: frames[argvVPN], Valid: true}
	dst := int64(frames[argvVPN]) * int64(ps)
	copy(mem[dst:dst+int64(ps)], argvPage)

	as := &AddressSpace{
		proc:      proc,
		alloc:     alloc,
		pageTable: pt,
		numPages:  numPages,
		InitialPC: obj.EntryPoint(),
		InitialSP: uint32(argvVPN) * uint32(ps),
		Argc:      int32(len(args)),
		ArgvAddr:  ptrBase,
	}
	return as, nil
}

// NumPages returns the address space's total page count.
func (as *AddressSpace) NumPages() int32 { return as.numPages }

// PageTable returns the live translation entries. Callers must not
// mutate the returned slice outside of AddressSpace's own methods.
func (as *AddressSpace) PageTable() []platform.TranslationEntry { return as.pageTable }

// ReadVirtualMemory copies up to len(buf) bytes starting at vaddr into
// buf, stopping at the end of the address space. It never faults the
// caller: a short or zero-length transfer is a legitimate outcome,
// returned as the number of bytes actually copied.
func (as *AddressSpace) ReadVirtualMemory(vaddr uint32, buf []byte) int {
	ps := as.proc.PageSize()
	mem := as.proc.Memory()

	vpn := platform.PageFromAddress(vaddr, ps)
	off := platform.OffsetFromAddress(vaddr, ps)
	copied := 0
	remaining := len(buf)

	for remaining > 0 {
		if vpn >= as.numPages {
			break
		}
		e := &as.pageTable[vpn]
		e.Used = true

		n := int(ps - off)
		if n > remaining {
			n = remaining
		}
		src := int64(e.PPN)*int64(ps) + int64(off)
		copy(buf[copied:copied+n], mem[src:src+int64(n)])

		copied += n
		remaining -= n
		vpn++
		off = 0
	}
	return copied
}

// WriteVirtualMemory copies up to len(buf) bytes from buf into the
// address space starting at vaddr, stopping at the end of the address
// space or at the first read-only page. The loop counts down the bytes
// still owed rather than recomputing from len(buf), so multi-page
// writes are not truncated to the first page's share.
func (as *AddressSpace) WriteVirtualMemory(vaddr uint32, buf []byte) int {
	ps := as.proc.PageSize()
	mem := as.proc.Memory()

	vpn := platform.PageFromAddress(vaddr, ps)
	off := platform.OffsetFromAddress(vaddr, ps)
	copied := 0
	remaining := len(buf)

	for remaining > 0 {
		if vpn >= as.numPages {
			break
		}
		e := &as.pageTable[vpn]
		if e.ReadOnly {
			break
		}
		e.Used = true
		e.Dirty = true

		n := int(ps - off)
		if n > remaining {
			n = remaining
		}
		dst := int64(e.PPN)*int64(ps) + int64(off)
		copy(mem[dst:dst+int64(n)], buf[copied:copied+n])

		copied += n
		remaining -= n
		vpn++
		off = 0
	}
	return copied
}

// ReadString reads up to maxLen+1 bytes starting at vaddr and returns
// the leading null-terminated prefix. ok is false if no terminator
// appears within the read window.
func (as *AddressSpace) ReadString(vaddr uint32, maxLen int) (s string, ok bool) {
	buf := make([]byte, maxLen+1)
	n := as.ReadVirtualMemory(vaddr, buf)
	idx := bytes.IndexByte(buf[:n], 0)
	if idx < 0 {
		return "", false
	}
	return string(buf[:idx]), true
}

// Teardown returns every physical frame in the page table to the
// allocator and invalidates every entry.
func (as *AddressSpace) Teardown() {
	frames := make([]int32, 0, len(as.pageTable))
	for i := range as.pageTable {
		if as.pageTable[i].Valid {
			frames = append(frames, as.pageTable[i].PPN)
		}
		as.pageTable[i].Valid = false
	}
	as.alloc.ReleaseN(frames)
}
