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

// Package fdtable is the fixed-size per-process file descriptor table:
// 16 slots, with slot 0 (stdin) and slot 1 (stdout) preassigned at
// construction and never reassignable.
package fdtable

import (
	"sync"

	"github.com/suica-choo/nachos/pkg/sentry/platform"
)

// MaxFiles is the number of slots in a Table.
const MaxFiles = 16

// descriptor is one occupied slot.
type descriptor struct {
	file     platform.OpenFile
	position int64
	filename string
	toDelete bool
}

// Table is a process's file descriptor table. The zero value is not
// usable; construct with New.
type Table struct {
	mu  sync.Mutex
	fds [MaxFiles]*descriptor
}

// New returns a Table with slot 0 wired to stdin and slot 1 to stdout.
func New(stdin, stdout platform.OpenFile) *Table {
	t := &Table{}
	t.fds[0] = &descriptor{file: stdin}
	t.fds[1] = &descriptor{file: stdout}
	return t
}

// allocate returns the first empty slot in [2, MaxFiles), or -1 if the
// table is full. Every empty slot is a candidate, including one freed
// immediately after an occupied one.
func (t *Table) allocate() int {
	for i := 2; i < MaxFiles; i++ {
		if t.fds[i] == nil {
			return i
		}
	}
	return -1
}

// Creat opens name for writing, creating it if it does not exist, and
// installs it in a free slot. Returns the slot index, or -1 on failure.
func (t *Table) Creat(fs platform.FileSystem, name string) int32 {
	return t.open(fs, name, true)
}

// Open opens an existing file and installs it in a free slot. Returns
// the slot index, or -1 on failure.
func (t *Table) Open(fs platform.FileSystem, name string) int32 {
	return t.open(fs, name, false)
}

func (t *Table) open(fs platform.FileSystem, name string, create bool) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.allocate()
	if idx < 0 {
		return -1
	}
	f, err := fs.Open(name, create)
	if err != nil || f == nil {
		return -1
	}
	t.fds[idx] = &descriptor{file: f, filename: name}
	return int32(idx)
}

func (t *Table) slot(fd int32) *descriptor {
	if fd < 0 || int(fd) >= MaxFiles {
		return nil
	}
	return t.fds[fd]
}

// Read reads up to len(p) bytes from fd. fd == 1 (stdout), an
// out-of-range fd, or an empty slot all fail. Slot 0 (console) has no
// position and is forwarded unpositioned; other slots read at, and
// advance, their stored position.
func (t *Table) Read(fd int32, p []byte) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd == 1 {
		return 0, false
	}
	d := t.slot(fd)
	if d == nil {
		return 0, false
	}
	if fd == 0 {
		n, err := d.file.Read(p)
		if err != nil && n == 0 {
			return 0, true // EOF: 0 bytes is a legitimate outcome, not a failure
		}
		return n, true
	}
	n, err := d.file.ReadAt(p, d.position)
	if err != nil && n == 0 {
		return 0, true
	}
	d.position += int64(n)
	return n, true
}

// Write writes up to len(p) bytes to fd. fd == 0 (stdin) fails.
func (t *Table) Write(fd int32, p []byte) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if fd == 0 {
		return 0, false
	}
	d := t.slot(fd)
	if d == nil {
		return 0, false
	}
	if fd == 1 {
		n, err := d.file.Write(p)
		if err != nil {
			return n, false
		}
		return n, true
	}
	n, err := d.file.WriteAt(p, d.position)
	if err != nil {
		return n, false
	}
	d.position += int64(n)
	return n, true
}

// Close closes fd and clears its slot, then deletes the underlying file
// if Unlink had deferred removal on it. Returns 0 on success, -1 if the
// slot is empty or the deferred delete fails.
func (t *Table) Close(fs platform.FileSystem, fd int32) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.slot(fd)
	if d == nil {
		return -1
	}
	d.file.Close()
	t.fds[fd] = nil
	if d.toDelete {
		if !fs.Remove(d.filename) {
			return -1
		}
	}
	return 0
}

// Unlink removes name from the file system, or, if an open FD names it,
// defers the removal to that FD's Close.
func (t *Table) Unlink(fs platform.FileSystem, name string) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Filenames match by value, not by handle identity.
	for _, d := range t.fds {
		if d != nil && d.filename == name {
			d.toDelete = true
			return 0
		}
	}
	if fs.Remove(name) {
		return 0
	}
	return -1
}

// CloseAll closes every occupied slot (2..MaxFiles and the console
// endpoints), applying any deferred unlinks. Used by process exit.
func (t *Table) CloseAll(fs platform.FileSystem) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.fds {
		d := t.fds[i]
		if d == nil {
			continue
		}
		d.file.Close()
		if d.toDelete {
			fs.Remove(d.filename)
		}
		t.fds[i] = nil
	}
}
