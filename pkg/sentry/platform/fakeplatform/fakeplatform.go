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

// Package fakeplatform is an in-memory test double for every collaborator
// declared in pkg/sentry/platform: a Processor backed by a plain byte
// slice, a FileSystem backed by a map, a Console backed by in-memory
// pipes, and a Loader that decodes a minimal stand-in for a COFF header.
// It is the harness the fdtable, mm and kernel tests (and cmd/nachos's
// default boot mode) drive the kernel through.
package fakeplatform

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/suica-choo/nachos/pkg/atomicbitops"
	"github.com/suica-choo/nachos/pkg/sentry/platform"
)

// Processor is a Processor backed by a plain byte slice standing in for
// physical memory.
type Processor struct {
	mu         sync.Mutex
	regs       [platform.NumRegisters]uint32
	mem        []byte
	pageSize   int32
	pageTable  []platform.TranslationEntry
	excHandler func()

	halted atomicbitops.Bool
	haltCh chan struct{}
}

// NewProcessor creates a Processor with numPhys frames of pageSize bytes
// each.
func NewProcessor(numPhys, pageSize int32) *Processor {
	return &Processor{
		mem:      make([]byte, int64(numPhys)*int64(pageSize)),
		pageSize: pageSize,
		haltCh:   make(chan struct{}),
	}
}

func (p *Processor) NumUserRegisters() int { return platform.NumRegisters }

func (p *Processor) Reg(i int) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regs[i]
}

func (p *Processor) SetReg(i int, v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[i] = v
}

func (p *Processor) PageSize() int32 { return p.pageSize }

func (p *Processor) NumPhysPages() int32 { return int32(len(p.mem)) / p.pageSize }

func (p *Processor) Memory() []byte { return p.mem }

func (p *Processor) AdvancePC() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs[platform.RegPC] += 4
}

func (p *Processor) SetPageTable(pt []platform.TranslationEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageTable = pt
}

func (p *Processor) SetExceptionHandler(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.excHandler = fn
}

// RaiseException invokes the installed exception handler, simulating a
// processor trap in place of a real instruction interpreter, which is
// out of scope. The kernel tests call kernel.HandleException directly
// rather than going through it.
func (p *Processor) RaiseException() {
	p.mu.Lock()
	h := p.excHandler
	p.mu.Unlock()
	if h != nil {
		h()
	}
}

func (p *Processor) Halt() {
	if !p.halted.Swap(true) {
		close(p.haltCh)
	}
}

// Halted reports whether Halt has been called.
func (p *Processor) Halted() bool { return p.halted.Load() }

// WaitHalt blocks until Halt is called.
func (p *Processor) WaitHalt() { <-p.haltCh }

// Timer is a manually advanced timer device: Advance moves the clock
// and runs the installed interrupt handler synchronously, standing in
// for the machine's periodic tick.
type Timer struct {
	mu      sync.Mutex
	now     int64
	handler func()
}

// NewTimer returns a Timer at tick 0 with no handler installed.
func NewTimer() *Timer { return &Timer{} }

func (t *Timer) GetTime() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

func (t *Timer) SetInterruptHandler(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

// Advance moves the clock forward by ticks and fires the interrupt
// handler once, the way the machine fires it after a burst of ticks.
func (t *Timer) Advance(ticks int64) {
	t.mu.Lock()
	t.now += ticks
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h()
	}
}

// memFile is an OpenFile backed by a byte slice shared with the owning
// FileSystem.
type memFile struct {
	fs   *FileSystem
	name string
	pos  int64
}

// Read and Write implement the unpositioned path: they advance the
// file's own implicit cursor by exactly the bytes actually transferred,
// not by the caller's requested length.
func (f *memFile) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	off := f.pos
	f.fs.mu.Unlock()
	n, err := f.ReadAt(p, off)
	f.fs.mu.Lock()
	f.pos = off + int64(n)
	f.fs.mu.Unlock()
	return n, err
}

func (f *memFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	off := f.pos
	f.fs.mu.Unlock()
	n, err := f.WriteAt(p, off)
	f.fs.mu.Lock()
	f.pos = off + int64(n)
	f.fs.mu.Unlock()
	return n, err
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	data := f.fs.files[f.name]
	if data == nil {
		return 0, fmt.Errorf("fakeplatform: %q no longer exists", f.name)
	}
	if off >= int64(len(*data)) {
		return 0, io.EOF
	}
	n := copy(p, (*data)[off:])
	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	data := f.fs.files[f.name]
	if data == nil {
		return 0, fmt.Errorf("fakeplatform: %q no longer exists", f.name)
	}
	need := off + int64(len(p))
	if need > int64(len(*data)) {
		grown := make([]byte, need)
		copy(grown, *data)
		*data = grown
	}
	n := copy((*data)[off:], p)
	return n, nil
}

func (f *memFile) Close() error { return nil }

// FileSystem is an in-memory FileSystem.
type FileSystem struct {
	mu    sync.Mutex
	files map[string]*[]byte
}

// NewFileSystem returns an empty FileSystem.
func NewFileSystem() *FileSystem {
	return &FileSystem{files: map[string]*[]byte{}}
}

func (fs *FileSystem) Open(name string, createIfMissing bool) (platform.OpenFile, error) {
	fs.mu.Lock()
	_, ok := fs.files[name]
	if !ok {
		if !createIfMissing {
			fs.mu.Unlock()
			return nil, errors.New("fakeplatform: file not found")
		}
		b := []byte{}
		fs.files[name] = &b
	}
	fs.mu.Unlock()
	return &memFile{fs: fs, name: name}, nil
}

func (fs *FileSystem) Remove(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.files[name]; !ok {
		return false
	}
	delete(fs.files, name)
	return true
}

// WriteFile installs raw bytes under name, overwriting any prior
// contents. Convenience for tests seeding the fake file system directly.
func (fs *FileSystem) WriteFile(name string, data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	cp := append([]byte(nil), data...)
	fs.files[name] = &cp
}

// Console is a Console backed by in-memory buffers rather than a real
// terminal; see hostconsole for the real one.
type Console struct {
	in  *memBuffer
	out *memBuffer
}

// NewConsole returns a Console whose stdin is pre-seeded with input and
// whose stdout accumulates writes for later inspection via Output.
func NewConsole(input []byte) *Console {
	return &Console{
		in:  &memBuffer{buf: *bytes.NewBuffer(input)},
		out: &memBuffer{},
	}
}

func (c *Console) StdinFile() platform.OpenFile  { return c.in }
func (c *Console) StdoutFile() platform.OpenFile { return c.out }

// Output returns everything written to stdout so far.
func (c *Console) Output() []byte {
	c.out.mu.Lock()
	defer c.out.mu.Unlock()
	return append([]byte(nil), c.out.buf.Bytes()...)
}

// memBuffer adapts a bytes.Buffer to platform.OpenFile. Console endpoints
// have no position, so ReadAt/WriteAt just forward.
type memBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (m *memBuffer) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Read(p)
}
func (m *memBuffer) ReadAt(p []byte, _ int64) (int, error) { return m.Read(p) }
func (m *memBuffer) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.Write(p)
}
func (m *memBuffer) WriteAt(p []byte, _ int64) (int, error) { return m.Write(p) }
func (m *memBuffer) Close() error                           { return nil }

// Program is the in-memory form of a test executable: a section table
// plus an entry point, standing in for a parsed COFF image.
type Program struct {
	Sections []platform.Section
	Entry    uint32
}

const magic = "NACHOS-FAKE-COFF"

// Encode serializes pr into the flat binary layout Loader decodes: a
// fixed magic string, the entry point, a section count, then each
// section's header followed by its raw page data.
func Encode(pr Program) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	binary.Write(&buf, binary.LittleEndian, pr.Entry)
	binary.Write(&buf, binary.LittleEndian, uint32(len(pr.Sections)))
	for _, s := range pr.Sections {
		binary.Write(&buf, binary.LittleEndian, s.FirstVPN)
		binary.Write(&buf, binary.LittleEndian, s.NumPages)
		var ro uint8
		if s.ReadOnly {
			ro = 1
		}
		buf.WriteByte(ro)
		buf.Write(s.Data)
	}
	return buf.Bytes()
}

// objectFile is the decoded form of a Program.
type objectFile struct {
	sections []platform.Section
	entry    uint32
}

func (o *objectFile) Sections() []platform.Section { return o.sections }
func (o *objectFile) EntryPoint() uint32 { return o.entry }

// Loader decodes the Encode layout read through a platform.FileSystem.
// It is not a COFF parser; it is only ever asked to understand its own
// Encode output.
type Loader struct {
	PageSize int32
}

func (l Loader) Load(fs platform.FileSystem, name string) (platform.ObjectFile, error) {
	f, err := fs.Open(name, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := readAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return nil, fmt.Errorf("fakeplatform: %q is not a recognized executable", name)
	}
	r := bytes.NewReader(data[len(magic):])

	var entry uint32
	if err := binary.Read(r, binary.LittleEndian, &entry); err != nil {
		return nil, err
	}
	var numSections uint32
	if err := binary.Read(r, binary.LittleEndian, &numSections); err != nil {
		return nil, err
	}

	sections := make([]platform.Section, numSections)
	for i := range sections {
		var firstVPN, numPages int32
		if err := binary.Read(r, binary.LittleEndian, &firstVPN); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &numPages); err != nil {
			return nil, err
		}
		roByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size := int64(numPages) * int64(l.PageSize)
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		sections[i] = platform.Section{
			FirstVPN: firstVPN,
			NumPages: numPages,
			ReadOnly: roByte != 0,
			Data:     buf,
		}
	}
	return &objectFile{sections: sections, entry: entry}, nil
}

func readAll(f platform.OpenFile) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}
